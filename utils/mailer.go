package utils

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/gomail.v2"
)

type Mail struct {
	To      string
	Subject string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer delivers mail through gomail. Without credentials it only logs
// what would have been sent.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(c SMTPConfig) *SMTPMailer {
	m := &SMTPMailer{from: c.From}
	if m.from == "" {
		m.from = c.Username
	}
	if c.Username != "" && c.Password != "" {
		host := c.Host
		if host == "" {
			host = "smtp.gmail.com"
		}
		port := c.Port
		if port == 0 {
			port = 587
		}
		m.dialer = gomail.NewDialer(host, port, c.Username, c.Password)
	}
	return m
}

func (s *SMTPMailer) Send(ctx context.Context, m Mail) error {
	if s.dialer == nil {
		log.Printf("[mail] credentials not configured, would send to=%s subject=%q", m.To, m.Subject)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/html", m.HTML)
	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", m.To, err)
	}
	log.Printf("[mail] sent to=%s subject=%q", m.To, m.Subject)
	return nil
}

// OrderMailData is what the order templates render.
type OrderMailData struct {
	OrderID          string
	Name             string
	Email            string
	Phone            string
	Address          string
	PaymentMode      string
	PaymentVerified  bool
	PaymentReference string
	Items            []OrderMailItem
	TotalAmount      decimal.Decimal
	Date             time.Time
}

type OrderMailItem struct {
	ProductName string
	Flavor      string
	Quantity    int
	Price       decimal.Decimal
}

func (i OrderMailItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (d OrderMailData) PaymentStatus() string {
	switch {
	case d.PaymentMode == "cod":
		return "Cash on Delivery"
	case d.PaymentVerified:
		return "Verified"
	default:
		return "Not Verified"
	}
}

const itemsTable = `{{define "items"}}<table style="width:100%;border-collapse:collapse;">
<thead><tr><th style="text-align:left;">Product</th><th>Qty</th><th style="text-align:right;">Price</th><th style="text-align:right;">Total</th></tr></thead>
<tbody>{{range .Items}}<tr><td>{{.ProductName}}{{if .Flavor}} - {{.Flavor}}{{end}}</td><td style="text-align:center;">{{.Quantity}}</td><td style="text-align:right;">&#8377;{{.Price}}</td><td style="text-align:right;">&#8377;{{.LineTotal}}</td></tr>{{end}}</tbody>
<tfoot><tr><td colspan="3" style="text-align:right;"><strong>Total Amount:</strong></td><td style="text-align:right;"><strong>&#8377;{{.TotalAmount}}</strong></td></tr></tfoot>
</table>{{end}}`

var (
	confirmationTmpl = template.Must(template.New("confirmation").Parse(itemsTable + `
<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto;">
<h1 style="color:#d4af37;">Candle Store</h1>
<h2>Dear {{.Name}},</h2>
<p>Thank you for your order! We have received it and it is being processed.</p>
<p><strong>Order ID:</strong> {{.OrderID}}<br><strong>Date:</strong> {{.Date.Format "02 Jan 2006"}}<br><strong>Payment Status:</strong> {{.PaymentStatus}}{{if .PaymentReference}}<br><strong>Payment Reference:</strong> {{.PaymentReference}}{{end}}</p>
{{template "items" .}}
<p>We'll send you a tracking number once your order ships.</p>
<p style="color:#666;font-size:14px;">Thank you for choosing Candle Store!</p>
</div>`))

	adminTmpl = template.Must(template.New("admin").Parse(itemsTable + `
<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto;">
<h1 style="color:#dc3545;">New Order Alert</h1>
<p><strong>Name:</strong> {{.Name}}<br><strong>Email:</strong> {{.Email}}<br><strong>Phone:</strong> {{.Phone}}<br><strong>Order ID:</strong> {{.OrderID}}<br><strong>Payment Status:</strong> {{.PaymentStatus}}{{if .PaymentReference}}<br><strong>Payment Reference:</strong> {{.PaymentReference}}{{end}}</p>
<p><strong>Delivery Address:</strong><br>{{.Address}}</p>
{{template "items" .}}
<p>Please process this order and update the customer with tracking information once shipped.</p>
<p style="color:#666;font-size:14px;">Order received at {{.Date.Format "02 Jan 2006 15:04 MST"}}</p>
</div>`))

	trackingTmpl = template.Must(template.New("tracking").Parse(`
<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto;">
<h2 style="color:#333;">Good news, {{.Name}}!</h2>
<p>Your order <strong>{{.OrderID}}</strong> is on its way.</p>
<p><strong>Courier:</strong> {{.Courier}}</p>
<p><strong>Tracking ID:</strong> {{.TrackingID}}</p>
<p>You can track your shipment here: <a href="{{.TrackingURL}}" target="_blank" rel="noopener noreferrer">Track Package</a></p>
<hr>
<p style="color:#666;font-size:13px;">If the link doesn't work, copy and paste this ID on the {{.Courier}} website.</p>
</div>`))
)

func OrderConfirmationMail(d OrderMailData) (Mail, error) {
	html, err := render(confirmationTmpl, d)
	return Mail{To: d.Email, Subject: "Order Confirmation - " + d.OrderID, HTML: html}, err
}

func AdminNotificationMail(adminEmail string, d OrderMailData) (Mail, error) {
	html, err := render(adminTmpl, d)
	return Mail{To: adminEmail, Subject: "New Order Received - " + d.OrderID, HTML: html}, err
}

type TrackingMailData struct {
	Name       string
	Email      string
	OrderID    string
	Courier    string
	TrackingID string
}

func (d TrackingMailData) TrackingURL() string {
	return "https://www.google.com/search?q=" + url.QueryEscape(d.Courier+" "+d.TrackingID)
}

func TrackingMail(d TrackingMailData) (Mail, error) {
	html, err := render(trackingTmpl, d)
	return Mail{To: d.Email, Subject: fmt.Sprintf("Your order %s has shipped", d.OrderID), HTML: html}, err
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
