// Package orders places storefront orders and keeps customers informed by
// email. Payment status on an order comes from the payment ledger, never from
// the client.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sreedevirajkumar/candle/models"
	"github.com/sreedevirajkumar/candle/utils"
)

var (
	ErrInvalidRequest = errors.New("invalid order request")
	ErrNotFound       = errors.New("order not found")
)

// ReferenceLookup resolves a payment reference in the ledger.
type ReferenceLookup interface {
	LookupReference(ctx context.Context, reference string) (*models.PaymentRecord, error)
}

type TaskRunner interface {
	Go(task string, fn func(ctx context.Context) error)
}

type PlaceRequest struct {
	Name             string            `json:"name" validate:"required"`
	Phone            string            `json:"phone" validate:"required,phone"`
	Email            string            `json:"email" validate:"required,email"`
	Address          string            `json:"address" validate:"required"`
	PaymentMode      string            `json:"paymentMode" validate:"required"`
	PaymentReference string            `json:"paymentReference,omitempty"`
	CartItems        []models.CartItem `json:"cartItems"`
	TotalAmount      decimal.Decimal   `json:"totalAmount"`
	OrderDate        *time.Time        `json:"orderDate,omitempty"`
}

type Service struct {
	store      Store
	payments   ReferenceLookup
	mailer     utils.Mailer
	tasks      TaskRunner
	adminEmail string
	now        func() time.Time
}

type Options struct {
	Store      Store
	Payments   ReferenceLookup
	Mailer     utils.Mailer
	Tasks      TaskRunner
	AdminEmail string
	Now        func() time.Time
}

func NewService(opts Options) *Service {
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:      opts.Store,
		payments:   opts.Payments,
		mailer:     opts.Mailer,
		tasks:      opts.Tasks,
		adminEmail: opts.AdminEmail,
		now:        opts.Now,
	}
}

// Place records an order and schedules the confirmation and admin emails.
// A persistence failure is logged and the order is still acknowledged.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*models.Order, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	now := s.now().UTC()
	o := &models.Order{
		OrderID:     utils.GenerateOrderID(now),
		Name:        strings.TrimSpace(req.Name),
		Phone:       strings.TrimSpace(req.Phone),
		Email:       strings.TrimSpace(req.Email),
		Address:     strings.TrimSpace(req.Address),
		PaymentMode: req.PaymentMode,
		CartItems:   req.CartItems,
		TotalAmount: req.TotalAmount,
		OrderDate:   now,
	}
	if o.CartItems == nil {
		o.CartItems = []models.CartItem{}
	}
	if req.OrderDate != nil {
		o.OrderDate = req.OrderDate.UTC()
	}
	if ref := strings.TrimSpace(req.PaymentReference); ref != "" {
		o.PaymentReference = &ref
		o.PaymentVerified = s.referenceVerified(ctx, ref)
	}

	if err := s.store.Create(ctx, o); err != nil {
		log.Printf("[order] persist %s failed: %v", o.OrderID, err)
	} else {
		log.Printf("[order] %s placed by %s total=%s mode=%s verified=%t", o.OrderID, o.Email, o.TotalAmount, o.PaymentMode, o.PaymentVerified)
	}

	s.notifyPlaced(o)
	return o, nil
}

func (s *Service) referenceVerified(ctx context.Context, ref string) bool {
	if s.payments == nil {
		return false
	}
	rec, err := s.payments.LookupReference(ctx, ref)
	if err != nil {
		return false
	}
	return rec.Verified
}

func (s *Service) notifyPlaced(o *models.Order) {
	if s.mailer == nil || s.tasks == nil {
		return
	}
	data := mailData(o)
	s.tasks.Go("order confirmation "+o.OrderID, func(ctx context.Context) error {
		m, err := utils.OrderConfirmationMail(data)
		if err != nil {
			return err
		}
		return s.mailer.Send(ctx, m)
	})
	if s.adminEmail == "" {
		return
	}
	s.tasks.Go("admin notification "+o.OrderID, func(ctx context.Context) error {
		m, err := utils.AdminNotificationMail(s.adminEmail, data)
		if err != nil {
			return err
		}
		return s.mailer.Send(ctx, m)
	})
}

func mailData(o *models.Order) utils.OrderMailData {
	items := make([]utils.OrderMailItem, 0, len(o.CartItems))
	for _, it := range o.CartItems {
		items = append(items, utils.OrderMailItem{
			ProductName: it.ProductName,
			Flavor:      it.Flavor,
			Quantity:    it.Quantity,
			Price:       it.Price,
		})
	}
	return utils.OrderMailData{
		OrderID:          o.OrderID,
		Name:             o.Name,
		Email:            o.Email,
		Phone:            o.Phone,
		Address:          o.Address,
		PaymentMode:      o.PaymentMode,
		PaymentVerified:  o.PaymentVerified,
		PaymentReference: utils.GetStringValue(o.PaymentReference),
		Items:            items,
		TotalAmount:      o.TotalAmount,
		Date:             o.OrderDate,
	}
}

// List returns every order, newest first.
func (s *Service) List(ctx context.Context) ([]models.Order, error) {
	return s.store.List(ctx)
}

// AttachTracking saves shipment details and emails them to the customer. A
// failed email is reported to the caller after the tracking is saved.
func (s *Service) AttachTracking(ctx context.Context, orderID, courier, trackingID string) (*models.Order, error) {
	courier = strings.TrimSpace(courier)
	trackingID = strings.TrimSpace(trackingID)
	if courier == "" || trackingID == "" {
		return nil, fmt.Errorf("%w: courierName and trackingId are required", ErrInvalidRequest)
	}
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	o.CourierName = &courier
	o.TrackingID = &trackingID
	o.TrackingEmailSentAt = &now
	if err := s.store.Update(ctx, o); err != nil {
		return nil, err
	}
	log.Printf("[order] %s shipped via %s tracking=%s", o.OrderID, courier, trackingID)

	if s.mailer == nil {
		return o, nil
	}
	m, err := utils.TrackingMail(utils.TrackingMailData{
		Name:       o.Name,
		Email:      o.Email,
		OrderID:    o.OrderID,
		Courier:    courier,
		TrackingID: trackingID,
	})
	if err != nil {
		return o, err
	}
	if err := s.mailer.Send(ctx, m); err != nil {
		return o, fmt.Errorf("send tracking email: %w", err)
	}
	return o, nil
}
