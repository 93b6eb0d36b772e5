package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sreedevirajkumar/candle/database"
	"github.com/sreedevirajkumar/candle/utils"
)

type Config struct {
	Env  string
	Port string

	DB database.Options

	RedisAddr string
	RedisPass string
	RedisDB   int

	JWTSecret   string
	JWTAudience string
	JWTIssuer   string
	JWTTTL      time.Duration

	AdminAuth         bool
	AdminUsername     string
	AdminPasswordHash string
	AdminEmail        string
	CronKey           string

	PaymentSeed bool

	CORSOrigins      []string
	TrustedProxies   []string
	WebhookWhitelist []string
	RateIPMax        int
	RateVerifyMax    int
	RateWebhookMax   int
	MaxBodyBytes     int64
	RequestTimeout   time.Duration
	CSP              string
	HSTS             bool

	SMTP utils.SMTPConfig
	R2   utils.R2Config
}

func (c *Config) Development() bool {
	return c.Env == "development"
}

// Load reads .env if present without overriding variables that are already
// set, then builds the Config from the environment.
func Load(files ...string) (*Config, error) {
	if envMap, err := godotenv.Read(files...); err == nil {
		for k, v := range envMap {
			if os.Getenv(k) == "" {
				os.Setenv(k, v)
			}
		}
	}
	return FromEnv()
}

// FromEnv builds the Config from the process environment and validates it.
func FromEnv() (*Config, error) {
	env := strings.ToLower(getenv("ENV", "development"))
	dev := env == "development"

	c := &Config{
		Env:  env,
		Port: getenv("PORT", "3000"),
		DB: database.Options{
			Driver:          strings.ToLower(getenv("DB_DRIVER", database.DriverMemory)),
			Debug:           dev && getbool("DB_DEBUG", false),
			Host:            getenv("DB_HOST", "127.0.0.1"),
			Port:            getenv("DB_PORT", "3306"),
			User:            getenv("DB_USER", "root"),
			Pass:            os.Getenv("DB_PASS"),
			Name:            getenv("DB_NAME", "candle"),
			Params:          os.Getenv("DB_PARAMS"),
			DSN:             os.Getenv("DB_DSN"),
			TLS:             strings.ToLower(getenv("DB_TLS", "true")),
			TLSCAPath:       os.Getenv("DB_TLS_CA_PATH"),
			TLSClientCert:   os.Getenv("DB_TLS_CLIENT_CERT"),
			TLSClientKey:    os.Getenv("DB_TLS_CLIENT_KEY"),
			SQLitePath:      getenv("SQLITE_PATH", "candle.db"),
			ConnectRetries:  getint("DB_CONNECT_RETRIES", 5),
			MaxOpenConns:    getint("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getint("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: time.Duration(getint("DB_CONN_MAX_LIFETIME", 3600)) * time.Second,
			PingOnConnect:   getbool("DB_PING_ON_CONNECT", true),
		},

		RedisAddr: strings.ReplaceAll(os.Getenv("REDIS_ADDR"), " ", ""),
		RedisPass: os.Getenv("REDIS_PASS"),
		RedisDB:   getint("REDIS_DB", 0),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTAudience: os.Getenv("JWT_AUD"),
		JWTIssuer:   os.Getenv("JWT_ISS"),
		JWTTTL:      time.Duration(getint("JWT_TTL_MINUTES", 360)) * time.Minute,

		AdminAuth:         getbool("ADMIN_AUTH", !dev),
		AdminUsername:     getenv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		AdminEmail:        os.Getenv("ADMIN_EMAIL"),
		CronKey:           os.Getenv("CRON_KEY"),

		PaymentSeed: getbool("PAYMENT_SEED", dev),

		CORSOrigins:      getlist("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173", "http://127.0.0.1:3000"}),
		TrustedProxies:   getlist("TRUSTED_PROXIES", nil),
		WebhookWhitelist: getlist("WEBHOOK_WHITELIST", []string{"127.0.0.1"}),
		RateIPMax:        getint("RATE_IP_DEFAULT", 200),
		RateVerifyMax:    getint("RATE_IP_VERIFY", 30),
		RateWebhookMax:   getint("RATE_WEBHOOK", 500),
		MaxBodyBytes:     int64(getint("MAX_BODY_BYTES", 1<<20)),
		RequestTimeout:   time.Duration(getint("REQ_TIMEOUT_SEC", 10)) * time.Second,
		CSP:              os.Getenv("SEC_CSP"),
		HSTS:             getbool("SEC_HSTS", false),

		SMTP: utils.SMTPConfig{
			Host:     getenv("EMAIL_HOST", "smtp.gmail.com"),
			Port:     getint("EMAIL_PORT", 587),
			Username: os.Getenv("EMAIL_USER"),
			Password: os.Getenv("EMAIL_PASS"),
			From:     os.Getenv("EMAIL_FROM"),
		},
		R2: utils.R2Config{
			AccountID: os.Getenv("R2_ACCOUNT_ID"),
			AccessKey: os.Getenv("R2_ACCESS_KEY_ID"),
			SecretKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
			Bucket:    os.Getenv("R2_BUCKET_NAME"),
			Endpoint:  os.Getenv("R2_ENDPOINT"),
			PathStyle: getbool("R2_PATH_STYLE", false),
		},
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.DB.Driver {
	case database.DriverMemory, database.DriverSQLite:
	case database.DriverMySQL:
		if c.DB.DSN == "" {
			for k, v := range map[string]string{"DB_HOST": c.DB.Host, "DB_USER": c.DB.User, "DB_NAME": c.DB.Name} {
				if v == "" {
					errs = append(errs, fmt.Errorf("required environment variable %s is not set", k))
				}
			}
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be mysql, sqlite or memory, got %q", c.DB.Driver))
	}
	if c.AdminAuth {
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("required environment variable JWT_SECRET is not set"))
		} else if c.JWTSecret == "supersecretjwtkey" || len(c.JWTSecret) < 16 {
			errs = append(errs, errors.New("JWT_SECRET is too weak"))
		}
		if c.AdminPasswordHash == "" {
			errs = append(errs, errors.New("required environment variable ADMIN_PASSWORD_HASH is not set"))
		}
	}
	return errors.Join(errs...)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v, err := strconv.Atoi(getenv(key, "")); err == nil {
		return v
	}
	return def
}

func getbool(key string, def bool) bool {
	if v, err := strconv.ParseBool(getenv(key, "")); err == nil {
		return v
	}
	return def
}

func getlist(key string, def []string) []string {
	raw := getenv(key, "")
	if raw == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
