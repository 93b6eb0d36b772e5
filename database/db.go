package database

import (
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Options selects and tunes the backing database.
type Options struct {
	Driver string
	Debug  bool

	// mysql
	Host   string
	Port   string
	User   string
	Pass   string
	Name   string
	Params string
	DSN    string
	// TLS is one of "false", "true", "preferred" or "verify".
	TLS           string
	TLSCAPath     string
	TLSClientCert string
	TLSClientKey  string

	// sqlite
	SQLitePath string

	ConnectRetries  int
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingOnConnect   bool
}

// Connect opens the configured database with pooling and retry. The memory
// driver returns a nil DB; callers fall back to in-process stores.
func Connect(opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(opts.Driver) {
	case DriverMemory:
		return nil, nil
	case DriverSQLite:
		path := opts.SQLitePath
		if path == "" {
			path = "candle.db"
		}
		log.Printf("[database] using sqlite file %s", path)
		dialector = sqlite.Open(path)
		// sqlite allows a single writer
		opts.MaxOpenConns = 1
		opts.MaxIdleConns = 1
	case DriverMySQL, "":
		dsn, err := mysqlDSN(opts)
		if err != nil {
			return nil, err
		}
		dialector = gormmysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", opts.Driver)
	}

	// GORM logger: verbose in development
	gormLogger := logger.Default.LogMode(logger.Silent)
	if opts.Debug {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	// Retry connection with exponential backoff
	retries := opts.ConnectRetries
	if retries <= 0 {
		retries = 1
	}
	var db *gorm.DB
	var err error
	backoff := time.Second
	for attempt := 1; attempt <= retries; attempt++ {
		db, err = gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
		if err == nil {
			break
		}
		log.Printf("[database] connect attempt %d/%d failed: %v", attempt, retries, err)
		if attempt < retries {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if opts.PingOnConnect {
		if err := pingWithTimeout(sqlDB, 5*time.Second); err != nil {
			return nil, fmt.Errorf("database ping failed: %w", err)
		}
	}
	return db, nil
}

func mysqlDSN(opts Options) (string, error) {
	dsn := opts.DSN
	if dsn == "" {
		params := opts.Params
		if params == "" {
			params = "charset=utf8mb4&parseTime=True&loc=UTC"
		}
		if !strings.Contains(params, "tls=") {
			switch opts.TLS {
			case "verify":
				params += "&tls=custom"
			case "true", "preferred":
				params += "&tls=" + opts.TLS
			}
		}
		for _, p := range []string{"timeout", "readTimeout", "writeTimeout"} {
			if !strings.Contains(params, p+"=") {
				params += "&" + p + "=10s"
			}
		}
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?%s", opts.User, opts.Pass, opts.Host, opts.Port, opts.Name, params)
	}

	safeDSN := dsn
	if opts.Pass != "" {
		safeDSN = strings.Replace(safeDSN, opts.Pass, "******", 1)
	}
	log.Printf("[database] using DSN: %s", safeDSN)

	if strings.Contains(dsn, "tls=custom") {
		tlsCfg, err := customTLS(opts)
		if err != nil {
			return "", err
		}
		if err := mysqldriver.RegisterTLSConfig("custom", tlsCfg); err != nil {
			return "", err
		}
	}
	return dsn, nil
}

func customTLS(opts Options) (*tls.Config, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if opts.TLSCAPath != "" {
		caCert, err := os.ReadFile(opts.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("failed reading DB TLS CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to append CA certs")
		}
		tlsCfg.RootCAs = pool
	}
	if opts.TLSClientCert != "" && opts.TLSClientKey != "" {
		cert, err := tls.LoadX509KeyPair(opts.TLSClientCert, opts.TLSClientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}

func pingWithTimeout(db *sql.DB, timeout time.Duration) error {
	ch := make(chan error, 1)
	go func() {
		ch <- db.Ping()
	}()
	select {
	case err := <-ch:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("ping timeout after %s", timeout)
	}
}
