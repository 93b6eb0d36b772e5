package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/sreedevirajkumar/candle/config"
	"github.com/sreedevirajkumar/candle/controllers"
	"github.com/sreedevirajkumar/candle/database"
	"github.com/sreedevirajkumar/candle/middleware"
	"github.com/sreedevirajkumar/candle/orders"
	"github.com/sreedevirajkumar/candle/payments"
	"github.com/sreedevirajkumar/candle/routes"
	"github.com/sreedevirajkumar/candle/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if db != nil {
		// Auto-migrate only in development or for the local sqlite file
		if cfg.Development() || cfg.DB.Driver == database.DriverSQLite {
			if err := database.Migrate(db); err != nil {
				log.Fatalf("failed to migrate database: %v", err)
			}
			log.Println("Auto-migration completed successfully")
		} else {
			log.Println("Running in production mode - skipping auto-migration")
		}
	} else {
		log.Println("[database] DB_DRIVER=memory, state lives for the process lifetime")
	}

	var rc redis.UniversalClient
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[redis] ping %s failed, using in-process locks: %v", cfg.RedisAddr, err)
			_ = client.Close()
		} else {
			rc = client
			log.Printf("[redis] connected to %s", cfg.RedisAddr)
		}
		cancel()
	}

	tasks := utils.NewDispatcher(30 * time.Second)
	tasks.OnError = func(task string, err error) {
		log.Printf("[task] %s failed: %v", task, err)
	}

	payOpts := payments.Options{Tasks: tasks}
	if db != nil {
		payOpts.Records = payments.NewGormRecordStore(db)
		payOpts.Sessions = payments.NewGormSessionStore(db)
	}
	if rc != nil {
		payOpts.Locker = payments.NewRedisLocker(rc, "candle:lock:", 10*time.Second)
	}
	if cfg.R2.Enabled() {
		archiver, err := utils.NewR2Archiver(context.Background(), cfg.R2)
		if err != nil {
			log.Fatalf("failed to configure webhook archive: %v", err)
		}
		payOpts.Archiver = archiver
		log.Printf("[webhook] archiving payloads to bucket %s", cfg.R2.Bucket)
	}
	paySvc := payments.NewService(payOpts)
	if cfg.PaymentSeed {
		if err := paySvc.Seed(context.Background()); err != nil {
			log.Fatalf("failed to seed payment references: %v", err)
		}
	}

	var orderStore orders.Store
	if db != nil {
		orderStore = orders.NewGormStore(db)
	}
	orderSvc := orders.NewService(orders.Options{
		Store:      orderStore,
		Payments:   paySvc,
		Mailer:     utils.NewSMTPMailer(cfg.SMTP),
		Tasks:      tasks,
		AdminEmail: cfg.AdminEmail,
	})

	deps := routes.Deps{
		Payments: controllers.NewPaymentController(paySvc),
		Orders:   controllers.NewOrderController(orderSvc),
	}
	if cfg.AdminAuth {
		deps.Tokens = utils.NewTokenManager(cfg.JWTSecret, cfg.JWTAudience, cfg.JWTIssuer, cfg.JWTTTL, rc)
		deps.Admin = controllers.NewAdminController(cfg.AdminUsername, cfg.AdminPasswordHash, deps.Tokens, middleware.NewLoginGuard(rc), cfg.TrustedProxies)
	}

	router, stopLimiters := routes.InitRouter(cfg, deps)
	defer stopLimiters()

	// Logging -> Security headers -> Request ID -> Max Body -> Timeout -> Recovery
	handler := middleware.RequestLogMiddleware(
		middleware.SecurityHeaders(cfg.Env, cfg.CSP, cfg.HSTS)(
			middleware.RequestIDMiddleware(
				middleware.MaxBody(cfg.MaxBodyBytes)(
					middleware.Timeout(cfg.RequestTimeout)(
						middleware.RecoveryMiddleware(router),
					),
				),
			),
		),
	)

	addr := ":" + cfg.Port
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	// Let queued emails and archive uploads finish
	if err := tasks.Wait(ctx); err != nil {
		log.Printf("[task] pending tasks abandoned: %v", err)
	}
	if rc != nil {
		_ = rc.Close()
	}

	log.Println("Server exited")
}
