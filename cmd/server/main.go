package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/chefmarket/backend/internal/config"
	"github.com/chefmarket/backend/internal/events"
	"github.com/chefmarket/backend/internal/httpserver"
	"github.com/chefmarket/backend/internal/idempotency"
	"github.com/chefmarket/backend/internal/logging"
	"github.com/chefmarket/backend/internal/metrics"
	"github.com/chefmarket/backend/internal/payments"
	"github.com/chefmarket/backend/internal/repo"
	"github.com/chefmarket/backend/internal/service"
	"github.com/chefmarket/backend/pkg/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTSecret, "JWT_SECRET")
	config.MustNonEmpty(cfg.GatewayURL, "PAYMENT_GATEWAY_URL")
	config.MustNonEmptyBytes(cfg.WebhookSecret, "PAYMENT_WEBHOOK_SECRET")

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	gormDB, err := db.Open(ctx, cfg.DatabaseURL, db.Pool{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		log.Fatalf("database init: %v", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	store := repo.New(gormDB)

	var publisher events.Publisher = events.Noop{}
	if cfg.KafkaAddr != "" {
		publisher = events.NewKafkaPublisher([]string{cfg.KafkaAddr})
	}

	var processed idempotency.Store
	if cfg.RedisAddr != "" {
		processed = idempotency.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	} else {
		processed = idempotency.NewGormStore(gormDB)
	}

	m := metrics.New()
	gateway := payments.NewClient(cfg.GatewayURL, cfg.GatewayTimeout)

	fees := service.FeeConfig{
		TaxRate:          cfg.TaxRate,
		BaseDeliveryFee:  cfg.BaseDeliveryFee,
		PerKmDeliveryFee: cfg.PerKmDeliveryFee,
	}

	cartSvc := &service.CartService{Store: store, Fees: fees, Promos: cfg.PromoCodes}
	checkoutSvc := &service.CheckoutService{Store: store, Publisher: publisher, Metrics: m, Fees: fees}
	statusSvc := &service.StatusService{Store: store, Publisher: publisher}
	orderSvc := &service.OrderService{Store: store}
	paymentSvc := &service.PaymentService{
		Store:     store,
		Gateway:   gateway,
		Processed: processed,
		Publisher: publisher,
		Metrics:   m,
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), httpserver.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		JWTSecret: cfg.JWTSecret,
		Cart:      &httpserver.CartHTTP{Svc: cartSvc},
		Checkout:  &httpserver.CheckoutHTTP{Svc: checkoutSvc},
		Order:     &httpserver.OrderHTTP{Orders: orderSvc, Status: statusSvc},
		Payment:   &httpserver.PaymentHTTP{Svc: paymentSvc, WebhookSecret: cfg.WebhookSecret},
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()
	logger.Info("server started", "addr", cfg.HTTPAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}
	if err := publisher.Close(); err != nil {
		log.Printf("publisher close error: %v", err)
	}

	logger.Info("shutdown complete")
}
