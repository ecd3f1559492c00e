package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/delivery"
	httpapi "github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/logging"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/metrics"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/notify"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/payment"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/pricing"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/sale"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/sequence"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/upstream"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/user"
)

const serviceName = "storefront-service"

func main() {
	cfg := config.Load()
	logger := logging.MustNewLogger(serviceName, cfg.Env)
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// --- DB ---
	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
	}

	sqlDB, err := db.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open", zap.Error(err))
	}
	defer func() { _ = sqlDB.Close() }()

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer func() { _ = rdb.Close() }()

	var cartCache cart.Cache = cart.NewRedisCache(rdb, cfg.CartCacheTTL)
	pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, cart cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		cartCache = cart.NopCache{}
	}
	cancelPing()

	// --- Notifications ---
	pub, err := newPublisher(cfg, logger)
	if err != nil {
		logger.Fatal("notification broker", zap.String("broker", cfg.NotifyBroker), zap.Error(err))
	}
	defer func() { _ = pub.Close() }()

	dispatcher := notify.NewDispatcher(pub, sequence.NewPostgresSequencer(pool), notify.DispatcherOptions{
		Producer: serviceName,
		Timeout:  cfg.NotifyTimeout,
		Logger:   logger,
		Metrics:  m,
	})

	// --- Upstreams ---
	upOpts := upstream.Options{
		Timeout:         cfg.UpstreamTimeout,
		BreakerFailures: uint32(max(cfg.BreakerFailures, 1)),
		BreakerCooldown: cfg.BreakerCooldown,
		Metrics:         m,
	}
	rates := pricing.NewRateClient(cfg.RateURL, cfg.RateQuoteCurrency, upstream.New("exchange-rate", upOpts))
	razorpay := payment.NewRazorpayClient(cfg.RazorpayBaseURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret, upstream.New(order.GatewayRazorpay, upOpts))
	paypal := payment.NewPayPalClient(cfg.PayPalBaseURL, cfg.PayPalClientID, cfg.PayPalSecret, upstream.New(order.GatewayPayPal, upOpts))

	// --- Domain ---
	users := user.NewPostgresDirectory(pool)
	products := catalog.NewPostgresRepository(pool)
	carts := cart.NewPostgresRepository(pool)
	orders := order.NewPostgresRepository(pool)
	charges := delivery.NewStore(sqlDB)

	cartSvc := cart.NewService(carts, products, users, cartCache, logger, m)

	assembler := checkout.NewAssembler(checkout.Deps{
		Users:    users,
		Products: products,
		Rates:    rates,
		Charges:  charges,
		Sessions: paypal,
		Store:    checkout.NewPostgresStore(pool, orders, products, carts),
		Cache:    cartSvc,
		Notifier: dispatcher,
	}, checkout.Options{
		TolerancePercent: cfg.PriceTolerancePercent,
		Bases:            pricing.Bases{Air: cfg.AirShippingBase, Ship: cfg.ShipShippingBase},
		OpsEmail:         cfg.OpsEmail,
		Logger:           logger,
		Metrics:          m,
	})

	payments := payment.NewService(pool, orders, payment.NewPostgresRepository(), razorpay, carts, cartSvc, dispatcher, payment.Options{
		KeySecret:          cfg.RazorpayKeySecret,
		ClearCartOnSuccess: checkout.Domestic.ClearCartOn == checkout.ClearOnPaymentSuccess,
		OpsEmail:           cfg.OpsEmail,
		Logger:             logger,
		Metrics:            m,
	})

	// --- HTTP ---
	h := httpapi.NewHandler(httpapi.Deps{
		Cart:     cartSvc,
		Checkout: assembler,
		Orders:   orders,
		Payments: payments,
		Charges:  charges,
		Leads:    sale.NewRepository(sqlDB),
	}, httpapi.Options{FrontendURL: cfg.FrontendURL, Logger: logger})

	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(h, httpapi.RouterOptions{
			Logger:      logger,
			Metrics:     m,
			CORSOrigins: cfg.CORSAllowOrigins,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("broker", cfg.NotifyBroker))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("notifications still in flight at shutdown", zap.Error(err))
	}

	logger.Info("shutdown complete")
}
