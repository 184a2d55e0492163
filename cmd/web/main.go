package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"shirly.shop/app/internal/config"
	"shirly.shop/app/internal/db"
	apphttp "shirly.shop/app/internal/http"
	"shirly.shop/app/internal/http/handlers"
	"shirly.shop/app/internal/http/metrics"
	"shirly.shop/app/internal/http/middleware"
	"shirly.shop/app/internal/http/ticket"
	"shirly.shop/app/internal/jobs"
	"shirly.shop/app/internal/lifecycle"
	"shirly.shop/app/internal/mailer"
	"shirly.shop/app/internal/modules/addresses"
	"shirly.shop/app/internal/modules/analytics"
	"shirly.shop/app/internal/modules/auth"
	"shirly.shop/app/internal/modules/cart"
	"shirly.shop/app/internal/modules/chat"
	"shirly.shop/app/internal/modules/checkout"
	"shirly.shop/app/internal/modules/email"
	"shirly.shop/app/internal/modules/notifications"
	"shirly.shop/app/internal/modules/orders"
	"shirly.shop/app/internal/modules/payments"
	"shirly.shop/app/internal/modules/products"
	"shirly.shop/app/internal/modules/reviews"
	"shirly.shop/app/internal/modules/shipping"
	"shirly.shop/app/internal/modules/wishlist"
	"shirly.shop/app/internal/realtime"
	"shirly.shop/app/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	level := slog.LevelDebug
	if cfg.IsProduction() {
		level = slog.LevelInfo
		gin.SetMode(gin.ReleaseMode)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Open(cfg.DB, logger)
	if err != nil {
		return err
	}
	if err := db.Migrate(gdb); err != nil {
		return err
	}

	m := metrics.New()
	healthChecks := map[string]handlers.Check{}

	var broker realtime.Broker
	if cfg.Redis.URL != "" {
		rb, err := realtime.NewRedisBroker(ctx, cfg.Redis.URL, logger)
		if err != nil {
			return err
		}
		healthChecks["redis"] = rb.Ping
		broker = rb
	} else {
		lb := realtime.NewLocalBroker()
		lb.OnDrop = m.RealtimeDropped
		broker = lb
	}
	defer broker.Close()

	var provider payments.Provider
	switch cfg.Payments.Provider {
	case "stripe":
		provider = payments.NewStripeProvider(cfg.Payments.StripeSecretKey, cfg.Payments.StripeWebhookSecret)
	default:
		provider = payments.NewMockProvider(cfg.Payments.MockWebhookSecret, cfg.BaseURL)
	}

	store, err := storage.FromConfig(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	static := map[string]string{}
	if store.Driver == "local" {
		static[cfg.Storage.LocalURLPrefix] = cfg.Storage.LocalDir
	}
	if p, ok := store.Storage.(storage.Pinger); ok {
		healthChecks["storage"] = p.Ping
	}
	logger.Info("storage ready", "driver", store.Driver, "storage", store.Storage)

	authSvc := auth.NewService(gdb, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	notifySvc := notifications.NewService(gdb, broker, logger)
	emailSvc := email.NewService(mailer.New(cfg.SMTP, logger), cfg.SMTP.From, cfg.SMTP.FromName, cfg.StorefrontURL, logger)

	sink := lifecycle.New(authSvc, orders.NewRepo(gdb), notifySvc, emailSvc, logger)
	sink.Async = true
	defer sink.Wait()

	productsRepo := products.NewRepo(gdb)
	cartSvc := cart.NewService(gdb, productsRepo)
	addrSvc := addresses.NewService(gdb)
	ordersSvc := orders.NewService(gdb, sink, logger)
	paySvc := payments.NewService(gdb, provider, sink, logger)
	chatSvc := chat.NewService(gdb, broker, notifySvc, logger)
	chatSvc.OnPublish = m.ChatPublished

	authLimiter := middleware.NewRateLimiter("auth", cfg.RateLimit.AuthPerSecond, cfg.RateLimit.AuthBurst)
	chatLimiter := middleware.NewRateLimiter("chat", cfg.RateLimit.ChatPerSecond, cfg.RateLimit.ChatBurst)

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	router := apphttp.NewRouter(apphttp.Deps{
		Logger:         logger,
		Metrics:        m,
		AllowedOrigins: cfg.AllowedOrigins,
		Base:           baseCtx,
		DB:             gdb,
		HealthChecks:   healthChecks,
		Static:         static,
		Auth:           authSvc,
		Email:          emailSvc,
		Products:       products.NewService(productsRepo, store.Storage, logger),
		Cart:           cartSvc,
		Wishlist:       wishlist.NewService(gdb, productsRepo, cartSvc),
		Addresses:      addrSvc,
		Reviews:        reviews.NewService(gdb, productsRepo, orders.NewRepo(gdb)),
		Checkout:       checkout.NewService(ordersSvc, paySvc, addrSvc, cfg.StorefrontURL, logger),
		Orders:         ordersSvc,
		AdminOrders:    orders.NewAdminService(gdb, sink, logger),
		Shipments:      shipping.NewRepo(gdb),
		Payments:       paySvc,
		Refunds:        payments.NewRefundService(gdb, provider, sink, logger),
		Webhooks:       payments.NewWebhookService(gdb, sink, logger),
		Chat:           chatSvc,
		Broker:         broker,
		Tickets:        ticket.New([]byte(cfg.Auth.TicketSecret), cfg.Auth.TicketTTL),
		Notifications:  notifySvc,
		Analytics:      analytics.NewService(gdb, "USD"),
		AuthLimiter:    authLimiter,
		ChatLimiter:    chatLimiter,
	})

	sched := jobs.NewScheduler(logger)
	sched.OnRun = m.JobRun
	maintenance := append(jobs.Maintenance(cfg, jobs.Deps{
		Payments:      paySvc,
		Auth:          authSvc,
		Notifications: notifySvc,
	}), limiterCleanup(authLimiter, chatLimiter))
	for _, j := range maintenance {
		if err := sched.Add(j); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.HTTPAddr, "env", cfg.Env, "payments", provider.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		// Hijacked websocket connections are not tracked by Shutdown.
		cancelBase()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func limiterCleanup(limiters ...*middleware.RateLimiter) jobs.Job {
	return jobs.Job{
		Name: "ratelimit_cleanup",
		Spec: "@every 10m",
		Run: func(context.Context, time.Time) (int64, error) {
			var n int64
			for _, l := range limiters {
				n += int64(l.Cleanup())
			}
			return n, nil
		},
	}
}
