package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"washclub-checkout-api/checkout"
	"washclub-checkout-api/config"
	"washclub-checkout-api/database"
	"washclub-checkout-api/handlers"
	"washclub-checkout-api/metrics"
	"washclub-checkout-api/middleware"
	"washclub-checkout-api/queue"
	"washclub-checkout-api/services/auth"
	"washclub-checkout-api/services/email"
	"washclub-checkout-api/services/payment"
	"washclub-checkout-api/services/payment/stripeapi"
	"washclub-checkout-api/worker"
)

func setupLogging(cfg config.ServerConfig) {
	if cfg.LogJSON {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func connectRedis(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	for retries := 0; retries < 5; retries++ {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err = client.Ping(ctx).Err()
		cancel()
		if err == nil {
			return client, nil
		}
		retryDelay := time.Duration(retries+1) * time.Second
		log.WithError(err).Warnf("Failed to connect to Redis (attempt %d/5), retrying in %v", retries+1, retryDelay)
		time.Sleep(retryDelay)
	}
	client.Close()
	return nil, fmt.Errorf("failed to connect to Redis after retries: %w", err)
}

func connectDatabase(cfg database.DatabaseConfig) (*database.Connection, error) {
	var db *database.Connection
	var err error
	for retries := 0; retries < 5; retries++ {
		db, err = database.NewConnection(cfg)
		if err == nil {
			break
		}
		retryDelay := time.Duration(retries+1) * time.Second
		log.WithError(err).Warnf("Failed to connect to database (attempt %d/5), retrying in %v", retries+1, retryDelay)
		time.Sleep(retryDelay)
	}
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func main() {
	issueToken := flag.String("issue-admin-token", "", "print an admin token for the given subject and exit")
	flag.Parse()

	cfg := config.Load()
	setupLogging(cfg.Server)

	jwtService := auth.NewJWTService(cfg.Admin.JWTSecret, cfg.Admin.Issuer)
	if *issueToken != "" {
		if cfg.Admin.JWTSecret == "" {
			log.Fatal("ADMIN_JWT_SECRET is not set")
		}
		token, err := jwtService.GenerateToken(*issueToken, auth.AdminTokenDuration)
		if err != nil {
			log.Fatalf("Failed to issue admin token: %v", err)
		}
		fmt.Println(token)
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	redisClient, err := connectRedis(cfg.Redis.URL)
	if err != nil {
		log.Fatal(err)
	}
	log.Info("Successfully connected to Redis")

	// MySQL is optional unless it backs checkout storage; without it
	// subscriptions are not recorded locally.
	var db *database.Connection
	var subs worker.SubscriptionStore
	if cfg.Database.Host != "" {
		db, err = connectDatabase(cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		subs = db
		log.Info("Successfully connected to database")
	}

	var storage checkout.Storage
	switch cfg.Storage.Backend {
	case "mysql":
		storage = database.NewCheckoutStateStorage(db)
	case "memory":
		log.Warn("Using in-memory checkout storage, state is lost on restart")
		storage = checkout.NewMemoryStorage()
	default:
		storage = checkout.NewRedisStorage(redisClient, "checkout", cfg.Storage.TTL)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	logger := log.StandardLogger()
	gateway := stripeapi.NewClient(cfg.Stripe.SecretKey, nil, logger)
	paymentService := payment.NewService(gateway, cfg.Stripe.Prices, logger)

	var mailer email.EmailSender
	if smtpService := email.NewSMTPService(cfg.SMTP); smtpService.Enabled() {
		mailer = smtpService
	} else {
		log.Warn("SMTP_HOST not set, confirmation emails are disabled")
	}

	jobQueue := queue.NewQueueFromClient(redisClient, queue.DefaultQueueName)
	checkoutWorker := worker.NewWorker(jobQueue, subs, mailer, m)
	if err := checkoutWorker.Start(cfg.Redis.WorkerConcurrency); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	sessions := handlers.NewSessionManager(cfg.Session.Secret,
		handlers.DefaultCookieOptions(cfg.Session.Domain, cfg.Session.MaxAge, cfg.Session.Secure))

	checks := map[string]handlers.Pinger{
		"redis": handlers.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
	}
	if db != nil {
		checks["database"] = db
	}

	router := handlers.NewRouter(handlers.Router{
		Checkout:       handlers.NewCheckoutHandler(storage, sessions, logger, m),
		Payment:        handlers.NewPaymentHandler(storage, sessions, paymentService, jobQueue, logger, m),
		Plans:          handlers.NewPlanHandler(paymentService),
		Admin:          handlers.NewAdminHandler(storage, jobQueue, logger),
		Health:         handlers.NewHealthHandler(checks),
		JWT:            jwtService,
		RateLimiter:    middleware.NewRateLimiter(redisClient, nil),
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSOrigin:     cfg.Server.CORSOrigin,
	})

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Server forced to shutdown")
	}

	log.Info("Stopping worker...")
	checkoutWorker.Stop()

	if db != nil {
		log.Info("Closing database connections...")
		db.Close()
	}

	log.Info("Closing Redis connections...")
	redisClient.Close()

	log.Info("Server exited properly")
}
