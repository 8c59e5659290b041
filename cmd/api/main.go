package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/hotel-booking/internal/adapters/crdb"
	redisadapter "github.com/robertarktes/hotel-booking/internal/adapters/redis"
	"github.com/robertarktes/hotel-booking/internal/backend"
	"github.com/robertarktes/hotel-booking/internal/booking"
	"github.com/robertarktes/hotel-booking/internal/config"
	httphandler "github.com/robertarktes/hotel-booking/internal/http"
	"github.com/robertarktes/hotel-booking/internal/idempotency"
	"github.com/robertarktes/hotel-booking/internal/observability"
	"github.com/robertarktes/hotel-booking/internal/payment"
	"github.com/robertarktes/hotel-booking/internal/rateLimit"
	"github.com/robertarktes/hotel-booking/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg, "hotel-booking-api")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLoggerWithLevel(cfg.LogLevel)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	redisCache := redisadapter.NewCache(redisClient)
	flowStore := redisadapter.NewFlowStateStore(redisClient, cfg.FlowTTL)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), cfg.IdempotencyTTL)
	rl := rateLimit.NewRateLimiter(redisCache, logger)

	backendClient := backend.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout, logger)
	backendClient.UseCache(redisCache, cfg.CacheTTL)

	checks := map[string]httphandler.Checker{
		"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}

	// The ledger is optional; without it no events leave the service.
	var ledger booking.Ledger
	if cfg.CRDBDSN != "" {
		pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
		if err != nil {
			log.Fatalf("failed to connect to crdb: %v", err)
		}
		defer pool.Close()
		repo := crdb.NewRepository(pool)
		if err := repo.Migrate(context.Background()); err != nil {
			log.Fatalf("failed to migrate ledger: %v", err)
		}
		ledger = repo
		checks["crdb"] = pool.Ping
	} else {
		logger.Warn("CRDB_DSN not set, booking ledger disabled")
	}

	var provider payment.Provider
	switch cfg.Payment.Provider {
	case "gateway":
		provider = payment.NewGatewayProvider(cfg.Payment.GatewayURL, cfg.Payment.GatewayKey, logger)
	default:
		provider = payment.NewSimulatedProvider(cfg.Payment.SendDelay, cfg.Payment.ConfirmDelay, logger)
	}
	validator := payment.NewOperatorValidator(cfg.Payment.Operators)

	flow := booking.NewFlow(backendClient, flowStore, ledger, provider, validator, booking.Config{
		ConfirmOnServer: cfg.ConfirmOnServer,
		PaymentTimeout:  cfg.Payment.Timeout,
	}, logger)
	admin := booking.NewAdmin(backendClient, flowStore, ledger, logger)

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, token signatures are not verified and booking ownership rests on unverified claims")
	}
	sessions := session.NewBuilder(session.NewTokenParser(cfg.JWTSecret), backendClient, logger)

	handlers := httphandler.NewHandlers(flow, admin, validator, checks, logger)

	r := httphandler.SetupRouter(handlers, logger, httphandler.Deps{
		Sessions:    sessions,
		RateLimiter: rl,
		Limits: httphandler.RateLimits{
			PerUser: cfg.RateLimitPerUser,
			PerIP:   cfg.RateLimitPerIP,
			Period:  time.Minute,
		},
		Idempotency: idemp,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	// let in-flight payments settle so their state is saved
	flow.Wait()
	logger.Info("Server exiting")
}
