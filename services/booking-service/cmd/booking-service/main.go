package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/config"
	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"github.com/md-rashed-zaman/apptbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/apptbook/libs/otel"
	"github.com/md-rashed-zaman/apptbook/libs/runtime"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/grpcserver"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/housekeeping"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/seed"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("load .env", "err", err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	logger := runtime.NewLogger(service)
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		if err := healthcheck(context.Background()); err != nil {
			logger.Error("healthcheck failed", "err", err)
			os.Exit(1)
		}
		return
	}
	if err := run(service, logger); err != nil {
		logger.Error("booking-service exited", "err", err)
		os.Exit(1)
	}
}

func run(service string, logger *slog.Logger) error {
	port, err := config.Port("PORT", "8083")
	if err != nil {
		return err
	}
	grpcPort, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		return err
	}

	ctx, stop := runtime.SignalContext(context.Background())
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	rdb, err := openRedis(ctx)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	backendName := config.String("STORAGE_BACKEND", "postgres")
	be, err := openBackend(ctx, backendName, rdb, logger)
	if err != nil {
		return err
	}
	defer be.close()
	logger.Info("storage ready", "backend", be.name)

	seedMode := config.String("SEED_MODE", "")
	if seedMode == "" && be.name == "memory" {
		seedMode = seed.ModeDemo
	}
	if seedMode != "" {
		snap, err := seed.For(seedMode, time.Now())
		if err != nil {
			return err
		}
		if err := be.store.Reset(ctx, snap); err != nil {
			return err
		}
		logger.Info("store seeded", "mode", seedMode)
	}

	brokers := kafkax.SplitBrokers(config.String("KAFKA_BROKERS", ""))
	var cleanup []housekeeping.Task
	if be.pool != nil {
		publisher := outbox.NewPublisher(be.pool, be.outbox, logger, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
		})
		go publisher.Run(ctx)

		retention := time.Duration(config.Int("OUTBOX_RETENTION_DAYS", 7)) * 24 * time.Hour
		cleanup = append(cleanup, housekeeping.Task{
			Name: "outbox",
			Run:  func(ctx context.Context) (int64, error) { return publisher.Cleanup(ctx, retention) },
		})
	}

	settings, err := be.store.Settings(ctx)
	if err != nil {
		return err
	}
	job, err := housekeeping.New(be.store, logger, housekeeping.Config{
		Spec:          config.String("HOUSEKEEPING_CRON", housekeeping.DefaultSpec),
		RetentionDays: config.Int("HOUSEKEEPING_RETENTION_DAYS", housekeeping.DefaultRetentionDays),
		Location:      settings.Location(),
	}, cleanup...)
	if err != nil {
		return err
	}
	go job.Run(ctx)

	checks := append([]runtime.ReadyCheck{}, be.checks...)
	if len(brokers) > 0 {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	sched := schedule.New(be.store, be.store)
	bookings := booking.New(be.store, sched, booking.Options{
		EnforceSlots: config.Bool("BOOKING_ENFORCE_SLOTS", true),
	})

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.Register(mux,
		handlers.NewAvailabilityHandler(sched, logger),
		handlers.NewBookingHandler(bookings, logger),
		handlers.NewAdminHandler(be.store, logger),
	)

	rateLimit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	var limiter httpx.Middleware
	if rdb != nil {
		limiter = httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, config.String("REDIS_KEY_PREFIX", storage.DefaultRedisPrefix)+":rl").
			Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
	} else {
		limiter = httpx.NewRateLimiter(rateLimit, time.Minute).Middleware()
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods:   config.List("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS"),
			AllowedHeaders:   config.List("CORS_ALLOWED_HEADERS", "Content-Type,X-Request-ID"),
			ExposedHeaders:   config.List("CORS_EXPOSED_HEADERS", "X-Request-ID"),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           config.Duration("CORS_MAX_AGE", 10*time.Minute),
		}),
		limiter,
		httpx.WithBodyLimit(int64(config.Int("HTTP_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Duration("HTTP_HANDLER_TIMEOUT", 15*time.Second)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		return err
	}
	health := grpcserver.New(logger, config.Duration("GRPC_HEALTH_INTERVAL", 5*time.Second), checks...)
	grpcDone := make(chan error, 1)
	go func() { grpcDone <- health.Serve(ctx, lis) }()

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	grpcExited, grpcErr := awaitShutdown(ctx, grpcDone)
	if grpcErr != nil {
		logger.Error("grpc server exited early", "err", grpcErr)
		stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
	if !grpcExited {
		grpcErr = <-grpcDone
	}
	return grpcErr
}

// awaitShutdown blocks until ctx is cancelled or the gRPC server returns. exited reports
// that grpcDone has been drained; err is non-nil when the server stopped before ctx.
func awaitShutdown(ctx context.Context, grpcDone <-chan error) (exited bool, err error) {
	select {
	case <-ctx.Done():
		return false, nil
	case err := <-grpcDone:
		if err == nil && ctx.Err() == nil {
			err = errors.New("grpc server stopped unexpectedly")
		}
		return true, err
	}
}

// healthcheck probes the local gRPC health service; containers run it as
// "booking-service healthcheck".
func healthcheck(ctx context.Context) error {
	grpcPort, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		return err
	}
	addr := config.String("HEALTHCHECK_ADDR", "127.0.0.1:"+grpcPort)
	st, err := grpcserver.Check(ctx, addr, config.Duration("HEALTHCHECK_TIMEOUT", 3*time.Second))
	if err != nil {
		return err
	}
	if st != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%s reports %s", addr, st)
	}
	return nil
}
