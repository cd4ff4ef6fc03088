package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stayware/bookingcore/internal/booking"
	"github.com/stayware/bookingcore/internal/clock"
	"github.com/stayware/bookingcore/internal/holds"
	"github.com/stayware/bookingcore/internal/infrastructure/config"
	"github.com/stayware/bookingcore/internal/infrastructure/observability"
	"github.com/stayware/bookingcore/internal/ledger"
	"github.com/stayware/bookingcore/internal/middleware"
	"github.com/stayware/bookingcore/internal/notify"
	"github.com/stayware/bookingcore/internal/pricing"
	"github.com/stayware/bookingcore/internal/storage/sqlite"
	transport "github.com/stayware/bookingcore/internal/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := observability.NewLogger(&cfg.Observability)
	logger.Info().Str("app", cfg.App.Name).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := observability.InitializeTracing(ctx, &cfg.Observability, cfg.App.Name)
	if err != nil {
		logger.WithError(err).Logger.Fatal().Msg("failed to initialize tracing")
	}

	store, err := sqlite.Open(cfg.Storage.SQLiteFile, cfg.Storage.MaxConnection)
	if err != nil {
		logger.WithError(err).Logger.Fatal().Msg("failed to open store")
	}
	defer store.Close()

	metrics := observability.NewMetrics()
	clk := clock.NewSystem()
	retryPolicy := middleware.DefaultRetryPolicy(cfg.Booking.RetryMaxAttempts)

	ldg := ledger.New(store, logger, metrics)
	eng := pricing.NewEngine(store, ldg)
	holdMgr := holds.NewManager(store, ldg, clk, logger, metrics,
		holds.WithTTL(cfg.Booking.HoldTTL),
		holds.WithRetryPolicy(retryPolicy),
	)

	var dispatcher notify.Dispatcher = notify.NopDispatcher{}
	if cfg.Booking.WebhookURL != "" {
		dispatcher = notify.NewWebhookDispatcher(
			cfg.Booking.WebhookURL,
			cfg.Booking.CircuitBreakerThreshold,
			cfg.Booking.CircuitBreakerTimeout,
			logger,
		)
	}

	composer := booking.NewComposer(store, ldg, eng, dispatcher, clk, logger, metrics)

	server := transport.NewServer(cfg, ldg, eng, holdMgr, composer, store, clk, logger, metrics)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Logger.Error().Msg("server failed")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Logger.Error().Msg("server shutdown failed")
	}
	if err := observability.ShutdownTracing(shutdownCtx, tracerProvider); err != nil {
		logger.WithError(err).Logger.Error().Msg("tracing shutdown failed")
	}
}
