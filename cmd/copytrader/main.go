// Command copytrader follows source wallets on Solana and replicates their
// trades from the configured execution wallets.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grafana/pyroscope-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"solana-copy-trader/internal/config"
	"solana-copy-trader/internal/observability"
)

func main() {
	configPath := flag.String("config", "config.toml", "Path to the TOML config file (empty for defaults and env only)")
	dryRun := flag.Bool("dry-run", false, "Plan trades but never submit them")
	useMemory := flag.Bool("use-memory", false, "Use in-memory stores regardless of the storage config")
	migrateOnly := flag.Bool("migrate-only", false, "Apply database migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("load config")
	}
	if *dryRun {
		cfg.Engine.DryRun = true
	}
	if *useMemory {
		cfg.Storage.Positions = "memory"
		cfg.Storage.Attempts = "memory"
	}

	logger := newLogger(cfg.Log)

	if cfg.Profiling.ServerAddress != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: cfg.Profiling.AppName,
			ServerAddress:   cfg.Profiling.ServerAddress,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("start profiler")
		}
		defer profiler.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
			cancel()
		case <-done:
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("second signal, forcing exit")
			os.Exit(1)
		case <-time.After(cfg.Server.ShutdownTimeout.Duration):
			logger.Error().Dur("timeout", cfg.Server.ShutdownTimeout.Duration).Msg("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	if *migrateOnly {
		err = migrate(ctx, cfg)
	} else {
		err = run(ctx, cfg, logger)
	}
	close(done)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("exited with error")
	}
	logger.Info().Msg("shutdown complete")
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339Nano})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Str("app", "copytrader").Logger()
}

// run wires every component and blocks until ctx is cancelled or one of
// them fails.
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	app, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.MetricsAddr != "" {
		srv := metricsServer(cfg.Server.MetricsAddr)
		g.Go(func() error {
			logger.Info().Str("addr", cfg.Server.MetricsAddr).Msg("metrics server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	for _, svc := range app.services {
		g.Go(func() error { return svc(gctx) })
	}

	signals, err := app.listener.Start(gctx)
	if err != nil {
		return err
	}
	g.Go(func() error {
		err := app.engine.Run(gctx, signals)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	logger.Info().
		Int("sources", len(app.listener.Addresses())).
		Int("wallets", app.keyring.Len()).
		Bool("dry_run", cfg.Engine.DryRun).
		Msg("copy trader started")

	err = g.Wait()
	app.flush()
	return err
}

func metricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
