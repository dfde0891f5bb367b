package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"solana-copy-trader/internal/config"
	"solana-copy-trader/internal/reporting"
	"solana-copy-trader/internal/storage"
	chstore "solana-copy-trader/internal/storage/clickhouse"
	pgstore "solana-copy-trader/internal/storage/postgres"
	sqlitestore "solana-copy-trader/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "config.toml", "Path to TOML config")
	format := flag.String("format", "md", "Output format: md or csv")
	output := flag.String("output", "", "Output file (default stdout)")
	timeout := flag.Duration("timeout", 30*time.Second, "Timeout for store reads")
	flag.Parse()

	if *format != "md" && *format != "csv" {
		fmt.Fprintf(os.Stderr, "Error: unknown format %q (want md or csv)\n", *format)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	positions, traces, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening stores: %v\n", err)
		os.Exit(1)
	}
	defer closeStores()

	report, err := reporting.NewGenerator(positions, traces).Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	var out string
	if *format == "csv" {
		out, err = reporting.RenderCSV(report)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error rendering csv: %v\n", err)
			os.Exit(1)
		}
	} else {
		out = reporting.RenderMarkdown(report)
	}

	if *output == "" {
		fmt.Print(out)
		return
	}
	if err := os.WriteFile(*output, []byte(out), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *output, err)
		os.Exit(1)
	}
	fmt.Printf("Report written to %s (%d positions)\n", *output, len(report.Positions))
}

// openStores opens the persistent position store and, when ClickHouse is
// configured, the trace store. In-memory storage has nothing to report on.
func openStores(ctx context.Context, cfg *config.Config) (storage.PositionStore, storage.TraceStore, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var positions storage.PositionStore
	switch cfg.Storage.Positions {
	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN, 2)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		positions = pgstore.NewPositionStore(pool)
	case "sqlite":
		db, err := sqlitestore.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		closers = append(closers, func() { db.Close() })
		positions = sqlitestore.NewPositionStore(db)
	default:
		return nil, nil, nil, fmt.Errorf("storage.positions is %q; report needs postgres or sqlite", cfg.Storage.Positions)
	}

	var traces storage.TraceStore
	if cfg.Storage.Attempts == "clickhouse" {
		conn, err := chstore.NewConn(ctx, cfg.ClickHouse.DSN)
		if err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		traces = chstore.NewTraceStore(conn)
	}
	return positions, traces, closeAll, nil
}
