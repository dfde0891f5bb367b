package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"solana-copy-trader/internal/builder"
	"solana-copy-trader/internal/config"
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/engine"
	"solana-copy-trader/internal/ingestion"
	"solana-copy-trader/internal/ledger"
	"solana-copy-trader/internal/router"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/storage"
	chstore "solana-copy-trader/internal/storage/clickhouse"
	"solana-copy-trader/internal/storage/memory"
	"solana-copy-trader/internal/storage/migrations"
	pgstore "solana-copy-trader/internal/storage/postgres"
	redisstore "solana-copy-trader/internal/storage/redis"
	"solana-copy-trader/internal/storage/s3archive"
	sqlitestore "solana-copy-trader/internal/storage/sqlite"
	"solana-copy-trader/internal/strategy"
	"solana-copy-trader/internal/submit"
	"solana-copy-trader/internal/venue"
	"solana-copy-trader/internal/wallet"
)

// service is a long-running component started under the errgroup.
type service func(ctx context.Context) error

type app struct {
	listener *ingestion.Listener
	engine   *engine.Engine
	keyring  *wallet.Keyring
	services []service
	closers  []func()
	flush    func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build constructs every component from cfg. Fatal configuration problems
// surface here, before anything is started.
func build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (a *app, err error) {
	a = &app{flush: func() {}}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	rpcOpts := []solana.ClientOption{
		solana.WithTimeout(cfg.RPC.Timeout.Duration),
		solana.WithMaxRetries(cfg.RPC.MaxRetries),
	}
	if cfg.RPC.APIKey != "" {
		rpcOpts = append(rpcOpts, solana.WithHeader("Authorization", "Bearer "+cfg.RPC.APIKey))
	}
	rpc := solana.NewHTTPClient(cfg.RPC.URL, rpcOpts...)

	trackedWallets := cfg.TrackedWallets()
	keyring, err := wallet.LoadKeyring(trackedWallets, nil)
	if err != nil {
		return nil, err
	}
	a.keyring = keyring

	var rdb *redisstore.Client
	if cfg.NeedsRedis() {
		rdb, err = redisstore.New(ctx, redisstore.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { rdb.Close() })
	}

	// Venue cache, optionally mirrored to Redis and warmed from it.
	cacheOpts := venue.Options{Shards: cfg.Venue.Shards, Logger: &logger}
	var venueStore *redisstore.VenueStore
	if cfg.Venue.Mirror {
		venueStore = redisstore.NewVenueStore(rdb, cfg.Venue.MirrorTTL.Duration)
		mirror := venue.NewMirror(venueStore, cfg.Venue.EnrichQueue, logger)
		cacheOpts.OnUpdate = mirror.Offer
		a.services = append(a.services, mirror.Run)
	}
	cache := venue.NewCache(cacheOpts)
	if venueStore != nil {
		states, err := venueStore.LoadVenues(ctx)
		if err != nil {
			return nil, err
		}
		for _, st := range states {
			cache.Upsert(st)
		}
		logger.Info().Int("venues", len(states)).Msg("venue cache warmed")
	}
	enricher := venue.NewEnricher(cache, rpc, venue.EnricherConfig{
		Workers:   cfg.Venue.EnrichWorkers,
		QueueSize: cfg.Venue.EnrichQueue,
		Timeout:   cfg.Venue.EnrichTimeout.Duration,
		Logger:    &logger,
	})
	a.services = append(a.services, enricher.Run)

	// Ledger and its persistence.
	positions, attempts, traces, err := openStores(ctx, cfg, a)
	if err != nil {
		return nil, err
	}
	persister := ledger.NewPersister(positions, 5*time.Second, logger)
	book := ledger.New(ledger.Options{
		AllowPyramiding: cfg.Engine.AllowPyramiding,
		OnChange:        persister.Offer,
		Logger:          &logger,
	})
	n, err := ledger.Load(ctx, book, positions)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	logger.Info().Int("positions", n).Msg("ledger restored")
	a.services = append(a.services, persister.Run)
	a.flush = func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		persister.Flush(flushCtx)
	}

	if cfg.Storage.Archive {
		s3c, err := s3archive.New(ctx, s3archive.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return nil, err
		}
		archiver := ledger.NewArchiver(book, s3archive.NewWriter(s3c), cfg.Storage.ArchiveInterval.Duration, cfg.Storage.ArchivePrefix, logger)
		a.services = append(a.services, archiver.Run)
	}

	// Wallet coordination.
	balances := wallet.NewBalanceBook()
	refresher := wallet.NewRefresher(balances, rpc, trackedWallets, cfg.Guard.BalanceRefresh.Duration, logger)
	refresher.RefreshOnce(ctx)
	a.services = append(a.services, refresher.Run)

	var guard wallet.InflightGuard
	if cfg.Guard.Redis {
		guard = redisstore.NewInflightLock(rdb, cfg.GuardTTL())
	} else {
		mg := wallet.NewMemoryGuard(cfg.GuardTTL())
		guard = mg
		a.services = append(a.services, func(ctx context.Context) error {
			t := time.NewTicker(time.Minute)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-t.C:
					mg.Cleanup()
				}
			}
		})
	}
	coord := wallet.NewCoordinator(trackedWallets, balances, book, guard, logger)

	// Submission.
	blockhash := solana.NewBlockhashCache(rpc, cfg.Venue.BlockhashEvery.Duration, 30*time.Second, logger)
	a.services = append(a.services, blockhash.Run)
	signer := submit.NewSigner(keyring, blockhash)
	confirmer := submit.NewConfirmer(rpc, cfg.Submit.ConfirmInterval.Duration)

	var channels []submit.Channel
	if cfg.Submit.Jito {
		jito := solana.NewHTTPClient(cfg.Submit.JitoURL, solana.WithTimeout(cfg.Submit.BundleTimeout.Duration), solana.WithMaxRetries(0))
		channels = append(channels, submit.NewBundleChannel(jito, signer, confirmer, submit.BundleConfig{
			BuyTip:  uint64(cfg.Buy.Bribe),
			SellTip: uint64(cfg.Sell.Bribe),
			Timeout: cfg.Submit.BundleTimeout.Duration,
		}))
	}
	if cfg.Submit.Relay {
		relay := solana.NewHTTPClient(cfg.Submit.RelayURL, solana.WithMaxRetries(0))
		channels = append(channels, submit.NewRelayChannel(relay, confirmer))
	}
	orch := submit.NewOrchestrator(submit.Options{
		Channels: channels,
		Signer:   signer,
		Deadline: cfg.Submit.Deadline.Duration,
		Attempts: attempts,
		Logger:   &logger,
	})

	policy, err := strategy.FromConfig(strategy.Config{
		FullExitBps: cfg.Sell.FullExitBps,
		MaxSellBps:  cfg.Sell.MaxSellBps,
	}, cfg.SourceWallets())
	if err != nil {
		return nil, &domain.ConfigError{Field: "sell", Msg: err.Error()}
	}

	var events engine.Publisher
	if rdb != nil {
		events = redisstore.NewEventBus(rdb)
	}
	a.engine = engine.New(engine.Options{
		Router:    router.New(cache, logger),
		Venues:    cache,
		Builders:  builder.DefaultRegistry(),
		Wallets:   coord,
		Ledger:    book,
		Submitter: orch,
		Balances:  balances,
		Policy:    policy,
		Traces:    traces,
		Events:    events,
		Enricher:  enricher,
		Config: engine.Config{
			FreshMintWindow: cfg.Engine.FreshMintWindow.Duration,
			DryRun:          cfg.Engine.DryRun,
			Buy: engine.ExecParams{
				SlippageBps: cfg.Buy.SlippageBps,
				PriorityFee: uint64(cfg.Buy.PriorityFee),
			},
			Sell: engine.ExecParams{
				SlippageBps: cfg.Sell.SlippageBps,
				PriorityFee: uint64(cfg.Sell.PriorityFee),
				MinSolOut:   uint64(cfg.Sell.MinSolOut),
			},
			ComputeUnitLimit: cfg.Engine.ComputeUnitLimit,
			SettlementStream: cfg.Engine.SettlementStream,
		},
		Logger: &logger,
	})

	// Ingestion.
	sourceWallets := cfg.SourceWallets()
	var followed []string
	for _, s := range sourceWallets {
		if s.Enabled {
			followed = append(followed, s.Address)
		}
	}
	var sources []ingestion.Source
	for _, feed := range cfg.Ingestion.Feeds {
		switch feed {
		case "ws":
			wsCfg := solana.DefaultWSConfig()
			wsCfg.Logger = &logger
			ws, err := solana.NewWSClient(ctx, cfg.RPC.WSURL, &wsCfg)
			if err != nil {
				return nil, fmt.Errorf("connect websocket: %w", err)
			}
			a.closers = append(a.closers, func() { ws.Close() })
			sources = append(sources, ingestion.NewWSSource(ws, rpc, followed, logger))
		case "redis":
			sources = append(sources, ingestion.NewRedisStreamSource(redisstore.NewEventBus(rdb), cfg.Ingestion.Stream, logger))
		}
	}
	a.listener = ingestion.NewListener(sources, sourceWallets, ingestion.ListenerOptions{
		DedupTTL: cfg.Ingestion.DedupTTL.Duration,
		Logger:   &logger,
	})

	return a, nil
}

// openStores selects the position, attempt and trace backends.
func openStores(ctx context.Context, cfg *config.Config, a *app) (storage.PositionStore, storage.AttemptStore, storage.TraceStore, error) {
	var positions storage.PositionStore
	switch cfg.Storage.Positions {
	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN, int32(cfg.Postgres.PoolMaxConns))
		if err != nil {
			return nil, nil, nil, err
		}
		a.closers = append(a.closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return nil, nil, nil, err
		}
		positions = pgstore.NewPositionStore(pool)
	case "sqlite":
		db, err := sqlitestore.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		a.closers = append(a.closers, func() { db.Close() })
		positions = sqlitestore.NewPositionStore(db)
	default:
		positions = memory.NewPositionStore()
	}

	switch cfg.Storage.Attempts {
	case "clickhouse":
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		a.closers = append(a.closers, func() { conn.Close() })
		return positions, chstore.NewAttemptStore(conn), chstore.NewTraceStore(conn), nil
	default:
		return positions, memory.NewAttemptStore(), memory.NewTraceStore(), nil
	}
}

// migrate applies the migrations of every configured backend.
func migrate(ctx context.Context, cfg *config.Config) error {
	if cfg.Storage.Positions == "postgres" {
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN, 1)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return err
		}
	}
	if cfg.Storage.Positions == "sqlite" {
		db, err := sqlitestore.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return err
		}
		db.Close()
	}
	if cfg.Storage.Attempts == "clickhouse" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN)
		if err != nil {
			return err
		}
		conn.Close()
	}
	return nil
}
