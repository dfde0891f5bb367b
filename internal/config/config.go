// Package config defines the copy trader's settings and validates them.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// Config is the root configuration. Fields are populated from a TOML file
// and then optionally overridden by COPYTRADER_* environment variables.
type Config struct {
	Log        LogConfig        `toml:"log"`
	RPC        RPCConfig        `toml:"rpc"`
	Ingestion  IngestionConfig  `toml:"ingestion"`
	Sources    []SourceConfig   `toml:"sources"`
	Wallets    []WalletConfig   `toml:"wallets"`
	Buy        TradeConfig      `toml:"buy"`
	Sell       SellConfig       `toml:"sell"`
	TakeProfit TakeProfitConfig `toml:"take_profit"`
	Engine     EngineConfig     `toml:"engine"`
	Submit     SubmitConfig     `toml:"submit"`
	Guard      GuardConfig      `toml:"guard"`
	Venue      VenueConfig      `toml:"venue"`
	Storage    StorageConfig    `toml:"storage"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Postgres   PostgresConfig   `toml:"postgres"`
	ClickHouse ClickHouseConfig `toml:"clickhouse"`
	SQLite     SQLiteConfig     `toml:"sqlite"`
	Server     ServerConfig     `toml:"server"`
	Profiling  ProfilingConfig  `toml:"profiling"`
}

// LogConfig controls the root logger.
type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// RPCConfig holds the Solana node endpoints.
type RPCConfig struct {
	URL        string   `toml:"url"`
	WSURL      string   `toml:"ws_url"`
	APIKey     string   `toml:"api_key"`
	Timeout    Duration `toml:"timeout"`
	MaxRetries int      `toml:"max_retries"`
}

// IngestionConfig selects the observation feeds.
type IngestionConfig struct {
	// Feeds lists the enabled feeds: "ws", "redis".
	Feeds    []string `toml:"feeds"`
	Stream   string   `toml:"stream"`
	DedupTTL Duration `toml:"dedup_ttl"`
}

// SourceConfig is one followed wallet.
type SourceConfig struct {
	Label   string   `toml:"label"`
	Address string   `toml:"address"`
	Enabled bool     `toml:"enabled"`
	SolGate Lamports `toml:"sol_gate"`
}

// WalletConfig is one execution wallet.
type WalletConfig struct {
	Name       string   `toml:"name"`
	Address    string   `toml:"address"`
	Enabled    bool     `toml:"enabled"`
	MinBalance Lamports `toml:"min_balance_sol"`
	BuyAmount  Lamports `toml:"buy_amount_sol"`
	KeyEnv     string   `toml:"key_env"`
}

// TradeConfig holds per-direction execution costs.
type TradeConfig struct {
	SlippageBps uint64   `toml:"slippage_bps"`
	Bribe       Lamports `toml:"bribe_sol"`
	PriorityFee Lamports `toml:"priority_fee_sol"`
}

// SellConfig extends TradeConfig with sell sizing.
type SellConfig struct {
	TradeConfig
	MinSolOut   Lamports `toml:"min_sol_out"`
	MaxSellBps  uint64   `toml:"max_sell_bps"`
	FullExitBps uint64   `toml:"full_exit_bps"`
}

// TakeProfitConfig is parsed and kept; no trigger acts on it.
type TakeProfitConfig struct {
	Percent      float64 `toml:"percent"`
	SellFraction float64 `toml:"sell_fraction"`
}

// EngineConfig tunes the signal state machine.
type EngineConfig struct {
	FreshMintWindow  Duration `toml:"fresh_mint_window"`
	DryRun           bool     `toml:"dry_run"`
	ComputeUnitLimit uint32   `toml:"compute_unit_limit"`
	AllowPyramiding  bool     `toml:"allow_pyramiding"`
	SettlementStream string   `toml:"settlement_stream"`
}

// SubmitConfig configures the submission channels.
type SubmitConfig struct {
	Deadline        Duration `toml:"deadline"`
	ConfirmInterval Duration `toml:"confirm_interval"`
	Jito            bool     `toml:"jito"`
	JitoURL         string   `toml:"jito_url"`
	BundleTimeout   Duration `toml:"bundle_timeout"`
	Relay           bool     `toml:"relay"`
	RelayURL        string   `toml:"relay_url"`
}

// GuardConfig bounds concurrent buys per (wallet, mint).
type GuardConfig struct {
	// PendingBuyTimeout is how long an unreleased buy claim outlives the
	// submission deadline. See GuardTTL.
	PendingBuyTimeout Duration `toml:"pending_buy_timeout"`
	// Redis shares the guard across processes through the Redis lock.
	Redis          bool     `toml:"redis"`
	BalanceRefresh Duration `toml:"balance_refresh"`
}

// VenueConfig configures the venue cache.
type VenueConfig struct {
	Shards         int      `toml:"shards"`
	EnrichWorkers  int      `toml:"enrich_workers"`
	EnrichQueue    int      `toml:"enrich_queue"`
	EnrichTimeout  Duration `toml:"enrich_timeout"`
	Mirror         bool     `toml:"mirror"`
	MirrorTTL      Duration `toml:"mirror_ttl"`
	BlockhashEvery Duration `toml:"blockhash_refresh"`
}

// StorageConfig selects backends.
type StorageConfig struct {
	// Positions is one of "memory", "postgres", "sqlite".
	Positions string `toml:"positions"`
	// Attempts is one of "memory", "clickhouse".
	Attempts string `toml:"attempts"`
	// Archive enables S3 position snapshots.
	Archive         bool     `toml:"archive"`
	ArchiveInterval Duration `toml:"archive_interval"`
	ArchivePrefix   string   `toml:"archive_prefix"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// PostgresConfig holds the position store connection.
type PostgresConfig struct {
	DSN          string `toml:"dsn"`
	PoolMaxConns int    `toml:"pool_max_conns"`
}

// ClickHouseConfig holds the attempt store connection.
type ClickHouseConfig struct {
	DSN string `toml:"dsn"`
}

// SQLiteConfig holds the single-host position store path.
type SQLiteConfig struct {
	Path string `toml:"path"`
}

// ServerConfig controls the metrics listener.
type ServerConfig struct {
	MetricsAddr     string   `toml:"metrics_addr"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// ProfilingConfig enables continuous profiling when ServerAddress is set.
type ProfilingConfig struct {
	ServerAddress string `toml:"server_address"`
	AppName       string `toml:"app_name"`
}

// Duration wraps time.Duration for TOML string decoding ("5m", "30s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Lamports decodes a decimal SOL amount ("0.001") into lamports without
// passing through floating point.
type Lamports uint64

// ParseSOL converts a decimal SOL string to lamports. Amounts finer than one
// lamport and negative amounts are rejected.
func ParseSOL(s string) (Lamports, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid SOL amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative SOL amount %q", s)
	}
	l := d.Shift(9)
	if !l.IsInteger() {
		return 0, fmt.Errorf("SOL amount %q is finer than one lamport", s)
	}
	if l.GreaterThan(decimal.NewFromUint64(^uint64(0))) {
		return 0, fmt.Errorf("SOL amount %q overflows", s)
	}
	return Lamports(l.BigInt().Uint64()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Lamports) UnmarshalText(text []byte) error {
	v, err := ParseSOL(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (l Lamports) MarshalText() ([]byte, error) {
	return []byte(l.SOL()), nil
}

// SOL formats the amount in SOL.
func (l Lamports) SOL() string {
	return decimal.NewFromUint64(uint64(l)).Shift(-9).String()
}

// Defaults returns a Config populated with sensible defaults for every
// field. Callers typically load a TOML file on top of these defaults.
func Defaults() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		RPC: RPCConfig{
			URL:        "https://api.mainnet-beta.solana.com",
			WSURL:      "wss://api.mainnet-beta.solana.com",
			Timeout:    Duration{30 * time.Second},
			MaxRetries: 3,
		},
		Ingestion: IngestionConfig{
			Feeds:    []string{"ws"},
			Stream:   "copytrader:observations",
			DedupTTL: Duration{2 * time.Minute},
		},
		Buy: TradeConfig{
			SlippageBps: 50,
			Bribe:       100_000,
			PriorityFee: 100_000,
		},
		Sell: SellConfig{
			TradeConfig: TradeConfig{
				SlippageBps: 50,
				Bribe:       100_000,
				PriorityFee: 100_000,
			},
			MinSolOut:   10_000_000,
			MaxSellBps:  10_000,
			FullExitBps: 9_000,
		},
		TakeProfit: TakeProfitConfig{Percent: 120, SellFraction: 0.5},
		Engine: EngineConfig{
			FreshMintWindow:  Duration{5 * time.Minute},
			ComputeUnitLimit: 250_000,
			SettlementStream: "copytrader:settlements",
		},
		Submit: SubmitConfig{
			Deadline:        Duration{10 * time.Second},
			ConfirmInterval: Duration{400 * time.Millisecond},
			Jito:            true,
			JitoURL:         "https://mainnet.block-engine.jito.wtf/api/v1/bundles",
			BundleTimeout:   Duration{8 * time.Second},
			Relay:           true,
			RelayURL:        "https://mainnet.helius-rpc.com",
		},
		Guard: GuardConfig{
			PendingBuyTimeout: Duration{1000 * time.Millisecond},
			BalanceRefresh:    Duration{10 * time.Second},
		},
		Venue: VenueConfig{
			Shards:         32,
			EnrichWorkers:  4,
			EnrichQueue:    1024,
			EnrichTimeout:  Duration{2 * time.Second},
			MirrorTTL:      Duration{24 * time.Hour},
			BlockhashEvery: Duration{2 * time.Second},
		},
		Storage: StorageConfig{
			Positions:       "memory",
			Attempts:        "memory",
			ArchiveInterval: Duration{time.Hour},
			ArchivePrefix:   "positions",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region: "us-east-1",
			UseSSL: true,
		},
		Postgres:   PostgresConfig{PoolMaxConns: 10},
		ClickHouse: ClickHouseConfig{DSN: "clickhouse://localhost:9000/default"},
		SQLite:     SQLiteConfig{Path: "copytrader.db"},
		Server: ServerConfig{
			MetricsAddr:     ":9090",
			ShutdownTimeout: Duration{30 * time.Second},
		},
		Profiling: ProfilingConfig{AppName: "solana-copy-trader"},
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validFeeds = map[string]bool{"ws": true, "redis": true}

// Validate checks Config for invalid or missing values. The returned error
// joins one *domain.ConfigError per problem, so errors.Is(err,
// domain.ErrConfiguration) holds.
func (c *Config) Validate() error {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, &domain.ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)})
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		fail("log.level", "unknown level %q (valid: debug, info, warn, error)", c.Log.Level)
	}
	if c.RPC.URL == "" {
		fail("rpc.url", "must not be empty")
	}

	if len(c.Ingestion.Feeds) == 0 {
		fail("ingestion.feeds", "at least one feed is required")
	}
	for _, f := range c.Ingestion.Feeds {
		if !validFeeds[f] {
			fail("ingestion.feeds", "unknown feed %q (valid: ws, redis)", f)
		}
		if f == "ws" && c.RPC.WSURL == "" {
			fail("rpc.ws_url", "required by the ws feed")
		}
	}

	enabledSources := 0
	seen := make(map[string]bool)
	for i, s := range c.Sources {
		field := fmt.Sprintf("sources[%d]", i)
		if !validAddress(s.Address) {
			fail(field+".address", "invalid address %q", s.Address)
		}
		if seen[s.Address] {
			fail(field+".address", "duplicate source %s", s.Address)
		}
		seen[s.Address] = true
		if s.Enabled {
			enabledSources++
		}
	}
	if enabledSources == 0 {
		fail("sources", "at least one enabled source wallet is required")
	}

	enabledWallets := 0
	seen = make(map[string]bool)
	for i, w := range c.Wallets {
		field := fmt.Sprintf("wallets[%d]", i)
		if w.Name == "" {
			fail(field+".name", "must not be empty")
		}
		if !validAddress(w.Address) {
			fail(field+".address", "invalid address %q", w.Address)
		}
		if seen[w.Address] {
			fail(field+".address", "duplicate wallet %s", w.Address)
		}
		seen[w.Address] = true
		if w.Enabled {
			enabledWallets++
			if w.KeyEnv == "" {
				fail(field+".key_env", "required for enabled wallets")
			}
			if w.BuyAmount == 0 {
				fail(field+".buy_amount_sol", "must be > 0")
			}
		}
	}
	if enabledWallets == 0 {
		fail("wallets", "at least one enabled wallet is required")
	}

	if c.Buy.SlippageBps >= 10_000 {
		fail("buy.slippage_bps", "must be below 10000")
	}
	if c.Sell.SlippageBps >= 10_000 {
		fail("sell.slippage_bps", "must be below 10000")
	}
	if c.Sell.MaxSellBps == 0 || c.Sell.MaxSellBps > 10_000 {
		fail("sell.max_sell_bps", "must be within 1-10000")
	}
	if c.Sell.FullExitBps == 0 || c.Sell.FullExitBps > 10_000 {
		fail("sell.full_exit_bps", "must be within 1-10000")
	}
	if c.Engine.FreshMintWindow.Duration < 0 {
		fail("engine.fresh_mint_window", "must not be negative")
	}

	if c.Submit.Deadline.Duration <= 0 {
		fail("submit.deadline", "must be > 0")
	}
	if !c.Submit.Jito && !c.Submit.Relay {
		fail("submit", "at least one of jito or relay must be enabled")
	}
	if c.Submit.Jito && c.Submit.JitoURL == "" {
		fail("submit.jito_url", "must not be empty when jito is enabled")
	}
	if c.Submit.Relay && c.Submit.RelayURL == "" {
		fail("submit.relay_url", "must not be empty when relay is enabled")
	}
	if c.Guard.PendingBuyTimeout.Duration <= 0 {
		fail("guard.pending_buy_timeout", "must be > 0")
	}

	switch c.Storage.Positions {
	case "memory":
	case "postgres":
		if c.Postgres.DSN == "" {
			fail("postgres.dsn", "required for postgres position storage")
		}
	case "sqlite":
		if c.SQLite.Path == "" {
			fail("sqlite.path", "required for sqlite position storage")
		}
	default:
		fail("storage.positions", "unknown backend %q (valid: memory, postgres, sqlite)", c.Storage.Positions)
	}
	switch c.Storage.Attempts {
	case "memory":
	case "clickhouse":
		if c.ClickHouse.DSN == "" {
			fail("clickhouse.dsn", "required for clickhouse attempt storage")
		}
	default:
		fail("storage.attempts", "unknown backend %q (valid: memory, clickhouse)", c.Storage.Attempts)
	}
	if c.Storage.Archive && c.S3.Bucket == "" {
		fail("s3.bucket", "required when storage.archive is enabled")
	}

	if c.NeedsRedis() {
		if c.Redis.Addr == "" {
			fail("redis.addr", "must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			fail("redis.pool_size", "must be >= 1")
		}
	}

	return errors.Join(errs...)
}

// GuardTTL is the expiry of an in-flight buy claim. Claims are released at
// settlement, so the TTL only matters for holders that never settle and
// always exceeds the submission deadline.
func (c *Config) GuardTTL() time.Duration {
	return c.Submit.Deadline.Duration + c.Guard.PendingBuyTimeout.Duration
}

// NeedsRedis reports whether any enabled component uses Redis.
func (c *Config) NeedsRedis() bool {
	if c.Guard.Redis || c.Venue.Mirror {
		return true
	}
	for _, f := range c.Ingestion.Feeds {
		if f == "redis" {
			return true
		}
	}
	return false
}

// SourceWallets converts the configured sources.
func (c *Config) SourceWallets() []domain.SourceWallet {
	out := make([]domain.SourceWallet, len(c.Sources))
	for i, s := range c.Sources {
		label := s.Label
		if label == "" {
			label = s.Address
		}
		out[i] = domain.SourceWallet{
			Label:    label,
			Address:  s.Address,
			Enabled:  s.Enabled,
			MinTrade: uint64(s.SolGate),
		}
	}
	return out
}

// TrackedWallets converts the configured execution wallets.
func (c *Config) TrackedWallets() []domain.TrackedWallet {
	out := make([]domain.TrackedWallet, len(c.Wallets))
	for i, w := range c.Wallets {
		out[i] = domain.TrackedWallet{
			Name:       w.Name,
			Address:    w.Address,
			Enabled:    w.Enabled,
			MinBalance: uint64(w.MinBalance),
			TradeSize:  uint64(w.BuyAmount),
			KeyEnv:     w.KeyEnv,
		}
	}
	return out
}

func validAddress(addr string) bool {
	b, err := solana.DecodeAddress(addr)
	return err == nil && len(b) == 32
}
