package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const envPrefix = "COPYTRADER_"

// Load reads the TOML file at path, applies a .env file if present and then
// COPYTRADER_* environment overrides. An empty path loads defaults only.
// The result is validated before it is returned.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}

	// .env is optional.
	_ = godotenv.Load()

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	o := overrides{}

	o.setStr("LOG_LEVEL", &cfg.Log.Level)
	o.setBool("LOG_PRETTY", &cfg.Log.Pretty)

	o.setStr("RPC_URL", &cfg.RPC.URL)
	o.setStr("RPC_WS_URL", &cfg.RPC.WSURL)
	o.setStr("RPC_API_KEY", &cfg.RPC.APIKey)
	o.setDuration("RPC_TIMEOUT", &cfg.RPC.Timeout)

	o.setStringSlice("INGESTION_FEEDS", &cfg.Ingestion.Feeds)
	o.setStr("INGESTION_STREAM", &cfg.Ingestion.Stream)

	o.setUint64("BUY_SLIPPAGE_BPS", &cfg.Buy.SlippageBps)
	o.setLamports("BUY_BRIBE_SOL", &cfg.Buy.Bribe)
	o.setLamports("BUY_PRIORITY_FEE_SOL", &cfg.Buy.PriorityFee)
	o.setUint64("SELL_SLIPPAGE_BPS", &cfg.Sell.SlippageBps)
	o.setLamports("SELL_BRIBE_SOL", &cfg.Sell.Bribe)
	o.setLamports("SELL_PRIORITY_FEE_SOL", &cfg.Sell.PriorityFee)
	o.setLamports("SELL_MIN_SOL_OUT", &cfg.Sell.MinSolOut)

	o.setDuration("ENGINE_FRESH_MINT_WINDOW", &cfg.Engine.FreshMintWindow)
	o.setBool("ENGINE_DRY_RUN", &cfg.Engine.DryRun)

	o.setBool("SUBMIT_JITO", &cfg.Submit.Jito)
	o.setStr("SUBMIT_JITO_URL", &cfg.Submit.JitoURL)
	o.setBool("SUBMIT_RELAY", &cfg.Submit.Relay)
	o.setStr("SUBMIT_RELAY_URL", &cfg.Submit.RelayURL)
	o.setDuration("SUBMIT_DEADLINE", &cfg.Submit.Deadline)

	o.setStr("STORAGE_POSITIONS", &cfg.Storage.Positions)
	o.setStr("STORAGE_ATTEMPTS", &cfg.Storage.Attempts)
	o.setBool("STORAGE_ARCHIVE", &cfg.Storage.Archive)

	o.setStr("REDIS_ADDR", &cfg.Redis.Addr)
	o.setStr("REDIS_PASSWORD", &cfg.Redis.Password)
	o.setInt("REDIS_DB", &cfg.Redis.DB)

	o.setStr("S3_ENDPOINT", &cfg.S3.Endpoint)
	o.setStr("S3_REGION", &cfg.S3.Region)
	o.setStr("S3_BUCKET", &cfg.S3.Bucket)
	o.setStr("S3_ACCESS_KEY", &cfg.S3.AccessKey)
	o.setStr("S3_SECRET_KEY", &cfg.S3.SecretKey)

	o.setStr("POSTGRES_DSN", &cfg.Postgres.DSN)
	o.setStr("CLICKHOUSE_DSN", &cfg.ClickHouse.DSN)
	o.setStr("SQLITE_PATH", &cfg.SQLite.Path)

	o.setStr("METRICS_ADDR", &cfg.Server.MetricsAddr)
	o.setStr("PYROSCOPE_SERVER", &cfg.Profiling.ServerAddress)

	return o.err
}

// overrides keeps the first parse failure so a malformed variable surfaces
// instead of being silently ignored.
type overrides struct {
	err error
}

func (o *overrides) lookup(key string) (string, bool) {
	v := os.Getenv(envPrefix + key)
	return v, v != ""
}

func (o *overrides) fail(key string, err error) {
	if o.err == nil {
		o.err = fmt.Errorf("env %s%s: %w", envPrefix, key, err)
	}
}

func (o *overrides) setStr(key string, dst *string) {
	if v, ok := o.lookup(key); ok {
		*dst = v
	}
}

func (o *overrides) setInt(key string, dst *int) {
	if v, ok := o.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			o.fail(key, err)
			return
		}
		*dst = n
	}
}

func (o *overrides) setUint64(key string, dst *uint64) {
	if v, ok := o.lookup(key); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			o.fail(key, err)
			return
		}
		*dst = n
	}
}

func (o *overrides) setBool(key string, dst *bool) {
	if v, ok := o.lookup(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			o.fail(key, err)
			return
		}
		*dst = b
	}
}

func (o *overrides) setDuration(key string, dst *Duration) {
	if v, ok := o.lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			o.fail(key, err)
			return
		}
		dst.Duration = d
	}
}

func (o *overrides) setLamports(key string, dst *Lamports) {
	if v, ok := o.lookup(key); ok {
		l, err := ParseSOL(v)
		if err != nil {
			o.fail(key, err)
			return
		}
		*dst = l
	}
}

func (o *overrides) setStringSlice(key string, dst *[]string) {
	if v, ok := o.lookup(key); ok {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}
