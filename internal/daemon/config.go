// Package daemon loads the credits service configuration and builds the
// process-wide logger.
//
// Configuration is layered: DefaultConfig, then the TOML file, then .env and
// CREDITS_* environment variables.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/tutu-network/credits/internal/app/ledger"
	"github.com/tutu-network/credits/internal/app/pricing"
	"github.com/tutu-network/credits/internal/app/reconcile"
	"github.com/tutu-network/credits/internal/domain"
	"github.com/tutu-network/credits/internal/infra/cache"
	"github.com/tutu-network/credits/internal/infra/oracle"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CREDITS_"

// Config is the full service configuration.
type Config struct {
	API      APIConfig      `toml:"api"`
	Storage  StorageConfig  `toml:"storage"`
	Pricing  PricingConfig  `toml:"pricing"`
	Oracle   OracleConfig   `toml:"oracle"`
	Payments PaymentsConfig `toml:"payments"`
	Log      LogConfig      `toml:"log"`
}

type APIConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	RequestTimeout string `toml:"request_timeout"`
	Metrics        bool   `toml:"metrics"`
	Traces         bool   `toml:"traces"`
	// AdminToken is the bearer secret required on balance-moving routes.
	// Empty leaves those routes closed.
	AdminToken  string   `toml:"admin_token"`
	CORSOrigins []string `toml:"cors_origins"`
}

type StorageConfig struct {
	DataDir     string `toml:"data_dir"`
	CatalogFile string `toml:"catalog_file"` // relative to DataDir
}

type PricingConfig struct {
	ChunkSize         int64                     `toml:"chunk_size"`
	InfraFee          string                    `toml:"infra_fee"`
	MaxPaymentDigits  int                       `toml:"max_payment_digits"`
	ProcessorMinimums map[string]int64          `toml:"processor_minimums"`
	Limits            map[string]pricing.Limits `toml:"limits"`

	BytesCacheTTL  string `toml:"bytes_cache_ttl"`
	BytesCacheSize int    `toml:"bytes_cache_size"`
	RatesCacheTTL  string `toml:"rates_cache_ttl"`
}

type OracleConfig struct {
	GatewayURL        string  `toml:"gateway_url"`
	CoinGeckoURL      string  `toml:"coingecko_url"`
	Timeout           string  `toml:"timeout"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
	MaxRetries        int     `toml:"max_retries"`
	RetryBackoff      string  `toml:"retry_backoff"`
}

type PaymentsConfig struct {
	// Wallets maps token name to the service's receiving address.
	Wallets map[string]string `toml:"wallets"`
	// Indexers maps token name to its transaction indexer base URL.
	Indexers          map[string]string `toml:"indexers"`
	PaymentExpiry     string            `toml:"payment_expiry"`
	ReconcileInterval string            `toml:"reconcile_interval"`
}

type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // json or console
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8420,
			RequestTimeout: "30s",
			Metrics:        true,
			Traces:         true,
			CORSOrigins:    []string{"*"},
		},
		Storage: StorageConfig{
			DataDir:     defaultHome(),
			CatalogFile: "catalog.db",
		},
		Pricing: PricingConfig{
			ChunkSize:         256 * 1024,
			InfraFee:          "0.234",
			MaxPaymentDigits:  8,
			ProcessorMinimums: map[string]int64{},
			Limits:            map[string]pricing.Limits{},
			BytesCacheTTL:     "5m",
			BytesCacheSize:    1000,
			RatesCacheTTL:     "1m",
		},
		Oracle: OracleConfig{
			GatewayURL:        "https://arweave.net",
			CoinGeckoURL:      "https://api.coingecko.com/api/v3",
			Timeout:           "10s",
			RequestsPerSecond: 5,
			Burst:             1,
			MaxRetries:        2,
			RetryBackoff:      "250ms",
		},
		Payments: PaymentsConfig{
			Wallets:           map[string]string{},
			Indexers:          map[string]string{},
			PaymentExpiry:     "24h",
			ReconcileInterval: "30s",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// defaultHome is $CREDITS_HOME, or ~/.credits.
func defaultHome() string {
	if h := os.Getenv(EnvPrefix + "HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".credits"
	}
	return filepath.Join(home, ".credits")
}

// DefaultConfigPath is config.toml in the default home.
func DefaultConfigPath() string {
	return filepath.Join(defaultHome(), "config.toml")
}

// LoadConfig layers the TOML file at path (skipped when path is empty or
// missing) and the environment over DefaultConfig. Unknown keys in the file
// are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		default:
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				keys := make([]string, len(undecoded))
				for i, k := range undecoded {
					keys[i] = k.String()
				}
				return Config{}, fmt.Errorf("parse %s: unknown keys %s", path, strings.Join(keys, ", "))
			}
		}
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv applies CREDITS_* overrides. Per-token wallets and indexers use
// CREDITS_WALLET_<TOKEN> and CREDITS_INDEXER_<TOKEN>, with dashes in token
// names written as underscores.
func (c *Config) applyEnv() error {
	str := map[string]*string{
		"API_HOST":           &c.API.Host,
		"ADMIN_TOKEN":        &c.API.AdminToken,
		"DATA_DIR":           &c.Storage.DataDir,
		"GATEWAY_URL":        &c.Oracle.GatewayURL,
		"COINGECKO_URL":      &c.Oracle.CoinGeckoURL,
		"LOG_LEVEL":          &c.Log.Level,
		"LOG_FORMAT":         &c.Log.Format,
		"PAYMENT_EXPIRY":     &c.Payments.PaymentExpiry,
		"RECONCILE_INTERVAL": &c.Payments.ReconcileInterval,
		"INFRA_FEE":          &c.Pricing.InfraFee,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv(EnvPrefix + "API_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sAPI_PORT: %w", EnvPrefix, err)
		}
		c.API.Port = port
	}

	for _, t := range domain.SupportedTokens() {
		suffix := strings.ToUpper(strings.ReplaceAll(string(t), "-", "_"))
		if v, ok := os.LookupEnv(EnvPrefix + "WALLET_" + suffix); ok {
			c.Payments.Wallets[string(t)] = v
		}
		if v, ok := os.LookupEnv(EnvPrefix + "INDEXER_" + suffix); ok {
			c.Payments.Indexers[string(t)] = v
		}
	}
	return nil
}

// Validate checks every field that later conversion would otherwise fail on.
func (c Config) Validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	if c.Storage.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	durations := map[string]string{
		"api.request_timeout":         c.API.RequestTimeout,
		"pricing.bytes_cache_ttl":     c.Pricing.BytesCacheTTL,
		"pricing.rates_cache_ttl":     c.Pricing.RatesCacheTTL,
		"oracle.timeout":              c.Oracle.Timeout,
		"oracle.retry_backoff":        c.Oracle.RetryBackoff,
		"payments.payment_expiry":     c.Payments.PaymentExpiry,
		"payments.reconcile_interval": c.Payments.ReconcileInterval,
	}
	for _, name := range sortedKeys(durations) {
		if _, err := time.ParseDuration(durations[name]); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if _, err := c.PricingConfig(); err != nil {
		return err
	}
	if _, err := c.LedgerConfig(); err != nil {
		return err
	}
	for name := range c.Payments.Indexers {
		if _, err := domain.ParseToken(name); err != nil {
			return fmt.Errorf("payments.indexers: %w", err)
		}
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format %q must be json or console", c.Log.Format)
	}
	return nil
}

// ─── Component Configs ──────────────────────────────────────────────────────

// Addr is the API listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// CatalogPath is the bolt catalog file.
func (c Config) CatalogPath() string {
	if filepath.IsAbs(c.Storage.CatalogFile) {
		return c.Storage.CatalogFile
	}
	return filepath.Join(c.Storage.DataDir, c.Storage.CatalogFile)
}

// PricingConfig converts the pricing section, overlaying configured
// minimums and limits on the engine defaults.
func (c Config) PricingConfig() (pricing.Config, error) {
	out := pricing.DefaultConfig()
	if c.Pricing.ChunkSize > 0 {
		out.ChunkSize = c.Pricing.ChunkSize
	}
	if c.Pricing.MaxPaymentDigits > 0 {
		out.MaxPaymentDigits = c.Pricing.MaxPaymentDigits
	}
	if c.Pricing.InfraFee != "" {
		fee, err := decimal.NewFromString(c.Pricing.InfraFee)
		if err != nil {
			return pricing.Config{}, fmt.Errorf("pricing.infra_fee: %w", err)
		}
		out.InfraFeeMagnitude = fee
	}
	for name, v := range c.Pricing.ProcessorMinimums {
		cur, err := domain.ParseCurrency(name)
		if err != nil {
			return pricing.Config{}, fmt.Errorf("pricing.processor_minimums: %w", err)
		}
		out.ProcessorMinimums[cur] = v
	}
	for name, l := range c.Pricing.Limits {
		cur, err := domain.ParseCurrency(name)
		if err != nil {
			return pricing.Config{}, fmt.Errorf("pricing.limits: %w", err)
		}
		if l.Minimum <= 0 || l.Maximum < l.Minimum {
			return pricing.Config{}, fmt.Errorf("pricing.limits.%s: minimum must be positive and not above maximum", cur)
		}
		out.StaticLimits[cur] = l
	}
	return out, nil
}

// LedgerConfig converts the payments section.
func (c Config) LedgerConfig() (ledger.Config, error) {
	out := ledger.DefaultConfig()
	for name, addr := range c.Payments.Wallets {
		t, err := domain.ParseToken(name)
		if err != nil {
			return ledger.Config{}, fmt.Errorf("payments.wallets: %w", err)
		}
		out.ReceivingWallets[t] = addr
	}
	if d := parseDuration(c.Payments.PaymentExpiry, 0); d > 0 {
		out.PaymentExpiry = d
	}
	return out, nil
}

// ReconcileConfig converts the reconciliation interval.
func (c Config) ReconcileConfig() reconcile.Config {
	out := reconcile.DefaultConfig()
	out.Interval = parseDuration(c.Payments.ReconcileInterval, out.Interval)
	return out
}

// ClientConfig converts the oracle HTTP client settings.
func (c Config) ClientConfig() oracle.ClientConfig {
	out := oracle.DefaultClientConfig()
	out.Timeout = parseDuration(c.Oracle.Timeout, out.Timeout)
	out.RetryBackoff = parseDuration(c.Oracle.RetryBackoff, out.RetryBackoff)
	out.RequestsPerSecond = c.Oracle.RequestsPerSecond
	if c.Oracle.Burst > 0 {
		out.Burst = c.Oracle.Burst
	}
	out.MaxRetries = c.Oracle.MaxRetries
	return out
}

// BytesCacheConfig is the network price cache. obs may be nil.
func (c Config) BytesCacheConfig(obs cache.Observer) cache.Config {
	return cache.Config{
		Name:     "bytes",
		Capacity: c.Pricing.BytesCacheSize,
		TTL:      parseDuration(c.Pricing.BytesCacheTTL, 5*time.Minute),
		Observer: obs,
	}
}

// RatesCacheConfig is the fiat or token rate cache. obs may be nil.
func (c Config) RatesCacheConfig(name string, obs cache.Observer) cache.Config {
	return cache.Config{
		Name:     name,
		Capacity: 1,
		TTL:      parseDuration(c.Pricing.RatesCacheTTL, time.Minute),
		Observer: obs,
	}
}

// parseDuration parses s, falling back to def when s is empty or invalid.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
