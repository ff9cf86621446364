package cli

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/tutu-network/credits/internal/app/ledger"
	"github.com/tutu-network/credits/internal/app/pricing"
	"github.com/tutu-network/credits/internal/daemon"
	"github.com/tutu-network/credits/internal/domain"
	"github.com/tutu-network/credits/internal/infra/catalog"
	"github.com/tutu-network/credits/internal/infra/observability"
	"github.com/tutu-network/credits/internal/infra/oracle"
	"github.com/tutu-network/credits/internal/infra/sqlite"
)

// ─── Component Assembly ─────────────────────────────────────────────────────
// Every command opens the same stack; serve adds the HTTP server and the
// reconciliation worker on top.

type stack struct {
	cfg      daemon.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	db       *sqlite.DB
	catalog  *catalog.Store
	engine   *pricing.Engine
	ledger   *ledger.Service
}

// openStack opens storage and builds the pricing engine and ledger from cfg.
// Oracles sit behind read-through caches; per-token indexers become the
// ledger's transaction gateways.
func openStack(cfg daemon.Config, logger *zap.Logger) (*stack, error) {
	s := &stack{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metrics = observability.NewMetrics(s.registry)

	tc := observability.DefaultTracerConfig()
	tc.Enabled = cfg.API.Traces
	s.tracer = observability.NewTracer(tc, s.metrics)

	pricingCfg, err := cfg.PricingConfig()
	if err != nil {
		return nil, err
	}
	ledgerCfg, err := cfg.LedgerConfig()
	if err != nil {
		return nil, err
	}

	s.db, err = sqlite.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}
	s.catalog, err = catalog.New(cfg.CatalogPath())
	if err != nil {
		s.db.Close()
		return nil, err
	}

	cc := cfg.ClientConfig()
	bytesOracle := oracle.NewCachedBytesOracle(
		oracle.NewGatewayBytesOracle(cfg.Oracle.GatewayURL, cc, logger, s.metrics),
		cfg.BytesCacheConfig(s.metrics))
	fiatOracle := oracle.NewCachedFiatOracle(
		oracle.NewCoinGeckoFiatOracle(cfg.Oracle.CoinGeckoURL, cc, logger, s.metrics),
		cfg.RatesCacheConfig("fiat", s.metrics))
	tokenOracle := oracle.NewCachedTokenOracle(
		oracle.NewCoinGeckoTokenOracle(cfg.Oracle.CoinGeckoURL, cc, logger, s.metrics),
		cfg.RatesCacheConfig("tokens", s.metrics))

	s.engine, err = pricing.New(pricingCfg, pricing.Deps{
		Bytes:       bytesOracle,
		Fiat:        fiatOracle,
		Tokens:      tokenOracle,
		Catalog:     s.catalog,
		Eligibility: s.db,
		Logger:      logger,
		Metrics:     s.metrics,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	gateways := make(map[domain.Token]domain.TransactionGateway, len(cfg.Payments.Indexers))
	for name, url := range cfg.Payments.Indexers {
		token, err := domain.ParseToken(name)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("payments.indexers: %w", err)
		}
		gateways[token] = oracle.NewIndexerGateway(token, url, cc, logger, s.metrics)
	}

	s.ledger = ledger.New(ledgerCfg, ledger.Deps{
		Store:    s.db,
		Pricer:   s.engine,
		Catalog:  s.catalog,
		Gateways: gateways,
		Tracer:   s.tracer,
		Metrics:  s.metrics,
		Logger:   logger,
	})
	return s, nil
}

// Close releases both stores.
func (s *stack) Close() error {
	var errs []error
	if s.catalog != nil {
		errs = append(errs, s.catalog.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}
