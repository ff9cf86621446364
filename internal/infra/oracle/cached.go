package oracle

import (
	"context"

	"github.com/tutu-network/credits/internal/domain"
	"github.com/tutu-network/credits/internal/infra/cache"
)

// allRatesKey is the single key for batched rate responses: one fetch serves
// every currency and token pair.
const allRatesKey = "all"

// CachedBytesOracle caches network prices per byte count. Callers pass
// chunk-rounded counts so every request inside a chunk shares one entry.
type CachedBytesOracle struct {
	cache *cache.ReadThrough[int64, domain.Winc]
}

var _ domain.BytesToCreditOracle = (*CachedBytesOracle)(nil)

// NewCachedBytesOracle wraps inner with a read-through cache.
func NewCachedBytesOracle(inner domain.BytesToCreditOracle, cfg cache.Config) *CachedBytesOracle {
	if cfg.Name == "" {
		cfg.Name = "bytes"
	}
	return &CachedBytesOracle{cache: cache.New[int64, domain.Winc](cfg, inner.CreditsForBytes)}
}

func (o *CachedBytesOracle) CreditsForBytes(ctx context.Context, bytes int64) (domain.Winc, error) {
	return o.cache.Get(ctx, bytes)
}

// CachedFiatOracle caches the batched fiat-per-credit rates.
type CachedFiatOracle struct {
	cache *cache.ReadThrough[string, map[domain.Currency]float64]
}

var _ domain.FiatToCreditOracle = (*CachedFiatOracle)(nil)

// NewCachedFiatOracle wraps inner with a read-through cache.
func NewCachedFiatOracle(inner domain.FiatToCreditOracle, cfg cache.Config) *CachedFiatOracle {
	if cfg.Name == "" {
		cfg.Name = "fiat"
	}
	fetch := func(ctx context.Context, _ string) (map[domain.Currency]float64, error) {
		return inner.RatesForOneCreditUnit(ctx)
	}
	return &CachedFiatOracle{cache: cache.New[string, map[domain.Currency]float64](cfg, fetch)}
}

// RatesForOneCreditUnit returns a copy of the cached rates.
func (o *CachedFiatOracle) RatesForOneCreditUnit(ctx context.Context) (map[domain.Currency]float64, error) {
	rates, err := o.cache.Get(ctx, allRatesKey)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.Currency]float64, len(rates))
	for c, r := range rates {
		out[c] = r
	}
	return out, nil
}

// CachedTokenOracle caches the batched token rates.
type CachedTokenOracle struct {
	cache *cache.ReadThrough[string, map[domain.Token]map[domain.Currency]float64]
}

var _ domain.TokenToFiatOracle = (*CachedTokenOracle)(nil)

// NewCachedTokenOracle wraps inner with a read-through cache.
func NewCachedTokenOracle(inner domain.TokenToFiatOracle, cfg cache.Config) *CachedTokenOracle {
	if cfg.Name == "" {
		cfg.Name = "token"
	}
	fetch := func(ctx context.Context, _ string) (map[domain.Token]map[domain.Currency]float64, error) {
		return inner.RatesForAllTokens(ctx)
	}
	return &CachedTokenOracle{cache: cache.New[string, map[domain.Token]map[domain.Currency]float64](cfg, fetch)}
}

// RatesForAllTokens returns a copy of the cached rates.
func (o *CachedTokenOracle) RatesForAllTokens(ctx context.Context) (map[domain.Token]map[domain.Currency]float64, error) {
	rates, err := o.cache.Get(ctx, allRatesKey)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.Token]map[domain.Currency]float64, len(rates))
	for t, byCurrency := range rates {
		inner := make(map[domain.Currency]float64, len(byCurrency))
		for c, r := range byCurrency {
			inner[c] = r
		}
		out[t] = inner
	}
	return out, nil
}
