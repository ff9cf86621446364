package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/tutu-network/credits/internal/domain"
	"github.com/tutu-network/credits/internal/infra/observability"
)

// ─── CoinGecko ──────────────────────────────────────────────────────────────
// Both adapters use the simple price endpoint:
//
//	GET {base}/simple/price?ids=arweave,solana&vs_currencies=usd,eur
//	→ {"arweave": {"usd": 5.1, "eur": 4.7}, "solana": {...}}

type simplePriceResponse map[string]map[string]float64

func simplePriceURL(base string, ids []string) string {
	currencies := domain.SupportedCurrencies()
	vs := make([]string, len(currencies))
	for i, c := range currencies {
		vs[i] = string(c)
	}
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", strings.Join(vs, ","))
	return strings.TrimRight(base, "/") + "/simple/price?" + q.Encode()
}

func fetchSimplePrice(ctx context.Context, c *client, base string, ids []string) (simplePriceResponse, error) {
	body, err := c.get(ctx, simplePriceURL(base, ids))
	if err != nil {
		return nil, err
	}
	var resp simplePriceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, c.unavailable(fmt.Errorf("decode simple price: %w", err))
	}
	return resp, nil
}

// toCurrencyRates keeps supported currencies with positive rates.
func toCurrencyRates(raw map[string]float64) map[domain.Currency]float64 {
	out := make(map[domain.Currency]float64, len(raw))
	for code, rate := range raw {
		c, err := domain.ParseCurrency(code)
		if err != nil || rate <= 0 {
			continue
		}
		out[c] = rate
	}
	return out
}

// ─── Fiat ───────────────────────────────────────────────────────────────────

// CoinGeckoFiatOracle returns the fiat price of one credit unit (1 AR).
type CoinGeckoFiatOracle struct {
	baseURL string
	client  *client
}

var _ domain.FiatToCreditOracle = (*CoinGeckoFiatOracle)(nil)

// NewCoinGeckoFiatOracle creates a fiat oracle.
func NewCoinGeckoFiatOracle(baseURL string, cfg ClientConfig, logger *zap.Logger, m *observability.Metrics) *CoinGeckoFiatOracle {
	return &CoinGeckoFiatOracle{baseURL: baseURL, client: newClient("fiat", cfg, logger, m)}
}

// RatesForOneCreditUnit returns every supported currency in one call.
func (o *CoinGeckoFiatOracle) RatesForOneCreditUnit(ctx context.Context) (map[domain.Currency]float64, error) {
	id := domain.CreditBaseToken.Info().OracleID
	resp, err := fetchSimplePrice(ctx, o.client, o.baseURL, []string{id})
	if err != nil {
		return nil, err
	}
	rates := toCurrencyRates(resp[id])
	if len(rates) == 0 {
		return nil, o.client.unavailable(fmt.Errorf("no rates for %q", id))
	}
	return rates, nil
}

// ─── Tokens ─────────────────────────────────────────────────────────────────

// CoinGeckoTokenOracle returns fiat rates for every supported token in one
// batched call.
type CoinGeckoTokenOracle struct {
	baseURL string
	client  *client
}

var _ domain.TokenToFiatOracle = (*CoinGeckoTokenOracle)(nil)

// NewCoinGeckoTokenOracle creates a token oracle.
func NewCoinGeckoTokenOracle(baseURL string, cfg ClientConfig, logger *zap.Logger, m *observability.Metrics) *CoinGeckoTokenOracle {
	return &CoinGeckoTokenOracle{baseURL: baseURL, client: newClient("token", cfg, logger, m)}
}

// RatesForAllTokens maps each token to its fiat rates. Tokens sharing an
// upstream id (ethereum, base-eth) share the same rates.
func (o *CoinGeckoTokenOracle) RatesForAllTokens(ctx context.Context) (map[domain.Token]map[domain.Currency]float64, error) {
	resp, err := fetchSimplePrice(ctx, o.client, o.baseURL, domain.OracleIDs())
	if err != nil {
		return nil, err
	}
	out := make(map[domain.Token]map[domain.Currency]float64)
	for _, t := range domain.SupportedTokens() {
		rates := toCurrencyRates(resp[t.Info().OracleID])
		if len(rates) > 0 {
			out[t] = rates
		}
	}
	if _, ok := out[domain.CreditBaseToken]; !ok {
		return nil, o.client.unavailable(fmt.Errorf("no rates for base token %q", domain.CreditBaseToken))
	}
	return out, nil
}
