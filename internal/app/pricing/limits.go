package pricing

import (
	"context"
	"math"

	"github.com/tutu-network/credits/internal/domain"
)

// ─── Dynamic Currency Limits ────────────────────────────────────────────────
// Limits for every currency are derived from the usd limits at the current
// credit rates, snapped to two significant digits. A derived value within 10%
// of the configured static value for that currency is replaced by the static
// value so rate jitter does not move published limits.

// Limits are payment bounds in a currency's minor unit.
type Limits struct {
	Minimum     int64   `json:"minimumPaymentAmount" toml:"minimum"`
	Maximum     int64   `json:"maximumPaymentAmount" toml:"maximum"`
	Suggested   []int64 `json:"suggestedPaymentAmounts" toml:"suggested"`
	ZeroDecimal bool    `json:"zeroDecimalCurrency" toml:"-"`
}

// staticTolerance is how close a derived limit must be to the static one for
// the static one to win.
const staticTolerance = 0.10

// CurrencyLimits returns the payment limits for every currency with a rate.
// Rates come from the cached fiat oracle, so no separate refresh is needed.
func (e *Engine) CurrencyLimits(ctx context.Context) (map[domain.Currency]Limits, error) {
	rates, err := e.fiatRates(ctx)
	if err != nil {
		return nil, err
	}
	return e.limitsFrom(rates)
}

func (e *Engine) limitsFrom(rates map[domain.Currency]float64) (map[domain.Currency]Limits, error) {
	base := e.cfg.StaticLimits[domain.USD]
	ceiling := int64(math.Pow10(e.cfg.MaxPaymentDigits)) - 1
	usdRate := rates[domain.USD]

	out := make(map[domain.Currency]Limits, len(rates))
	for _, c := range domain.SupportedCurrencies() {
		rate := rates[c]
		if rate <= 0 {
			continue
		}
		factor := rate / usdRate
		static, hasStatic := e.cfg.StaticLimits[c]

		derive := func(usdMinor, staticValue int64) int64 {
			v := convertLimit(usdMinor, c, factor)
			if hasStatic && staticValue > 0 && withinTolerance(v, staticValue) {
				v = staticValue
			}
			if v > ceiling {
				v = ceiling
			}
			if v < 1 {
				v = 1
			}
			return v
		}

		l := Limits{ZeroDecimal: c.MinorExponent() == 0}
		l.Minimum = derive(base.Minimum, static.Minimum)
		l.Maximum = derive(base.Maximum, static.Maximum)
		l.Suggested = make([]int64, len(base.Suggested))
		for i, s := range base.Suggested {
			var staticValue int64
			if i < len(static.Suggested) {
				staticValue = static.Suggested[i]
			}
			l.Suggested[i] = derive(s, staticValue)
		}
		out[c] = l
	}
	return out, nil
}

// convertLimit converts usd cents to minor units of c, snapping the major
// amount to two significant digits.
func convertLimit(usdMinor int64, c domain.Currency, factor float64) int64 {
	major := float64(usdMinor) / math.Pow10(int(domain.USD.MinorExponent())) * factor
	snapped := snapSignificant(major, 2)
	return int64(math.Round(snapped * math.Pow10(int(c.MinorExponent()))))
}

// snapSignificant rounds x to the given number of significant digits.
func snapSignificant(x float64, digits int) float64 {
	if x <= 0 {
		return 0
	}
	shift := digits - 1 - int(math.Floor(math.Log10(x)))
	return math.Round(x*math.Pow10(shift)) / math.Pow10(shift)
}

func withinTolerance(derived, static int64) bool {
	return math.Abs(float64(derived-static)) <= float64(static)*staticTolerance
}
