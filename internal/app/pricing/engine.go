// Package pricing turns byte counts, fiat payments and crypto transfers into
// winc quotes.
//
// Every quote starts from a cached oracle rate and folds catalog adjustments
// over it in ascending priority order. Each adjustment sees the running total
// left by the previous one, so the fold is strictly sequential.
package pricing

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tutu-network/credits/internal/domain"
	"github.com/tutu-network/credits/internal/infra/observability"
)

// Config controls quote computation.
type Config struct {
	ChunkSize         int64           // byte granularity of the storage network (default: 256 KiB)
	InfraFeeMagnitude decimal.Decimal // inclusive fee fraction (default: 0.234)

	// ProcessorMinimums is the smallest charge, in minor units, the card
	// processor accepts per currency.
	ProcessorMinimums map[domain.Currency]int64

	// StaticLimits are the configured payment limits per currency. The usd
	// entry is the base that every other currency is derived from.
	StaticLimits map[domain.Currency]Limits

	// MaxPaymentDigits caps derived limits at 10^digits - 1 minor units.
	MaxPaymentDigits int
}

// DefaultConfig returns production pricing defaults.
func DefaultConfig() Config {
	usd := Limits{Minimum: 500, Maximum: 1_000_000, Suggested: []int64{2500, 5000, 10000}}
	return Config{
		ChunkSize:         256 * 1024,
		InfraFeeMagnitude: decimal.RequireFromString("0.234"),
		ProcessorMinimums: map[domain.Currency]int64{
			domain.USD: 50, domain.EUR: 50, domain.GBP: 30, domain.CAD: 50, domain.AUD: 50,
			domain.INR: 50, domain.SGD: 50, domain.HKD: 400, domain.BRL: 50, domain.JPY: 50,
		},
		StaticLimits: map[domain.Currency]Limits{
			domain.USD: usd,
			domain.EUR: usd,
			domain.GBP: {Minimum: 500, Maximum: 1_000_000, Suggested: []int64{2000, 4000, 8000}},
			domain.JPY: {Minimum: 750, Maximum: 150_000, Suggested: []int64{3750, 7500, 15000}},
		},
		MaxPaymentDigits: 8,
	}
}

// Deps are the engine's collaborators. Oracles are expected to be cached.
type Deps struct {
	Bytes       domain.BytesToCreditOracle
	Fiat        domain.FiatToCreditOracle
	Tokens      domain.TokenToFiatOracle
	Catalog     domain.AdjustmentCatalog
	Eligibility domain.PromoEligibility
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// Engine computes quotes. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	cfg         Config
	bytes       domain.BytesToCreditOracle
	fiat        domain.FiatToCreditOracle
	tokens      domain.TokenToFiatOracle
	catalog     domain.AdjustmentCatalog
	eligibility domain.PromoEligibility
	infraFee    domain.Adjustment
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// New validates cfg and builds an engine.
func New(cfg Config, deps Deps) (*Engine, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("pricing: chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if _, ok := cfg.StaticLimits[domain.USD]; !ok {
		return nil, fmt.Errorf("pricing: usd limits are required")
	}
	if cfg.MaxPaymentDigits <= 0 {
		cfg.MaxPaymentDigits = 8
	}
	fee := domain.Adjustment{
		CatalogID:   "infra_fee",
		Kind:        domain.AdjustInfraFee,
		Name:        "Infrastructure Fee",
		Description: "Inclusive fee on every credit purchase.",
		Operator:    domain.OpMultiply,
		Magnitude:   cfg.InfraFeeMagnitude,
		Exclusivity: domain.Inclusive,
	}
	if err := fee.Validate(); err != nil {
		return nil, fmt.Errorf("pricing: %w", err)
	}
	if fee.Magnitude.Equal(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("pricing: infra fee must be below 1")
	}

	e := &Engine{
		cfg:         cfg,
		bytes:       deps.Bytes,
		fiat:        deps.Fiat,
		tokens:      deps.Tokens,
		catalog:     deps.Catalog,
		eligibility: deps.Eligibility,
		infraFee:    fee,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.Named("pricing")
	return e, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Byte Pricing
// ═══════════════════════════════════════════════════════════════════════════

// BytesQuote is the price of storing a byte count.
type BytesQuote struct {
	ByteCount    int64                      `json:"byteCount"`
	FinalPrice   domain.Winc                `json:"winc"`
	NetworkPrice domain.Winc                `json:"networkWinc"`
	Adjustments  []domain.AppliedAdjustment `json:"adjustments"`
}

// Price rebuilds the staged price the quote was computed from.
func (q BytesQuote) Price() domain.Price {
	p := domain.NewNetworkPrice(q.NetworkPrice)
	for _, a := range q.Adjustments {
		p = p.Apply(a)
	}
	return p.Finalize()
}

// RoundToChunk rounds bytes up to the next multiple of the chunk size.
func (e *Engine) RoundToChunk(bytes int64) int64 {
	if bytes <= 0 {
		return 0
	}
	chunks := (bytes + e.cfg.ChunkSize - 1) / e.cfg.ChunkSize
	return chunks * e.cfg.ChunkSize
}

// PriceForBytes prices bytes for payer. Upload adjustments compound on the
// running total in ascending priority; thresholds in bytes compare against the
// requested count, thresholds in credits against the running total.
func (e *Engine) PriceForBytes(ctx context.Context, bytes int64, payer string) (BytesQuote, error) {
	q, err := e.priceForBytes(ctx, bytes, payer)
	e.countQuote("bytes", err)
	return q, err
}

func (e *Engine) priceForBytes(ctx context.Context, bytes int64, payer string) (BytesQuote, error) {
	if bytes < 0 {
		return BytesQuote{}, domain.ErrInvalidByteCount(bytes)
	}
	network, err := e.bytes.CreditsForBytes(ctx, e.RoundToChunk(bytes))
	if err != nil {
		return BytesQuote{}, asOracleError("bytes", err)
	}

	adjustments, err := e.catalog.ActiveUploadAdjustments(ctx, payer)
	if err != nil {
		return BytesQuote{}, fmt.Errorf("load upload adjustments: %w", err)
	}
	sortByPriority(adjustments)

	price := domain.NewNetworkPrice(network)
	byteCount := decimal.NewFromInt(bytes)
	for _, adj := range adjustments {
		if adj.Threshold != nil {
			subject := price.Subtotal()
			if adj.Threshold.Unit == domain.UnitBytes {
				subject = byteCount
			}
			if !adj.Threshold.Met(subject) {
				continue
			}
		}
		price = price.Apply(adj.Applied(adj.AmountFor(price.Subtotal()), ""))
		e.countAdjustment(adj.CatalogID)
	}
	price = price.Finalize()

	e.logger.Debug("priced bytes",
		zap.Int64("bytes", bytes),
		zap.Stringer("network", price.Network()),
		zap.Stringer("final", price.Final()),
		zap.Int("adjustments", len(price.Adjustments())))

	return BytesQuote{
		ByteCount:    bytes,
		FinalPrice:   price.Final(),
		NetworkPrice: price.Network(),
		Adjustments:  price.Adjustments(),
	}, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Fiat Payment Pricing
// ═══════════════════════════════════════════════════════════════════════════

// PaymentQuote is the credit amount bought by a fiat payment.
//
// QuotedPaymentAmount is what the caller asked to pay; ActualPaymentAmount is
// what the processor is charged after promo discounts (and after the
// processor minimum, see ExcessPaymentAmount).
type PaymentQuote struct {
	FinalPrice           domain.Winc                `json:"finalPrice"`
	NetworkPrice         domain.Winc                `json:"networkWinc"`
	Currency             domain.Currency            `json:"currency"`
	QuotedPaymentAmount  int64                      `json:"quotedPaymentAmount"`
	ActualPaymentAmount  int64                      `json:"actualPaymentAmount"`
	ExcessPaymentAmount  int64                      `json:"excessPaymentAmount"`
	Adjustments          []domain.AppliedAdjustment `json:"adjustments"`
	InclusiveAdjustments []domain.AppliedAdjustment `json:"inclusiveAdjustments"`
	PromoCodes           []string                   `json:"promoCodes,omitempty"`
}

// CreditsForPayment quotes the winc bought by payment after the requested
// promo codes and the inclusive infrastructure fee.
func (e *Engine) CreditsForPayment(ctx context.Context, payment domain.Payment, promoCodes []string, payer string) (PaymentQuote, error) {
	q, err := e.creditsForPayment(ctx, payment, promoCodes, payer)
	e.countQuote("payment", err)
	return q, err
}

func (e *Engine) creditsForPayment(ctx context.Context, payment domain.Payment, promoCodes []string, payer string) (PaymentQuote, error) {
	currency, err := domain.ParseCurrency(string(payment.Currency))
	if err != nil {
		return PaymentQuote{}, err
	}
	if payment.Amount < 0 {
		return PaymentQuote{}, domain.ErrInvalidPaymentAmount(fmt.Sprint(payment.Amount))
	}

	rates, err := e.fiatRates(ctx)
	if err != nil {
		return PaymentQuote{}, err
	}
	limits, err := e.limitsFrom(rates)
	if err != nil {
		return PaymentQuote{}, err
	}
	if l, ok := limits[currency]; ok {
		if payment.Amount < l.Minimum {
			return PaymentQuote{}, domain.ErrPaymentAmountTooSmall(string(currency), l.Minimum)
		}
		if payment.Amount > l.Maximum {
			return PaymentQuote{}, domain.ErrPaymentAmountTooLarge(string(currency), l.Maximum)
		}
	}

	promos, err := e.resolvePromoCodes(ctx, promoCodes, payment.Amount, currency, rates, payer)
	if err != nil {
		return PaymentQuote{}, err
	}

	// Promo codes discount the fiat charge, never below zero.
	running := decimal.NewFromInt(payment.Amount)
	applied := make([]domain.AppliedAdjustment, 0, len(promos))
	codes := make([]string, 0, len(promos))
	for _, p := range promos {
		amount := p.AmountFor(running)
		if running.Add(amount).IsNegative() {
			amount = running.Neg()
		}
		running = running.Add(amount)
		applied = append(applied, p.Applied(amount, currency))
		codes = append(codes, p.PromoCode)
		e.countAdjustment(p.CatalogID)
	}
	actual := running.IntPart()

	actual, excess := e.applyProcessorMinimum(currency, actual)

	network, err := toWinc(actual, currency, rates)
	if err != nil {
		return PaymentQuote{}, err
	}
	price := domain.NewNetworkPrice(network)
	price = price.Apply(e.infraFee.Applied(e.infraFee.AmountFor(price.Subtotal()), ""))
	price = price.Finalize()
	e.countAdjustment(e.infraFee.CatalogID)

	e.logger.Debug("priced payment",
		zap.String("currency", string(currency)),
		zap.Int64("quoted", payment.Amount),
		zap.Int64("actual", actual),
		zap.Int64("excess", excess),
		zap.Stringer("final", price.Final()),
		zap.Strings("promoCodes", codes))

	return PaymentQuote{
		FinalPrice:           price.Final(),
		NetworkPrice:         network,
		Currency:             currency,
		QuotedPaymentAmount:  payment.Amount,
		ActualPaymentAmount:  actual,
		ExcessPaymentAmount:  excess,
		Adjustments:          applied,
		InclusiveAdjustments: price.Adjustments(),
		PromoCodes:           codes,
	}, nil
}

// resolvePromoCodes validates each code in request order and returns the
// adjustments sorted by priority. At most one exclusive code may apply.
func (e *Engine) resolvePromoCodes(ctx context.Context, codes []string, quoted int64, currency domain.Currency, rates map[domain.Currency]float64, payer string) ([]domain.Adjustment, error) {
	var (
		out       []domain.Adjustment
		seen      = make(map[string]bool)
		exclusive string
	)
	for _, raw := range codes {
		code := domain.NormalizedPromoCode(raw)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true

		adj, err := e.catalog.ActivePromoCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if adj.MinimumPaymentAmount > 0 {
			usd, err := toUSDMinor(quoted, currency, rates)
			if err != nil {
				return nil, err
			}
			if usd.LessThan(decimal.NewFromInt(adj.MinimumPaymentAmount)) {
				return nil, domain.ErrPaymentAmountTooSmallForPromo(code, adj.MinimumPaymentAmount)
			}
		}
		if err := e.checkEligibility(ctx, adj, payer); err != nil {
			return nil, err
		}
		if adj.Exclusivity == domain.Exclusive {
			if exclusive != "" {
				return nil, domain.ErrPromoCodeNotCombinable(exclusive, code)
			}
			exclusive = code
		}
		out = append(out, adj)
	}
	sortByPriority(out)
	return out, nil
}

func (e *Engine) checkEligibility(ctx context.Context, adj domain.Adjustment, payer string) error {
	switch adj.TargetUserGroup {
	case "", domain.GroupAll:
		return nil
	case domain.GroupNewUsers:
		if payer == "" || e.eligibility == nil {
			return domain.ErrUserIneligibleForPromoCode(adj.PromoCode, payer)
		}
		hasHistory, err := e.eligibility.HasPaymentHistory(ctx, payer)
		if err != nil {
			return fmt.Errorf("check payment history: %w", err)
		}
		if hasHistory {
			return domain.ErrUserIneligibleForPromoCode(adj.PromoCode, payer)
		}
		return nil
	default:
		return domain.ErrUserIneligibleForPromoCode(adj.PromoCode, payer)
	}
}

// applyProcessorMinimum raises a discounted charge that fell below what the
// card processor accepts. The difference is charged and bought as credits.
// A zero charge (fully discounted) is left alone.
func (e *Engine) applyProcessorMinimum(currency domain.Currency, actual int64) (charged, excess int64) {
	floor := e.cfg.ProcessorMinimums[currency]
	if actual > 0 && actual < floor {
		return floor, floor - actual
	}
	return actual, 0
}

// ═══════════════════════════════════════════════════════════════════════════
// Crypto Payment Pricing
// ═══════════════════════════════════════════════════════════════════════════

// CryptoQuote is the credit value of a token amount.
type CryptoQuote struct {
	Token                domain.Token               `json:"token"`
	TokenAmount          domain.Winc                `json:"tokenAmount"`
	FinalPrice           domain.Winc                `json:"finalPrice"`
	NetworkPrice         domain.Winc                `json:"networkWinc"`
	FeeMode              domain.FeeMode             `json:"feeMode"`
	InclusiveAdjustments []domain.AppliedAdjustment `json:"inclusiveAdjustments"`
}

// CreditsForCryptoPayment converts amount, in the token's smallest unit, to
// winc at the token's usd rate over the base token's usd rate.
//
//	standard → the infra fee is subtracted (crediting inbound transfers)
//	invert   → the infra fee is added on top (grossed-up quotes)
//	none     → no fee
func (e *Engine) CreditsForCryptoPayment(ctx context.Context, amount domain.Winc, token domain.Token, mode domain.FeeMode) (CryptoQuote, error) {
	q, err := e.creditsForCryptoPayment(ctx, amount, token, mode)
	e.countQuote("crypto", err)
	return q, err
}

func (e *Engine) creditsForCryptoPayment(ctx context.Context, amount domain.Winc, token domain.Token, mode domain.FeeMode) (CryptoQuote, error) {
	token, err := domain.ParseToken(string(token))
	if err != nil {
		return CryptoQuote{}, err
	}
	parsed, ok := domain.ParseFeeMode(string(mode))
	if !ok {
		return CryptoQuote{}, domain.ErrInvalidRequest(fmt.Sprintf("unknown fee mode %q", mode))
	}
	mode = parsed

	rates, err := e.tokens.RatesForAllTokens(ctx)
	if err != nil {
		return CryptoQuote{}, asOracleError("token", err)
	}
	tokenUSD := rates[token][domain.USD]
	baseUSD := rates[domain.CreditBaseToken][domain.USD]
	if tokenUSD <= 0 || baseUSD <= 0 {
		return CryptoQuote{}, domain.ErrOracleUnavailable("token", fmt.Errorf("no usd rate for %s", token))
	}

	// winc = amount / 10^exp * tokenUSD / baseUSD * 10^12
	numerator := amount.Decimal().Mul(decimal.NewFromFloat(tokenUSD)).Mul(domain.WincPerCredit)
	denominator := decimal.NewFromFloat(baseUSD).Mul(decimal.New(1, token.Info().Exponent))
	network := domain.FloorWinc(numerator.DivRound(denominator, 6))

	price := domain.NewNetworkPrice(network)
	switch mode {
	case domain.FeeModeStandard:
		price = price.Apply(e.infraFee.Applied(e.infraFee.AmountFor(price.Subtotal()), ""))
	case domain.FeeModeInvert:
		keep := decimal.NewFromInt(1).Sub(e.infraFee.Magnitude)
		gross := network.Decimal().DivRound(keep, 6).Ceil()
		price = price.Apply(e.infraFee.Applied(gross.Sub(network.Decimal()), ""))
	case domain.FeeModeNone:
	}
	price = price.Finalize()

	return CryptoQuote{
		Token:                token,
		TokenAmount:          amount,
		FinalPrice:           price.Final(),
		NetworkPrice:         network,
		FeeMode:              mode,
		InclusiveAdjustments: price.Adjustments(),
	}, nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// sortByPriority orders adjustments ascending by priority, ties by catalog id.
func sortByPriority(adjustments []domain.Adjustment) {
	sort.SliceStable(adjustments, func(i, j int) bool {
		if adjustments[i].Priority != adjustments[j].Priority {
			return adjustments[i].Priority < adjustments[j].Priority
		}
		return adjustments[i].CatalogID < adjustments[j].CatalogID
	})
}

func (e *Engine) fiatRates(ctx context.Context) (map[domain.Currency]float64, error) {
	rates, err := e.fiat.RatesForOneCreditUnit(ctx)
	if err != nil {
		return nil, asOracleError("fiat", err)
	}
	if rates[domain.USD] <= 0 {
		return nil, domain.ErrOracleUnavailable("fiat", fmt.Errorf("no usd rate"))
	}
	return rates, nil
}

// toWinc converts minor units of currency to winc:
// floor(amount * 10^12 / (rate * 10^exp)).
func toWinc(amount int64, currency domain.Currency, rates map[domain.Currency]float64) (domain.Winc, error) {
	rate := rates[currency]
	if rate <= 0 {
		return domain.Winc{}, domain.ErrOracleUnavailable("fiat", fmt.Errorf("no rate for %s", currency))
	}
	numerator := decimal.NewFromInt(amount).Mul(domain.WincPerCredit)
	denominator := decimal.NewFromFloat(rate).Mul(currency.MinorPerMajor())
	return domain.FloorWinc(numerator.DivRound(denominator, 6)), nil
}

// toUSDMinor converts minor units of currency to usd cents at the fiat rates.
func toUSDMinor(amount int64, currency domain.Currency, rates map[domain.Currency]float64) (decimal.Decimal, error) {
	if currency == domain.USD {
		return decimal.NewFromInt(amount), nil
	}
	rate := rates[currency]
	if rate <= 0 {
		return decimal.Zero, domain.ErrOracleUnavailable("fiat", fmt.Errorf("no rate for %s", currency))
	}
	major := decimal.NewFromInt(amount).DivRound(currency.MinorPerMajor(), 8)
	usdMajor := major.Mul(decimal.NewFromFloat(rates[domain.USD])).DivRound(decimal.NewFromFloat(rate), 8)
	return usdMajor.Mul(domain.USD.MinorPerMajor()), nil
}

// asOracleError keeps domain errors intact and wraps anything else.
func asOracleError(oracle string, err error) error {
	if domain.KindOf(err) != "" {
		return err
	}
	return domain.ErrOracleUnavailable(oracle, err)
}

func (e *Engine) countQuote(kind string, err error) {
	if e.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(domain.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	e.metrics.Quotes.WithLabelValues(kind, outcome).Inc()
}

func (e *Engine) countAdjustment(catalogID string) {
	if e.metrics != nil {
		e.metrics.AdjustmentsApplied.WithLabelValues(catalogID).Inc()
	}
}
