package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutu-network/credits/internal/domain"
	"github.com/tutu-network/credits/internal/infra/observability"
	"github.com/tutu-network/credits/internal/infra/oracle/mocks"
)

// ═══════════════════════════════════════════════════════════════════════════
// Pricing Engine Tests
// ═══════════════════════════════════════════════════════════════════════════

type fixture struct {
	bytes       *mocks.MockBytesToCreditOracle
	fiat        *mocks.MockFiatToCreditOracle
	tokens      *mocks.MockTokenToFiatOracle
	catalog     *mocks.MockAdjustmentCatalog
	eligibility *mocks.MockPromoEligibility
	reg         *prometheus.Registry
	engine      *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		bytes:       mocks.NewMockBytesToCreditOracle(ctrl),
		fiat:        mocks.NewMockFiatToCreditOracle(ctrl),
		tokens:      mocks.NewMockTokenToFiatOracle(ctrl),
		catalog:     mocks.NewMockAdjustmentCatalog(ctrl),
		eligibility: mocks.NewMockPromoEligibility(ctrl),
		reg:         prometheus.NewRegistry(),
	}
	engine, err := New(DefaultConfig(), Deps{
		Bytes:       f.bytes,
		Fiat:        f.fiat,
		Tokens:      f.tokens,
		Catalog:     f.catalog,
		Eligibility: f.eligibility,
		Metrics:     observability.NewMetrics(f.reg),
	})
	require.NoError(t, err)
	f.engine = engine
	return f
}

// One credit costs 20 usd, 16 eur, 3000 jpy, 2400 inr.
func (f *fixture) withFiatRates() {
	f.fiat.EXPECT().RatesForOneCreditUnit(gomock.Any()).Return(map[domain.Currency]float64{
		domain.USD: 20, domain.EUR: 16, domain.JPY: 3000, domain.INR: 2400,
	}, nil).AnyTimes()
}

func (f *fixture) withNoUploadAdjustments() {
	f.catalog.EXPECT().ActiveUploadAdjustments(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
}

func winc(n int64) domain.Winc { return domain.NewWinc(n) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func uploadAdj(id string, priority int, op domain.Operator, magnitude string) domain.Adjustment {
	return domain.Adjustment{
		CatalogID:   id,
		Kind:        domain.AdjustUpload,
		Name:        id,
		Operator:    op,
		Magnitude:   dec(magnitude),
		Priority:    priority,
		Exclusivity: domain.Inclusive,
	}
}

func promoAdj(code string, op domain.Operator, magnitude string) domain.Adjustment {
	return domain.Adjustment{
		CatalogID:   "promo-" + code,
		Kind:        domain.AdjustPaymentPromo,
		Name:        code,
		Operator:    op,
		Magnitude:   dec(magnitude),
		Exclusivity: domain.Exclusive,
		PromoCode:   code,
	}
}

func assertWinc(t *testing.T, want int64, got domain.Winc, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, got.Equal(winc(want)), "got %s, want %d %v", got, want, msgAndArgs)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

// ─── Construction ───────────────────────────────────────────────────────────

func TestNew_RejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkSize = 0
	_, err := New(cfg, Deps{})
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.InfraFeeMagnitude = dec("1.5")
	_, err = New(cfg, Deps{})
	assert.True(t, domain.IsKind(err, domain.KindInvalidAdjustment), "err = %v", err)

	cfg = DefaultConfig()
	delete(cfg.StaticLimits, domain.USD)
	_, err = New(cfg, Deps{})
	assert.Error(t, err)
}

// ─── Byte Pricing ───────────────────────────────────────────────────────────

func TestRoundToChunk(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		in, want int64
	}{
		{0, 0},
		{1, 262144},
		{262144, 262144},
		{262145, 524288},
		{1_048_576, 1_048_576},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, f.engine.RoundToChunk(tt.in), "RoundToChunk(%d)", tt.in)
	}
}

func TestPriceForBytes_QueriesOracleWithChunk(t *testing.T) {
	f := newFixture(t)
	f.withNoUploadAdjustments()
	f.bytes.EXPECT().CreditsForBytes(gomock.Any(), int64(262144)).Return(winc(777), nil)

	q, err := f.engine.PriceForBytes(context.Background(), 1, "")
	require.NoError(t, err)
	assertWinc(t, 777, q.FinalPrice)
	assertWinc(t, 777, q.NetworkPrice)
	assert.Empty(t, q.Adjustments)
	assert.Equal(t, int64(1), q.ByteCount)
}

func TestPriceForBytes_FlatDiscountExample(t *testing.T) {
	f := newFixture(t)
	f.bytes.EXPECT().CreditsForBytes(gomock.Any(), int64(1_048_576)).Return(winc(1_048_576), nil)
	f.catalog.EXPECT().ActiveUploadAdjustments(gomock.Any(), "payer").Return([]domain.Adjustment{
		uploadAdj("launch", 1, domain.OpAdd, "-1000000"),
	}, nil)

	q, err := f.engine.PriceForBytes(context.Background(), 1_048_576, "payer")
	require.NoError(t, err)
	assertWinc(t, 48576, q.FinalPrice)
	require.Len(t, q.Adjustments, 1)
	assert.True(t, q.Adjustments[0].AdjustmentAmount.Equal(dec("-1000000")))
	assert.Equal(t, 1.0, counterValue(t, f.reg, "credits_pricing_adjustments_applied_total", map[string]string{"catalog_id": "launch"}))
}

func TestPriceForBytes_CompoundsInPriorityOrder(t *testing.T) {
	f := newFixture(t)
	f.bytes.EXPECT().CreditsForBytes(gomock.Any(), gomock.Any()).Return(winc(1000), nil)
	// Returned out of order: the engine must sort.
	f.catalog.EXPECT().ActiveUploadAdjustments(gomock.Any(), gomock.Any()).Return([]domain.Adjustment{
		uploadAdj("half", 2, domain.OpMultiply, "0.5"),
		uploadAdj("flat", 1, domain.OpAdd, "-100"),
	}, nil)

	q, err := f.engine.PriceForBytes(context.Background(), 10, "")
	require.NoError(t, err)
	// 1000 - 100 = 900, then 900 - floor(900 * 0.5) = 450.
	assertWinc(t, 450, q.FinalPrice)
	require.Len(t, q.Adjustments, 2)
	assert.Equal(t, "flat", q.Adjustments[0].CatalogID)
	assert.Equal(t, "half", q.Adjustments[1].CatalogID)
	assert.True(t, q.Adjustments[1].AdjustmentAmount.Equal(dec("-450")))
}

func TestPriceForBytes_Thresholds(t *testing.T) {
	smallUploads := uploadAdj("small", 1, domain.OpMultiply, "1")
	smallUploads.Threshold = &domain.Threshold{Unit: domain.UnitBytes, Comparator: domain.LessThan, Value: dec("500000")}
	bigSpend := uploadAdj("big", 2, domain.OpAdd, "-10")
	bigSpend.Threshold = &domain.Threshold{Unit: domain.UnitCredits, Comparator: domain.GreaterThan, Value: dec("1000")}

	tests := []struct {
		name    string
		bytes   int64
		network int64
		want    int64
		applied []string
	}{
		{"small upload is free", 100, 5000, 0, []string{"small"}},
		{"large upload over credit threshold", 1_000_000, 5000, 4990, []string{"big"}},
		{"large upload under credit threshold", 1_000_000, 900, 900, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.bytes.EXPECT().CreditsForBytes(gomock.Any(), gomock.Any()).Return(winc(tt.network), nil)
			f.catalog.EXPECT().ActiveUploadAdjustments(gomock.Any(), gomock.Any()).
				Return([]domain.Adjustment{smallUploads, bigSpend}, nil)

			q, err := f.engine.PriceForBytes(context.Background(), tt.bytes, "")
			require.NoError(t, err)
			assertWinc(t, tt.want, q.FinalPrice)
			var ids []string
			for _, a := range q.Adjustments {
				ids = append(ids, a.CatalogID)
			}
			assert.Equal(t, tt.applied, ids)
		})
	}
}

func TestPriceForBytes_DiscountCapAndClamp(t *testing.T) {
	capped := uploadAdj("capped", 1, domain.OpMultiply, "0.5")
	maxDiscount := dec("100")
	capped.MaxDiscountAmount = &maxDiscount
	huge := uploadAdj("huge", 2, domain.OpAdd, "-5000")

	f := newFixture(t)
	f.bytes.EXPECT().CreditsForBytes(gomock.Any(), gomock.Any()).Return(winc(1000), nil)
	f.catalog.EXPECT().ActiveUploadAdjustments(gomock.Any(), gomock.Any()).Return([]domain.Adjustment{capped, huge}, nil)

	q, err := f.engine.PriceForBytes(context.Background(), 10, "")
	require.NoError(t, err)
	assert.True(t, q.Adjustments[0].AdjustmentAmount.Equal(dec("-100")), "cap: %s", q.Adjustments[0].AdjustmentAmount)
	assertWinc(t, 0, q.FinalPrice, "final price clamps at zero")
}

func TestPriceForBytes_NonDecreasingWithoutAdjustments(t *testing.T) {
	f := newFixture(t)
	f.withNoUploadAdjustments()
	f.bytes.EXPECT().CreditsForBytes(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, b int64) (domain.Winc, error) { return winc(b * 3), nil }).AnyTimes()

	prev := domain.ZeroWinc
	for _, b := range []int64{0, 1, 1000, 262144, 262145, 600_000, 1 << 20, 5 << 20, 1 << 30} {
		q, err := f.engine.PriceForBytes(context.Background(), b, "")
		require.NoError(t, err)
		assert.False(t, q.FinalPrice.LessThan(prev), "price(%d) = %s < %s", b, q.FinalPrice, prev)
		prev = q.FinalPrice
	}
}

func TestPriceForBytes_Errors(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.PriceForBytes(context.Background(), -1, "")
	assert.True(t, domain.IsKind(err, domain.KindInvalidByteCount), "err = %v", err)

	f.bytes.EXPECT().CreditsForBytes(gomock.Any(), gomock.Any()).Return(domain.Winc{}, errors.New("connection refused"))
	_, err = f.engine.PriceForBytes(context.Background(), 10, "")
	assert.True(t, domain.IsKind(err, domain.KindOracleUnavailable), "err = %v", err)

	assert.Equal(t, 1.0, counterValue(t, f.reg, "credits_pricing_quotes_total",
		map[string]string{"kind": "bytes", "outcome": string(domain.KindOracleUnavailable)}))
}

// ─── Fiat Payment Pricing ───────────────────────────────────────────────────

func TestCreditsForPayment_PromoAndInfraFee(t *testing.T) {
	f := newFixture(t)
	f.withFiatRates()
	f.catalog.EXPECT().ActivePromoCode(gomock.Any(), "SAVE20").Return(promoAdj("SAVE20", domain.OpMultiply, "0.2"), nil)

	q, err := f.engine.CreditsForPayment(context.Background(),
		domain.Payment{Amount: 10000, Currency: domain.USD}, []string{" save20 "}, "payer")
	require.NoError(t, err)

	assert.Equal(t, int64(10000), q.QuotedPaymentAmount)
	assert.Equal(t, int64(8000), q.ActualPaymentAmount)
	assert.Zero(t, q.ExcessPaymentAmount)
	// 8000 cents at 20 usd per credit = 4 credits; fee floor(4e12 * 0.234).
	assertWinc(t, 4_000_000_000_000, q.NetworkPrice)
	assertWinc(t, 3_064_000_000_000, q.FinalPrice)

	require.Len(t, q.Adjustments, 1)
	assert.True(t, q.Adjustments[0].AdjustmentAmount.Equal(dec("-2000")))
	assert.Equal(t, domain.USD, q.Adjustments[0].CurrencyType)
	require.Len(t, q.InclusiveAdjustments, 1)
	assert.Equal(t, "infra_fee", q.InclusiveAdjustments[0].CatalogID)
	assert.True(t, q.InclusiveAdjustments[0].AdjustmentAmount.Equal(dec("-936000000000")))
	assert.Equal(t, []string{"SAVE20"}, q.PromoCodes)
}

func TestCreditsForPayment_Validation(t *testing.T) {
	tests := []struct {
		name    string
		payment domain.Payment
		want    domain.ErrorKind
	}{
		{"unsupported currency", domain.Payment{Amount: 1000, Currency: "xyz"}, domain.KindUnsupportedCurrency},
		{"negative amount", domain.Payment{Amount: -1, Currency: domain.USD}, domain.KindInvalidPaymentAmount},
		{"below minimum", domain.Payment{Amount: 499, Currency: domain.USD}, domain.KindPaymentAmountTooSmall},
		{"above maximum", domain.Payment{Amount: 1_000_001, Currency: domain.USD}, domain.KindPaymentAmountTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.withFiatRates()
			_, err := f.engine.CreditsForPayment(context.Background(), tt.payment, nil, "")
			assert.True(t, domain.IsKind(err, tt.want), "err = %v, want %s", err, tt.want)
		})
	}
}

func TestCreditsForPayment_PromoErrors(t *testing.T) {
	f := newFixture(t)
	f.withFiatRates()
	ctx := context.Background()
	usd := domain.Payment{Amount: 10000, Currency: domain.USD}

	// Not found / expired come straight from the catalog.
	f.catalog.EXPECT().ActivePromoCode(gomock.Any(), "GONE").Return(domain.Adjustment{}, domain.ErrPromoCodeExpired("GONE"))
	_, err := f.engine.CreditsForPayment(ctx, usd, []string{"gone"}, "payer")
	assert.True(t, domain.IsKind(err, domain.KindPromoCodeExpired), "err = %v", err)

	// Two exclusive codes.
	f.catalog.EXPECT().ActivePromoCode(gomock.Any(), "A").Return(promoAdj("A", domain.OpMultiply, "0.1"), nil)
	f.catalog.EXPECT().ActivePromoCode(gomock.Any(), "B").Return(promoAdj("B", domain.OpMultiply, "0.1"), nil)
	_, err = f.engine.CreditsForPayment(ctx, usd, []string{"A", "B"}, "payer")
	assert.True(t, domain.IsKind(err, domain.KindPromoCodeNotCombinable), "err = %v", err)

	// Minimum payment checked against the quoted amount in usd cents.
	big := promoAdj("BIG", domain.OpMultiply, "0.1")
	big.MinimumPaymentAmount = 20000
	f.catalog.EXPECT().ActivePromoCode(gomock.Any(), "BIG").Return(big, nil).Times(2)
	_, err = f.engine.CreditsForPayment(ctx, usd, []string{"BIG"}, "payer")
	assert.True(t, domain.IsKind(err, domain.KindPaymentAmountTooSmallForPromo), "err = %v", err)
	// 20000 eur cents is 25000 usd cents at 16 eur / 20 usd.
	_, err = f.engine.CreditsForPayment(ctx, domain.Payment{Amount: 20000, Currency: domain.EUR}, []string{"BIG"}, "payer")
	assert.NoError(t, err)
}

func TestCreditsForPayment_NewUsersOnly(t *testing.T) {
	welcome := promoAdj("WELCOME", domain.OpMultiply, "0.5")
	welcome.TargetUserGroup = domain.GroupNewUsers
	usd := domain.Payment{Amount: 10000, Currency: domain.USD}

	f := newFixture(t)
	f.withFiatRates()
	f.catalog.EXPECT().ActivePromoCode(gomock.Any(), "WELCOME").Return(welcome, nil).AnyTimes()
	f.eligibility.EXPECT().HasPaymentHistory(gomock.Any(), "veteran").Return(true, nil)
	f.eligibility.EXPECT().HasPaymentHistory(gomock.Any(), "newcomer").Return(false, nil)

	_, err := f.engine.CreditsForPayment(context.Background(), usd, []string{"WELCOME"}, "veteran")
	assert.True(t, domain.IsKind(err, domain.KindUserIneligibleForPromoCode), "err = %v", err)

	_, err = f.engine.CreditsForPayment(context.Background(), usd, []string{"WELCOME"}, "")
	assert.True(t, domain.IsKind(err, domain.KindUserIneligibleForPromoCode), "anonymous payer: err = %v", err)

	q, err := f.engine.CreditsForPayment(context.Background(), usd, []string{"WELCOME"}, "newcomer")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), q.ActualPaymentAmount)
}

func TestCreditsForPayment_ProcessorMinimum(t *testing.T) {
	f := newFixture(t)
	f.withFiatRates()
	f.catalog.EXPECT().ActivePromoCode(gomock.Any(), "ALMOST").Return(promoAdj("ALMOST", domain.OpAdd, "-9980"), nil)

	q, err := f.engine.CreditsForPayment(context.Background(),
		domain.Payment{Amount: 10000, Currency: domain.USD}, []string{"ALMOST"}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(50), q.ActualPaymentAmount)
	assert.Equal(t, int64(30), q.ExcessPaymentAmount)
	// The charged 50 cents buy credits, not the discounted 20.
	assertWinc(t, 25_000_000_000, q.NetworkPrice)
	assertWinc(t, 19_150_000_000, q.FinalPrice)
}

func TestCreditsForPayment_FullyDiscounted(t *testing.T) {
	f := newFixture(t)
	f.withFiatRates()
	f.catalog.EXPECT().ActivePromoCode(gomock.Any(), "FREE").Return(promoAdj("FREE", domain.OpAdd, "-50000"), nil)

	q, err := f.engine.CreditsForPayment(context.Background(),
		domain.Payment{Amount: 10000, Currency: domain.USD}, []string{"FREE"}, "")
	require.NoError(t, err)
	assert.Zero(t, q.ActualPaymentAmount)
	assert.Zero(t, q.ExcessPaymentAmount)
	assert.True(t, q.Adjustments[0].AdjustmentAmount.Equal(dec("-10000")), "discount clamps at the charge")
	assertWinc(t, 0, q.FinalPrice)
}

func TestCreditsForPayment_OracleDown(t *testing.T) {
	f := newFixture(t)
	f.fiat.EXPECT().RatesForOneCreditUnit(gomock.Any()).Return(nil, errors.New("timeout"))
	_, err := f.engine.CreditsForPayment(context.Background(), domain.Payment{Amount: 1000, Currency: domain.USD}, nil, "")
	assert.True(t, domain.IsKind(err, domain.KindOracleUnavailable), "err = %v", err)
}

// ─── Crypto Pricing ─────────────────────────────────────────────────────────

func TestCreditsForCryptoPayment_FeeModes(t *testing.T) {
	oneEth := domain.NewWinc(1_000_000_000_000_000_000)
	tests := []struct {
		mode domain.FeeMode
		want int64
	}{
		{domain.FeeModeNone, 150_000_000_000_000},
		{domain.FeeModeStandard, 114_900_000_000_000},
		{domain.FeeModeInvert, 195_822_454_308_094},
		{"", 114_900_000_000_000},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			f := newFixture(t)
			f.tokens.EXPECT().RatesForAllTokens(gomock.Any()).Return(map[domain.Token]map[domain.Currency]float64{
				domain.TokenArweave:  {domain.USD: 20},
				domain.TokenEthereum: {domain.USD: 3000},
			}, nil)

			q, err := f.engine.CreditsForCryptoPayment(context.Background(), oneEth, domain.TokenEthereum, tt.mode)
			require.NoError(t, err)
			// 1 eth = 3000 usd = 150 credits.
			assertWinc(t, 150_000_000_000_000, q.NetworkPrice)
			assertWinc(t, tt.want, q.FinalPrice)
		})
	}
}

func TestCreditsForCryptoPayment_Errors(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.CreditsForCryptoPayment(context.Background(), winc(1), "dogecoin", domain.FeeModeNone)
	assert.True(t, domain.IsKind(err, domain.KindUnsupportedToken), "err = %v", err)

	f.tokens.EXPECT().RatesForAllTokens(gomock.Any()).Return(map[domain.Token]map[domain.Currency]float64{
		domain.TokenArweave: {domain.USD: 20},
	}, nil)
	_, err = f.engine.CreditsForCryptoPayment(context.Background(), winc(1), domain.TokenSolana, domain.FeeModeNone)
	assert.True(t, domain.IsKind(err, domain.KindOracleUnavailable), "err = %v", err)

	_, err = f.engine.CreditsForCryptoPayment(context.Background(), winc(1), domain.TokenSolana, "double")
	assert.True(t, domain.IsKind(err, domain.KindInvalidRequest), "err = %v", err)
	assert.Equal(t, 400, domain.KindOf(err).HTTPStatus())
}

// ─── Currency Limits ────────────────────────────────────────────────────────

func TestCurrencyLimits(t *testing.T) {
	f := newFixture(t)
	f.withFiatRates()

	limits, err := f.engine.CurrencyLimits(context.Background())
	require.NoError(t, err)
	require.Len(t, limits, 4)

	usd := limits[domain.USD]
	assert.Equal(t, int64(500), usd.Minimum)
	assert.Equal(t, int64(1_000_000), usd.Maximum)
	assert.Equal(t, []int64{2500, 5000, 10000}, usd.Suggested)

	// eur at 0.8 per usd is 20% off the static limits: derived values win.
	eur := limits[domain.EUR]
	assert.Equal(t, int64(400), eur.Minimum)
	assert.Equal(t, int64(800_000), eur.Maximum)
	assert.Equal(t, []int64{2000, 4000, 8000}, eur.Suggested)

	// jpy at 150 per usd matches its static minimum; maximum has no close static value.
	jpy := limits[domain.JPY]
	assert.True(t, jpy.ZeroDecimal)
	assert.Equal(t, int64(750), jpy.Minimum)
	assert.Equal(t, int64(1_500_000), jpy.Maximum)

	// inr at 120 per usd would exceed the processor's digit ceiling.
	inr := limits[domain.INR]
	assert.Equal(t, int64(60_000), inr.Minimum)
	assert.Equal(t, int64(99_999_999), inr.Maximum)
}

func TestCurrencyLimits_StaticWinsWithinTolerance(t *testing.T) {
	f := newFixture(t)
	// 0.91 eur per usd: min derives to 4.60 eur, within 10% of 5.00.
	f.fiat.EXPECT().RatesForOneCreditUnit(gomock.Any()).Return(map[domain.Currency]float64{
		domain.USD: 20, domain.EUR: 18.2,
	}, nil)

	limits, err := f.engine.CurrencyLimits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(500), limits[domain.EUR].Minimum)
	assert.Equal(t, int64(1_000_000), limits[domain.EUR].Maximum)
}

func TestSnapSignificant(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{4.56, 4.6},
		{1234, 1200},
		{0.0634, 0.063},
		{850000, 850000},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, snapSignificant(tt.in, 2), 1e-9, "snapSignificant(%v)", tt.in)
	}
}
