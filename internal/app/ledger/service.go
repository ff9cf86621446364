// Package ledger is the credit ledger service: reservations against balances
// and delegated approvals, approval management, and idempotent crediting of
// fiat receipts and crypto transfers.
//
// The service validates requests, prices them through the pricing engine and
// hands every balance mutation to a domain.LedgerStore, which commits it as
// one atomic transaction.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tutu-network/credits/internal/app/pricing"
	"github.com/tutu-network/credits/internal/domain"
	"github.com/tutu-network/credits/internal/infra/observability"
)

// Pricer is the part of the pricing engine the ledger needs.
type Pricer interface {
	PriceForBytes(ctx context.Context, bytes int64, payer string) (pricing.BytesQuote, error)
	CreditsForCryptoPayment(ctx context.Context, amount domain.Winc, token domain.Token, mode domain.FeeMode) (pricing.CryptoQuote, error)
}

// Config controls ledger behavior.
type Config struct {
	// ReceivingWallets is the service's deposit address per token. Crypto
	// payments to any other recipient are rejected.
	ReceivingWallets map[domain.Token]string

	// PaymentExpiry is how long a crypto payment may stay unconfirmed before
	// reconciliation fails it (default: 24h).
	PaymentExpiry time.Duration
}

// DefaultConfig returns ledger defaults with no receiving wallets.
func DefaultConfig() Config {
	return Config{
		ReceivingWallets: map[domain.Token]string{},
		PaymentExpiry:    24 * time.Hour,
	}
}

// Deps are the service's collaborators. Gateways, Tracer, Metrics and Logger
// may be nil.
type Deps struct {
	Store    domain.LedgerStore
	Pricer   Pricer
	Catalog  domain.AdjustmentCatalog
	Gateways map[domain.Token]domain.TransactionGateway
	Tracer   *observability.Tracer
	Metrics  *observability.Metrics
	Logger   *zap.Logger
	Now      func() time.Time
}

// Service is the credit ledger.
type Service struct {
	cfg      Config
	store    domain.LedgerStore
	pricer   Pricer
	catalog  domain.AdjustmentCatalog
	gateways map[domain.Token]domain.TransactionGateway
	tracer   *observability.Tracer
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a ledger service.
func New(cfg Config, deps Deps) *Service {
	if cfg.PaymentExpiry <= 0 {
		cfg.PaymentExpiry = DefaultConfig().PaymentExpiry
	}
	s := &Service{
		cfg:      cfg,
		store:    deps.Store,
		pricer:   deps.Pricer,
		catalog:  deps.Catalog,
		gateways: deps.Gateways,
		tracer:   deps.Tracer,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("ledger")
	if s.now == nil {
		s.now = time.Now
	}
	if s.gateways == nil {
		s.gateways = map[domain.Token]domain.TransactionGateway{}
	}
	return s
}

// ═══════════════════════════════════════════════════════════════════════════
// Reservations
// ═══════════════════════════════════════════════════════════════════════════

// ReserveRequest asks to hold the price of ByteCount bytes for one data item.
// Payers are tried in order through their approvals to the signer before the
// signer's own balance.
type ReserveRequest struct {
	SignerAddress string   `json:"signerAddress"`
	DataItemID    string   `json:"dataItemId"`
	ByteCount     int64    `json:"byteCount"`
	Payers        []string `json:"paidBy,omitempty"`
}

// ReserveBalance prices the upload and reserves it all-or-nothing.
func (s *Service) ReserveBalance(ctx context.Context, req ReserveRequest) (res domain.Reservation, err error) {
	span := s.tracer.StartSpan(ctx, "ledger.reserve", map[string]string{
		"signer":     req.SignerAddress,
		"dataItemId": req.DataItemID,
	})
	defer func() {
		s.tracer.EndSpan(span, err)
		s.countReservation(outcome(err, "reserved"))
	}()

	if req.SignerAddress == "" {
		return domain.Reservation{}, domain.ErrUserNotFound(req.SignerAddress)
	}
	quote, err := s.pricer.PriceForBytes(ctx, req.ByteCount, req.SignerAddress)
	if err != nil {
		return domain.Reservation{}, err
	}

	res, err = s.store.ReserveBalanceAtomic(ctx, domain.ReserveSpec{
		SignerAddress: req.SignerAddress,
		DataItemID:    req.DataItemID,
		ByteCount:     req.ByteCount,
		Price:         quote.Price(),
		Payers:        req.Payers,
		Now:           s.now(),
	})
	if err != nil {
		s.logger.Debug("reservation rejected",
			zap.String("signer", req.SignerAddress),
			zap.String("dataItemId", req.DataItemID),
			zap.Error(err))
		return domain.Reservation{}, err
	}

	if s.metrics != nil {
		s.metrics.ReservedWinc.Add(res.ReservedWincAmount.Float64())
	}
	s.logger.Info("balance reserved",
		zap.String("signer", res.SignerAddress),
		zap.String("dataItemId", res.DataItemID),
		zap.Stringer("winc", res.ReservedWincAmount),
		zap.Int("payers", len(res.Payers)))
	return res, nil
}

// RefundBalance reverses a pending reservation. refunded is false when the
// reservation was already resolved; nothing is credited twice.
func (s *Service) RefundBalance(ctx context.Context, signer, dataItemID string) (res domain.Reservation, refunded bool, err error) {
	span := s.tracer.StartSpan(ctx, "ledger.refund", map[string]string{"signer": signer, "dataItemId": dataItemID})
	defer func() {
		s.tracer.EndSpan(span, err)
		result := "refunded"
		if err == nil && !refunded {
			result = "noop"
		}
		s.countRefund(outcome(err, result))
	}()

	res, refunded, err = s.store.RefundBalance(ctx, signer, dataItemID, s.now())
	if err != nil {
		return domain.Reservation{}, false, err
	}
	if refunded {
		s.logger.Info("reservation refunded",
			zap.String("signer", signer),
			zap.String("dataItemId", dataItemID),
			zap.Stringer("winc", res.ReservedWincAmount))
	}
	return res, refunded, nil
}

// FinalizeReservation makes a pending reservation a permanent debit.
func (s *Service) FinalizeReservation(ctx context.Context, dataItemID string) (res domain.Reservation, err error) {
	span := s.tracer.StartSpan(ctx, "ledger.finalize", map[string]string{"dataItemId": dataItemID})
	defer func() { s.tracer.EndSpan(span, err) }()

	return s.store.FinalizeReservation(ctx, dataItemID, s.now())
}

// GetBalance returns the balance view for address.
func (s *Service) GetBalance(ctx context.Context, address string) (domain.Balance, error) {
	return s.store.GetBalance(ctx, address, s.now())
}

// ═══════════════════════════════════════════════════════════════════════════
// Approvals
// ═══════════════════════════════════════════════════════════════════════════

// ApprovalRequest grants ApprovedAddress the right to spend WincAmount of
// PayingAddress's balance. ExpiresIn of zero means no expiry; a scoped
// approval funds only the named data item, once.
type ApprovalRequest struct {
	PayingAddress   string        `json:"payingAddress"`
	ApprovedAddress string        `json:"approvedAddress"`
	WincAmount      domain.Winc   `json:"winc"`
	ExpiresIn       time.Duration `json:"-"`
	ScopeDataItemID string        `json:"scopeDataItemId,omitempty"`
}

// CreateApproval validates req and locks the approved amount out of the
// payer's balance.
func (s *Service) CreateApproval(ctx context.Context, req ApprovalRequest) (a domain.Approval, err error) {
	span := s.tracer.StartSpan(ctx, "ledger.approve", map[string]string{
		"payer":    req.PayingAddress,
		"approved": req.ApprovedAddress,
	})
	defer func() { s.tracer.EndSpan(span, err) }()

	switch {
	case req.PayingAddress == "" || req.ApprovedAddress == "":
		return domain.Approval{}, domain.ErrApprovalInvalid("paying and approved addresses are required")
	case req.PayingAddress == req.ApprovedAddress:
		return domain.Approval{}, domain.ErrApprovalInvalid("an address cannot approve itself")
	case req.WincAmount.IsZero():
		return domain.Approval{}, domain.ErrApprovalInvalid("approved amount must be positive")
	case req.ExpiresIn < 0:
		return domain.Approval{}, domain.ErrApprovalInvalid("expiry must be in the future")
	}

	now := s.now().UTC()
	a = domain.Approval{
		ApprovalID:         uuid.NewString(),
		PayingAddress:      req.PayingAddress,
		ApprovedAddress:    req.ApprovedAddress,
		ApprovedWincAmount: req.WincAmount,
		UsedWincAmount:     domain.ZeroWinc,
		CreationDate:       now,
		ScopeDataItemID:    req.ScopeDataItemID,
	}
	if req.ExpiresIn > 0 {
		expires := now.Add(req.ExpiresIn)
		a.ExpirationDate = &expires
	}

	a, err = s.store.CreateApproval(ctx, a)
	if err != nil {
		return domain.Approval{}, err
	}
	s.logger.Info("approval created",
		zap.String("approvalId", a.ApprovalID),
		zap.String("payer", a.PayingAddress),
		zap.String("approved", a.ApprovedAddress),
		zap.Stringer("winc", a.ApprovedWincAmount))
	return a, nil
}

// GetApprovals returns the active approvals from payer to approved (any
// recipient when approved is empty).
func (s *Service) GetApprovals(ctx context.Context, payer, approved string) ([]domain.Approval, error) {
	all, err := s.store.GetApprovals(ctx, payer, approved)
	if err != nil {
		return nil, err
	}
	now := s.now()
	active := make([]domain.Approval, 0, len(all))
	for _, a := range all {
		if a.ActiveAt(now) {
			active = append(active, a)
		}
	}
	if len(active) == 0 {
		return nil, domain.ErrNoApprovalsFound(payer, approved)
	}
	return active, nil
}

// RevokeApprovals revokes approvals from payer to approved, or only
// approvalID when set, returning the unused remainder to the payer.
func (s *Service) RevokeApprovals(ctx context.Context, payer, approved, approvalID string) (revoked []domain.Approval, err error) {
	span := s.tracer.StartSpan(ctx, "ledger.revoke", map[string]string{"payer": payer, "approved": approved})
	defer func() { s.tracer.EndSpan(span, err) }()

	revoked, err = s.store.RevokeApprovals(ctx, payer, approved, approvalID, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("approvals revoked",
		zap.String("payer", payer),
		zap.String("approved", approved),
		zap.Int("count", len(revoked)))
	return revoked, nil
}

// ReturnExpiredApprovals returns the unused remainder of expired approvals to
// their payers.
func (s *Service) ReturnExpiredApprovals(ctx context.Context) (int, error) {
	n, err := s.store.ReturnExpiredApprovals(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired approvals returned", zap.Int("count", n))
	}
	return n, nil
}

// ─── Metrics Helpers ────────────────────────────────────────────────────────

func (s *Service) countReservation(o string) {
	if s.metrics != nil {
		s.metrics.Reservations.WithLabelValues(o).Inc()
	}
}

func (s *Service) countRefund(o string) {
	if s.metrics != nil {
		s.metrics.Refunds.WithLabelValues(o).Inc()
	}
}

func (s *Service) countCryptoPayment(p domain.CryptoPayment) {
	if s.metrics != nil {
		s.metrics.CryptoPayments.WithLabelValues(string(p.Token), string(p.Status)).Inc()
	}
}

// outcome labels a result by error kind, or success when err is nil.
func outcome(err error, success string) string {
	if err == nil {
		return success
	}
	if k := domain.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}
