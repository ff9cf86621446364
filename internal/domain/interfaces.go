package domain

import (
	"context"
	"time"
)

// ─── Collaborator Interfaces ────────────────────────────────────────────────
// Infrastructure implements these; the pricing engine and ledger depend on them.

//go:generate mockgen -destination=../infra/oracle/mocks/mock_oracles.go -package=mocks github.com/tutu-network/credits/internal/domain BytesToCreditOracle,FiatToCreditOracle,TokenToFiatOracle
//go:generate mockgen -destination=../infra/oracle/mocks/mock_collaborators.go -package=mocks github.com/tutu-network/credits/internal/domain AdjustmentCatalog,PromoEligibility,TransactionGateway

// BytesToCreditOracle prices raw storage.
type BytesToCreditOracle interface {
	// CreditsForBytes returns the winc cost of storing bytes on the network.
	CreditsForBytes(ctx context.Context, bytes int64) (Winc, error)
}

// FiatToCreditOracle returns the price of one credit unit in every currency.
type FiatToCreditOracle interface {
	RatesForOneCreditUnit(ctx context.Context) (map[Currency]float64, error)
}

// TokenToFiatOracle returns fiat rates for every supported token in one call.
type TokenToFiatOracle interface {
	RatesForAllTokens(ctx context.Context) (map[Token]map[Currency]float64, error)
}

// AdjustmentCatalog stores discount, fee and promo-code definitions.
type AdjustmentCatalog interface {
	// ActiveUploadAdjustments returns upload adjustments active now, sorted
	// ascending by priority.
	ActiveUploadAdjustments(ctx context.Context, payer string) ([]Adjustment, error)
	// ActivePromoCode resolves a code that exists, is in its date window and
	// has uses left.
	ActivePromoCode(ctx context.Context, code string) (Adjustment, error)
	IncrementPromoCodeUses(ctx context.Context, code string) error
}

// PromoEligibility answers user-group questions for promo codes.
type PromoEligibility interface {
	HasPaymentHistory(ctx context.Context, address string) (bool, error)
}

// TxStatus is the confirmation state reported by a chain gateway.
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusNotFound  TxStatus = "not_found"
)

// TransactionStatus is a gateway status lookup result.
type TransactionStatus struct {
	Status      TxStatus
	BlockHeight int64
}

// TransactionInfo is the transfer a transaction id refers to.
type TransactionInfo struct {
	SenderAddress    string
	RecipientAddress string
	Quantity         Winc
}

// TransactionGateway looks up on-chain transfers for one token.
type TransactionGateway interface {
	TransactionStatus(ctx context.Context, txID string) (TransactionStatus, error)
	Transaction(ctx context.Context, txID string) (TransactionInfo, error)
}

// ReserveSpec is what the ledger persists atomically for one reservation.
type ReserveSpec struct {
	SignerAddress string
	DataItemID    string
	ByteCount     int64
	Price         Price
	Payers        []string
	Now           time.Time
}

// LedgerStore is the persistence collaborator for balances, approvals,
// reservations and payments. Every mutating method is one atomic transaction.
type LedgerStore interface {
	ReserveBalanceAtomic(ctx context.Context, spec ReserveSpec) (Reservation, error)
	RefundBalance(ctx context.Context, signer, dataItemID string, now time.Time) (Reservation, bool, error)
	FinalizeReservation(ctx context.Context, dataItemID string, now time.Time) (Reservation, error)
	GetReservation(ctx context.Context, dataItemID string) (Reservation, error)

	GetBalance(ctx context.Context, address string, now time.Time) (Balance, error)
	AdjustBalance(ctx context.Context, address string, amount Winc, txType TransactionType, reference string) (Winc, error)

	CreateApproval(ctx context.Context, a Approval) (Approval, error)
	GetApprovalsForSigner(ctx context.Context, signer string, now time.Time) ([]Approval, error)
	GetApprovals(ctx context.Context, payer, approved string) ([]Approval, error)
	RevokeApprovals(ctx context.Context, payer, approved, approvalID string, now time.Time) ([]Approval, error)
	ReturnExpiredApprovals(ctx context.Context, now time.Time) (int, error)

	InsertCryptoPayment(ctx context.Context, p CryptoPayment) (CryptoPayment, bool, error)
	GetCryptoPayment(ctx context.Context, txID string) (CryptoPayment, error)
	PendingCryptoPayments(ctx context.Context) ([]CryptoPayment, error)
	CreditCryptoPayment(ctx context.Context, txID string, blockHeight int64, now time.Time) (CryptoPayment, error)
	FailCryptoPayment(ctx context.Context, txID, reason string, now time.Time) (CryptoPayment, error)

	InsertPaymentReceipt(ctx context.Context, r PaymentReceipt) (PaymentReceipt, bool, error)
	HasPaymentHistory(ctx context.Context, address string) (bool, error)
}
