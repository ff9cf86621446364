package domain

import "time"

// ─── Ledger Types ───────────────────────────────────────────────────────────
// Balances, delegated approvals and reservations are owned by the ledger and
// only mutated through its reserve/refund/approve/revoke operations.

// EntryType represents the accounting side of a ledger entry.
type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

// TransactionType represents the business reason for a balance change.
type TransactionType string

const (
	TxTopUp          TransactionType = "TOP_UP"
	TxCryptoCredit   TransactionType = "CRYPTO_CREDIT"
	TxReserve        TransactionType = "RESERVE"
	TxRefund         TransactionType = "REFUND"
	TxApprovalLock   TransactionType = "APPROVAL_LOCK"
	TxApprovalReturn TransactionType = "APPROVAL_RETURN"
)

// LedgerEntry is a single row in the balance audit log.
type LedgerEntry struct {
	ID          int64           `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Type        TransactionType `json:"type"`
	EntryType   EntryType       `json:"entryType"`
	Address     string          `json:"address"`
	Amount      Winc            `json:"winc"`
	Reference   string          `json:"reference,omitempty"`
	Description string          `json:"description,omitempty"`
	Balance     Winc            `json:"balance"`
}

// Balance is the view of an address's spending power.
// EffectiveBalance = Winc + remaining amounts of active received approvals.
type Balance struct {
	Address           string     `json:"address"`
	Winc              Winc       `json:"winc"`
	ReservedWinc      Winc       `json:"reservedWinc"`
	EffectiveBalance  Winc       `json:"effectiveBalance"`
	GivenApprovals    []Approval `json:"givenApprovals"`
	ReceivedApprovals []Approval `json:"receivedApprovals"`
}

// ─── Approvals ──────────────────────────────────────────────────────────────

// Approval is a delegated spending grant from PayingAddress to ApprovedAddress.
// Invariant: UsedWincAmount <= ApprovedWincAmount.
type Approval struct {
	ApprovalID         string     `json:"approvalId"`
	PayingAddress      string     `json:"payingAddress"`
	ApprovedAddress    string     `json:"approvedAddress"`
	ApprovedWincAmount Winc       `json:"approvedWincAmount"`
	UsedWincAmount     Winc       `json:"usedWincAmount"`
	CreationDate       time.Time  `json:"creationDate"`
	ExpirationDate     *time.Time `json:"expirationDate,omitempty"`
	ScopeDataItemID    string     `json:"scopeDataItemId,omitempty"`
	RevokedDate        *time.Time `json:"revokedDate,omitempty"`
	// Consumed marks a scoped single-use approval that a reservation has used.
	Consumed bool `json:"consumed,omitempty"`
}

// Remaining returns the unused part of the grant.
func (a Approval) Remaining() Winc {
	return a.ApprovedWincAmount.SaturatingMinus(a.UsedWincAmount)
}

// Scoped reports whether the approval is restricted to one data item.
func (a Approval) Scoped() bool { return a.ScopeDataItemID != "" }

// ActiveAt reports whether the approval can still be spent at t.
func (a Approval) ActiveAt(t time.Time) bool {
	if a.RevokedDate != nil {
		return false
	}
	if a.ExpirationDate != nil && !t.Before(*a.ExpirationDate) {
		return false
	}
	if a.Scoped() && a.Consumed {
		return false
	}
	return !a.Remaining().IsZero()
}

// UsableFor reports whether the approval may fund a reservation for dataItemID at t.
func (a Approval) UsableFor(dataItemID string, t time.Time) bool {
	if !a.ActiveAt(t) {
		return false
	}
	return !a.Scoped() || a.ScopeDataItemID == dataItemID
}

// ─── Reservations ───────────────────────────────────────────────────────────

// ReservationStatus tracks a reservation through its lifecycle.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationFinalized ReservationStatus = "finalized"
	ReservationRefunded  ReservationStatus = "refunded"
)

// PayerShare records how much of a reservation one source funded.
// ApprovalID is empty when the signer's own balance paid.
type PayerShare struct {
	PayerAddress string `json:"payerAddress"`
	WincAmount   Winc   `json:"winc"`
	ApprovalID   string `json:"approvalId,omitempty"`
}

// Reservation is a provisional debit for one data item.
type Reservation struct {
	ReservationID      string              `json:"reservationId"`
	SignerAddress      string              `json:"signerAddress"`
	DataItemID         string              `json:"dataItemId"`
	ByteCount          int64               `json:"byteCount"`
	ReservedWincAmount Winc                `json:"reservedWincAmount"`
	NetworkWincAmount  Winc                `json:"networkWincAmount"`
	Adjustments        []AppliedAdjustment `json:"adjustments"`
	Payers             []PayerShare        `json:"payers"`
	Status             ReservationStatus   `json:"status"`
	CreatedAt          time.Time           `json:"createdAt"`
	ResolvedAt         *time.Time          `json:"resolvedAt,omitempty"`
}

// ─── Crypto Payments ────────────────────────────────────────────────────────

// CryptoPaymentStatus is the lifecycle of an inbound on-chain transfer.
// pending → credited | failed; credited and failed are terminal.
type CryptoPaymentStatus string

const (
	CryptoPending  CryptoPaymentStatus = "pending"
	CryptoCredited CryptoPaymentStatus = "credited"
	CryptoFailed   CryptoPaymentStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s CryptoPaymentStatus) Terminal() bool {
	return s == CryptoCredited || s == CryptoFailed
}

// CryptoPayment is an inbound transfer keyed by its chain transaction id.
// WincAmount is frozen when the payment is first submitted.
type CryptoPayment struct {
	TransactionID       string              `json:"transactionId"`
	Token               Token               `json:"token"`
	SenderAddress       string              `json:"senderAddress"`
	RecipientAddress    string              `json:"recipientAddress"`
	TransactionQuantity Winc                `json:"transactionQuantity"`
	WincAmount          Winc                `json:"winc"`
	Status              CryptoPaymentStatus `json:"status"`
	BlockHeight         int64               `json:"blockHeight,omitempty"`
	FailedReason        string              `json:"failedReason,omitempty"`
	CreatedAt           time.Time           `json:"createdAt"`
	ResolvedAt          *time.Time          `json:"resolvedAt,omitempty"`
}

// ─── Fiat Receipts ──────────────────────────────────────────────────────────

// PaymentReceipt records a completed card payment that credited an address.
type PaymentReceipt struct {
	ReceiptID     string    `json:"receiptId"`
	Address       string    `json:"destinationAddress"`
	WincAmount    Winc      `json:"winc"`
	PaymentAmount int64     `json:"paymentAmount"`
	Currency      Currency  `json:"currencyType"`
	PromoCodes    []string  `json:"promoCodes,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}
