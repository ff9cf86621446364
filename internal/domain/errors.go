package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ─── Error Kinds ────────────────────────────────────────────────────────────
// Every failure the pricing engine or ledger surfaces carries an ErrorKind so
// callers dispatch on the kind instead of matching strings.

// ErrorKind classifies a domain error.
type ErrorKind string

const (
	// Payment validation
	KindUnsupportedCurrency   ErrorKind = "unsupported_currency_type"
	KindInvalidPaymentAmount  ErrorKind = "invalid_payment_amount"
	KindPaymentAmountTooSmall ErrorKind = "payment_amount_too_small"
	KindPaymentAmountTooLarge ErrorKind = "payment_amount_too_large"
	KindUnsupportedToken      ErrorKind = "unsupported_token"
	KindInvalidByteCount      ErrorKind = "invalid_byte_count"
	KindInvalidRequest        ErrorKind = "invalid_request"

	// Promo codes
	KindPromoCodeNotFound             ErrorKind = "promo_code_not_found"
	KindPromoCodeExpired              ErrorKind = "promo_code_expired"
	KindPromoCodeExceedsMaxUses       ErrorKind = "promo_code_exceeds_max_uses"
	KindUserIneligibleForPromoCode    ErrorKind = "user_ineligible_for_promo_code"
	KindPaymentAmountTooSmallForPromo ErrorKind = "payment_amount_too_small_for_promo_code"
	KindPromoCodeNotCombinable        ErrorKind = "promo_code_not_combinable"
	KindInvalidAdjustment             ErrorKind = "invalid_adjustment"

	// Ledger
	KindInsufficientBalance ErrorKind = "insufficient_balance"
	KindUserNotFound        ErrorKind = "user_not_found"
	KindReservationExists   ErrorKind = "reservation_exists"
	KindReservationNotFound ErrorKind = "reservation_not_found"

	// Delegated payments
	KindApprovalInvalid          ErrorKind = "approval_invalid"
	KindNoApprovalsFound         ErrorKind = "no_approvals_found"
	KindConflictingApprovalFound ErrorKind = "conflicting_approval_found"

	// Crypto payments
	KindInvalidCryptoPayment ErrorKind = "invalid_crypto_payment"
	KindTransactionNotFound  ErrorKind = "transaction_not_found"

	// Upstream
	KindOracleUnavailable ErrorKind = "oracle_unavailable"

	// Access
	KindUnauthorized ErrorKind = "unauthorized"
)

// HTTPStatus maps a kind to the response status used by the API layer.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindUnsupportedCurrency, KindInvalidPaymentAmount, KindPaymentAmountTooSmall,
		KindPaymentAmountTooLarge, KindUnsupportedToken, KindInvalidByteCount, KindPromoCodeExpired,
		KindPromoCodeExceedsMaxUses, KindUserIneligibleForPromoCode,
		KindPaymentAmountTooSmallForPromo, KindPromoCodeNotCombinable,
		KindInvalidAdjustment, KindApprovalInvalid, KindInvalidCryptoPayment, KindInvalidRequest:
		return http.StatusBadRequest
	case KindPromoCodeNotFound, KindUserNotFound, KindReservationNotFound,
		KindNoApprovalsFound, KindTransactionNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInsufficientBalance:
		return http.StatusPaymentRequired
	case KindReservationExists, KindConflictingApprovalFound:
		return http.StatusConflict
	case KindOracleUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a typed domain failure with structured context.
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]string
	Err     error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError builds an Error. fields are key/value pairs.
func NewError(kind ErrorKind, msg string, fields ...string) *Error {
	e := &Error{Kind: kind, Message: msg}
	if len(fields) > 0 {
		e.Fields = make(map[string]string, len(fields)/2)
		for i := 0; i+1 < len(fields); i += 2 {
			e.Fields[fields[i]] = fields[i+1]
		}
	}
	return e
}

// WrapError builds an Error around a cause.
func WrapError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// KindOf returns the kind of err, or "" when err is not a domain error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// ─── Constructors ───────────────────────────────────────────────────────────

func ErrUnsupportedCurrency(currency string) *Error {
	return NewError(KindUnsupportedCurrency, fmt.Sprintf("currency type %q is not supported", currency), "currency", currency)
}

func ErrUnsupportedToken(token string) *Error {
	return NewError(KindUnsupportedToken, fmt.Sprintf("token %q is not supported", token), "token", token)
}

func ErrInvalidByteCount(bytes int64) *Error {
	return NewError(KindInvalidByteCount, fmt.Sprintf("byte count %d must be non-negative", bytes), "byteCount", fmt.Sprint(bytes))
}

func ErrInvalidRequest(reason string) *Error {
	return NewError(KindInvalidRequest, reason)
}

func ErrUnauthorized() *Error {
	return NewError(KindUnauthorized, "missing or invalid bearer token")
}

func ErrInvalidPaymentAmount(amount string) *Error {
	return NewError(KindInvalidPaymentAmount, fmt.Sprintf("payment amount %q must be a non-negative integer", amount), "amount", amount)
}

func ErrPaymentAmountTooSmall(currency string, min int64) *Error {
	return NewError(KindPaymentAmountTooSmall,
		fmt.Sprintf("payment amount is below the minimum of %d for %s", min, currency),
		"currency", currency, "minimum", fmt.Sprint(min))
}

func ErrPaymentAmountTooLarge(currency string, max int64) *Error {
	return NewError(KindPaymentAmountTooLarge,
		fmt.Sprintf("payment amount is above the maximum of %d for %s", max, currency),
		"currency", currency, "maximum", fmt.Sprint(max))
}

func ErrPromoCodeNotFound(code string) *Error {
	return NewError(KindPromoCodeNotFound, fmt.Sprintf("promo code %q not found", code), "code", code)
}

func ErrPromoCodeExpired(code string) *Error {
	return NewError(KindPromoCodeExpired, fmt.Sprintf("promo code %q is not active", code), "code", code)
}

func ErrPromoCodeExceedsMaxUses(code string) *Error {
	return NewError(KindPromoCodeExceedsMaxUses, fmt.Sprintf("promo code %q has reached its maximum uses", code), "code", code)
}

func ErrUserIneligibleForPromoCode(code, address string) *Error {
	return NewError(KindUserIneligibleForPromoCode,
		fmt.Sprintf("address %q is not eligible for promo code %q", address, code), "code", code, "address", address)
}

func ErrPaymentAmountTooSmallForPromo(code string, min int64) *Error {
	return NewError(KindPaymentAmountTooSmallForPromo,
		fmt.Sprintf("promo code %q requires a payment of at least %d", code, min), "code", code, "minimum", fmt.Sprint(min))
}

func ErrPromoCodeNotCombinable(first, second string) *Error {
	return NewError(KindPromoCodeNotCombinable,
		fmt.Sprintf("promo codes %q and %q are both exclusive", first, second), "code", second)
}

func ErrInsufficientBalance(address string) *Error {
	return NewError(KindInsufficientBalance, fmt.Sprintf("insufficient balance for %q", address), "address", address)
}

func ErrUserNotFound(address string) *Error {
	return NewError(KindUserNotFound, fmt.Sprintf("no balance found for %q", address), "address", address)
}

func ErrReservationExists(dataItemID string) *Error {
	return NewError(KindReservationExists, fmt.Sprintf("data item %q already has a reservation", dataItemID), "dataItemId", dataItemID)
}

func ErrReservationNotFound(dataItemID string) *Error {
	return NewError(KindReservationNotFound, fmt.Sprintf("no open reservation for data item %q", dataItemID), "dataItemId", dataItemID)
}

func ErrApprovalInvalid(reason string) *Error {
	return NewError(KindApprovalInvalid, "invalid approval: "+reason)
}

func ErrNoApprovalsFound(payer, approved string) *Error {
	return NewError(KindNoApprovalsFound,
		fmt.Sprintf("no approvals from %q to %q", payer, approved), "payer", payer, "approved", approved)
}

func ErrConflictingApprovalFound(approvalID string) *Error {
	return NewError(KindConflictingApprovalFound,
		fmt.Sprintf("approval %q was already consumed", approvalID), "approvalId", approvalID)
}

func ErrInvalidCryptoPayment(txID, reason string) *Error {
	return NewError(KindInvalidCryptoPayment, fmt.Sprintf("transaction %q rejected: %s", txID, reason), "transactionId", txID)
}

func ErrTransactionNotFound(txID string) *Error {
	return NewError(KindTransactionNotFound, fmt.Sprintf("transaction %q not found", txID), "transactionId", txID)
}

func ErrOracleUnavailable(oracle string, cause error) *Error {
	e := WrapError(KindOracleUnavailable, oracle+" oracle unavailable", cause)
	e.Fields = map[string]string{"oracle": oracle}
	return e
}
