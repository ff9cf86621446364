package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ─── Adjustments ────────────────────────────────────────────────────────────
// An Adjustment is a catalog entry that modifies a price. The variant is
// closed: Kind decides which optional fields are legal, and Validate rejects
// anything outside that shape.
//
//   upload         inclusive, applied to every byte quote, may carry a threshold
//   payment_promo  exclusive or inclusive promo code applied to the fiat amount
//   infra_fee      inclusive standing fee applied to the credit subtotal

// AdjustmentKind selects the adjustment variant.
type AdjustmentKind string

const (
	AdjustUpload       AdjustmentKind = "upload"
	AdjustPaymentPromo AdjustmentKind = "payment_promo"
	AdjustInfraFee     AdjustmentKind = "infra_fee"
)

// Exclusivity controls whether an adjustment may stack with others.
type Exclusivity string

const (
	Inclusive Exclusivity = "inclusive"
	Exclusive Exclusivity = "exclusive"
)

// Operator is how Magnitude is applied.
//
//	add      → signed flat amount added to the running total
//	multiply → the running total is reduced by running * Magnitude
type Operator string

const (
	OpAdd      Operator = "add"
	OpMultiply Operator = "multiply"
)

// ThresholdUnit is what a threshold compares against.
type ThresholdUnit string

const (
	UnitBytes   ThresholdUnit = "bytes"
	UnitCredits ThresholdUnit = "credits"
)

// Comparator is the threshold comparison.
type Comparator string

const (
	LessThan    Comparator = "less_than"
	GreaterThan Comparator = "greater_than"
)

// Threshold gates an adjustment on the byte count or running credit total.
type Threshold struct {
	Unit       ThresholdUnit   `json:"unit" toml:"unit"`
	Comparator Comparator      `json:"comparator" toml:"comparator"`
	Value      decimal.Decimal `json:"value" toml:"value"`
}

// Met reports whether v satisfies the threshold.
func (t Threshold) Met(v decimal.Decimal) bool {
	switch t.Comparator {
	case LessThan:
		return v.LessThan(t.Value)
	case GreaterThan:
		return v.GreaterThan(t.Value)
	default:
		return false
	}
}

// UserGroup restricts who may redeem a promo code.
type UserGroup string

const (
	GroupAll      UserGroup = "all"
	GroupNewUsers UserGroup = "new_users"
)

// Adjustment is a catalog definition.
type Adjustment struct {
	CatalogID            string           `json:"catalogId"`
	Kind                 AdjustmentKind   `json:"kind"`
	Name                 string           `json:"name"`
	Description          string           `json:"description"`
	Operator             Operator         `json:"operator"`
	Magnitude            decimal.Decimal  `json:"operatorMagnitude"`
	Priority             int              `json:"priority"`
	Exclusivity          Exclusivity      `json:"exclusivity"`
	PromoCode            string           `json:"promoCode,omitempty"`
	Threshold            *Threshold       `json:"threshold,omitempty"`
	MaxDiscountAmount    *decimal.Decimal `json:"maxDiscount,omitempty"`
	MinimumPaymentAmount int64            `json:"minimumPaymentAmount,omitempty"`
	MaxUses              int              `json:"maxUses,omitempty"`
	Uses                 int              `json:"uses"`
	TargetUserGroup      UserGroup        `json:"targetUserGroup,omitempty"`
	StartDate            time.Time        `json:"startDate"`
	EndDate              *time.Time       `json:"endDate,omitempty"`
}

// Validate enforces the variant rules for the adjustment's kind.
func (a Adjustment) Validate() error {
	invalid := func(format string, args ...any) error {
		return NewError(KindInvalidAdjustment, fmt.Sprintf("adjustment %q: ", a.CatalogID)+fmt.Sprintf(format, args...))
	}
	if a.CatalogID == "" {
		return invalid("catalog id is required")
	}
	switch a.Operator {
	case OpAdd, OpMultiply:
	default:
		return invalid("unknown operator %q", a.Operator)
	}
	if a.Operator == OpMultiply && (a.Magnitude.IsNegative() || a.Magnitude.GreaterThan(decimal.NewFromInt(1))) {
		return invalid("multiply magnitude must be within [0, 1], got %s", a.Magnitude)
	}
	if a.Operator == OpAdd && !a.Magnitude.IsInteger() {
		return invalid("add magnitude must be an integer, got %s", a.Magnitude)
	}
	if a.EndDate != nil && !a.EndDate.After(a.StartDate) {
		return invalid("end date must be after start date")
	}
	if a.MaxDiscountAmount != nil && a.MaxDiscountAmount.IsNegative() {
		return invalid("max discount cannot be negative")
	}

	switch a.Kind {
	case AdjustUpload:
		if a.Exclusivity != Inclusive {
			return invalid("upload adjustments are inclusive")
		}
		if a.PromoCode != "" || a.MinimumPaymentAmount != 0 || a.MaxUses != 0 {
			return invalid("upload adjustments cannot carry promo fields")
		}
		if a.Threshold != nil {
			switch a.Threshold.Unit {
			case UnitBytes, UnitCredits:
			default:
				return invalid("unknown threshold unit %q", a.Threshold.Unit)
			}
			switch a.Threshold.Comparator {
			case LessThan, GreaterThan:
			default:
				return invalid("unknown threshold comparator %q", a.Threshold.Comparator)
			}
		}
	case AdjustPaymentPromo:
		if a.PromoCode == "" {
			return invalid("payment promo requires a promo code")
		}
		if a.Exclusivity != Exclusive {
			return invalid("payment promos are exclusive")
		}
		if a.Threshold != nil {
			return invalid("payment promos use minimumPaymentAmount, not thresholds")
		}
		switch a.TargetUserGroup {
		case "", GroupAll, GroupNewUsers:
		default:
			return invalid("unknown user group %q", a.TargetUserGroup)
		}
	case AdjustInfraFee:
		if a.Exclusivity != Inclusive || a.Operator != OpMultiply {
			return invalid("infra fee must be an inclusive multiply")
		}
		if a.PromoCode != "" || a.Threshold != nil {
			return invalid("infra fee cannot carry promo or threshold fields")
		}
	default:
		return invalid("unknown kind %q", a.Kind)
	}
	return nil
}

// NormalizedPromoCode is the lookup form of a promo code.
func NormalizedPromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ActiveAt reports whether t falls inside [StartDate, EndDate).
func (a Adjustment) ActiveAt(t time.Time) bool {
	if t.Before(a.StartDate) {
		return false
	}
	return a.EndDate == nil || t.Before(*a.EndDate)
}

// UsesExhausted reports whether a capped promo has no uses left.
func (a Adjustment) UsesExhausted() bool {
	return a.MaxUses > 0 && a.Uses >= a.MaxUses
}

// AmountFor returns the signed change this adjustment makes to running.
// A multiply discount rounds down and is capped by MaxDiscountAmount.
// Running totals below zero are treated as zero.
func (a Adjustment) AmountFor(running decimal.Decimal) decimal.Decimal {
	switch a.Operator {
	case OpMultiply:
		base := decimal.Max(running, decimal.Zero)
		discount := base.Mul(a.Magnitude).Floor()
		if a.MaxDiscountAmount != nil && discount.GreaterThan(*a.MaxDiscountAmount) {
			discount = *a.MaxDiscountAmount
		}
		return discount.Neg()
	case OpAdd:
		return a.Magnitude.Truncate(0)
	default:
		return decimal.Zero
	}
}

// Applied builds the audit record for this adjustment.
func (a Adjustment) Applied(amount decimal.Decimal, currency Currency) AppliedAdjustment {
	return AppliedAdjustment{
		CatalogID:         a.CatalogID,
		Name:              a.Name,
		Description:       a.Description,
		Operator:          a.Operator,
		OperatorMagnitude: a.Magnitude,
		AdjustmentAmount:  amount,
		CurrencyType:      currency,
		PromoCode:         a.PromoCode,
	}
}

// AppliedAdjustment is the audit-trail record of one adjustment in a quote.
// AdjustmentAmount is a signed integer: negative for a discount. CurrencyType
// is set when the amount is in fiat minor units instead of winc.
type AppliedAdjustment struct {
	CatalogID         string          `json:"catalogId"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Operator          Operator        `json:"operator"`
	OperatorMagnitude decimal.Decimal `json:"operatorMagnitude"`
	AdjustmentAmount  decimal.Decimal `json:"adjustmentAmount"`
	CurrencyType      Currency        `json:"currencyType,omitempty"`
	PromoCode         string          `json:"promoCode,omitempty"`
}
