package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ─── Winc ───────────────────────────────────────────────────────────────────
// Winc is the smallest indivisible unit of storage credit. Values are
// arbitrary-precision integers and never negative.
//
// Rounding rules:
//   Times     → rounds down (discounts and fee reductions never overpay)
//   DividedBy → rounds up

// ErrNegativeWinc is returned when an operation would produce a negative amount.
var ErrNegativeWinc = errors.New("winc amount cannot be negative")

// ErrFractionalWinc is returned when parsing a non-integer amount.
var ErrFractionalWinc = errors.New("winc amount must be an integer")

// WincPerCredit is the number of winc in one whole credit (1 AR).
var WincPerCredit = decimal.New(1, 12)

// Winc is an immutable non-negative integer credit amount.
type Winc struct {
	d decimal.Decimal
}

// ZeroWinc is the zero amount.
var ZeroWinc = Winc{}

// NewWinc creates a Winc from an int64. Negative input panics; use ParseWinc
// for untrusted values.
func NewWinc(n int64) Winc {
	if n < 0 {
		panic(ErrNegativeWinc)
	}
	return Winc{d: decimal.NewFromInt(n)}
}

// ParseWinc parses a base-10 integer string.
func ParseWinc(s string) (Winc, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Winc{}, fmt.Errorf("parse winc %q: %w", s, err)
	}
	return WincFromDecimal(d)
}

// WincFromDecimal validates that d is a non-negative integer.
func WincFromDecimal(d decimal.Decimal) (Winc, error) {
	if !d.IsInteger() {
		return Winc{}, ErrFractionalWinc
	}
	if d.IsNegative() {
		return Winc{}, ErrNegativeWinc
	}
	return Winc{d: d}, nil
}

// FloorWinc truncates d to an integer and clamps it at zero.
func FloorWinc(d decimal.Decimal) Winc {
	f := d.Floor()
	if f.IsNegative() {
		return ZeroWinc
	}
	return Winc{d: f}
}

// CeilWinc rounds d up to an integer and clamps it at zero.
func CeilWinc(d decimal.Decimal) Winc {
	c := d.Ceil()
	if c.IsNegative() {
		return ZeroWinc
	}
	return Winc{d: c}
}

// Decimal returns the amount as a decimal.
func (w Winc) Decimal() decimal.Decimal { return w.d }

// String returns the base-10 representation.
func (w Winc) String() string { return w.d.String() }

// Float64 is lossy and intended for metrics only.
func (w Winc) Float64() float64 {
	f, _ := w.d.Float64()
	return f
}

// IsZero reports whether the amount is zero.
func (w Winc) IsZero() bool { return w.d.IsZero() }

// Cmp compares w and o, returning -1, 0 or +1.
func (w Winc) Cmp(o Winc) int { return w.d.Cmp(o.d) }

// LessThan reports whether w < o.
func (w Winc) LessThan(o Winc) bool { return w.d.LessThan(o.d) }

// GreaterThan reports whether w > o.
func (w Winc) GreaterThan(o Winc) bool { return w.d.GreaterThan(o.d) }

// Equal reports whether w == o.
func (w Winc) Equal(o Winc) bool { return w.d.Equal(o.d) }

// Plus returns w + o.
func (w Winc) Plus(o Winc) Winc { return Winc{d: w.d.Add(o.d)} }

// Minus returns w - o, or ErrNegativeWinc when o > w.
func (w Winc) Minus(o Winc) (Winc, error) {
	r := w.d.Sub(o.d)
	if r.IsNegative() {
		return Winc{}, ErrNegativeWinc
	}
	return Winc{d: r}, nil
}

// SaturatingMinus returns max(w - o, 0).
func (w Winc) SaturatingMinus(o Winc) Winc {
	r := w.d.Sub(o.d)
	if r.IsNegative() {
		return ZeroWinc
	}
	return Winc{d: r}
}

// Times multiplies by m and rounds down. A negative product clamps to zero.
func (w Winc) Times(m decimal.Decimal) Winc {
	return FloorWinc(w.d.Mul(m))
}

// DividedBy divides by a positive divisor and rounds up.
func (w Winc) DividedBy(div decimal.Decimal) (Winc, error) {
	if !div.IsPositive() {
		return Winc{}, fmt.Errorf("winc divisor must be positive, got %s", div)
	}
	q, r := w.d.QuoRem(div, 0)
	if !r.IsZero() {
		q = q.Add(decimal.NewFromInt(1))
	}
	return Winc{d: q}, nil
}

// Min returns the smaller of w and o.
func (w Winc) Min(o Winc) Winc {
	if w.d.LessThanOrEqual(o.d) {
		return w
	}
	return o
}

// MarshalJSON encodes the amount as a JSON string to preserve precision.
func (w Winc) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.d.String())
}

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (w *Winc) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		s = string(b)
	}
	v, err := ParseWinc(s)
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// Value stores the amount as TEXT so SQLite never truncates it.
func (w Winc) Value() (driver.Value, error) {
	return w.d.String(), nil
}

// Scan reads a TEXT or INTEGER column.
func (w *Winc) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*w = ZeroWinc
		return nil
	case int64:
		if v < 0 {
			return ErrNegativeWinc
		}
		*w = NewWinc(v)
		return nil
	case string:
		p, err := ParseWinc(v)
		if err != nil {
			return err
		}
		*w = p
		return nil
	case []byte:
		p, err := ParseWinc(string(v))
		if err != nil {
			return err
		}
		*w = p
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Winc", src)
	}
}

// SumWinc adds all amounts.
func SumWinc(amounts ...Winc) Winc {
	total := ZeroWinc
	for _, a := range amounts {
		total = total.Plus(a)
	}
	return total
}
