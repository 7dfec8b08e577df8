package ledger

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Exact decimal amount (single currency ledger)
// =============================================================================

// Money is an exact decimal amount. The ledger is single-currency, so unlike
// an Amount there is no unit attached.
//
// On the wire Money is a bare JSON number so snapshots stay compatible with
// the replicated store, which has always written numbers.
type Money struct {
	value decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

func NewMoney(value int64) Money                  { return Money{value: decimal.NewFromInt(value)} }
func NewMoneyFromFloat(value float64) Money       { return Money{value: decimal.NewFromFloat(value)} }
func NewMoneyFromDecimal(d decimal.Decimal) Money { return Money{value: d} }

// ParseMoney parses a decimal string such as "1500.25".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse money %q: %w", s, err)
	}
	return Money{value: d}, nil
}

// MustParseMoney is ParseMoney for constants and tests.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(n Money) Money               { return Money{value: m.value.Add(n.value)} }
func (m Money) Sub(n Money) Money               { return Money{value: m.value.Sub(n.value)} }
func (m Money) Neg() Money                      { return Money{value: m.value.Neg()} }
func (m Money) IsZero() bool                    { return m.value.IsZero() }
func (m Money) IsPositive() bool                { return m.value.IsPositive() }
func (m Money) IsNegative() bool                { return m.value.IsNegative() }
func (m Money) Equal(n Money) bool              { return m.value.Equal(n.value) }
func (m Money) LessThan(n Money) bool           { return m.value.LessThan(n.value) }
func (m Money) GreaterThan(n Money) bool        { return m.value.GreaterThan(n.value) }
func (m Money) GreaterThanOrEqual(n Money) bool { return m.value.GreaterThanOrEqual(n.value) }
func (m Money) Decimal() decimal.Decimal        { return m.value }
func (m Money) String() string                  { return m.value.String() }

// Sum adds all amounts.
func Sum(amounts ...Money) Money {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// MarshalJSON writes the amount as a JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.value.String()), nil
}

// UnmarshalJSON accepts a JSON number, a quoted decimal string, or null.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Zero
		return nil
	}
	data = bytes.Trim(data, `"`)
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", data, err)
	}
	m.value = d
	return nil
}
