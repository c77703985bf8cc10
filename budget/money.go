package budget

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Fixed-point currency amount
// =============================================================================

// Money is a currency amount in major units (e.g. 937.5 dollars).
// Backed by decimal.Decimal so sums are exact and order-independent.
type Money struct {
	Value decimal.Decimal
}

// Zero is the additive identity.
var Zero = Money{Value: decimal.Zero}

func NewMoney(value int64) Money { return Money{Value: decimal.NewFromInt(value)} }
func NewMoneyFromFloat(value float64) Money { return Money{Value: decimal.NewFromFloat(value)} }
func NewMoneyFromDecimal(d decimal.Decimal) Money { return Money{Value: d} }

// ParseMoney parses a decimal string such as "30000" or "937.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money{Value: d}, nil
}

// MustParseMoney is ParseMoney for literals in tests and seed data.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err.Error())
	}
	return m
}

func (m Money) Add(n Money) Money { return Money{Value: m.Value.Add(n.Value)} }
func (m Money) Sub(n Money) Money { return Money{Value: m.Value.Sub(n.Value)} }
func (m Money) Neg() Money { return Money{Value: m.Value.Neg()} }
func (m Money) Abs() Money { return Money{Value: m.Value.Abs()} }
func (m Money) DivInt(n int) Money { return Money{Value: m.Value.Div(decimal.NewFromInt(int64(n)))} }
func (m Money) IsZero() bool { return m.Value.IsZero() }
func (m Money) IsPositive() bool { return m.Value.IsPositive() }
func (m Money) IsNegative() bool { return m.Value.IsNegative() }
func (m Money) Equal(n Money) bool { return m.Value.Equal(n.Value) }
func (m Money) GreaterThan(n Money) bool { return m.Value.GreaterThan(n.Value) }
func (m Money) LessThan(n Money) bool { return m.Value.LessThan(n.Value) }
func (m Money) String() string { return m.Value.String() }
func (m Money) Float64() float64 { return m.Value.InexactFloat64() }

// Max returns the larger of m and n.
func (m Money) Max(n Money) Money {
	if m.LessThan(n) {
		return n
	}
	return m
}

// Ratio returns m/n, or zero when n is zero.
func (m Money) Ratio(n Money) decimal.Decimal {
	if n.IsZero() {
		return decimal.Zero
	}
	return m.Value.Div(n.Value)
}

// Display formats the amount for people, e.g. "NT$15,000.00".
// Unknown currency codes fall back to the plain decimal string.
func (m Money) Display(currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return m.Value.StringFixed(2)
	}
	minor := m.Value.Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), cur.Code).Display()
}

// Sum adds amounts together. Sum() is Zero.
func Sum(amounts ...Money) Money {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

func (m Money) MarshalJSON() ([]byte, error) { return m.Value.MarshalJSON() }

func (m *Money) UnmarshalJSON(b []byte) error { return m.Value.UnmarshalJSON(b) }
