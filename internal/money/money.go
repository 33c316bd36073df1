// Package money holds the decimal arithmetic helpers shared by the ledger,
// projection and settlement code. All internal arithmetic stays exact;
// rounding is applied only at response edges.
package money

import "github.com/shopspring/decimal"

// Zero is the decimal zero value, for readable comparisons.
var Zero = decimal.Zero

// One is the decimal one.
var One = decimal.NewFromInt(1)

// FromFloat converts a float64 into an exact decimal.
func FromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// MustFromString parses a decimal literal and panics on malformed input.
// Intended for constants and tests only.
func MustFromString(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic("money: invalid decimal literal " + s)
	}
	return d
}

// RoundMoney rounds a monetary amount to two decimal places. Used when
// rendering amounts, never inside the replay fold.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// IsPositive reports whether d is strictly greater than zero.
func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(decimal.Zero)
}

// IsNonNegative reports whether d is greater than or equal to zero.
func IsNonNegative(d decimal.Decimal) bool {
	return !d.IsNegative()
}

// IsValidRate reports whether r is a usable commission or tax rate,
// i.e. within [0, 1).
func IsValidRate(r decimal.Decimal) bool {
	return !r.IsNegative() && r.LessThan(One)
}
