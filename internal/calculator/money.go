package calculator

import "github.com/shopspring/decimal"

// Epsilon is the dead-zone below which a balance is treated as settled.
const Epsilon = 0.01

var epsilon = decimal.NewFromFloat(Epsilon)

// toMoney converts a float amount to a cent-rounded decimal.
func toMoney(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

// Round rounds f to cents, half away from zero.
func Round(f float64) float64 {
	return toMoney(f).InexactFloat64()
}
