package application

import (
	"time"

	"github.com/shopspring/decimal"
)

var hourNanos = decimal.NewFromInt(int64(time.Hour))

// MaxMoney caps any single price or payment. Stored revenue is a running sum
// of integer cents, so the cap keeps it far from int64 overflow.
var MaxMoney = decimal.New(1, 9)

// moneyProblem describes why amount cannot be stored, or returns "".
func moneyProblem(field string, amount decimal.Decimal) string {
	switch {
	case amount.IsNegative():
		return field + " must not be negative"
	case RoundMoney(amount).GreaterThan(MaxMoney):
		return field + " must not exceed " + MaxMoney.StringFixed(2)
	}
	return ""
}

// RoundMoney rounds an amount to cents, half away from zero. It is the single
// rounding point for prices, durations and costs.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// DurationHours returns the parked time in hours rounded to two places.
// A leaving time before the parking time yields zero.
func DurationHours(parkingAt, leavingAt time.Time) decimal.Decimal {
	elapsed := leavingAt.Sub(parkingAt)
	if elapsed <= 0 {
		return decimal.Zero
	}
	return RoundMoney(decimal.NewFromInt(int64(elapsed)).Div(hourNanos))
}

// EstimateCost multiplies the rounded duration by the hourly rate.
func EstimateCost(hours, costPerHour decimal.Decimal) decimal.Decimal {
	return RoundMoney(hours.Mul(costPerHour))
}
