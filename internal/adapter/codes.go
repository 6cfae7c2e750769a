package adapter

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/example/parking-manager/internal/application"
	"github.com/example/parking-manager/internal/persistence"
)

var roleCodes = map[application.Role]string{
	application.RoleAdmin: persistence.RoleAdmin,
	application.RoleUser:  persistence.RoleUser,
}

var spotStatusCodes = map[application.SpotStatus]string{
	application.SpotAvailable: persistence.SpotAvailable,
	application.SpotOccupied:  persistence.SpotOccupied,
}

var reservationStatusCodes = map[application.ReservationStatus]string{
	application.ReservationActive:    persistence.ReservationActive,
	application.ReservationCompleted: persistence.ReservationCompleted,
}

var paymentStatusCodes = map[application.PaymentStatus]string{
	application.PaymentPending: persistence.PaymentPending,
	application.PaymentPaid:    persistence.PaymentPaid,
}

var paymentMethodCodes = map[application.PaymentMethod]string{
	application.PaymentCash:       "CASH",
	application.PaymentCard:       "CARD",
	application.PaymentUPI:        "UPI",
	application.PaymentNetBanking: "NET_BANKING",
}

func encode[T comparable](table map[T]string, value T, kind string) (string, error) {
	code, ok := table[value]
	if !ok {
		return "", fmt.Errorf("%w: unknown %s %v", persistence.ErrConstraintViolation, kind, value)
	}
	return code, nil
}

func decode[T comparable](table map[T]string, code, kind string) (T, error) {
	for value, candidate := range table {
		if candidate == code {
			return value, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("unknown stored %s code %q", kind, code)
}

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// ToCents converts an amount to whole cents, rounding half away from zero.
// Amounts that do not fit the stored int64 are rejected.
func ToCents(amount decimal.Decimal) (int64, error) {
	cents := application.RoundMoney(amount).Shift(2)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return 0, fmt.Errorf("%w: amount %s does not fit in cents", persistence.ErrConstraintViolation, amount)
	}
	return cents.IntPart(), nil
}

// FromCents converts stored cents back to an amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
