package adapter_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/parking-manager/internal/application"
	"github.com/example/parking-manager/internal/testfixtures"
)

func TestVehicleLifecycle(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	owner, _ := s.register(t)
	other, _ := s.register(t)
	input := testfixtures.NewVehicleInput()

	registered, err := s.vehicles.RegisterVehicle(ctx, application.RegisterVehicleParams{
		Principal: principalOf(owner),
		Vehicle:   input,
	})
	require.NoError(t, err)
	assert.Equal(t, owner.ID, registered.UserID)
	assert.Equal(t, input.VehicleNumber, registered.VehicleNumber)

	_, err = s.vehicles.RegisterVehicle(ctx, application.RegisterVehicleParams{Principal: principalOf(owner), Vehicle: input})
	assert.ErrorIs(t, err, application.ErrAlreadyExists)

	color := "Graphite"
	updated, err := s.vehicles.UpdateVehicle(ctx, application.UpdateVehicleParams{
		Principal:     principalOf(owner),
		VehicleNumber: input.VehicleNumber,
		Update:        application.VehicleUpdate{Color: &color},
	})
	require.NoError(t, err)
	assert.Equal(t, "Graphite", updated.Color)
	assert.Equal(t, input.Brand, updated.Brand)

	newOwner := other.ID
	reassigned, err := s.vehicles.UpdateVehicle(ctx, application.UpdateVehicleParams{
		Principal:     admin,
		VehicleNumber: input.VehicleNumber,
		Update:        application.VehicleUpdate{UserID: &newOwner},
	})
	require.NoError(t, err)
	assert.Equal(t, other.ID, reassigned.UserID)

	_, err = s.vehicles.GetVehicle(ctx, principalOf(owner), input.VehicleNumber)
	assert.ErrorIs(t, err, application.ErrUnauthorized)
	fetched, err := s.vehicles.GetVehicle(ctx, principalOf(other), input.VehicleNumber)
	require.NoError(t, err)
	assert.Equal(t, "Graphite", fetched.Color)

	lot := s.lot(t, testfixtures.WithLotSpots(1))
	reservation, err := s.reservations.Reserve(ctx, application.ReserveParams{
		Principal: principalOf(other), LotID: lot.ID, UserID: other.ID, Vehicle: input,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, s.vehicles.DeleteVehicle(ctx, admin, input.VehicleNumber), application.ErrConflict)
	_, err = s.vehicles.GetVehicle(ctx, admin, input.VehicleNumber)
	require.NoError(t, err)

	_, err = s.reservations.SettlePayment(ctx, application.SettlePaymentParams{
		Principal:     principalOf(other),
		ReservationID: reservation.ID,
		Method:        application.PaymentUPI,
		Amount:        decimal.NewNullDecimal(decimal.NewFromInt(15)),
	})
	require.NoError(t, err)

	require.NoError(t, s.vehicles.DeleteVehicle(ctx, admin, input.VehicleNumber))
	_, err = s.vehicles.GetVehicle(ctx, admin, input.VehicleNumber)
	assert.ErrorIs(t, err, application.ErrNotFound)

	history, err := s.reports.UserReservationHistory(ctx, principalOf(other), other.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	// Lot revenue is a running total and survives the deleted history.
	reloaded, err := s.lots.GetLot(ctx, admin, lot.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Revenue.Equal(decimal.NewFromInt(15)), reloaded.Revenue.String())
}

func TestUpdateSpotPersistsNumberAndCover(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	lot := s.lot(t, testfixtures.WithLotSpots(2))
	spots, err := s.lots.ListSpots(ctx, admin, lot.ID)
	require.NoError(t, err)
	require.Len(t, spots, 2)

	number := "VIP-1"
	covered := true
	updated, err := s.lots.UpdateSpot(ctx, application.UpdateSpotParams{
		Principal: admin,
		SpotID:    spots[0].ID,
		Update:    application.SpotUpdate{SpotNumber: &number, IsCovered: &covered},
	})
	require.NoError(t, err)
	assert.Equal(t, "VIP-1", updated.SpotNumber)
	assert.True(t, updated.IsCovered)
	assert.Equal(t, application.SpotAvailable, updated.Status)

	taken := spots[1].SpotNumber
	_, err = s.lots.UpdateSpot(ctx, application.UpdateSpotParams{
		Principal: admin,
		SpotID:    spots[0].ID,
		Update:    application.SpotUpdate{SpotNumber: &taken},
	})
	assert.ErrorIs(t, err, application.ErrAlreadyExists)

	reloaded, err := s.lots.GetSpot(ctx, admin, spots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "VIP-1", reloaded.SpotNumber)
}
