// Package fixtures provides reusable seed data for integration tests.
package fixtures

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stayware/bookingcore/internal/domain"
	"github.com/stayware/bookingcore/internal/storage/sqlite"
)

// Day parses a YYYY-MM-DD date, panicking on bad fixtures.
func Day(s string) time.Time {
	t, err := time.ParseInLocation(domain.DayFormat, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

// DeluxeRoomType is a 4-unit room type at 120.00 a night.
func DeluxeRoomType() domain.RoomType {
	return domain.RoomType{
		ID:         "deluxe",
		HotelID:    "hotel-1",
		Name:       "Deluxe King",
		TotalUnits: 4,
		BaseRate:   decimal.RequireFromString("120.00"),
		MaxGuests:  2,
		CreatedAt:  Day("2026-01-01"),
		UpdatedAt:  Day("2026-01-01"),
	}
}

// TwinRoomType is a 2-unit room type at 90.00 a night, sized for
// contention scenarios.
func TwinRoomType() domain.RoomType {
	return domain.RoomType{
		ID:         "twin",
		HotelID:    "hotel-1",
		Name:       "Twin",
		TotalUnits: 2,
		BaseRate:   decimal.RequireFromString("90.00"),
		MaxGuests:  2,
		CreatedAt:  Day("2026-01-01"),
		UpdatedAt:  Day("2026-01-01"),
	}
}

// StandardPolicy refunds 100% at 30+ days and 50% at 7+ days.
func StandardPolicy() domain.CancellationPolicy {
	return domain.CancellationPolicy{
		ID:   "standard",
		Name: "Standard",
		Tiers: []domain.RefundTier{
			{DaysBefore: 30, Percent: decimal.NewFromInt(100)},
			{DaysBefore: 7, Percent: decimal.NewFromInt(50)},
		},
	}
}

// Guest is a stable guest record for bookings.
func Guest() domain.GuestDetails {
	return domain.GuestDetails{
		Name:  "Ada Lovelace",
		Email: "ada@example.com",
		Phone: "+44 20 7946 0000",
	}
}

// Seed loads the room types and policy into the store.
func Seed(t *testing.T, store *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.SaveRoomType(ctx, DeluxeRoomType()))
	require.NoError(t, store.SaveRoomType(ctx, TwinRoomType()))
	require.NoError(t, store.SavePolicy(ctx, StandardPolicy(), true))
}
