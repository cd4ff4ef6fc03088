package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stayware/bookingcore/internal/pkg/errors"
)

// RoomType is a class of sellable inventory ("Deluxe King"), not a
// physical room instance. TotalUnits bounds per-day occupancy.
type RoomType struct {
	ID         string
	HotelID    string
	Name       string
	TotalUnits int
	BaseRate   decimal.Decimal
	MaxGuests  int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewRoomType creates a room type, validating its capacity and rate.
// A zero maxGuests defaults to double occupancy.
func NewRoomType(id, hotelID, name string, totalUnits, maxGuests int, baseRate decimal.Decimal, now time.Time) (RoomType, error) {
	if id == "" {
		return RoomType{}, errors.InvalidInput("room type ID cannot be empty")
	}
	if name == "" {
		return RoomType{}, errors.InvalidInput("room type name cannot be empty")
	}
	if totalUnits <= 0 {
		return RoomType{}, errors.InvalidInput("total units must be greater than zero")
	}
	if baseRate.LessThanOrEqual(decimal.Zero) {
		return RoomType{}, errors.InvalidInput("base rate must be greater than zero")
	}
	if maxGuests <= 0 {
		maxGuests = 2
	}

	return RoomType{
		ID:         id,
		HotelID:    hotelID,
		Name:       name,
		TotalUnits: totalUnits,
		BaseRate:   baseRate,
		MaxGuests:  maxGuests,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// InventoryDay is the per (room_type, calendar day) capacity ledger row.
// Invariant: HeldUnits + BookedUnits <= TotalUnits. Rows are materialized
// lazily with full availability the first time a day is touched and are
// never deleted.
type InventoryDay struct {
	RoomTypeID  string
	Day         time.Time
	TotalUnits  int
	HeldUnits   int
	BookedUnits int
}

// Available returns the units still sellable for the day.
func (d InventoryDay) Available() int {
	return d.TotalUnits - d.HeldUnits - d.BookedUnits
}

// RateOverride pins a day-specific nightly rate for a room type,
// taking precedence over the base rate.
type RateOverride struct {
	RoomTypeID string
	Day        time.Time
	Rate       decimal.Decimal
}
