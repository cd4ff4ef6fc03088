package domain

import "time"

// HoldStatus represents the lifecycle state of a room hold
type HoldStatus string

const (
	// HoldStatusActive counts against ledger capacity until its expiry passes
	HoldStatusActive HoldStatus = "active"
	// HoldStatusConsumed means the hold was converted into a booking
	HoldStatusConsumed HoldStatus = "consumed"
	// HoldStatusReleased means the client cancelled the hold explicitly
	HoldStatusReleased HoldStatus = "released"
	// HoldStatusExpired means the TTL elapsed and the units were reclaimed
	HoldStatusExpired HoldStatus = "expired"
)

// RoomHold is a time-boxed soft reservation against the inventory
// ledger. A hold past its expiry is nonexistent to every reader even if
// the row has not been reclaimed yet; reclamation happens lazily the
// next time any operation touches the room type.
type RoomHold struct {
	Token      string
	RoomTypeID string
	Stay       StayRange
	Quantity   int
	OwnerID    string
	Status     HoldStatus
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// IsActive reports whether the hold still counts against capacity at
// the given instant.
func (h RoomHold) IsActive(now time.Time) bool {
	return h.Status == HoldStatusActive && h.ExpiresAt.After(now)
}
