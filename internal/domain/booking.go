package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusComplete  BookingStatus = "complete"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// GuestDetails identifies the principal a booking is made for.
type GuestDetails struct {
	Name  string
	Email string
	Phone string
}

// BookingLine is one room-type line item of a booking. NightlyRate is a
// snapshot of the per-night unit price at booking time; Subtotal is
// rate x nights x quantity rounded to two decimals.
type BookingLine struct {
	ID          string
	BookingID   string
	RoomTypeID  string
	Quantity    int
	Occupancy   int
	NightlyRate decimal.Decimal
	Subtotal    decimal.Decimal
}

// Booking is the durable reservation created from one or more consumed
// holds. It owns its lines; they are deleted together.
type Booking struct {
	ID         string
	Stay       StayRange
	Guest      GuestDetails
	Lines      []BookingLine
	CouponCode string
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Tax        decimal.Decimal
	Total      decimal.Decimal
	Status     BookingStatus
	PaymentRef string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CanTransitionTo reports whether the status change is a legal
// lifecycle step.
func (b *Booking) CanTransitionTo(next BookingStatus) bool {
	switch next {
	case BookingStatusConfirmed:
		return b.Status == BookingStatusPending
	case BookingStatusComplete:
		return b.Status == BookingStatusConfirmed
	case BookingStatusCancelled:
		return b.Status == BookingStatusPending || b.Status == BookingStatusConfirmed
	default:
		return false
	}
}

// MarkConfirmed records payment capture or admin approval.
func (b *Booking) MarkConfirmed(paymentRef string, now time.Time) error {
	if !b.CanTransitionTo(BookingStatusConfirmed) {
		return fmt.Errorf("booking %s cannot be confirmed from status %s", b.ID, b.Status)
	}
	b.Status = BookingStatusConfirmed
	b.PaymentRef = paymentRef
	b.UpdatedAt = now
	return nil
}

// MarkComplete records administrative post-check-out completion.
func (b *Booking) MarkComplete(now time.Time) error {
	if !b.CanTransitionTo(BookingStatusComplete) {
		return fmt.Errorf("booking %s cannot be completed from status %s", b.ID, b.Status)
	}
	b.Status = BookingStatusComplete
	b.UpdatedAt = now
	return nil
}

// MarkCancelled records cancellation; ledger release happens alongside.
func (b *Booking) MarkCancelled(now time.Time) error {
	if !b.CanTransitionTo(BookingStatusCancelled) {
		return fmt.Errorf("booking %s cannot be cancelled from status %s", b.ID, b.Status)
	}
	b.Status = BookingStatusCancelled
	b.UpdatedAt = now
	return nil
}

// BookingEvent is one entry in a booking's audit timeline.
type BookingEvent struct {
	ID        int64
	BookingID string
	EventType string
	Detail    string
	CreatedAt time.Time
}
