// Package notify delivers booking lifecycle events to interested
// listeners. Delivery is fire-and-forget: the booking engine never
// waits on, nor fails because of, a notification.
package notify

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// EventType identifies a booking lifecycle event
type EventType string

const (
	EventBookingConfirmed EventType = "booking_confirmed"
	EventBookingCancelled EventType = "booking_cancelled"
)

// BookingEvent is the payload delivered for a lifecycle event.
type BookingEvent struct {
	Type       EventType       `json:"type"`
	BookingID  string          `json:"booking_id"`
	GuestEmail string          `json:"guest_email"`
	CheckIn    string          `json:"check_in"`
	CheckOut   string          `json:"check_out"`
	Total      decimal.Decimal `json:"total"`
	Refund     decimal.Decimal `json:"refund,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Dispatcher delivers booking events. Implementations must be safe for
// concurrent use and must not block the caller on delivery failures.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt BookingEvent) error
}
