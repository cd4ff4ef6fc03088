// Package ledger is the source of truth for day-granularity room
// capacity: per (room type, calendar day) counters of total, held and
// booked units. Every mutating entry point reclaims expired holds
// before it evaluates capacity, so availability is correct at read time
// without a background sweeper.
package ledger

import (
	"context"
	"time"

	"github.com/stayware/bookingcore/internal/domain"
	"github.com/stayware/bookingcore/internal/infrastructure/observability"
)

// Repository is the persistence surface the ledger needs. Implemented
// by the sqlite store; all methods observe the transaction carried by
// ctx.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	RoomType(ctx context.Context, id string) (domain.RoomType, error)
	EnsureDay(ctx context.Context, roomTypeID string, day time.Time, totalUnits int) error
	InventoryDay(ctx context.Context, roomTypeID string, day time.Time) (domain.InventoryDay, error)
	AddHeld(ctx context.Context, roomTypeID string, day time.Time, qty int) error
	SubHeld(ctx context.Context, roomTypeID string, day time.Time, qty int) error
	AddBooked(ctx context.Context, roomTypeID string, day time.Time, qty int) error
	SubBooked(ctx context.Context, roomTypeID string, day time.Time, qty int) error
	ConvertHeldToBooked(ctx context.Context, roomTypeID string, day time.Time, qty int) error
	StaleHolds(ctx context.Context, roomTypeID string, now time.Time) ([]domain.RoomHold, error)
	SetHoldStatus(ctx context.Context, token string, status domain.HoldStatus) error
}

// Ledger mediates all held/booked unit mutations. Multi-day operations
// walk days in ascending date order inside a single transaction, which
// keeps lock acquisition deterministic between overlapping requests.
type Ledger struct {
	repo    Repository
	logger  *observability.Logger
	metrics *observability.Metrics
}

// New creates a ledger over the given repository.
func New(repo Repository, logger *observability.Logger, metrics *observability.Metrics) *Ledger {
	return &Ledger{repo: repo, logger: logger, metrics: metrics}
}

// DayAvailability is the sellable unit count for one calendar day.
type DayAvailability struct {
	Day       time.Time
	Total     int
	Held      int
	Booked    int
	Available int
}

// Availability reports per-day available units (total - held - booked)
// for the stay range, materializing missing days with full availability
// and reclaiming expired holds first.
func (l *Ledger) Availability(ctx context.Context, roomTypeID string, stay domain.StayRange, now time.Time) ([]DayAvailability, error) {
	var days []DayAvailability
	err := l.repo.WithTx(ctx, func(ctx context.Context) error {
		rt, err := l.repo.RoomType(ctx, roomTypeID)
		if err != nil {
			return err
		}
		if _, err := l.ReclaimExpired(ctx, roomTypeID, now); err != nil {
			return err
		}

		for _, night := range stay.Nights() {
			if err := l.repo.EnsureDay(ctx, roomTypeID, night, rt.TotalUnits); err != nil {
				return err
			}
			d, err := l.repo.InventoryDay(ctx, roomTypeID, night)
			if err != nil {
				return err
			}
			days = append(days, DayAvailability{
				Day:       d.Day,
				Total:     d.TotalUnits,
				Held:      d.HeldUnits,
				Booked:    d.BookedUnits,
				Available: d.Available(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return days, nil
}

// Reserve adds qty to held_units for every night of the stay. Fails
// with CapacityExceeded on the first day that cannot fit; the ambient
// transaction rolls earlier days back, so a reservation is all days or
// nothing. Must be called inside a transaction.
func (l *Ledger) Reserve(ctx context.Context, roomTypeID string, stay domain.StayRange, qty int, now time.Time) error {
	rt, err := l.repo.RoomType(ctx, roomTypeID)
	if err != nil {
		return err
	}
	if _, err := l.ReclaimExpired(ctx, roomTypeID, now); err != nil {
		return err
	}

	for _, night := range stay.Nights() {
		if err := l.repo.EnsureDay(ctx, roomTypeID, night, rt.TotalUnits); err != nil {
			return err
		}
		if err := l.repo.AddHeld(ctx, roomTypeID, night, qty); err != nil {
			return err
		}
	}
	return nil
}

// Release returns qty held units to availability for every night of
// the stay. Must be called inside a transaction.
func (l *Ledger) Release(ctx context.Context, roomTypeID string, stay domain.StayRange, qty int) error {
	for _, night := range stay.Nights() {
		if err := l.repo.SubHeld(ctx, roomTypeID, night, qty); err != nil {
			return err
		}
	}
	return nil
}

// ConvertToBooked moves qty units from held to booked for every night,
// leaving net availability unchanged. Used when a hold becomes a
// booking.
func (l *Ledger) ConvertToBooked(ctx context.Context, roomTypeID string, stay domain.StayRange, qty int) error {
	for _, night := range stay.Nights() {
		if err := l.repo.ConvertHeldToBooked(ctx, roomTypeID, night, qty); err != nil {
			return err
		}
	}
	return nil
}

// ReserveBooked adds qty directly to booked_units for every night,
// reclaiming expired holds first. Used by reschedule, which has no
// intermediate hold.
func (l *Ledger) ReserveBooked(ctx context.Context, roomTypeID string, stay domain.StayRange, qty int, now time.Time) error {
	rt, err := l.repo.RoomType(ctx, roomTypeID)
	if err != nil {
		return err
	}
	if _, err := l.ReclaimExpired(ctx, roomTypeID, now); err != nil {
		return err
	}

	for _, night := range stay.Nights() {
		if err := l.repo.EnsureDay(ctx, roomTypeID, night, rt.TotalUnits); err != nil {
			return err
		}
		if err := l.repo.AddBooked(ctx, roomTypeID, night, qty); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseBooked returns qty booked units to availability for every
// night. Used by cancellation and reschedule.
func (l *Ledger) ReleaseBooked(ctx context.Context, roomTypeID string, stay domain.StayRange, qty int) error {
	for _, night := range stay.Nights() {
		if err := l.repo.SubBooked(ctx, roomTypeID, night, qty); err != nil {
			return err
		}
	}
	return nil
}

// ReclaimExpired lazily releases every active hold for the room type
// whose expiry has passed: its held units go back to availability and
// the hold is marked expired, all inside the ambient transaction.
// Returns the number of holds reclaimed.
func (l *Ledger) ReclaimExpired(ctx context.Context, roomTypeID string, now time.Time) (int, error) {
	stale, err := l.repo.StaleHolds(ctx, roomTypeID, now)
	if err != nil {
		return 0, err
	}

	for _, h := range stale {
		for _, night := range h.Stay.Nights() {
			if err := l.repo.SubHeld(ctx, h.RoomTypeID, night, h.Quantity); err != nil {
				return 0, err
			}
		}
		if err := l.repo.SetHoldStatus(ctx, h.Token, domain.HoldStatusExpired); err != nil {
			return 0, err
		}
		l.logger.WithHoldToken(h.Token).WithRoomType(h.RoomTypeID).Logger.Debug().
			Int("quantity", h.Quantity).
			Msg("reclaimed expired hold")
	}
	if len(stale) > 0 {
		l.metrics.RecordHoldsExpired(len(stale))
	}
	return len(stale), nil
}
