// Package booking composes durable reservations out of active holds
// and drives the booking lifecycle: creation, confirmation,
// completion, reschedule and cancellation with tiered refunds.
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stayware/bookingcore/internal/clock"
	"github.com/stayware/bookingcore/internal/domain"
	"github.com/stayware/bookingcore/internal/infrastructure/observability"
	"github.com/stayware/bookingcore/internal/ledger"
	"github.com/stayware/bookingcore/internal/middleware"
	"github.com/stayware/bookingcore/internal/notify"
	"github.com/stayware/bookingcore/internal/pkg/errors"
	"github.com/stayware/bookingcore/internal/pricing"
)

// Repository is the persistence surface the composer needs.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Hold(ctx context.Context, token string) (domain.RoomHold, error)
	SetHoldStatus(ctx context.Context, token string, status domain.HoldStatus) error
	CreateBooking(ctx context.Context, b domain.Booking) error
	Booking(ctx context.Context, id string) (domain.Booking, error)
	UpdateBooking(ctx context.Context, b domain.Booking) error
	AppendBookingEvent(ctx context.Context, bookingID, eventType, detail string, at time.Time) error
	BookingEvents(ctx context.Context, bookingID string) ([]domain.BookingEvent, error)
	RoomType(ctx context.Context, id string) (domain.RoomType, error)
	Coupon(ctx context.Context, code string) (domain.Coupon, error)
	TaxConfig(ctx context.Context, hotelID string) (domain.TaxConfig, error)
	DefaultPolicy(ctx context.Context) (domain.CancellationPolicy, error)
}

// Composer orchestrates booking creation and lifecycle transitions.
type Composer struct {
	repo       Repository
	ledger     *ledger.Ledger
	pricing    *pricing.Engine
	dispatcher notify.Dispatcher
	clock      clock.Clock
	logger     *observability.Logger
	metrics    *observability.Metrics
	retry      middleware.RetryPolicy
}

// NewComposer creates a booking composer.
func NewComposer(
	repo Repository,
	ldg *ledger.Ledger,
	eng *pricing.Engine,
	dispatcher notify.Dispatcher,
	clk clock.Clock,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Composer {
	return &Composer{
		repo:       repo,
		ledger:     ldg,
		pricing:    eng,
		dispatcher: dispatcher,
		clock:      clk,
		logger:     logger,
		metrics:    metrics,
		retry:      middleware.DefaultRetryPolicy(3),
	}
}

// CreateBookingInput describes a booking to compose out of holds.
type CreateBookingInput struct {
	HoldTokens []string
	Guest      domain.GuestDetails
	CouponCode string
}

// CreateBooking converts one or more active holds into a durable
// booking. The whole flow runs in a single transaction, strictly
// ordered: hold revalidation, then authoritative repricing, then the
// ledger and booking writes. A failure anywhere rolls everything back;
// a partially created booking is never observable.
func (c *Composer) CreateBooking(ctx context.Context, in CreateBookingInput) (domain.Booking, error) {
	if len(in.HoldTokens) == 0 {
		return domain.Booking{}, errors.InvalidInput("at least one hold token is required")
	}
	seen := make(map[string]bool, len(in.HoldTokens))
	for _, token := range in.HoldTokens {
		if seen[token] {
			return domain.Booking{}, errors.InvalidInput(fmt.Sprintf("duplicate hold token %s", token))
		}
		seen[token] = true
	}

	start := time.Now()
	now := c.clock.Now()
	var result domain.Booking

	op := func(ctx context.Context) error {
		return c.repo.WithTx(ctx, func(ctx context.Context) error {
			// Step 1: revalidate every hold against the current clock
			holds := make([]domain.RoomHold, 0, len(in.HoldTokens))
			for _, token := range in.HoldTokens {
				h, err := c.repo.Hold(ctx, token)
				if err != nil {
					return err
				}
				if !h.IsActive(now) {
					return errors.HoldExpired(fmt.Sprintf("hold %s is no longer active", token))
				}
				holds = append(holds, h)
			}
			stay := holds[0].Stay
			for _, h := range holds[1:] {
				if !h.Stay.CheckIn.Equal(stay.CheckIn) || !h.Stay.CheckOut.Equal(stay.CheckOut) {
					return errors.InvalidInput("all holds in a booking must cover the same stay")
				}
			}

			// Step 2: reprice from stored rates, never from the client
			var hotelID string
			subtotal := decimal.Zero
			lines := make([]domain.BookingLine, 0, len(holds))
			lineAmounts := make([]pricing.LineAmount, 0, len(holds))
			for _, h := range holds {
				rt, err := c.repo.RoomType(ctx, h.RoomTypeID)
				if err != nil {
					return err
				}
				if hotelID == "" {
					hotelID = rt.HotelID
				}
				quote, err := c.pricing.PriceStay(ctx, h.RoomTypeID, h.Stay, h.Quantity)
				if err != nil {
					return err
				}

				nights := int64(h.Stay.NightCount() * h.Quantity)
				lines = append(lines, domain.BookingLine{
					ID:          uuid.NewString(),
					RoomTypeID:  h.RoomTypeID,
					Quantity:    h.Quantity,
					Occupancy:   rt.MaxGuests * h.Quantity,
					NightlyRate: quote.Subtotal.Div(decimal.NewFromInt(nights)).Round(2),
					Subtotal:    quote.Subtotal,
				})
				lineAmounts = append(lineAmounts, pricing.LineAmount{
					RoomTypeID: h.RoomTypeID,
					Amount:     quote.Subtotal,
				})
				subtotal = subtotal.Add(quote.Subtotal)
			}
			subtotal = subtotal.Round(2)

			discount := decimal.Zero
			if in.CouponCode != "" {
				coupon, err := c.repo.Coupon(ctx, in.CouponCode)
				if err != nil {
					return err
				}
				discount, err = c.pricing.ApplyDiscount(lineAmounts, coupon, now)
				if err != nil {
					return err
				}
			}

			taxCfg, err := c.repo.TaxConfig(ctx, hotelID)
			if err != nil {
				return err
			}
			tax, total := c.pricing.ApplyTax(subtotal.Sub(discount), taxCfg)

			// Step 3: persist the booking and convert the holds
			b := domain.Booking{
				ID:         uuid.NewString(),
				Stay:       stay,
				Guest:      in.Guest,
				Lines:      lines,
				CouponCode: in.CouponCode,
				Subtotal:   subtotal,
				Discount:   discount,
				Tax:        tax,
				Total:      total,
				Status:     domain.BookingStatusPending,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			for i := range b.Lines {
				b.Lines[i].BookingID = b.ID
			}

			if err := c.repo.CreateBooking(ctx, b); err != nil {
				return err
			}
			for _, h := range holds {
				if err := c.ledger.ConvertToBooked(ctx, h.RoomTypeID, h.Stay, h.Quantity); err != nil {
					return err
				}
				if err := c.repo.SetHoldStatus(ctx, h.Token, domain.HoldStatusConsumed); err != nil {
					return err
				}
			}
			if err := c.repo.AppendBookingEvent(ctx, b.ID, "created",
				fmt.Sprintf("total=%s holds=%d", b.Total.String(), len(holds)), now); err != nil {
				return err
			}

			result = b
			return nil
		})
	}
	if err := middleware.Retry(ctx, c.logger, c.retry, op); err != nil {
		return domain.Booking{}, err
	}

	c.metrics.RecordBookingCreated(time.Since(start), len(in.HoldTokens))
	c.logger.WithBookingID(result.ID).Logger.Info().
		Str("total", result.Total.String()).
		Int("lines", len(result.Lines)).
		Msg("booking created")
	return result, nil
}

// Get loads a booking with its line items.
func (c *Composer) Get(ctx context.Context, id string) (domain.Booking, error) {
	return c.repo.Booking(ctx, id)
}

// Confirm transitions a pending booking to confirmed on payment
// capture or manual approval, and notifies listeners.
func (c *Composer) Confirm(ctx context.Context, id, paymentRef string) (domain.Booking, error) {
	now := c.clock.Now()
	var result domain.Booking

	op := func(ctx context.Context) error {
		return c.repo.WithTx(ctx, func(ctx context.Context) error {
			b, err := c.repo.Booking(ctx, id)
			if err != nil {
				return err
			}
			if err := b.MarkConfirmed(paymentRef, now); err != nil {
				return errors.InvalidInput(err.Error())
			}
			if err := c.repo.UpdateBooking(ctx, b); err != nil {
				return err
			}
			if err := c.repo.AppendBookingEvent(ctx, b.ID, "confirmed", paymentRef, now); err != nil {
				return err
			}
			result = b
			return nil
		})
	}
	if err := middleware.Retry(ctx, c.logger, c.retry, op); err != nil {
		return domain.Booking{}, err
	}

	c.notifyAsync(notify.BookingEvent{
		Type:       notify.EventBookingConfirmed,
		BookingID:  result.ID,
		GuestEmail: result.Guest.Email,
		CheckIn:    result.Stay.CheckIn.Format(domain.DayFormat),
		CheckOut:   result.Stay.CheckOut.Format(domain.DayFormat),
		Total:      result.Total,
		OccurredAt: now,
	})
	return result, nil
}

// Complete transitions a confirmed booking to complete after
// check-out. Administrative action, no notification.
func (c *Composer) Complete(ctx context.Context, id string) (domain.Booking, error) {
	now := c.clock.Now()
	var result domain.Booking

	op := func(ctx context.Context) error {
		return c.repo.WithTx(ctx, func(ctx context.Context) error {
			b, err := c.repo.Booking(ctx, id)
			if err != nil {
				return err
			}
			if err := b.MarkComplete(now); err != nil {
				return errors.InvalidInput(err.Error())
			}
			if err := c.repo.UpdateBooking(ctx, b); err != nil {
				return err
			}
			if err := c.repo.AppendBookingEvent(ctx, b.ID, "completed", "", now); err != nil {
				return err
			}
			result = b
			return nil
		})
	}
	if err := middleware.Retry(ctx, c.logger, c.retry, op); err != nil {
		return domain.Booking{}, err
	}
	return result, nil
}

// Reschedule moves a booking to a new stay range. Old days are
// released and new days reserved inside one transaction, so the
// booking's own occupancy never counts against the new range and a
// capacity failure leaves the original dates intact.
func (c *Composer) Reschedule(ctx context.Context, id string, newCheckIn, newCheckOut time.Time) (domain.Booking, error) {
	newStay, err := domain.NewStayRange(newCheckIn, newCheckOut)
	if err != nil {
		return domain.Booking{}, err
	}
	now := c.clock.Now()
	if newStay.StartsBefore(now) {
		return domain.Booking{}, errors.InvalidDateRange("new check-in date is in the past")
	}

	var result domain.Booking
	op := func(ctx context.Context) error {
		return c.repo.WithTx(ctx, func(ctx context.Context) error {
			b, err := c.repo.Booking(ctx, id)
			if err != nil {
				return err
			}
			if b.Status != domain.BookingStatusPending && b.Status != domain.BookingStatusConfirmed {
				return errors.InvalidInput(fmt.Sprintf("booking %s cannot be rescheduled from status %s", id, b.Status))
			}

			oldStay := b.Stay
			for _, line := range b.Lines {
				if err := c.ledger.ReleaseBooked(ctx, line.RoomTypeID, oldStay, line.Quantity); err != nil {
					return err
				}
				if err := c.ledger.ReserveBooked(ctx, line.RoomTypeID, newStay, line.Quantity, now); err != nil {
					if errors.Is(err, errors.KindCapacityExceeded) {
						return errors.SlotUnavailable(err.Error())
					}
					return err
				}
			}

			b.Stay = newStay
			b.UpdatedAt = now
			if err := c.repo.UpdateBooking(ctx, b); err != nil {
				return err
			}
			detail := fmt.Sprintf("%s..%s -> %s..%s",
				oldStay.CheckIn.Format(domain.DayFormat), oldStay.CheckOut.Format(domain.DayFormat),
				newStay.CheckIn.Format(domain.DayFormat), newStay.CheckOut.Format(domain.DayFormat))
			if err := c.repo.AppendBookingEvent(ctx, b.ID, "rescheduled", detail, now); err != nil {
				return err
			}
			result = b
			return nil
		})
	}
	if err := middleware.Retry(ctx, c.logger, c.retry, op); err != nil {
		return domain.Booking{}, err
	}

	c.metrics.BookingsRescheduled.Inc()
	c.logger.WithBookingID(id).Logger.Info().Msg("booking rescheduled")
	return result, nil
}

// notifyAsync delivers an event without blocking the caller. Delivery
// failures are logged by the dispatcher and never surface here.
func (c *Composer) notifyAsync(evt notify.BookingEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = c.dispatcher.Dispatch(ctx, evt)
	}()
}
