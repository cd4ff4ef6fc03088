package booking

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stayware/bookingcore/internal/domain"
	"github.com/stayware/bookingcore/internal/middleware"
	"github.com/stayware/bookingcore/internal/notify"
	"github.com/stayware/bookingcore/internal/pkg/errors"
)

// CancelResult reports the outcome of a cancellation: the booking in
// its final state, the refund owed, and the tier that produced it.
// Matched is false when no tier covers the lead time, in which case
// the refund is zero but the cancellation still takes effect.
type CancelResult struct {
	Booking        domain.Booking
	RefundAmount   decimal.Decimal
	TierDaysBefore int
	TierPercent    decimal.Decimal
	Matched        bool
}

// Cancel cancels a booking and computes the refund from the
// cancellation policy tier matching the lead time to check-in. The
// booked units are released back to inventory for every night of the
// stay inside the same transaction.
func (c *Composer) Cancel(ctx context.Context, id string) (CancelResult, error) {
	now := c.clock.Now()
	var result CancelResult

	op := func(ctx context.Context) error {
		return c.repo.WithTx(ctx, func(ctx context.Context) error {
			b, err := c.repo.Booking(ctx, id)
			if err != nil {
				return err
			}
			if !b.CanTransitionTo(domain.BookingStatusCancelled) {
				return errors.InvalidInput(fmt.Sprintf("booking %s cannot be cancelled from status %s", id, b.Status))
			}

			refund := decimal.Zero
			var tier domain.RefundTier
			matched := false
			policy, err := c.repo.DefaultPolicy(ctx)
			switch {
			case err == nil:
				lead := domain.LeadDays(b.Stay.CheckIn, now)
				tier, matched = policy.TierFor(lead)
				if matched {
					refund = b.Total.Mul(tier.Percent).Div(decimal.NewFromInt(100)).Round(2)
				}
			case errors.Is(err, errors.KindNotFound):
				// no policy configured, cancellation proceeds unrefunded
			default:
				return err
			}

			for _, line := range b.Lines {
				if err := c.ledger.ReleaseBooked(ctx, line.RoomTypeID, b.Stay, line.Quantity); err != nil {
					return err
				}
			}

			if err := b.MarkCancelled(now); err != nil {
				return errors.InvalidInput(err.Error())
			}
			if err := c.repo.UpdateBooking(ctx, b); err != nil {
				return err
			}
			if err := c.repo.AppendBookingEvent(ctx, b.ID, "cancelled",
				fmt.Sprintf("refund=%s", refund.String()), now); err != nil {
				return err
			}

			result = CancelResult{
				Booking:      b,
				RefundAmount: refund,
				Matched:      matched,
			}
			if matched {
				result.TierDaysBefore = tier.DaysBefore
				result.TierPercent = tier.Percent
			}
			return nil
		})
	}
	if err := middleware.Retry(ctx, c.logger, c.retry, op); err != nil {
		return CancelResult{}, err
	}

	c.metrics.BookingsCancelled.Inc()
	if result.RefundAmount.GreaterThan(decimal.Zero) {
		c.metrics.RefundsIssued.Inc()
	}
	c.logger.WithBookingID(id).Logger.Info().
		Str("refund", result.RefundAmount.String()).
		Bool("tier_matched", result.Matched).
		Msg("booking cancelled")

	c.notifyAsync(notify.BookingEvent{
		Type:       notify.EventBookingCancelled,
		BookingID:  result.Booking.ID,
		GuestEmail: result.Booking.Guest.Email,
		CheckIn:    result.Booking.Stay.CheckIn.Format(domain.DayFormat),
		CheckOut:   result.Booking.Stay.CheckOut.Format(domain.DayFormat),
		Total:      result.Booking.Total,
		Refund:     result.RefundAmount,
		OccurredAt: now,
	})
	return result, nil
}

// Timeline returns the audit trail of a booking, oldest first.
func (c *Composer) Timeline(ctx context.Context, id string) ([]domain.BookingEvent, error) {
	if _, err := c.repo.Booking(ctx, id); err != nil {
		return nil, err
	}
	return c.repo.BookingEvents(ctx, id)
}
