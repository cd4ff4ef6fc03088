// Package pricing computes nightly rates, booking subtotals, coupon
// discounts and tax. Money is decimal throughout; intermediate
// products stay unrounded and only aggregate outputs are rounded to
// two decimals.
package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stayware/bookingcore/internal/domain"
	"github.com/stayware/bookingcore/internal/ledger"
	"github.com/stayware/bookingcore/internal/pkg/errors"
)

// RateSource supplies base rates and day-wise overrides.
type RateSource interface {
	RoomType(ctx context.Context, id string) (domain.RoomType, error)
	RateOverrides(ctx context.Context, roomTypeID string, stay domain.StayRange) (map[string]decimal.Decimal, error)
}

// AvailabilitySource answers whether a room type is sellable per day.
type AvailabilitySource interface {
	Availability(ctx context.Context, roomTypeID string, stay domain.StayRange, now time.Time) ([]ledger.DayAvailability, error)
}

// Engine prices stays. It never trusts client-supplied amounts; every
// quote is recomputed from stored rates.
type Engine struct {
	rates        RateSource
	availability AvailabilitySource
}

// NewEngine creates a pricing engine.
func NewEngine(rates RateSource, availability AvailabilitySource) *Engine {
	return &Engine{rates: rates, availability: availability}
}

// NightRate is the per-unit price of one night of the stay.
type NightRate struct {
	Day  time.Time
	Rate decimal.Decimal
}

// Quote is a priced stay: the nightly breakdown and the aggregate
// subtotal (rate x nights x quantity, rounded once at the end).
type Quote struct {
	RoomTypeID string
	Stay       domain.StayRange
	Quantity   int
	Nights     []NightRate
	Subtotal   decimal.Decimal
}

// Quote prices a prospective stay, first verifying the room type is
// sellable (qty units available) on every requested day.
func (e *Engine) Quote(ctx context.Context, roomTypeID string, stay domain.StayRange, qty int, now time.Time) (Quote, error) {
	if qty <= 0 {
		return Quote{}, errors.InvalidInput("quantity must be positive")
	}

	days, err := e.availability.Availability(ctx, roomTypeID, stay, now)
	if err != nil {
		return Quote{}, err
	}
	for _, d := range days {
		if d.Available < qty {
			return Quote{}, errors.SlotUnavailable(fmt.Sprintf(
				"room type %s has %d of %d requested units on %s",
				roomTypeID, d.Available, qty, d.Day.Format(domain.DayFormat)))
		}
	}

	return e.PriceStay(ctx, roomTypeID, stay, qty)
}

// PriceStay computes the nightly breakdown without an availability
// gate. The booking composer uses it when repricing holds it already
// owns, whose reserved units would otherwise count against themselves.
func (e *Engine) PriceStay(ctx context.Context, roomTypeID string, stay domain.StayRange, qty int) (Quote, error) {
	if qty <= 0 {
		return Quote{}, errors.InvalidInput("quantity must be positive")
	}

	rt, err := e.rates.RoomType(ctx, roomTypeID)
	if err != nil {
		return Quote{}, err
	}
	overrides, err := e.rates.RateOverrides(ctx, roomTypeID, stay)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{RoomTypeID: roomTypeID, Stay: stay, Quantity: qty}
	total := decimal.Zero
	for _, night := range stay.Nights() {
		rate := rt.BaseRate
		if override, ok := overrides[night.Format(domain.DayFormat)]; ok {
			rate = override
		}
		q.Nights = append(q.Nights, NightRate{Day: night, Rate: rate})
		total = total.Add(rate)
	}

	q.Subtotal = total.Mul(decimal.NewFromInt(int64(qty))).Round(2)
	return q, nil
}

// LineAmount is one room-type share of an order subtotal, used to scope
// room-type coupons.
type LineAmount struct {
	RoomTypeID string
	Amount     decimal.Decimal
}

// ApplyDiscount computes the coupon discount over the given lines,
// rounded to two decimals. Percentage coupons take their share of the
// scoped base; fixed coupons subtract directly. Either way the discount
// is capped at the scoped base, so a discount can never push an amount
// negative. A room-type coupon that matches none of the lines discounts
// nothing.
func (e *Engine) ApplyDiscount(lines []LineAmount, coupon domain.Coupon, now time.Time) (decimal.Decimal, error) {
	if !coupon.Usable(now) {
		return decimal.Zero, errors.CouponInvalid(fmt.Sprintf("coupon %q is not usable", coupon.Code))
	}

	base := decimal.Zero
	for _, line := range lines {
		if coupon.Scope == domain.DiscountScopeRoomType && line.RoomTypeID != coupon.RoomTypeID {
			continue
		}
		base = base.Add(line.Amount)
	}
	if base.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, nil
	}

	var discount decimal.Decimal
	switch coupon.Type {
	case domain.DiscountTypePercentage:
		discount = base.Mul(coupon.Amount).Div(decimal.NewFromInt(100))
	case domain.DiscountTypeFixed:
		discount = coupon.Amount
	default:
		return decimal.Zero, errors.CouponInvalid(fmt.Sprintf("unknown discount type %q", coupon.Type))
	}
	if discount.GreaterThan(base) {
		discount = base
	}

	return discount.Round(2), nil
}

// ApplyTax applies the tax configuration to an amount. Exclusive mode
// adds tax on top; inclusive mode backs the tax share out of the
// amount. Both outputs are rounded to two decimals.
func (e *Engine) ApplyTax(amount decimal.Decimal, cfg domain.TaxConfig) (tax, total decimal.Decimal) {
	rate := cfg.Rate.Div(decimal.NewFromInt(100))

	switch cfg.Mode {
	case domain.TaxModeInclusive:
		// amount already contains tax; recover the pre-tax share
		pretax := amount.Div(decimal.NewFromInt(1).Add(rate))
		tax = amount.Sub(pretax).Round(2)
		total = amount.Round(2)
	default:
		tax = amount.Mul(rate).Round(2)
		total = amount.Add(tax).Round(2)
	}
	return tax, total
}
