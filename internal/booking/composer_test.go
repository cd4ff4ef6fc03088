package booking

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayware/bookingcore/internal/clock"
	"github.com/stayware/bookingcore/internal/domain"
	"github.com/stayware/bookingcore/internal/holds"
	"github.com/stayware/bookingcore/internal/infrastructure/observability"
	"github.com/stayware/bookingcore/internal/ledger"
	"github.com/stayware/bookingcore/internal/notify"
	"github.com/stayware/bookingcore/internal/pkg/errors"
	"github.com/stayware/bookingcore/internal/pricing"
	"github.com/stayware/bookingcore/internal/storage/sqlite"
)

func day(s string) time.Time {
	t, err := time.ParseInLocation(domain.DayFormat, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

type testEnv struct {
	composer   *Composer
	holds      *holds.Manager
	ledger     *ledger.Ledger
	store      *sqlite.Store
	clock      *clock.Fixed
	dispatcher *notify.MockDispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.Open(t.TempDir()+"/booking.db", 1)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	seedRoomType(t, store, "deluxe", 4, "120.00")
	seedRoomType(t, store, "standard", 6, "80.00")
	require.NoError(t, store.SaveTaxConfig(ctx, "hotel-1", domain.TaxConfig{
		Mode: domain.TaxModeExclusive,
		Rate: decimal.RequireFromString("10"),
	}))
	require.NoError(t, store.SavePolicy(ctx, domain.CancellationPolicy{
		ID:   "standard",
		Name: "Standard",
		Tiers: []domain.RefundTier{
			{DaysBefore: 30, Percent: decimal.NewFromInt(100)},
			{DaysBefore: 7, Percent: decimal.NewFromInt(50)},
		},
	}, true))

	clk := clock.NewFixed(day("2026-09-01").Add(12 * time.Hour))
	logger := observability.NewNopLogger()
	metrics := observability.NewMetricsWith(prometheus.NewRegistry())
	dispatcher := notify.NewMockDispatcher()

	ldg := ledger.New(store, logger, metrics)
	eng := pricing.NewEngine(store, ldg)
	holdMgr := holds.NewManager(store, ldg, clk, logger, metrics)
	composer := NewComposer(store, ldg, eng, dispatcher, clk, logger, metrics)

	return &testEnv{
		composer:   composer,
		holds:      holdMgr,
		ledger:     ldg,
		store:      store,
		clock:      clk,
		dispatcher: dispatcher,
	}
}

func seedRoomType(t *testing.T, store *sqlite.Store, id string, units int, rate string) {
	t.Helper()
	rt := domain.RoomType{
		ID:         id,
		HotelID:    "hotel-1",
		Name:       id,
		TotalUnits: units,
		BaseRate:   decimal.RequireFromString(rate),
		MaxGuests:  2,
		CreatedAt:  day("2026-01-01"),
		UpdatedAt:  day("2026-01-01"),
	}
	require.NoError(t, store.SaveRoomType(context.Background(), rt))
}

func (e *testEnv) hold(t *testing.T, roomType string, qty int, in, out string) domain.RoomHold {
	t.Helper()
	h, err := e.holds.CreateHold(context.Background(), holds.CreateHoldInput{
		RoomTypeID: roomType,
		CheckIn:    day(in),
		CheckOut:   day(out),
		Quantity:   qty,
		OwnerID:    "guest-1",
	})
	require.NoError(t, err)
	return h
}

func (e *testEnv) available(t *testing.T, roomType, in, out string) int {
	t.Helper()
	stay, err := domain.NewStayRange(day(in), day(out))
	require.NoError(t, err)
	days, err := e.ledger.Availability(context.Background(), roomType, stay, e.clock.Now())
	require.NoError(t, err)

	min := days[0].Available
	for _, d := range days {
		if d.Available < min {
			min = d.Available
		}
	}
	return min
}

func guest() domain.GuestDetails {
	return domain.GuestDetails{Name: "Ada Lovelace", Email: "ada@example.com", Phone: "+44 20 7946 0000"}
}

func TestCreateBooking_SingleHold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	h := env.hold(t, "deluxe", 2, "2026-09-10", "2026-09-13")
	b, err := env.composer.CreateBooking(ctx, CreateBookingInput{
		HoldTokens: []string{h.Token},
		Guest:      guest(),
	})
	require.NoError(t, err)

	// 120 x 3 nights x 2 units = 720, plus 10% exclusive tax
	assert.True(t, b.Subtotal.Equal(decimal.RequireFromString("720.00")), b.Subtotal.String())
	assert.True(t, b.Discount.IsZero())
	assert.True(t, b.Tax.Equal(decimal.RequireFromString("72.00")), b.Tax.String())
	assert.True(t, b.Total.Equal(decimal.RequireFromString("792.00")), b.Total.String())
	assert.Equal(t, domain.BookingStatusPending, b.Status)
	require.Len(t, b.Lines, 1)
	assert.Equal(t, 2, b.Lines[0].Quantity)

	// held units became booked units; net availability unchanged
	assert.Equal(t, 2, env.available(t, "deluxe", "2026-09-10", "2026-09-13"))

	// the consumed hold can no longer back another booking
	consumed, err := env.store.Hold(ctx, h.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldStatusConsumed, consumed.Status)

	_, err = env.composer.CreateBooking(ctx, CreateBookingInput{
		HoldTokens: []string{h.Token},
		Guest:      guest(),
	})
	assert.True(t, errors.Is(err, errors.KindHoldExpired))
}

func TestCreateBooking_MultiRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	h1 := env.hold(t, "deluxe", 1, "2026-09-10", "2026-09-12")
	h2 := env.hold(t, "standard", 2, "2026-09-10", "2026-09-12")

	b, err := env.composer.CreateBooking(ctx, CreateBookingInput{
		HoldTokens: []string{h1.Token, h2.Token},
		Guest:      guest(),
	})
	require.NoError(t, err)

	// deluxe 120x2x1 + standard 80x2x2 = 240 + 320
	assert.True(t, b.Subtotal.Equal(decimal.RequireFromString("560.00")), b.Subtotal.String())
	require.Len(t, b.Lines, 2)
}

func TestCreateBooking_MismatchedStays(t *testing.T) {
	env := newTestEnv(t)

	h1 := env.hold(t, "deluxe", 1, "2026-09-10", "2026-09-12")
	h2 := env.hold(t, "standard", 1, "2026-09-11", "2026-09-13")

	_, err := env.composer.CreateBooking(context.Background(), CreateBookingInput{
		HoldTokens: []string{h1.Token, h2.Token},
		Guest:      guest(),
	})
	assert.True(t, errors.Is(err, errors.KindInvalidInput))
}

func TestCreateBooking_ExpiredHold(t *testing.T) {
	env := newTestEnv(t)

	h := env.hold(t, "deluxe", 1, "2026-09-10", "2026-09-12")
	env.clock.Advance(holds.DefaultTTL + time.Second)

	_, err := env.composer.CreateBooking(context.Background(), CreateBookingInput{
		HoldTokens: []string{h.Token},
		Guest:      guest(),
	})
	assert.True(t, errors.Is(err, errors.KindHoldExpired))
}

func TestCreateBooking_OrderCoupon(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.SaveCoupon(ctx, domain.Coupon{
		Code:       "SAVE10",
		Type:       domain.DiscountTypePercentage,
		Scope:      domain.DiscountScopeOrder,
		Amount:     decimal.NewFromInt(10),
		ValidFrom:  day("2026-01-01"),
		ValidUntil: day("2026-12-31"),
		Active:     true,
	}))

	h := env.hold(t, "deluxe", 1, "2026-09-10", "2026-09-13")
	b, err := env.composer.CreateBooking(ctx, CreateBookingInput{
		HoldTokens: []string{h.Token},
		Guest:      guest(),
		CouponCode: "SAVE10",
	})
	require.NoError(t, err)

	// 360 - 36 discount = 324, + 10% tax
	assert.True(t, b.Discount.Equal(decimal.RequireFromString("36.00")), b.Discount.String())
	assert.True(t, b.Tax.Equal(decimal.RequireFromString("32.40")), b.Tax.String())
	assert.True(t, b.Total.Equal(decimal.RequireFromString("356.40")), b.Total.String())
}

func TestCreateBooking_OverfullCouponNeverGoesNegative(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.SaveCoupon(ctx, domain.Coupon{
		Code:       "ALL150",
		Type:       domain.DiscountTypePercentage,
		Scope:      domain.DiscountScopeOrder,
		Amount:     decimal.NewFromInt(150),
		ValidFrom:  day("2026-01-01"),
		ValidUntil: day("2026-12-31"),
		Active:     true,
	}))

	h := env.hold(t, "deluxe", 1, "2026-09-10", "2026-09-13")
	b, err := env.composer.CreateBooking(ctx, CreateBookingInput{
		HoldTokens: []string{h.Token},
		Guest:      guest(),
		CouponCode: "ALL150",
	})
	require.NoError(t, err)

	// the discount is capped at the subtotal, leaving a free booking
	assert.True(t, b.Discount.Equal(decimal.RequireFromString("360.00")), b.Discount.String())
	assert.True(t, b.Tax.IsZero(), b.Tax.String())
	assert.True(t, b.Total.IsZero(), b.Total.String())
}

func TestCreateBooking_RoomTypeCouponScopesToLine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.SaveCoupon(ctx, domain.Coupon{
		Code:       "DELUXE50",
		Type:       domain.DiscountTypePercentage,
		Scope:      domain.DiscountScopeRoomType,
		RoomTypeID: "deluxe",
		Amount:     decimal.NewFromInt(50),
		ValidFrom:  day("2026-01-01"),
		ValidUntil: day("2026-12-31"),
		Active:     true,
	}))

	h1 := env.hold(t, "deluxe", 1, "2026-09-10", "2026-09-12")
	h2 := env.hold(t, "standard", 1, "2026-09-10", "2026-09-12")

	b, err := env.composer.CreateBooking(ctx, CreateBookingInput{
		HoldTokens: []string{h1.Token, h2.Token},
		Guest:      guest(),
		CouponCode: "DELUXE50",
	})
	require.NoError(t, err)

	// only the 240 deluxe line is discounted
	assert.True(t, b.Discount.Equal(decimal.RequireFromString("120.00")), b.Discount.String())
}

func TestCreateBooking_UnknownCoupon(t *testing.T) {
	env := newTestEnv(t)

	h := env.hold(t, "deluxe", 1, "2026-09-10", "2026-09-12")
	_, err := env.composer.CreateBooking(context.Background(), CreateBookingInput{
		HoldTokens: []string{h.Token},
		Guest:      guest(),
		CouponCode: "NO-SUCH-CODE",
	})
	assert.True(t, errors.Is(err, errors.KindCouponInvalid))

	// the failed booking must not consume the hold
	got, err := env.store.Hold(context.Background(), h.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldStatusActive, got.Status)
}

func TestConfirm_RecordsPaymentAndNotifies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	h := env.hold(t, "deluxe", 1, "2026-09-10", "2026-09-12")
	b, err := env.composer.CreateBooking(ctx, CreateBookingInput{HoldTokens: []string{h.Token}, Guest: guest()})
	require.NoError(t, err)

	confirmed, err := env.composer.Confirm(ctx, b.ID, "pay-789")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, confirmed.Status)
	assert.Equal(t, "pay-789", confirmed.PaymentRef)

	require.Eventually(t, func() bool {
		return len(env.dispatcher.Events()) == 1
	}, time.Second, 10*time.Millisecond)
	evt := env.dispatcher.Events()[0]
	assert.Equal(t, notify.EventBookingConfirmed, evt.Type)
	assert.Equal(t, b.ID, evt.BookingID)
}

func TestComplete_OnlyFromConfirmed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	h := env.hold(t, "deluxe", 1, "2026-09-10", "2026-09-12")
	b, err := env.composer.CreateBooking(ctx, CreateBookingInput{HoldTokens: []string{h.Token}, Guest: guest()})
	require.NoError(t, err)

	_, err = env.composer.Complete(ctx, b.ID)
	assert.True(t, errors.Is(err, errors.KindInvalidInput))

	_, err = env.composer.Confirm(ctx, b.ID, "pay-1")
	require.NoError(t, err)
	completed, err := env.composer.Complete(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusComplete, completed.Status)
}

func TestCancel_RefundTiers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// lead time 39 days hits the 100% tier
	h := env.hold(t, "deluxe", 1, "2026-10-10", "2026-10-12")
	b, err := env.composer.CreateBooking(ctx, CreateBookingInput{HoldTokens: []string{h.Token}, Guest: guest()})
	require.NoError(t, err)

	result, err := env.composer.Cancel(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, 30, result.TierDaysBefore)
	assert.True(t, result.RefundAmount.Equal(b.Total), result.RefundAmount.String())
	assert.Equal(t, domain.BookingStatusCancelled, result.Booking.Status)

	// cancelled units are back on sale
	assert.Equal(t, 4, env.available(t, "deluxe", "2026-10-10", "2026-10-12"))
}

func TestCancel_PartialRefundTier(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// lead time 9 days hits the 50% tier
	h := env.hold(t, "deluxe", 2, "2026-09-10", "2026-09-12")
	b, err := env.composer.CreateBooking(ctx, CreateBookingInput{HoldTokens: []string{h.Token}, Guest: guest()})
	require.NoError(t, err)

	result, err := env.composer.Cancel(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, 7, result.TierDaysBefore)

	half := b.Total.Div(decimal.NewFromInt(2)).Round(2)
	assert.True(t, result.RefundAmount.Equal(half), result.RefundAmount.String())
}

func TestCancel_NoTierStillCancels(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// lead time 2 days is below every threshold
	h := env.hold(t, "deluxe", 1, "2026-09-03", "2026-09-05")
	b, err := env.composer.CreateBooking(ctx, CreateBookingInput{HoldTokens: []string{h.Token}, Guest: guest()})
	require.NoError(t, err)

	result, err := env.composer.Cancel(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.True(t, result.RefundAmount.IsZero())
	assert.Equal(t, domain.BookingStatusCancelled, result.Booking.Status)
	assert.Equal(t, 4, env.available(t, "deluxe", "2026-09-03", "2026-09-05"))
}

func TestCancel_TwiceFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	h := env.hold(t, "deluxe", 1, "2026-09-10", "2026-09-12")
	b, err := env.composer.CreateBooking(ctx, CreateBookingInput{HoldTokens: []string{h.Token}, Guest: guest()})
	require.NoError(t, err)

	_, err = env.composer.Cancel(ctx, b.ID)
	require.NoError(t, err)
	_, err = env.composer.Cancel(ctx, b.ID)
	assert.True(t, errors.Is(err, errors.KindInvalidInput))
}

func TestReschedule_MovesInventory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	h := env.hold(t, "deluxe", 2, "2026-09-10", "2026-09-12")
	b, err := env.composer.CreateBooking(ctx, CreateBookingInput{HoldTokens: []string{h.Token}, Guest: guest()})
	require.NoError(t, err)

	moved, err := env.composer.Reschedule(ctx, b.ID, day("2026-09-20"), day("2026-09-22"))
	require.NoError(t, err)
	assert.Equal(t, day("2026-09-20"), moved.Stay.CheckIn)

	// price snapshot is preserved across the move
	assert.True(t, moved.Total.Equal(b.Total))

	assert.Equal(t, 4, env.available(t, "deluxe", "2026-09-10", "2026-09-12"))
	assert.Equal(t, 2, env.available(t, "deluxe", "2026-09-20", "2026-09-22"))
}

func TestReschedule_OverlappingRangeDoesNotSelfBlock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// book all 4 units, then shift by one night into its own range
	h := env.hold(t, "deluxe", 4, "2026-09-10", "2026-09-13")
	b, err := env.composer.CreateBooking(ctx, CreateBookingInput{HoldTokens: []string{h.Token}, Guest: guest()})
	require.NoError(t, err)

	_, err = env.composer.Reschedule(ctx, b.ID, day("2026-09-11"), day("2026-09-14"))
	require.NoError(t, err)

	assert.Equal(t, 4, env.available(t, "deluxe", "2026-09-10", "2026-09-11"))
	assert.Equal(t, 0, env.available(t, "deluxe", "2026-09-11", "2026-09-14"))
}

func TestReschedule_FailsWhenTargetFull(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	blocker := env.hold(t, "deluxe", 4, "2026-09-20", "2026-09-22")
	_, err := env.composer.CreateBooking(ctx, CreateBookingInput{HoldTokens: []string{blocker.Token}, Guest: guest()})
	require.NoError(t, err)

	h := env.hold(t, "deluxe", 2, "2026-09-10", "2026-09-12")
	b, err := env.composer.CreateBooking(ctx, CreateBookingInput{HoldTokens: []string{h.Token}, Guest: guest()})
	require.NoError(t, err)

	_, err = env.composer.Reschedule(ctx, b.ID, day("2026-09-20"), day("2026-09-22"))
	assert.True(t, errors.Is(err, errors.KindSlotUnavailable))

	// the original dates survive the failed move
	got, err := env.composer.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, day("2026-09-10"), got.Stay.CheckIn)
	assert.Equal(t, 2, env.available(t, "deluxe", "2026-09-10", "2026-09-12"))
}

func TestReschedule_PastCheckIn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	h := env.hold(t, "deluxe", 1, "2026-09-10", "2026-09-12")
	b, err := env.composer.CreateBooking(ctx, CreateBookingInput{HoldTokens: []string{h.Token}, Guest: guest()})
	require.NoError(t, err)

	_, err = env.composer.Reschedule(ctx, b.ID, day("2026-08-20"), day("2026-08-22"))
	assert.True(t, errors.Is(err, errors.KindInvalidDateRange))
}

func TestTimeline_RecordsLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	h := env.hold(t, "deluxe", 1, "2026-09-10", "2026-09-12")
	b, err := env.composer.CreateBooking(ctx, CreateBookingInput{HoldTokens: []string{h.Token}, Guest: guest()})
	require.NoError(t, err)
	_, err = env.composer.Confirm(ctx, b.ID, "pay-1")
	require.NoError(t, err)
	_, err = env.composer.Cancel(ctx, b.ID)
	require.NoError(t, err)

	events, err := env.composer.Timeline(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "created", events[0].EventType)
	assert.Equal(t, "confirmed", events[1].EventType)
	assert.Equal(t, "cancelled", events[2].EventType)
}
