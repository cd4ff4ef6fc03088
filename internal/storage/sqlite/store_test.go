package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayware/bookingcore/internal/domain"
	"github.com/stayware/bookingcore/internal/pkg/errors"
)

func day(s string) time.Time {
	t, err := time.ParseInLocation(domain.DayFormat, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir()+"/store.db", 1)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedDeluxe(t *testing.T, store *Store, units int) {
	t.Helper()
	require.NoError(t, store.SaveRoomType(context.Background(), domain.RoomType{
		ID:         "deluxe",
		HotelID:    "hotel-1",
		Name:       "Deluxe King",
		TotalUnits: units,
		BaseRate:   decimal.RequireFromString("120.00"),
		MaxGuests:  2,
		CreatedAt:  day("2026-01-01"),
		UpdatedAt:  day("2026-01-01"),
	}))
}

func TestAddHeld_GuardRefusesOverCapacity(t *testing.T) {
	store := newTestStore(t)
	seedDeluxe(t, store, 2)
	ctx := context.Background()
	d := day("2026-09-10")

	require.NoError(t, store.EnsureDay(ctx, "deluxe", d, 2))
	require.NoError(t, store.AddHeld(ctx, "deluxe", d, 2))

	err := store.AddHeld(ctx, "deluxe", d, 1)
	assert.True(t, errors.Is(err, errors.KindCapacityExceeded))

	got, err := store.InventoryDay(ctx, "deluxe", d)
	require.NoError(t, err)
	assert.Equal(t, 2, got.HeldUnits)
}

func TestAddBooked_GuardCountsHeldUnits(t *testing.T) {
	store := newTestStore(t)
	seedDeluxe(t, store, 3)
	ctx := context.Background()
	d := day("2026-09-10")

	require.NoError(t, store.EnsureDay(ctx, "deluxe", d, 3))
	require.NoError(t, store.AddHeld(ctx, "deluxe", d, 2))
	require.NoError(t, store.AddBooked(ctx, "deluxe", d, 1))

	err := store.AddBooked(ctx, "deluxe", d, 1)
	assert.True(t, errors.Is(err, errors.KindCapacityExceeded))
}

func TestConvertHeldToBooked(t *testing.T) {
	store := newTestStore(t)
	seedDeluxe(t, store, 3)
	ctx := context.Background()
	d := day("2026-09-10")

	require.NoError(t, store.EnsureDay(ctx, "deluxe", d, 3))
	require.NoError(t, store.AddHeld(ctx, "deluxe", d, 2))
	require.NoError(t, store.ConvertHeldToBooked(ctx, "deluxe", d, 2))

	got, err := store.InventoryDay(ctx, "deluxe", d)
	require.NoError(t, err)
	assert.Equal(t, 0, got.HeldUnits)
	assert.Equal(t, 2, got.BookedUnits)
}

func TestSubHeld_UnderflowRefused(t *testing.T) {
	store := newTestStore(t)
	seedDeluxe(t, store, 3)
	ctx := context.Background()
	d := day("2026-09-10")

	require.NoError(t, store.EnsureDay(ctx, "deluxe", d, 3))
	require.NoError(t, store.AddHeld(ctx, "deluxe", d, 1))

	assert.Error(t, store.SubHeld(ctx, "deluxe", d, 2))
}

func TestEnsureDay_IsIdempotentAndPreservesCounters(t *testing.T) {
	store := newTestStore(t)
	seedDeluxe(t, store, 3)
	ctx := context.Background()
	d := day("2026-09-10")

	require.NoError(t, store.EnsureDay(ctx, "deluxe", d, 3))
	require.NoError(t, store.AddHeld(ctx, "deluxe", d, 2))
	require.NoError(t, store.EnsureDay(ctx, "deluxe", d, 3))

	got, err := store.InventoryDay(ctx, "deluxe", d)
	require.NoError(t, err)
	assert.Equal(t, 2, got.HeldUnits)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	seedDeluxe(t, store, 3)
	ctx := context.Background()
	d := day("2026-09-10")

	require.NoError(t, store.EnsureDay(ctx, "deluxe", d, 3))
	err := store.WithTx(ctx, func(ctx context.Context) error {
		if err := store.AddHeld(ctx, "deluxe", d, 2); err != nil {
			return err
		}
		return errors.Internal("boom", nil)
	})
	require.Error(t, err)

	got, err := store.InventoryDay(ctx, "deluxe", d)
	require.NoError(t, err)
	assert.Equal(t, 0, got.HeldUnits)
}

func TestWithTx_NestedCallsJoin(t *testing.T) {
	store := newTestStore(t)
	seedDeluxe(t, store, 3)
	ctx := context.Background()
	d := day("2026-09-10")

	err := store.WithTx(ctx, func(outer context.Context) error {
		return store.WithTx(outer, func(inner context.Context) error {
			if err := store.EnsureDay(inner, "deluxe", d, 3); err != nil {
				return err
			}
			return store.AddHeld(inner, "deluxe", d, 1)
		})
	})
	require.NoError(t, err)

	got, err := store.InventoryDay(ctx, "deluxe", d)
	require.NoError(t, err)
	assert.Equal(t, 1, got.HeldUnits)
}

func TestHoldRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stay, err := domain.NewStayRange(day("2026-09-10"), day("2026-09-13"))
	require.NoError(t, err)
	hold := domain.RoomHold{
		Token:      "tok-1",
		RoomTypeID: "deluxe",
		Stay:       stay,
		Quantity:   2,
		OwnerID:    "guest-1",
		Status:     domain.HoldStatusActive,
		CreatedAt:  day("2026-09-01"),
		ExpiresAt:  day("2026-09-01").Add(15 * time.Minute),
	}
	require.NoError(t, store.CreateHold(ctx, hold))

	got, err := store.Hold(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, hold.Stay.CheckIn, got.Stay.CheckIn)
	assert.Equal(t, hold.Stay.CheckOut, got.Stay.CheckOut)
	assert.Equal(t, 2, got.Quantity)
	assert.True(t, hold.ExpiresAt.Equal(got.ExpiresAt))

	_, err = store.Hold(ctx, "missing")
	assert.True(t, errors.Is(err, errors.KindHoldNotFound))
}

func TestStaleHolds_FiltersByStatusAndExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	stay, err := domain.NewStayRange(day("2026-09-10"), day("2026-09-12"))
	require.NoError(t, err)

	base := day("2026-09-01")
	mk := func(token string, status domain.HoldStatus, expires time.Time) {
		require.NoError(t, store.CreateHold(ctx, domain.RoomHold{
			Token:      token,
			RoomTypeID: "deluxe",
			Stay:       stay,
			Quantity:   1,
			Status:     status,
			CreatedAt:  base,
			ExpiresAt:  expires,
		}))
	}
	mk("expired-active", domain.HoldStatusActive, base.Add(time.Minute))
	mk("live-active", domain.HoldStatusActive, base.Add(time.Hour))
	mk("already-released", domain.HoldStatusReleased, base.Add(time.Minute))

	stale, err := store.StaleHolds(ctx, "deluxe", base.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "expired-active", stale[0].Token)
}

func TestCouponLookup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	coupon := domain.Coupon{
		Code:       "SAVE10",
		Type:       domain.DiscountTypePercentage,
		Scope:      domain.DiscountScopeOrder,
		Amount:     decimal.NewFromInt(10),
		ValidFrom:  day("2026-01-01"),
		ValidUntil: day("2026-12-31"),
		Active:     true,
	}
	require.NoError(t, store.SaveCoupon(ctx, coupon))

	got, err := store.Coupon(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, domain.DiscountTypePercentage, got.Type)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(10)))

	_, err = store.Coupon(ctx, "NOPE")
	assert.True(t, errors.Is(err, errors.KindCouponInvalid))
}

func TestTaxConfig_DefaultsToZeroExclusive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cfg, err := store.TaxConfig(ctx, "hotel-without-config")
	require.NoError(t, err)
	assert.Equal(t, domain.TaxModeExclusive, cfg.Mode)
	assert.True(t, cfg.Rate.IsZero())

	require.NoError(t, store.SaveTaxConfig(ctx, "hotel-1", domain.TaxConfig{
		Mode: domain.TaxModeInclusive,
		Rate: decimal.RequireFromString("18"),
	}))
	cfg, err = store.TaxConfig(ctx, "hotel-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaxModeInclusive, cfg.Mode)
}

func TestDefaultPolicy_TiersSurvivePersistence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	policy := domain.CancellationPolicy{
		ID:   "standard",
		Name: "Standard",
		Tiers: []domain.RefundTier{
			{DaysBefore: 7, Percent: decimal.NewFromInt(50)},
			{DaysBefore: 30, Percent: decimal.NewFromInt(100)},
		},
	}
	require.NoError(t, store.SavePolicy(ctx, policy, true))

	got, err := store.DefaultPolicy(ctx)
	require.NoError(t, err)
	assert.Equal(t, "standard", got.ID)
	require.Len(t, got.Tiers, 2)

	tier, ok := got.TierFor(10)
	require.True(t, ok)
	assert.Equal(t, 7, tier.DaysBefore)
}

func TestDefaultPolicy_NoneConfigured(t *testing.T) {
	store := newTestStore(t)

	_, err := store.DefaultPolicy(context.Background())
	assert.True(t, errors.Is(err, errors.KindNotFound))
}

func TestRateOverridesForRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRateOverride(ctx, domain.RateOverride{
		RoomTypeID: "deluxe", Day: day("2026-09-11"), Rate: decimal.RequireFromString("199.00"),
	}))
	require.NoError(t, store.SaveRateOverride(ctx, domain.RateOverride{
		RoomTypeID: "deluxe", Day: day("2026-10-01"), Rate: decimal.RequireFromString("250.00"),
	}))

	stay, err := domain.NewStayRange(day("2026-09-10"), day("2026-09-13"))
	require.NoError(t, err)
	overrides, err := store.RateOverrides(ctx, "deluxe", stay)
	require.NoError(t, err)

	// only the override inside the range comes back
	require.Len(t, overrides, 1)
	assert.True(t, overrides["2026-09-11"].Equal(decimal.RequireFromString("199.00")))
}
