package holds

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
	"github.com/stayware/bookingcore/internal/infrastructure/observability"
	"github.com/stayware/bookingcore/internal/ledger"
	"github.com/stayware/bookingcore/internal/pkg/errors"
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
	manager *Manager
	ledger  *ledger.Ledger
	store   *sqlite.Store
	clock   *clock.Fixed
}

func newTestEnv(t *testing.T, totalUnits int) *testEnv {
	t.Helper()

	store, err := sqlite.Open(t.TempDir()+"/holds.db", 1)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rt := domain.RoomType{
		ID:         "deluxe",
		HotelID:    "hotel-1",
		Name:       "Deluxe King",
		TotalUnits: totalUnits,
		BaseRate:   decimal.RequireFromString("120.00"),
		MaxGuests:  2,
		CreatedAt:  day("2026-01-01"),
		UpdatedAt:  day("2026-01-01"),
	}
	require.NoError(t, store.SaveRoomType(context.Background(), rt))

	clk := clock.NewFixed(day("2026-09-01").Add(12 * time.Hour))
	logger := observability.NewNopLogger()
	metrics := observability.NewMetricsWith(prometheus.NewRegistry())
	ldg := ledger.New(store, logger, metrics)
	mgr := NewManager(store, ldg, clk, logger, metrics)

	return &testEnv{manager: mgr, ledger: ldg, store: store, clock: clk}
}

func (e *testEnv) available(t *testing.T, in, out string) int {
	t.Helper()
	stay, err := domain.NewStayRange(day(in), day(out))
	require.NoError(t, err)
	days, err := e.ledger.Availability(context.Background(), "deluxe", stay, e.clock.Now())
	require.NoError(t, err)

	min := days[0].Available
	for _, d := range days {
		if d.Available < min {
			min = d.Available
		}
	}
	return min
}

func holdInput(qty int) CreateHoldInput {
	return CreateHoldInput{
		RoomTypeID: "deluxe",
		CheckIn:    day("2026-09-10"),
		CheckOut:   day("2026-09-13"),
		Quantity:   qty,
		OwnerID:    "guest-1",
	}
}

func TestCreateHold_ReservesUnitsForEveryNight(t *testing.T) {
	env := newTestEnv(t, 4)

	hold, err := env.manager.CreateHold(context.Background(), holdInput(2))
	require.NoError(t, err)

	assert.NotEmpty(t, hold.Token)
	assert.Equal(t, domain.HoldStatusActive, hold.Status)
	assert.Equal(t, env.clock.Now().Add(DefaultTTL), hold.ExpiresAt)
	assert.Equal(t, 2, env.available(t, "2026-09-10", "2026-09-13"))
}

func TestCreateHold_FailsWhenAnyNightLacksCapacity(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()

	// an existing 2-unit hold exhausts one overlapping night
	_, err := env.manager.CreateHold(ctx, CreateHoldInput{
		RoomTypeID: "deluxe",
		CheckIn:    day("2026-09-12"),
		CheckOut:   day("2026-09-13"),
		Quantity:   2,
	})
	require.NoError(t, err)

	_, err = env.manager.CreateHold(ctx, holdInput(1))
	assert.True(t, errors.Is(err, errors.KindSlotUnavailable))

	// the failed hold must not have consumed the other nights
	assert.Equal(t, 2, env.available(t, "2026-09-10", "2026-09-12"))
}

func TestCreateHold_PastCheckIn(t *testing.T) {
	env := newTestEnv(t, 4)

	_, err := env.manager.CreateHold(context.Background(), CreateHoldInput{
		RoomTypeID: "deluxe",
		CheckIn:    day("2026-08-30"),
		CheckOut:   day("2026-09-02"),
		Quantity:   1,
	})
	assert.True(t, errors.Is(err, errors.KindInvalidDateRange))
}

func TestCreateHold_InvalidQuantity(t *testing.T) {
	env := newTestEnv(t, 4)

	_, err := env.manager.CreateHold(context.Background(), holdInput(0))
	assert.True(t, errors.Is(err, errors.KindInvalidInput))
}

func TestGet_ExpiredHoldIsInvisible(t *testing.T) {
	env := newTestEnv(t, 4)
	ctx := context.Background()

	hold, err := env.manager.CreateHold(ctx, holdInput(1))
	require.NoError(t, err)

	got, err := env.manager.Get(ctx, hold.Token)
	require.NoError(t, err)
	assert.Equal(t, hold.Token, got.Token)

	// the expiry is enforced by clock comparison before any reclamation
	env.clock.Advance(DefaultTTL + time.Second)
	_, err = env.manager.Get(ctx, hold.Token)
	assert.True(t, errors.Is(err, errors.KindHoldNotFound))
}

func TestExpiredHoldUnitsAreLazilyReclaimed(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()

	_, err := env.manager.CreateHold(ctx, holdInput(2))
	require.NoError(t, err)
	assert.Equal(t, 0, env.available(t, "2026-09-10", "2026-09-13"))

	env.clock.Advance(DefaultTTL + time.Second)

	// the next ledger touch reclaims the expired hold, so a new hold for
	// the same range succeeds without any background sweeper
	hold, err := env.manager.CreateHold(ctx, holdInput(2))
	require.NoError(t, err)
	assert.Equal(t, domain.HoldStatusActive, hold.Status)
	assert.Equal(t, 0, env.available(t, "2026-09-10", "2026-09-13"))
}

func TestExtendHold(t *testing.T) {
	env := newTestEnv(t, 4)
	ctx := context.Background()

	hold, err := env.manager.CreateHold(ctx, holdInput(1))
	require.NoError(t, err)

	env.clock.Advance(10 * time.Minute)
	extended, err := env.manager.ExtendHold(ctx, hold.Token, 0)
	require.NoError(t, err)
	assert.Equal(t, env.clock.Now().Add(DefaultTTL), extended.ExpiresAt)

	extended, err = env.manager.ExtendHold(ctx, hold.Token, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, env.clock.Now().Add(5*time.Minute), extended.ExpiresAt)
}

func TestExtendHold_ExpiredHold(t *testing.T) {
	env := newTestEnv(t, 4)
	ctx := context.Background()

	hold, err := env.manager.CreateHold(ctx, holdInput(1))
	require.NoError(t, err)

	env.clock.Advance(DefaultTTL + time.Second)
	_, err = env.manager.ExtendHold(ctx, hold.Token, time.Hour)
	assert.True(t, errors.Is(err, errors.KindHoldNotFound))
}

func TestReleaseHold_RestoresAvailability(t *testing.T) {
	env := newTestEnv(t, 4)
	ctx := context.Background()

	hold, err := env.manager.CreateHold(ctx, holdInput(3))
	require.NoError(t, err)
	assert.Equal(t, 1, env.available(t, "2026-09-10", "2026-09-13"))

	require.NoError(t, env.manager.ReleaseHold(ctx, hold.Token))
	assert.Equal(t, 4, env.available(t, "2026-09-10", "2026-09-13"))

	got, err := env.store.Hold(ctx, hold.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldStatusReleased, got.Status)
}

func TestReleaseHold_IsIdempotent(t *testing.T) {
	env := newTestEnv(t, 4)
	ctx := context.Background()

	hold, err := env.manager.CreateHold(ctx, holdInput(2))
	require.NoError(t, err)

	require.NoError(t, env.manager.ReleaseHold(ctx, hold.Token))
	require.NoError(t, env.manager.ReleaseHold(ctx, hold.Token))

	// double release must not credit units twice
	assert.Equal(t, 4, env.available(t, "2026-09-10", "2026-09-13"))
}

func TestReleaseHold_UnknownTokenIsNoOp(t *testing.T) {
	env := newTestEnv(t, 4)

	assert.NoError(t, env.manager.ReleaseHold(context.Background(), "no-such-token"))
}

func TestReleaseHold_AfterExpiryIsNoOp(t *testing.T) {
	env := newTestEnv(t, 4)
	ctx := context.Background()

	hold, err := env.manager.CreateHold(ctx, holdInput(2))
	require.NoError(t, err)

	env.clock.Advance(DefaultTTL + time.Second)
	require.NoError(t, env.manager.ReleaseHold(ctx, hold.Token))

	// units come back exactly once, through the expiry path
	assert.Equal(t, 4, env.available(t, "2026-09-10", "2026-09-13"))
}
