package integration

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/stayware/bookingcore/internal/booking"
	"github.com/stayware/bookingcore/internal/clock"
	"github.com/stayware/bookingcore/internal/domain"
	"github.com/stayware/bookingcore/internal/holds"
	"github.com/stayware/bookingcore/internal/infrastructure/observability"
	"github.com/stayware/bookingcore/internal/ledger"
	"github.com/stayware/bookingcore/internal/notify"
	"github.com/stayware/bookingcore/internal/pricing"
	"github.com/stayware/bookingcore/internal/storage/sqlite"
	"github.com/stayware/bookingcore/test/fixtures"
)

// TestHarness wires the full engine over a temporary SQLite file, with
// a controllable clock and a recording dispatcher.
type TestHarness struct {
	Store      *sqlite.Store
	Ledger     *ledger.Ledger
	Pricing    *pricing.Engine
	Holds      *holds.Manager
	Bookings   *booking.Composer
	Clock      *clock.Fixed
	Dispatcher *notify.MockDispatcher
}

// NewTestHarness seeds the fixture catalog and returns a ready engine.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	store, err := sqlite.Open(t.TempDir()+"/engine.db", 4)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	fixtures.Seed(t, store)

	clk := clock.NewFixed(fixtures.Day("2026-09-01").Add(12 * time.Hour))
	logger := observability.NewNopLogger()
	metrics := observability.NewMetricsWith(prometheus.NewRegistry())
	dispatcher := notify.NewMockDispatcher()

	ldg := ledger.New(store, logger, metrics)
	eng := pricing.NewEngine(store, ldg)
	holdMgr := holds.NewManager(store, ldg, clk, logger, metrics)
	composer := booking.NewComposer(store, ldg, eng, dispatcher, clk, logger, metrics)

	return &TestHarness{
		Store:      store,
		Ledger:     ldg,
		Pricing:    eng,
		Holds:      holdMgr,
		Bookings:   composer,
		Clock:      clk,
		Dispatcher: dispatcher,
	}
}

// Hold creates an active hold or fails the test.
func (h *TestHarness) Hold(t *testing.T, roomType string, qty int, in, out string) domain.RoomHold {
	t.Helper()
	hold, err := h.Holds.CreateHold(context.Background(), holds.CreateHoldInput{
		RoomTypeID: roomType,
		CheckIn:    fixtures.Day(in),
		CheckOut:   fixtures.Day(out),
		Quantity:   qty,
		OwnerID:    "guest-1",
	})
	require.NoError(t, err)
	return hold
}

// Book composes a booking from the given hold tokens or fails the test.
func (h *TestHarness) Book(t *testing.T, tokens ...string) domain.Booking {
	t.Helper()
	b, err := h.Bookings.CreateBooking(context.Background(), booking.CreateBookingInput{
		HoldTokens: tokens,
		Guest:      fixtures.Guest(),
	})
	require.NoError(t, err)
	return b
}

// MinAvailable returns the lowest per-day availability over the range.
func (h *TestHarness) MinAvailable(t *testing.T, roomType, in, out string) int {
	t.Helper()
	stay, err := domain.NewStayRange(fixtures.Day(in), fixtures.Day(out))
	require.NoError(t, err)
	days, err := h.Ledger.Availability(context.Background(), roomType, stay, h.Clock.Now())
	require.NoError(t, err)

	min := days[0].Available
	for _, d := range days {
		if d.Available < min {
			min = d.Available
		}
	}
	return min
}
