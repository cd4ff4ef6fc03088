package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	HoldsCreated       prometheus.Counter
	HoldsReleased      prometheus.Counter
	HoldsExpired       prometheus.Counter
	HoldsConsumed      prometheus.Counter
	CapacityConflicts  prometheus.Counter
	BookingsCreated    prometheus.Counter
	BookingsCancelled  prometheus.Counter
	BookingsRescheduled prometheus.Counter
	RefundsIssued      prometheus.Counter
	TxRetries          prometheus.Counter
	QuoteDuration      prometheus.Histogram
	BookingDuration    prometheus.Histogram
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the collectors on a specific registerer,
// which keeps parallel tests from colliding on the default registry.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HoldsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "room_holds_created_total",
			Help: "Total number of room holds created",
		}),
		HoldsReleased: factory.NewCounter(prometheus.CounterOpts{
			Name: "room_holds_released_total",
			Help: "Total number of room holds explicitly released",
		}),
		HoldsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "room_holds_expired_total",
			Help: "Total number of room holds reclaimed after TTL expiry",
		}),
		HoldsConsumed: factory.NewCounter(prometheus.CounterOpts{
			Name: "room_holds_consumed_total",
			Help: "Total number of room holds converted into bookings",
		}),
		CapacityConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "inventory_capacity_conflicts_total",
			Help: "Total number of reservation attempts rejected for lack of capacity",
		}),
		BookingsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "bookings_created_total",
			Help: "Total number of bookings created",
		}),
		BookingsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "bookings_cancelled_total",
			Help: "Total number of bookings cancelled",
		}),
		BookingsRescheduled: factory.NewCounter(prometheus.CounterOpts{
			Name: "bookings_rescheduled_total",
			Help: "Total number of bookings moved to new dates",
		}),
		RefundsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "refunds_issued_total",
			Help: "Total number of non-zero refunds computed on cancellation",
		}),
		TxRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "storage_tx_retries_total",
			Help: "Total number of transparent retries after aborted transactions",
		}),
		QuoteDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "quote_duration_seconds",
			Help:    "Quote computation duration in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		}),
		BookingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "booking_creation_duration_seconds",
			Help:    "Booking composition duration in seconds",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5},
		}),
	}
}

// RecordHoldCreated records a successful hold creation
func (m *Metrics) RecordHoldCreated() {
	m.HoldsCreated.Inc()
}

// RecordHoldsExpired records lazily reclaimed holds
func (m *Metrics) RecordHoldsExpired(n int) {
	m.HoldsExpired.Add(float64(n))
}

// RecordCapacityConflict records a reservation rejected for capacity
func (m *Metrics) RecordCapacityConflict() {
	m.CapacityConflicts.Inc()
}

// RecordBookingCreated records a booking composition with its duration
func (m *Metrics) RecordBookingCreated(duration time.Duration, holds int) {
	m.BookingsCreated.Inc()
	m.HoldsConsumed.Add(float64(holds))
	m.BookingDuration.Observe(duration.Seconds())
}

// RecordQuote records quote computation duration
func (m *Metrics) RecordQuote(duration time.Duration) {
	m.QuoteDuration.Observe(duration.Seconds())
}
