package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// RefundTier maps a days-before-check-in threshold to a refund
// percentage. A cancellation qualifies for a tier when its lead time is
// at least DaysBefore days.
type RefundTier struct {
	DaysBefore int
	Percent    decimal.Decimal
}

// CancellationPolicy is read-only reference data: ordered refund tiers
// consulted when a booking is cancelled.
type CancellationPolicy struct {
	ID    string
	Name  string
	Tiers []RefundTier
}

// TierFor selects the most guest-favorable tier that still applies: the
// largest threshold not exceeding the lead time. Returns false when no
// tier matches (e.g. cancellation after every threshold), in which case
// the refund is zero but cancellation still proceeds.
func (p CancellationPolicy) TierFor(leadDays int) (RefundTier, bool) {
	tiers := make([]RefundTier, len(p.Tiers))
	copy(tiers, p.Tiers)
	sort.Slice(tiers, func(i, j int) bool {
		return tiers[i].DaysBefore > tiers[j].DaysBefore
	})

	for _, t := range tiers {
		if leadDays >= t.DaysBefore {
			return t, true
		}
	}
	return RefundTier{}, false
}

// LeadDays returns the whole calendar days between now and check-in.
// Negative when cancellation happens after check-in.
func LeadDays(checkIn, now time.Time) int {
	return int(Day(checkIn).Sub(Day(now)).Hours() / 24)
}
