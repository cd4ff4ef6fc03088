package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType distinguishes percentage from fixed-amount coupons
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

// DiscountScope distinguishes whole-order coupons from coupons bound to
// a single room type.
type DiscountScope string

const (
	DiscountScopeOrder    DiscountScope = "order"
	DiscountScopeRoomType DiscountScope = "room_type"
)

// Coupon is validated reference data supplied by the coupon lookup
// collaborator. Per-user usage tracking is outside this engine.
type Coupon struct {
	Code       string
	Type       DiscountType
	Scope      DiscountScope
	RoomTypeID string
	Amount     decimal.Decimal
	ValidFrom  time.Time
	ValidUntil time.Time
	Active     bool
}

// Usable reports whether the coupon can be applied at the given instant.
func (c Coupon) Usable(now time.Time) bool {
	if !c.Active {
		return false
	}
	if !c.ValidFrom.IsZero() && now.Before(c.ValidFrom) {
		return false
	}
	if !c.ValidUntil.IsZero() && now.After(c.ValidUntil) {
		return false
	}
	return true
}

// TaxMode selects how a tax rate is applied to an amount. The mode is
// explicit input, never inferred.
type TaxMode string

const (
	// TaxModeExclusive adds tax on top of the given amount
	TaxModeExclusive TaxMode = "exclusive"
	// TaxModeInclusive backs tax out of the given amount
	TaxModeInclusive TaxMode = "inclusive"
)

// TaxConfig is the tax-configuration collaborator's answer: a
// percentage rate and the mode it applies in.
type TaxConfig struct {
	Mode TaxMode
	Rate decimal.Decimal
}
