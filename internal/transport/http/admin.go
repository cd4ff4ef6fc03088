package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/stayware/bookingcore/internal/domain"
	"github.com/stayware/bookingcore/internal/pkg/errors"
)

// Catalog is the administrative write surface: room types, rates,
// coupons, tax and cancellation policy.
type Catalog interface {
	SaveRoomType(ctx context.Context, rt domain.RoomType) error
	SaveRateOverride(ctx context.Context, o domain.RateOverride) error
	SaveCoupon(ctx context.Context, c domain.Coupon) error
	SaveTaxConfig(ctx context.Context, hotelID string, cfg domain.TaxConfig) error
	SavePolicy(ctx context.Context, p domain.CancellationPolicy, isDefault bool) error
}

type saveRoomTypeRequest struct {
	ID         string          `json:"id" binding:"required"`
	HotelID    string          `json:"hotel_id" binding:"required"`
	Name       string          `json:"name" binding:"required"`
	TotalUnits int             `json:"total_units" binding:"required"`
	BaseRate   decimal.Decimal `json:"base_rate" binding:"required"`
	MaxGuests  int             `json:"max_guests"`
}

func (s *Server) handleSaveRoomType(c *gin.Context) {
	var req saveRoomTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.InvalidInput(err.Error()))
		return
	}
	now := s.clock.Now()
	rt, err := domain.NewRoomType(req.ID, req.HotelID, req.Name, req.TotalUnits, req.MaxGuests, req.BaseRate, now)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.catalog.SaveRoomType(c.Request.Context(), rt); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type saveRateOverrideRequest struct {
	RoomTypeID string          `json:"room_type_id" binding:"required"`
	Day        string          `json:"day" binding:"required"`
	Rate       decimal.Decimal `json:"rate" binding:"required"`
}

func (s *Server) handleSaveRateOverride(c *gin.Context) {
	var req saveRateOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.InvalidInput(err.Error()))
		return
	}
	day, err := parseDay(req.Day, "day")
	if err != nil {
		writeError(c, err)
		return
	}
	if req.Rate.IsNegative() {
		writeError(c, errors.InvalidInput("rate must not be negative"))
		return
	}
	override := domain.RateOverride{RoomTypeID: req.RoomTypeID, Day: day, Rate: req.Rate}
	if err := s.catalog.SaveRateOverride(c.Request.Context(), override); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type saveCouponRequest struct {
	Code       string          `json:"code" binding:"required"`
	Type       string          `json:"type" binding:"required"`
	Scope      string          `json:"scope" binding:"required"`
	RoomTypeID string          `json:"room_type_id"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
	ValidFrom  string          `json:"valid_from" binding:"required"`
	ValidUntil string          `json:"valid_until" binding:"required"`
	Active     bool            `json:"active"`
}

func (s *Server) handleSaveCoupon(c *gin.Context) {
	var req saveCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.InvalidInput(err.Error()))
		return
	}
	validFrom, err := parseDay(req.ValidFrom, "valid_from")
	if err != nil {
		writeError(c, err)
		return
	}
	validUntil, err := parseDay(req.ValidUntil, "valid_until")
	if err != nil {
		writeError(c, err)
		return
	}
	coupon := domain.Coupon{
		Code:       req.Code,
		Type:       domain.DiscountType(req.Type),
		Scope:      domain.DiscountScope(req.Scope),
		RoomTypeID: req.RoomTypeID,
		Amount:     req.Amount,
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
		Active:     req.Active,
	}
	if coupon.Scope == domain.DiscountScopeRoomType && coupon.RoomTypeID == "" {
		writeError(c, errors.InvalidInput("room_type_id is required for a room_type scoped coupon"))
		return
	}
	if coupon.Type != domain.DiscountTypePercentage && coupon.Type != domain.DiscountTypeFixed {
		writeError(c, errors.InvalidInput("type must be percentage or fixed"))
		return
	}
	if coupon.Amount.IsNegative() {
		writeError(c, errors.InvalidInput("amount must not be negative"))
		return
	}
	if coupon.Type == domain.DiscountTypePercentage && coupon.Amount.GreaterThan(decimal.NewFromInt(100)) {
		writeError(c, errors.InvalidInput("percentage amount must not exceed 100"))
		return
	}
	if err := s.catalog.SaveCoupon(c.Request.Context(), coupon); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type saveTaxConfigRequest struct {
	Mode string          `json:"mode" binding:"required"`
	Rate decimal.Decimal `json:"rate" binding:"required"`
}

func (s *Server) handleSaveTaxConfig(c *gin.Context) {
	var req saveTaxConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.InvalidInput(err.Error()))
		return
	}
	mode := domain.TaxMode(req.Mode)
	if mode != domain.TaxModeExclusive && mode != domain.TaxModeInclusive {
		writeError(c, errors.InvalidInput("mode must be exclusive or inclusive"))
		return
	}
	cfg := domain.TaxConfig{Mode: mode, Rate: req.Rate}
	if err := s.catalog.SaveTaxConfig(c.Request.Context(), c.Param("hotelID"), cfg); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type savePolicyRequest struct {
	ID      string              `json:"id" binding:"required"`
	Name    string              `json:"name" binding:"required"`
	Default bool                `json:"default"`
	Tiers   []refundTierPayload `json:"tiers" binding:"required"`
}

type refundTierPayload struct {
	DaysBefore int             `json:"days_before"`
	Percent    decimal.Decimal `json:"percent"`
}

func (s *Server) handleSavePolicy(c *gin.Context) {
	var req savePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.InvalidInput(err.Error()))
		return
	}
	policy := domain.CancellationPolicy{ID: req.ID, Name: req.Name}
	for _, t := range req.Tiers {
		if t.DaysBefore < 0 || t.Percent.IsNegative() || t.Percent.GreaterThan(decimal.NewFromInt(100)) {
			writeError(c, errors.InvalidInput("tier percent must be between 0 and 100 and days_before non-negative"))
			return
		}
		policy.Tiers = append(policy.Tiers, domain.RefundTier{DaysBefore: t.DaysBefore, Percent: t.Percent})
	}
	if err := s.catalog.SavePolicy(c.Request.Context(), policy, req.Default); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
