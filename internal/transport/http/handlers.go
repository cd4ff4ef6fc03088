// Package http is the JSON API surface of the booking engine. Handlers
// parse and validate transport concerns only; all business rules live
// in the services they delegate to.
package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/stayware/bookingcore/internal/booking"
	"github.com/stayware/bookingcore/internal/domain"
	"github.com/stayware/bookingcore/internal/holds"
	"github.com/stayware/bookingcore/internal/pkg/errors"
)

func parseDay(raw, field string) (time.Time, error) {
	t, err := time.ParseInLocation(domain.DayFormat, raw, time.UTC)
	if err != nil {
		return time.Time{}, errors.InvalidInput(field + " must be a YYYY-MM-DD date")
	}
	return t, nil
}

type dayAvailabilityResponse struct {
	Day       string `json:"day"`
	Total     int    `json:"total_units"`
	Held      int    `json:"held_units"`
	Booked    int    `json:"booked_units"`
	Available int    `json:"available_units"`
}

func (s *Server) handleAvailability(c *gin.Context) {
	checkIn, err := parseDay(c.Query("check_in"), "check_in")
	if err != nil {
		writeError(c, err)
		return
	}
	checkOut, err := parseDay(c.Query("check_out"), "check_out")
	if err != nil {
		writeError(c, err)
		return
	}
	stay, err := domain.NewStayRange(checkIn, checkOut)
	if err != nil {
		writeError(c, err)
		return
	}

	days, err := s.ledger.Availability(c.Request.Context(), c.Query("room_type_id"), stay, s.clock.Now())
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]dayAvailabilityResponse, 0, len(days))
	for _, d := range days {
		out = append(out, dayAvailabilityResponse{
			Day:       d.Day.Format(domain.DayFormat),
			Total:     d.Total,
			Held:      d.Held,
			Booked:    d.Booked,
			Available: d.Available,
		})
	}
	c.JSON(http.StatusOK, gin.H{"days": out})
}

type quoteResponse struct {
	RoomTypeID string          `json:"room_type_id"`
	CheckIn    string          `json:"check_in"`
	CheckOut   string          `json:"check_out"`
	Quantity   int             `json:"quantity"`
	Nights     []quoteNight    `json:"nights"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

type quoteNight struct {
	Day  string          `json:"day"`
	Rate decimal.Decimal `json:"rate"`
}

func (s *Server) handleQuote(c *gin.Context) {
	start := time.Now()
	checkIn, err := parseDay(c.Query("check_in"), "check_in")
	if err != nil {
		writeError(c, err)
		return
	}
	checkOut, err := parseDay(c.Query("check_out"), "check_out")
	if err != nil {
		writeError(c, err)
		return
	}
	stay, err := domain.NewStayRange(checkIn, checkOut)
	if err != nil {
		writeError(c, err)
		return
	}
	qty := 1
	if raw := c.Query("quantity"); raw != "" {
		qty, err = strconv.Atoi(raw)
		if err != nil || qty <= 0 {
			writeError(c, errors.InvalidInput("quantity must be a positive integer"))
			return
		}
	}

	quote, err := s.pricing.Quote(c.Request.Context(), c.Query("room_type_id"), stay, qty, s.clock.Now())
	if err != nil {
		writeError(c, err)
		return
	}

	resp := quoteResponse{
		RoomTypeID: quote.RoomTypeID,
		CheckIn:    stay.CheckIn.Format(domain.DayFormat),
		CheckOut:   stay.CheckOut.Format(domain.DayFormat),
		Quantity:   quote.Quantity,
		Subtotal:   quote.Subtotal,
	}
	for _, n := range quote.Nights {
		resp.Nights = append(resp.Nights, quoteNight{
			Day:  n.Day.Format(domain.DayFormat),
			Rate: n.Rate,
		})
	}
	s.metrics.RecordQuote(time.Since(start))
	c.JSON(http.StatusOK, resp)
}

type createHoldRequest struct {
	RoomTypeID string `json:"room_type_id" binding:"required"`
	CheckIn    string `json:"check_in" binding:"required"`
	CheckOut   string `json:"check_out" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required"`
	OwnerID    string `json:"owner_id"`
}

type holdResponse struct {
	Token      string `json:"token"`
	RoomTypeID string `json:"room_type_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Quantity   int    `json:"quantity"`
	OwnerID    string `json:"owner_id,omitempty"`
	Status     string `json:"status"`
	ExpiresAt  string `json:"expires_at"`
}

func toHoldResponse(h domain.RoomHold) holdResponse {
	return holdResponse{
		Token:      h.Token,
		RoomTypeID: h.RoomTypeID,
		CheckIn:    h.Stay.CheckIn.Format(domain.DayFormat),
		CheckOut:   h.Stay.CheckOut.Format(domain.DayFormat),
		Quantity:   h.Quantity,
		OwnerID:    h.OwnerID,
		Status:     string(h.Status),
		ExpiresAt:  h.ExpiresAt.Format(time.RFC3339),
	}
}

func (s *Server) handleCreateHold(c *gin.Context) {
	var req createHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.InvalidInput(err.Error()))
		return
	}
	checkIn, err := parseDay(req.CheckIn, "check_in")
	if err != nil {
		writeError(c, err)
		return
	}
	checkOut, err := parseDay(req.CheckOut, "check_out")
	if err != nil {
		writeError(c, err)
		return
	}

	hold, err := s.holds.CreateHold(c.Request.Context(), holds.CreateHoldInput{
		RoomTypeID: req.RoomTypeID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Quantity:   req.Quantity,
		OwnerID:    req.OwnerID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toHoldResponse(hold))
}

func (s *Server) handleGetHold(c *gin.Context) {
	hold, err := s.holds.Get(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toHoldResponse(hold))
}

type extendHoldRequest struct {
	TTLMinutes int `json:"ttl_minutes"`
}

func (s *Server) handleExtendHold(c *gin.Context) {
	// body is optional; a zero TTL falls back to the configured default
	var req extendHoldRequest
	_ = c.ShouldBindJSON(&req)
	ttl := time.Duration(req.TTLMinutes) * time.Minute

	hold, err := s.holds.ExtendHold(c.Request.Context(), c.Param("token"), ttl)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toHoldResponse(hold))
}

func (s *Server) handleReleaseHold(c *gin.Context) {
	if err := s.holds.ReleaseHold(c.Request.Context(), c.Param("token")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createBookingRequest struct {
	HoldTokens []string     `json:"hold_tokens" binding:"required"`
	Guest      guestPayload `json:"guest" binding:"required"`
	CouponCode string       `json:"coupon_code"`
}

type guestPayload struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
	Phone string `json:"phone"`
}

type bookingLineResponse struct {
	RoomTypeID  string          `json:"room_type_id"`
	Quantity    int             `json:"quantity"`
	Occupancy   int             `json:"occupancy"`
	NightlyRate decimal.Decimal `json:"nightly_rate"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type bookingResponse struct {
	ID         string                `json:"id"`
	CheckIn    string                `json:"check_in"`
	CheckOut   string                `json:"check_out"`
	Guest      guestPayload          `json:"guest"`
	Lines      []bookingLineResponse `json:"lines"`
	CouponCode string                `json:"coupon_code,omitempty"`
	Subtotal   decimal.Decimal       `json:"subtotal"`
	Discount   decimal.Decimal       `json:"discount"`
	Tax        decimal.Decimal       `json:"tax"`
	Total      decimal.Decimal       `json:"total"`
	Status     string                `json:"status"`
	PaymentRef string                `json:"payment_ref,omitempty"`
}

func toBookingResponse(b domain.Booking) bookingResponse {
	resp := bookingResponse{
		ID:       b.ID,
		CheckIn:  b.Stay.CheckIn.Format(domain.DayFormat),
		CheckOut: b.Stay.CheckOut.Format(domain.DayFormat),
		Guest: guestPayload{
			Name:  b.Guest.Name,
			Email: b.Guest.Email,
			Phone: b.Guest.Phone,
		},
		CouponCode: b.CouponCode,
		Subtotal:   b.Subtotal,
		Discount:   b.Discount,
		Tax:        b.Tax,
		Total:      b.Total,
		Status:     string(b.Status),
		PaymentRef: b.PaymentRef,
	}
	for _, line := range b.Lines {
		resp.Lines = append(resp.Lines, bookingLineResponse{
			RoomTypeID:  line.RoomTypeID,
			Quantity:    line.Quantity,
			Occupancy:   line.Occupancy,
			NightlyRate: line.NightlyRate,
			Subtotal:    line.Subtotal,
		})
	}
	return resp
}

func (s *Server) handleCreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.InvalidInput(err.Error()))
		return
	}

	b, err := s.bookings.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		HoldTokens: req.HoldTokens,
		Guest: domain.GuestDetails{
			Name:  req.Guest.Name,
			Email: req.Guest.Email,
			Phone: req.Guest.Phone,
		},
		CouponCode: req.CouponCode,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBookingResponse(b))
}

func (s *Server) handleGetBooking(c *gin.Context) {
	b, err := s.bookings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

type confirmBookingRequest struct {
	PaymentRef string `json:"payment_ref" binding:"required"`
}

func (s *Server) handleConfirmBooking(c *gin.Context) {
	var req confirmBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.InvalidInput(err.Error()))
		return
	}
	b, err := s.bookings.Confirm(c.Request.Context(), c.Param("id"), req.PaymentRef)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (s *Server) handleCompleteBooking(c *gin.Context) {
	b, err := s.bookings.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

type rescheduleBookingRequest struct {
	CheckIn  string `json:"check_in" binding:"required"`
	CheckOut string `json:"check_out" binding:"required"`
}

func (s *Server) handleRescheduleBooking(c *gin.Context) {
	var req rescheduleBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.InvalidInput(err.Error()))
		return
	}
	checkIn, err := parseDay(req.CheckIn, "check_in")
	if err != nil {
		writeError(c, err)
		return
	}
	checkOut, err := parseDay(req.CheckOut, "check_out")
	if err != nil {
		writeError(c, err)
		return
	}

	b, err := s.bookings.Reschedule(c.Request.Context(), c.Param("id"), checkIn, checkOut)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

type cancelBookingResponse struct {
	Booking     bookingResponse `json:"booking"`
	Refund      decimal.Decimal `json:"refund"`
	TierMatched bool            `json:"tier_matched"`
	TierPercent decimal.Decimal `json:"tier_percent"`
}

func (s *Server) handleCancelBooking(c *gin.Context) {
	result, err := s.bookings.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cancelBookingResponse{
		Booking:     toBookingResponse(result.Booking),
		Refund:      result.RefundAmount,
		TierMatched: result.Matched,
		TierPercent: result.TierPercent,
	})
}

type timelineEntryResponse struct {
	EventType  string `json:"event_type"`
	Detail     string `json:"detail,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

func (s *Server) handleBookingTimeline(c *gin.Context) {
	events, err := s.bookings.Timeline(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]timelineEntryResponse, 0, len(events))
	for _, e := range events {
		out = append(out, timelineEntryResponse{
			EventType:  e.EventType,
			Detail:     e.Detail,
			OccurredAt: e.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}
