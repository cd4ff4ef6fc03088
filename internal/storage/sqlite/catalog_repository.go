package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stayware/bookingcore/internal/domain"
	"github.com/stayware/bookingcore/internal/pkg/errors"
)

// SaveRateOverride pins a day-specific nightly rate.
func (s *Store) SaveRateOverride(ctx context.Context, o domain.RateOverride) error {
	const stmt = `
	INSERT INTO rate_overrides (room_type_id, day, rate)
	VALUES (?, ?, ?)
	ON CONFLICT(room_type_id, day) DO UPDATE SET rate = excluded.rate`

	_, err := s.q(ctx).ExecContext(ctx, stmt,
		o.RoomTypeID, o.Day.Format(domain.DayFormat), o.Rate.String())
	if err != nil {
		return mapSQLiteErr("save rate override", err)
	}
	return nil
}

// RateOverrides returns the day-keyed override rates for a room type
// within a stay range, keyed by DayFormat strings.
func (s *Store) RateOverrides(ctx context.Context, roomTypeID string, stay domain.StayRange) (map[string]decimal.Decimal, error) {
	const query = `
	SELECT day, rate FROM rate_overrides
	WHERE room_type_id = ? AND day >= ? AND day < ?`

	rows, err := s.q(ctx).QueryContext(ctx, query, roomTypeID,
		stay.CheckIn.Format(domain.DayFormat), stay.CheckOut.Format(domain.DayFormat))
	if err != nil {
		return nil, mapSQLiteErr("query rate overrides", err)
	}
	defer rows.Close()

	overrides := make(map[string]decimal.Decimal)
	for rows.Next() {
		var day, rate string
		if err := rows.Scan(&day, &rate); err != nil {
			return nil, mapSQLiteErr("scan rate override", err)
		}
		d, err := decimal.NewFromString(rate)
		if err != nil {
			return nil, errors.Internal("parse override rate", err)
		}
		overrides[day] = d
	}
	return overrides, rows.Err()
}

// SaveCoupon inserts or replaces a coupon.
func (s *Store) SaveCoupon(ctx context.Context, c domain.Coupon) error {
	const stmt = `
	INSERT INTO coupons (code, discount_type, discount_on, room_type_id, amount, valid_from, valid_until, active)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(code) DO UPDATE SET
		discount_type = excluded.discount_type,
		discount_on = excluded.discount_on,
		room_type_id = excluded.room_type_id,
		amount = excluded.amount,
		valid_from = excluded.valid_from,
		valid_until = excluded.valid_until,
		active = excluded.active`

	active := 0
	if c.Active {
		active = 1
	}
	_, err := s.q(ctx).ExecContext(ctx, stmt,
		c.Code, string(c.Type), string(c.Scope), c.RoomTypeID, c.Amount.String(),
		nullableTime(c.ValidFrom), nullableTime(c.ValidUntil), active,
	)
	if err != nil {
		return mapSQLiteErr("save coupon", err)
	}
	return nil
}

// Coupon looks up a coupon by code. Unknown codes yield CouponInvalid
// so the pricing path can surface them directly.
func (s *Store) Coupon(ctx context.Context, code string) (domain.Coupon, error) {
	const query = `
	SELECT code, discount_type, discount_on, room_type_id, amount, valid_from, valid_until, active
	FROM coupons WHERE code = ?`

	var c domain.Coupon
	var dtype, scope, amount string
	var validFrom, validUntil sql.NullTime
	var active int
	err := s.q(ctx).QueryRowContext(ctx, query, code).Scan(
		&c.Code, &dtype, &scope, &c.RoomTypeID, &amount, &validFrom, &validUntil, &active,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return domain.Coupon{}, errors.CouponInvalid(fmt.Sprintf("unknown coupon %q", code))
		}
		return domain.Coupon{}, mapSQLiteErr("get coupon", err)
	}

	c.Type = domain.DiscountType(dtype)
	c.Scope = domain.DiscountScope(scope)
	c.Active = active == 1
	if validFrom.Valid {
		c.ValidFrom = validFrom.Time
	}
	if validUntil.Valid {
		c.ValidUntil = validUntil.Time
	}
	if c.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.Coupon{}, errors.Internal("parse coupon amount", err)
	}
	return c, nil
}

// SaveTaxConfig stores the tax mode and rate for a hotel.
func (s *Store) SaveTaxConfig(ctx context.Context, hotelID string, cfg domain.TaxConfig) error {
	const stmt = `
	INSERT INTO tax_configs (hotel_id, mode, rate)
	VALUES (?, ?, ?)
	ON CONFLICT(hotel_id) DO UPDATE SET mode = excluded.mode, rate = excluded.rate`

	_, err := s.q(ctx).ExecContext(ctx, stmt, hotelID, string(cfg.Mode), cfg.Rate.String())
	if err != nil {
		return mapSQLiteErr("save tax config", err)
	}
	return nil
}

// TaxConfig returns the tax configuration for a hotel, defaulting to
// zero-rate exclusive tax when none is configured.
func (s *Store) TaxConfig(ctx context.Context, hotelID string) (domain.TaxConfig, error) {
	const query = `SELECT mode, rate FROM tax_configs WHERE hotel_id = ?`

	var mode, rate string
	err := s.q(ctx).QueryRowContext(ctx, query, hotelID).Scan(&mode, &rate)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return domain.TaxConfig{Mode: domain.TaxModeExclusive, Rate: decimal.Zero}, nil
		}
		return domain.TaxConfig{}, mapSQLiteErr("get tax config", err)
	}

	cfg := domain.TaxConfig{Mode: domain.TaxMode(mode)}
	if cfg.Rate, err = decimal.NewFromString(rate); err != nil {
		return domain.TaxConfig{}, errors.Internal("parse tax rate", err)
	}
	return cfg, nil
}

// SavePolicy stores a cancellation policy and its tiers.
func (s *Store) SavePolicy(ctx context.Context, p domain.CancellationPolicy, isDefault bool) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		def := 0
		if isDefault {
			def = 1
		}
		const stmt = `
		INSERT INTO cancellation_policies (id, name, is_default)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, is_default = excluded.is_default`
		if _, err := s.q(ctx).ExecContext(ctx, stmt, p.ID, p.Name, def); err != nil {
			return mapSQLiteErr("save policy", err)
		}

		if _, err := s.q(ctx).ExecContext(ctx, `DELETE FROM cancellation_policy_tiers WHERE policy_id = ?`, p.ID); err != nil {
			return mapSQLiteErr("clear policy tiers", err)
		}
		const tierStmt = `
		INSERT INTO cancellation_policy_tiers (policy_id, days_before, percent)
		VALUES (?, ?, ?)`
		for _, t := range p.Tiers {
			if _, err := s.q(ctx).ExecContext(ctx, tierStmt, p.ID, t.DaysBefore, t.Percent.String()); err != nil {
				return mapSQLiteErr("save policy tier", err)
			}
		}
		return nil
	})
}

// DefaultPolicy returns the default cancellation policy, or the first
// policy when none is flagged default.
func (s *Store) DefaultPolicy(ctx context.Context) (domain.CancellationPolicy, error) {
	const query = `
	SELECT id, name FROM cancellation_policies
	ORDER BY is_default DESC, id ASC LIMIT 1`

	var p domain.CancellationPolicy
	err := s.q(ctx).QueryRowContext(ctx, query).Scan(&p.ID, &p.Name)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return domain.CancellationPolicy{}, errors.NotFound("no cancellation policy configured")
		}
		return domain.CancellationPolicy{}, mapSQLiteErr("get default policy", err)
	}

	const tierQuery = `
	SELECT days_before, percent FROM cancellation_policy_tiers
	WHERE policy_id = ? ORDER BY days_before DESC`

	rows, err := s.q(ctx).QueryContext(ctx, tierQuery, p.ID)
	if err != nil {
		return domain.CancellationPolicy{}, mapSQLiteErr("query policy tiers", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t domain.RefundTier
		var percent string
		if err := rows.Scan(&t.DaysBefore, &percent); err != nil {
			return domain.CancellationPolicy{}, mapSQLiteErr("scan policy tier", err)
		}
		if t.Percent, err = decimal.NewFromString(percent); err != nil {
			return domain.CancellationPolicy{}, errors.Internal("parse tier percent", err)
		}
		p.Tiers = append(p.Tiers, t)
	}
	return p, rows.Err()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
