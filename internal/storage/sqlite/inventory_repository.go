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

// RoomType loads a room type by ID.
func (s *Store) RoomType(ctx context.Context, id string) (domain.RoomType, error) {
	const query = `
	SELECT id, hotel_id, name, total_units, base_rate, max_guests, created_at, updated_at
	FROM room_types WHERE id = ?`

	var rt domain.RoomType
	var baseRate string
	err := s.q(ctx).QueryRowContext(ctx, query, id).Scan(
		&rt.ID, &rt.HotelID, &rt.Name, &rt.TotalUnits, &baseRate,
		&rt.MaxGuests, &rt.CreatedAt, &rt.UpdatedAt,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return domain.RoomType{}, errors.NotFound(fmt.Sprintf("room type %s", id))
		}
		return domain.RoomType{}, mapSQLiteErr("get room type", err)
	}
	rt.BaseRate, err = decimal.NewFromString(baseRate)
	if err != nil {
		return domain.RoomType{}, errors.Internal("parse base rate", err)
	}
	return rt, nil
}

// SaveRoomType inserts or replaces a room type.
func (s *Store) SaveRoomType(ctx context.Context, rt domain.RoomType) error {
	const stmt = `
	INSERT INTO room_types (id, hotel_id, name, total_units, base_rate, max_guests, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		hotel_id = excluded.hotel_id,
		name = excluded.name,
		total_units = excluded.total_units,
		base_rate = excluded.base_rate,
		max_guests = excluded.max_guests,
		updated_at = excluded.updated_at`

	_, err := s.q(ctx).ExecContext(ctx, stmt,
		rt.ID, rt.HotelID, rt.Name, rt.TotalUnits, rt.BaseRate.String(),
		rt.MaxGuests, rt.CreatedAt, rt.UpdatedAt,
	)
	if err != nil {
		return mapSQLiteErr("save room type", err)
	}
	return nil
}

// EnsureDay materializes the inventory row for (roomTypeID, day) with
// full availability if it does not exist yet.
func (s *Store) EnsureDay(ctx context.Context, roomTypeID string, day time.Time, totalUnits int) error {
	const stmt = `
	INSERT OR IGNORE INTO inventory_days (room_type_id, day, total_units, held_units, booked_units)
	VALUES (?, ?, ?, 0, 0)`

	_, err := s.q(ctx).ExecContext(ctx, stmt, roomTypeID, day.Format(domain.DayFormat), totalUnits)
	if err != nil {
		return mapSQLiteErr("ensure inventory day", err)
	}
	return nil
}

// InventoryDay reads one ledger row. The row must have been materialized.
func (s *Store) InventoryDay(ctx context.Context, roomTypeID string, day time.Time) (domain.InventoryDay, error) {
	const query = `
	SELECT room_type_id, day, total_units, held_units, booked_units
	FROM inventory_days WHERE room_type_id = ? AND day = ?`

	var d domain.InventoryDay
	var rawDay string
	err := s.q(ctx).QueryRowContext(ctx, query, roomTypeID, day.Format(domain.DayFormat)).Scan(
		&d.RoomTypeID, &rawDay, &d.TotalUnits, &d.HeldUnits, &d.BookedUnits,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return domain.InventoryDay{}, errors.NotFound(fmt.Sprintf("inventory day %s/%s", roomTypeID, day.Format(domain.DayFormat)))
		}
		return domain.InventoryDay{}, mapSQLiteErr("get inventory day", err)
	}
	d.Day, err = time.ParseInLocation(domain.DayFormat, rawDay, time.UTC)
	if err != nil {
		return domain.InventoryDay{}, errors.Internal("parse inventory day", err)
	}
	return d, nil
}

// AddHeld increments held_units for one day, guarded so the combined
// held+booked count can never pass total_units. Returns
// CapacityExceeded when the guard rejects the write.
func (s *Store) AddHeld(ctx context.Context, roomTypeID string, day time.Time, qty int) error {
	const stmt = `
	UPDATE inventory_days
	SET held_units = held_units + ?
	WHERE room_type_id = ? AND day = ?
		AND held_units + booked_units + ? <= total_units`

	res, err := s.q(ctx).ExecContext(ctx, stmt, qty, roomTypeID, day.Format(domain.DayFormat), qty)
	if err != nil {
		return mapSQLiteErr("add held units", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Internal("add held units", err)
	}
	if affected == 0 {
		return errors.CapacityExceeded(fmt.Sprintf("room type %s has no capacity on %s", roomTypeID, day.Format(domain.DayFormat)))
	}
	return nil
}

// SubHeld decrements held_units for one day, guarded against underflow.
func (s *Store) SubHeld(ctx context.Context, roomTypeID string, day time.Time, qty int) error {
	const stmt = `
	UPDATE inventory_days
	SET held_units = held_units - ?
	WHERE room_type_id = ? AND day = ? AND held_units >= ?`

	res, err := s.q(ctx).ExecContext(ctx, stmt, qty, roomTypeID, day.Format(domain.DayFormat), qty)
	if err != nil {
		return mapSQLiteErr("release held units", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Internal("release held units", err)
	}
	if affected == 0 {
		return errors.Internal(fmt.Sprintf("held units underflow for %s/%s", roomTypeID, day.Format(domain.DayFormat)), nil)
	}
	return nil
}

// ConvertHeldToBooked moves units from held to booked in one statement,
// leaving net availability unchanged.
func (s *Store) ConvertHeldToBooked(ctx context.Context, roomTypeID string, day time.Time, qty int) error {
	const stmt = `
	UPDATE inventory_days
	SET held_units = held_units - ?, booked_units = booked_units + ?
	WHERE room_type_id = ? AND day = ? AND held_units >= ?`

	res, err := s.q(ctx).ExecContext(ctx, stmt, qty, qty, roomTypeID, day.Format(domain.DayFormat), qty)
	if err != nil {
		return mapSQLiteErr("convert held to booked", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Internal("convert held to booked", err)
	}
	if affected == 0 {
		return errors.Internal(fmt.Sprintf("held units underflow for %s/%s", roomTypeID, day.Format(domain.DayFormat)), nil)
	}
	return nil
}

// AddBooked increments booked_units directly (used by reschedule),
// guarded by the capacity invariant.
func (s *Store) AddBooked(ctx context.Context, roomTypeID string, day time.Time, qty int) error {
	const stmt = `
	UPDATE inventory_days
	SET booked_units = booked_units + ?
	WHERE room_type_id = ? AND day = ?
		AND held_units + booked_units + ? <= total_units`

	res, err := s.q(ctx).ExecContext(ctx, stmt, qty, roomTypeID, day.Format(domain.DayFormat), qty)
	if err != nil {
		return mapSQLiteErr("add booked units", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Internal("add booked units", err)
	}
	if affected == 0 {
		return errors.CapacityExceeded(fmt.Sprintf("room type %s has no capacity on %s", roomTypeID, day.Format(domain.DayFormat)))
	}
	return nil
}

// SubBooked decrements booked_units, guarded against underflow.
func (s *Store) SubBooked(ctx context.Context, roomTypeID string, day time.Time, qty int) error {
	const stmt = `
	UPDATE inventory_days
	SET booked_units = booked_units - ?
	WHERE room_type_id = ? AND day = ? AND booked_units >= ?`

	res, err := s.q(ctx).ExecContext(ctx, stmt, qty, roomTypeID, day.Format(domain.DayFormat), qty)
	if err != nil {
		return mapSQLiteErr("release booked units", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Internal("release booked units", err)
	}
	if affected == 0 {
		return errors.Internal(fmt.Sprintf("booked units underflow for %s/%s", roomTypeID, day.Format(domain.DayFormat)), nil)
	}
	return nil
}
