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

// CreateBooking persists a booking and its line items. Callers run this
// inside the booking-composition transaction.
func (s *Store) CreateBooking(ctx context.Context, b domain.Booking) error {
	const stmt = `
	INSERT INTO bookings (id, check_in, check_out, guest_name, guest_email, guest_phone,
		coupon_code, subtotal, discount, tax, total, status, payment_ref, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.q(ctx).ExecContext(ctx, stmt,
		b.ID,
		b.Stay.CheckIn.Format(domain.DayFormat), b.Stay.CheckOut.Format(domain.DayFormat),
		b.Guest.Name, b.Guest.Email, b.Guest.Phone,
		b.CouponCode,
		b.Subtotal.String(), b.Discount.String(), b.Tax.String(), b.Total.String(),
		string(b.Status), b.PaymentRef, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return mapSQLiteErr("create booking", err)
	}

	const lineStmt = `
	INSERT INTO booking_room_types (id, booking_id, room_type_id, quantity, occupancy, nightly_rate, subtotal)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	for _, line := range b.Lines {
		_, err := s.q(ctx).ExecContext(ctx, lineStmt,
			line.ID, b.ID, line.RoomTypeID, line.Quantity, line.Occupancy,
			line.NightlyRate.String(), line.Subtotal.String(),
		)
		if err != nil {
			return mapSQLiteErr("create booking line", err)
		}
	}
	return nil
}

// Booking loads a booking with its line items.
func (s *Store) Booking(ctx context.Context, id string) (domain.Booking, error) {
	const query = `
	SELECT id, check_in, check_out, guest_name, guest_email, guest_phone,
		coupon_code, subtotal, discount, tax, total, status, payment_ref, created_at, updated_at
	FROM bookings WHERE id = ?`

	var b domain.Booking
	var checkIn, checkOut, status string
	var subtotal, discount, tax, total string
	err := s.q(ctx).QueryRowContext(ctx, query, id).Scan(
		&b.ID, &checkIn, &checkOut,
		&b.Guest.Name, &b.Guest.Email, &b.Guest.Phone,
		&b.CouponCode, &subtotal, &discount, &tax, &total,
		&status, &b.PaymentRef, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return domain.Booking{}, errors.NotFound(fmt.Sprintf("booking %s", id))
		}
		return domain.Booking{}, mapSQLiteErr("get booking", err)
	}

	b.Status = domain.BookingStatus(status)
	if b.Stay.CheckIn, err = time.ParseInLocation(domain.DayFormat, checkIn, time.UTC); err != nil {
		return domain.Booking{}, errors.Internal("parse booking check-in", err)
	}
	if b.Stay.CheckOut, err = time.ParseInLocation(domain.DayFormat, checkOut, time.UTC); err != nil {
		return domain.Booking{}, errors.Internal("parse booking check-out", err)
	}
	for name, pair := range map[string]struct {
		raw string
		dst *decimal.Decimal
	}{
		"subtotal": {subtotal, &b.Subtotal},
		"discount": {discount, &b.Discount},
		"tax":      {tax, &b.Tax},
		"total":    {total, &b.Total},
	} {
		d, err := decimal.NewFromString(pair.raw)
		if err != nil {
			return domain.Booking{}, errors.Internal(fmt.Sprintf("parse booking %s", name), err)
		}
		*pair.dst = d
	}

	lines, err := s.bookingLines(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	b.Lines = lines
	return b, nil
}

func (s *Store) bookingLines(ctx context.Context, bookingID string) ([]domain.BookingLine, error) {
	const query = `
	SELECT id, booking_id, room_type_id, quantity, occupancy, nightly_rate, subtotal
	FROM booking_room_types WHERE booking_id = ? ORDER BY room_type_id`

	rows, err := s.q(ctx).QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, mapSQLiteErr("query booking lines", err)
	}
	defer rows.Close()

	var lines []domain.BookingLine
	for rows.Next() {
		var line domain.BookingLine
		var rate, subtotal string
		if err := rows.Scan(&line.ID, &line.BookingID, &line.RoomTypeID,
			&line.Quantity, &line.Occupancy, &rate, &subtotal); err != nil {
			return nil, mapSQLiteErr("scan booking line", err)
		}
		if line.NightlyRate, err = decimal.NewFromString(rate); err != nil {
			return nil, errors.Internal("parse line rate", err)
		}
		if line.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
			return nil, errors.Internal("parse line subtotal", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// UpdateBooking persists mutable booking fields (status, payment
// reference, stay dates) after a lifecycle transition.
func (s *Store) UpdateBooking(ctx context.Context, b domain.Booking) error {
	const stmt = `
	UPDATE bookings
	SET check_in = ?, check_out = ?, status = ?, payment_ref = ?, updated_at = ?
	WHERE id = ?`

	res, err := s.q(ctx).ExecContext(ctx, stmt,
		b.Stay.CheckIn.Format(domain.DayFormat), b.Stay.CheckOut.Format(domain.DayFormat),
		string(b.Status), b.PaymentRef, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return mapSQLiteErr("update booking", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Internal("update booking", err)
	}
	if affected == 0 {
		return errors.NotFound(fmt.Sprintf("booking %s", b.ID))
	}
	return nil
}

// AppendBookingEvent records an audit trail entry for a booking
// lifecycle transition, inside the same transaction as the transition.
func (s *Store) AppendBookingEvent(ctx context.Context, bookingID, eventType, detail string, at time.Time) error {
	const stmt = `
	INSERT INTO booking_events (booking_id, event_type, detail, created_at)
	VALUES (?, ?, ?, ?)`

	_, err := s.q(ctx).ExecContext(ctx, stmt, bookingID, eventType, detail, at)
	if err != nil {
		return mapSQLiteErr("append booking event", err)
	}
	return nil
}

// BookingEvents returns the audit timeline for a booking, oldest first.
func (s *Store) BookingEvents(ctx context.Context, bookingID string) ([]domain.BookingEvent, error) {
	const query = `
	SELECT id, booking_id, event_type, detail, created_at
	FROM booking_events WHERE booking_id = ? ORDER BY created_at ASC, id ASC`

	rows, err := s.q(ctx).QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, mapSQLiteErr("query booking events", err)
	}
	defer rows.Close()

	var events []domain.BookingEvent
	for rows.Next() {
		var e domain.BookingEvent
		if err := rows.Scan(&e.ID, &e.BookingID, &e.EventType, &e.Detail, &e.CreatedAt); err != nil {
			return nil, mapSQLiteErr("scan booking event", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
