package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/stayware/bookingcore/internal/domain"
	"github.com/stayware/bookingcore/internal/pkg/errors"
)

// CreateHold persists a new room hold.
func (s *Store) CreateHold(ctx context.Context, h domain.RoomHold) error {
	const stmt = `
	INSERT INTO room_holds (token, room_type_id, check_in, check_out, quantity, owner_id, status, created_at, expires_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.q(ctx).ExecContext(ctx, stmt,
		h.Token, h.RoomTypeID,
		h.Stay.CheckIn.Format(domain.DayFormat), h.Stay.CheckOut.Format(domain.DayFormat),
		h.Quantity, h.OwnerID, string(h.Status), h.CreatedAt, h.ExpiresAt,
	)
	if err != nil {
		return mapSQLiteErr("create hold", err)
	}
	return nil
}

// Hold loads a hold by token regardless of status.
func (s *Store) Hold(ctx context.Context, token string) (domain.RoomHold, error) {
	const query = `
	SELECT token, room_type_id, check_in, check_out, quantity, owner_id, status, created_at, expires_at
	FROM room_holds WHERE token = ?`

	return s.scanHold(s.q(ctx).QueryRowContext(ctx, query, token))
}

// UpdateHoldExpiry moves a hold's expiry forward.
func (s *Store) UpdateHoldExpiry(ctx context.Context, token string, expiresAt time.Time) error {
	const stmt = `UPDATE room_holds SET expires_at = ? WHERE token = ?`

	_, err := s.q(ctx).ExecContext(ctx, stmt, expiresAt, token)
	if err != nil {
		return mapSQLiteErr("update hold expiry", err)
	}
	return nil
}

// SetHoldStatus records a lifecycle transition for a hold.
func (s *Store) SetHoldStatus(ctx context.Context, token string, status domain.HoldStatus) error {
	const stmt = `UPDATE room_holds SET status = ? WHERE token = ?`

	_, err := s.q(ctx).ExecContext(ctx, stmt, string(status), token)
	if err != nil {
		return mapSQLiteErr("set hold status", err)
	}
	return nil
}

// StaleHolds returns active holds for the room type whose expiry has
// passed. Callers reclaim their held units and mark them expired within
// the same transaction.
func (s *Store) StaleHolds(ctx context.Context, roomTypeID string, now time.Time) ([]domain.RoomHold, error) {
	const query = `
	SELECT token, room_type_id, check_in, check_out, quantity, owner_id, status, created_at, expires_at
	FROM room_holds
	WHERE room_type_id = ? AND status = 'active' AND expires_at <= ?
	ORDER BY expires_at ASC`

	rows, err := s.q(ctx).QueryContext(ctx, query, roomTypeID, now)
	if err != nil {
		return nil, mapSQLiteErr("query stale holds", err)
	}
	defer rows.Close()

	var holds []domain.RoomHold
	for rows.Next() {
		h, err := s.scanHoldRow(rows)
		if err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanHold(row *sql.Row) (domain.RoomHold, error) {
	h, err := s.scanHoldRow(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return domain.RoomHold{}, errors.HoldNotFound("no such hold")
		}
		return domain.RoomHold{}, err
	}
	return h, nil
}

func (s *Store) scanHoldRow(row rowScanner) (domain.RoomHold, error) {
	var h domain.RoomHold
	var checkIn, checkOut, status string
	err := row.Scan(
		&h.Token, &h.RoomTypeID, &checkIn, &checkOut,
		&h.Quantity, &h.OwnerID, &status, &h.CreatedAt, &h.ExpiresAt,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return domain.RoomHold{}, err
		}
		return domain.RoomHold{}, mapSQLiteErr("scan hold", err)
	}

	h.Status = domain.HoldStatus(status)
	h.Stay.CheckIn, err = time.ParseInLocation(domain.DayFormat, checkIn, time.UTC)
	if err != nil {
		return domain.RoomHold{}, errors.Internal(fmt.Sprintf("parse check-in %q", checkIn), err)
	}
	h.Stay.CheckOut, err = time.ParseInLocation(domain.DayFormat, checkOut, time.UTC)
	if err != nil {
		return domain.RoomHold{}, errors.Internal(fmt.Sprintf("parse check-out %q", checkOut), err)
	}
	return h, nil
}
