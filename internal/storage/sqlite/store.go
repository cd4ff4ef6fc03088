package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/stayware/bookingcore/internal/pkg/errors"
)

// Store wraps a SQLite database and is the single persistence boundary
// for the booking engine. All mutating operations run inside immediate
// transactions, which serializes writers the way row locks would on a
// server database.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the database at path and initializes the
// schema. The DSN requests immediate transactions and a busy timeout so
// concurrent writers queue instead of failing outright.
func Open(path string, maxConns int) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on&_loc=UTC", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns / 2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS room_types (
		id          TEXT PRIMARY KEY,
		hotel_id    TEXT NOT NULL DEFAULT '',
		name        TEXT NOT NULL,
		total_units INTEGER NOT NULL,
		base_rate   TEXT NOT NULL,
		max_guests  INTEGER NOT NULL DEFAULT 2,
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS inventory_days (
		room_type_id TEXT NOT NULL,
		day          TEXT NOT NULL,
		total_units  INTEGER NOT NULL,
		held_units   INTEGER NOT NULL DEFAULT 0,
		booked_units INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (room_type_id, day),
		CHECK (held_units >= 0 AND booked_units >= 0
			AND held_units + booked_units <= total_units)
	);

	CREATE TABLE IF NOT EXISTS room_holds (
		token        TEXT PRIMARY KEY,
		room_type_id TEXT NOT NULL,
		check_in     TEXT NOT NULL,
		check_out    TEXT NOT NULL,
		quantity     INTEGER NOT NULL,
		owner_id     TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL,
		created_at   DATETIME NOT NULL,
		expires_at   DATETIME NOT NULL
	);

	-- Stale-hold reclamation scans active holds by room type and expiry
	CREATE INDEX IF NOT EXISTS idx_holds_room_type_expiry
		ON room_holds(room_type_id, status, expires_at);

	CREATE TABLE IF NOT EXISTS bookings (
		id          TEXT PRIMARY KEY,
		check_in    TEXT NOT NULL,
		check_out   TEXT NOT NULL,
		guest_name  TEXT NOT NULL,
		guest_email TEXT NOT NULL,
		guest_phone TEXT NOT NULL DEFAULT '',
		coupon_code TEXT NOT NULL DEFAULT '',
		subtotal    TEXT NOT NULL,
		discount    TEXT NOT NULL,
		tax         TEXT NOT NULL,
		total       TEXT NOT NULL,
		status      TEXT NOT NULL,
		payment_ref TEXT NOT NULL DEFAULT '',
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS booking_room_types (
		id           TEXT PRIMARY KEY,
		booking_id   TEXT NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
		room_type_id TEXT NOT NULL,
		quantity     INTEGER NOT NULL,
		occupancy    INTEGER NOT NULL DEFAULT 0,
		nightly_rate TEXT NOT NULL,
		subtotal     TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_booking_lines_booking
		ON booking_room_types(booking_id);

	CREATE TABLE IF NOT EXISTS rate_overrides (
		room_type_id TEXT NOT NULL,
		day          TEXT NOT NULL,
		rate         TEXT NOT NULL,
		PRIMARY KEY (room_type_id, day)
	);

	CREATE TABLE IF NOT EXISTS coupons (
		code          TEXT PRIMARY KEY,
		discount_type TEXT NOT NULL,
		discount_on   TEXT NOT NULL,
		room_type_id  TEXT NOT NULL DEFAULT '',
		amount        TEXT NOT NULL,
		valid_from    DATETIME,
		valid_until   DATETIME,
		active        INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS tax_configs (
		hotel_id TEXT PRIMARY KEY,
		mode     TEXT NOT NULL,
		rate     TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cancellation_policies (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		is_default INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS cancellation_policy_tiers (
		policy_id   TEXT NOT NULL REFERENCES cancellation_policies(id) ON DELETE CASCADE,
		days_before INTEGER NOT NULL,
		percent     TEXT NOT NULL,
		PRIMARY KEY (policy_id, days_before)
	);

	CREATE TABLE IF NOT EXISTS booking_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		booking_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		detail     TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_booking_events_booking
		ON booking_events(booking_id, created_at);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

type txKey struct{}

// WithTx runs fn inside a single immediate transaction. Nested calls
// join the transaction already carried by ctx. Busy/locked failures are
// surfaced as transient TransactionAborted errors so the retry layer
// can re-attempt the whole logical operation.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLiteErr("begin transaction", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapSQLiteErr("commit transaction", err)
	}
	return nil
}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q routes statements through the ambient transaction when one exists.
func (s *Store) q(ctx context.Context) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

func mapSQLiteErr(op string, err error) error {
	var sqlErr sqlite3.Error
	if stderrors.As(err, &sqlErr) {
		switch sqlErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return errors.TransactionAborted(op, err)
		}
	}
	return errors.Internal(op, err)
}
