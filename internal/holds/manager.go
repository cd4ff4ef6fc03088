// Package holds manages time-boxed soft reservations against the
// inventory ledger. There is no background sweeper: expiry is a time
// comparison evaluated wherever a hold is read, and stale holds are
// reclaimed by whichever operation touches their room type next.
package holds

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stayware/bookingcore/internal/clock"
	"github.com/stayware/bookingcore/internal/domain"
	"github.com/stayware/bookingcore/internal/infrastructure/observability"
	"github.com/stayware/bookingcore/internal/ledger"
	"github.com/stayware/bookingcore/internal/middleware"
	"github.com/stayware/bookingcore/internal/pkg/errors"
)

// Repository is the persistence surface the hold manager needs.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateHold(ctx context.Context, h domain.RoomHold) error
	Hold(ctx context.Context, token string) (domain.RoomHold, error)
	UpdateHoldExpiry(ctx context.Context, token string, expiresAt time.Time) error
	SetHoldStatus(ctx context.Context, token string, status domain.HoldStatus) error
}

// DefaultTTL bounds how long an unconsumed hold keeps inventory off
// the market.
const DefaultTTL = 15 * time.Minute

// Manager creates, extends and releases room holds.
type Manager struct {
	repo    Repository
	ledger  *ledger.Ledger
	clock   clock.Clock
	logger  *observability.Logger
	metrics *observability.Metrics
	ttl     time.Duration
	retry   middleware.RetryPolicy
}

// Option customizes a Manager.
type Option func(*Manager)

// WithTTL overrides the default TTL for new holds.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithRetryPolicy overrides the transaction retry policy.
func WithRetryPolicy(p middleware.RetryPolicy) Option {
	return func(m *Manager) {
		m.retry = p
	}
}

// NewManager creates a hold manager.
func NewManager(repo Repository, ldg *ledger.Ledger, clk clock.Clock, logger *observability.Logger, metrics *observability.Metrics, opts ...Option) *Manager {
	m := &Manager{
		repo:    repo,
		ledger:  ldg,
		clock:   clk,
		logger:  logger,
		metrics: metrics,
		ttl:     DefaultTTL,
		retry:   middleware.DefaultRetryPolicy(3),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateHoldInput describes a requested hold.
type CreateHoldInput struct {
	RoomTypeID string
	CheckIn    time.Time
	CheckOut   time.Time
	Quantity   int
	OwnerID    string
}

// CreateHold reserves qty units for every night of the stay and
// returns the hold. The reservation is all days or nothing: if any
// day lacks capacity the whole transaction rolls back and the call
// fails with SlotUnavailable.
func (m *Manager) CreateHold(ctx context.Context, in CreateHoldInput) (domain.RoomHold, error) {
	if in.Quantity <= 0 {
		return domain.RoomHold{}, errors.InvalidInput("quantity must be positive")
	}
	stay, err := domain.NewStayRange(in.CheckIn, in.CheckOut)
	if err != nil {
		return domain.RoomHold{}, err
	}

	now := m.clock.Now()
	if stay.StartsBefore(now) {
		return domain.RoomHold{}, errors.InvalidDateRange("check-in date is in the past")
	}

	hold := domain.RoomHold{
		Token:      uuid.NewString(),
		RoomTypeID: in.RoomTypeID,
		Stay:       stay,
		Quantity:   in.Quantity,
		OwnerID:    in.OwnerID,
		Status:     domain.HoldStatusActive,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.ttl),
	}

	op := func(ctx context.Context) error {
		return m.repo.WithTx(ctx, func(ctx context.Context) error {
			if err := m.ledger.Reserve(ctx, in.RoomTypeID, stay, in.Quantity, now); err != nil {
				if errors.Is(err, errors.KindCapacityExceeded) {
					return errors.SlotUnavailable(err.Error())
				}
				return err
			}
			return m.repo.CreateHold(ctx, hold)
		})
	}
	if err := middleware.Retry(ctx, m.logger, m.retry, op); err != nil {
		if errors.Is(err, errors.KindSlotUnavailable) {
			m.metrics.RecordCapacityConflict()
		}
		return domain.RoomHold{}, err
	}

	m.metrics.RecordHoldCreated()
	m.logger.WithHoldToken(hold.Token).WithRoomType(in.RoomTypeID).Logger.Info().
		Int("quantity", in.Quantity).
		Time("expires_at", hold.ExpiresAt).
		Msg("hold created")
	return hold, nil
}

// Get returns the hold if it is still active. A hold past its expiry
// is nonexistent to readers, even when the row has not been reclaimed.
func (m *Manager) Get(ctx context.Context, token string) (domain.RoomHold, error) {
	h, err := m.repo.Hold(ctx, token)
	if err != nil {
		return domain.RoomHold{}, err
	}
	if !h.IsActive(m.clock.Now()) {
		return domain.RoomHold{}, errors.HoldNotFound("hold is no longer active")
	}
	return h, nil
}

// ExtendHold moves an active hold's expiry to now+ttl (the manager's
// default TTL when ttl is zero). Expired, consumed or released holds
// fail with HoldNotFound, forcing the client to re-quote.
func (m *Manager) ExtendHold(ctx context.Context, token string, ttl time.Duration) (domain.RoomHold, error) {
	if ttl <= 0 {
		ttl = m.ttl
	}
	now := m.clock.Now()

	var hold domain.RoomHold
	op := func(ctx context.Context) error {
		return m.repo.WithTx(ctx, func(ctx context.Context) error {
			h, err := m.repo.Hold(ctx, token)
			if err != nil {
				return err
			}
			if !h.IsActive(now) {
				return errors.HoldNotFound("hold is no longer active")
			}
			h.ExpiresAt = now.Add(ttl)
			if err := m.repo.UpdateHoldExpiry(ctx, token, h.ExpiresAt); err != nil {
				return err
			}
			hold = h
			return nil
		})
	}
	if err := middleware.Retry(ctx, m.logger, m.retry, op); err != nil {
		return domain.RoomHold{}, err
	}
	return hold, nil
}

// ReleaseHold gives an active hold's units back to the ledger. It is
// idempotent: releasing an expired, consumed, already-released or
// unknown hold succeeds as a no-op, so callers racing the expiry clock
// are never penalized, and availability is never double-credited.
func (m *Manager) ReleaseHold(ctx context.Context, token string) error {
	now := m.clock.Now()

	var released bool
	op := func(ctx context.Context) error {
		return m.repo.WithTx(ctx, func(ctx context.Context) error {
			h, err := m.repo.Hold(ctx, token)
			if err != nil {
				if errors.Is(err, errors.KindHoldNotFound) {
					return nil
				}
				return err
			}
			if h.Status != domain.HoldStatusActive {
				return nil
			}
			if !h.ExpiresAt.After(now) {
				// Already past its TTL: reclaim it the lazy way rather
				// than double-releasing below.
				if _, err := m.ledger.ReclaimExpired(ctx, h.RoomTypeID, now); err != nil {
					return err
				}
				return nil
			}

			if err := m.ledger.Release(ctx, h.RoomTypeID, h.Stay, h.Quantity); err != nil {
				return err
			}
			if err := m.repo.SetHoldStatus(ctx, token, domain.HoldStatusReleased); err != nil {
				return err
			}
			released = true
			return nil
		})
	}
	if err := middleware.Retry(ctx, m.logger, m.retry, op); err != nil {
		return err
	}

	if released {
		m.metrics.HoldsReleased.Inc()
		m.logger.WithHoldToken(token).Logger.Info().Msg("hold released")
	}
	return nil
}
