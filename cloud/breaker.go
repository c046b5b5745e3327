// ABOUTME: Circuit breaker decorator for a cloud Store
// ABOUTME: Fails fast with StoreError while the breaker is open
package cloud

import (
	"context"
	"errors"
	"time"

	"github.com/harperreed/stakemap/models"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds configuration for the store circuit breaker.
type BreakerConfig struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig returns the breaker settings used by the CLI.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "cloud-store",
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// BreakerStore wraps a Store with a circuit breaker. Only availability
// failures count against the breaker; ownership and not-found answers are
// normal responses.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerStore(next Store, cfg BreakerConfig, logger *zap.Logger) *BreakerStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, models.ErrAccessDenied) ||
				errors.Is(err, models.ErrNotFound) ||
				errors.Is(err, models.ErrValidation)
		},
	})
	return &BreakerStore{next: next, cb: cb}
}

// State reports the breaker state.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) run(op string, fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &models.StoreError{Op: op, Err: err}
	}
	return err
}

func (b *BreakerStore) FetchMaps(ctx context.Context, ownerID string) ([]*models.Map, error) {
	var maps []*models.Map
	err := b.run("fetch maps", func() error {
		var err error
		maps, err = b.next.FetchMaps(ctx, ownerID)
		return err
	})
	return maps, err
}

func (b *BreakerStore) FetchStakeholders(ctx context.Context, mapID string) ([]*models.Stakeholder, error) {
	var list []*models.Stakeholder
	err := b.run("fetch stakeholders", func() error {
		var err error
		list, err = b.next.FetchStakeholders(ctx, mapID)
		return err
	})
	return list, err
}

func (b *BreakerStore) PutMap(ctx context.Context, m *models.Map) error {
	return b.run("put map", func() error { return b.next.PutMap(ctx, m) })
}

func (b *BreakerStore) PutStakeholder(ctx context.Context, s *models.Stakeholder) error {
	return b.run("put stakeholder", func() error { return b.next.PutStakeholder(ctx, s) })
}

func (b *BreakerStore) DeleteMap(ctx context.Context, mapID string) error {
	return b.run("delete map", func() error { return b.next.DeleteMap(ctx, mapID) })
}

func (b *BreakerStore) DeleteStakeholder(ctx context.Context, id string) error {
	return b.run("delete stakeholder", func() error { return b.next.DeleteStakeholder(ctx, id) })
}
