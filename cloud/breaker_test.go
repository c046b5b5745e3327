package cloud

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harperreed/stakemap/models"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore answers every call with err and counts calls.
type stubStore struct {
	err   error
	calls int
}

func (s *stubStore) FetchMaps(context.Context, string) ([]*models.Map, error) {
	s.calls++
	return nil, s.err
}

func (s *stubStore) FetchStakeholders(context.Context, string) ([]*models.Stakeholder, error) {
	s.calls++
	return nil, s.err
}

func (s *stubStore) PutMap(context.Context, *models.Map) error {
	s.calls++
	return s.err
}

func (s *stubStore) PutStakeholder(context.Context, *models.Stakeholder) error {
	s.calls++
	return s.err
}

func (s *stubStore) DeleteMap(context.Context, string) error {
	s.calls++
	return s.err
}

func (s *stubStore) DeleteStakeholder(context.Context, string) error {
	s.calls++
	return s.err
}

func testBreakerConfig() BreakerConfig {
	return BreakerConfig{Name: "test", MaxRequests: 1, Interval: time.Minute, Timeout: time.Hour, ConsecutiveFailures: 3}
}

func TestBreakerTripsOnUnavailable(t *testing.T) {
	stub := &stubStore{err: &models.StoreError{Op: "put map", Err: errors.New("conn refused")}}
	b := NewBreakerStore(stub, testBreakerConfig(), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Error(t, b.PutMap(ctx, &models.Map{ID: "m"}))
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	err := b.DeleteStakeholder(ctx, "s")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, stub.calls, "open breaker must not reach the store")
}

func TestBreakerIgnoresAccessDenied(t *testing.T) {
	stub := &stubStore{err: &models.AccessDeniedError{Kind: "map", ID: "m", UserID: "u"}}
	b := NewBreakerStore(stub, testBreakerConfig(), nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, b.PutMap(ctx, &models.Map{ID: "m"}), models.ErrAccessDenied)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, 5, stub.calls)
}

func TestBreakerPassesResults(t *testing.T) {
	store, _ := setupTestRedis(t)
	b := NewBreakerStore(store, DefaultBreakerConfig(), nil)
	ctx := context.Background()

	m := ownedMap(t, "u1", "Through breaker")
	require.NoError(t, b.PutMap(ctx, m))
	require.NoError(t, b.PutStakeholder(ctx, stakeholderIn(t, m.ID, "x")))

	maps, err := b.FetchMaps(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, maps, 1)

	list, err := b.FetchStakeholders(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, b.DeleteMap(ctx, m.ID))
}
