// ABOUTME: Cloud store contracts for map documents and usage metering
// ABOUTME: Shared cascade-delete helper and the typed partial-failure error
package cloud

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/harperreed/stakemap/models"
	"golang.org/x/sync/errgroup"
)

// Backend kinds accepted by the configuration.
const (
	BackendNone   = "none"
	BackendRedis  = "redis"
	BackendDynamo = "dynamodb"
)

// Store is the authoritative, networked copy of maps and stakeholders.
// Puts are upserts keyed by id; deletes are delete-if-exists.
type Store interface {
	FetchMaps(ctx context.Context, ownerID string) ([]*models.Map, error)
	FetchStakeholders(ctx context.Context, mapID string) ([]*models.Stakeholder, error)
	PutMap(ctx context.Context, m *models.Map) error
	PutStakeholder(ctx context.Context, s *models.Stakeholder) error
	DeleteMap(ctx context.Context, mapID string) error
	DeleteStakeholder(ctx context.Context, id string) error
}

// UsageStore holds the documents behind the weekly usage quota.
type UsageStore interface {
	UnlimitedAccess(ctx context.Context, userID string) (bool, error)
	// WeeklyCallLimit returns the configured limit; ok is false when unset.
	WeeklyCallLimit(ctx context.Context) (limit int, ok bool, err error)
	// GetWeeklyUsage returns nil when no counter exists for the week.
	GetWeeklyUsage(ctx context.Context, userID, weekID string) (*models.UsageCounter, error)
	AppendUsageEvent(ctx context.Context, ev *models.UsageEvent) error
	// IncrementWeeklyUsage atomically creates the counter at 1 or adds 1,
	// returning the new count.
	IncrementWeeklyUsage(ctx context.Context, counter *models.UsageCounter) (int, error)

	SetUnlimitedAccess(ctx context.Context, userID string, unlimited bool) error
	SetWeeklyCallLimit(ctx context.Context, limit int) error
}

// CascadeError reports a map delete that removed only some of its stakeholders.
// The map document is left in place so a retry re-enumerates the rest.
type CascadeError struct {
	MapID   string
	Deleted []string
	Failed  map[string]error
}

func (e *CascadeError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return fmt.Sprintf("partial delete of map %s: %d stakeholders deleted, %d failed (%s)",
		e.MapID, len(e.Deleted), len(e.Failed), strings.Join(ids, ", "))
}

func (e *CascadeError) Is(target error) bool {
	return target == models.ErrStoreUnavailable
}

func (e *CascadeError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}

// cascadeParallelism bounds concurrent child deletes.
const cascadeParallelism = 8

// deleteChildren deletes every id with del, concurrently and best effort.
// It returns nil when all deletes succeed.
func deleteChildren(ctx context.Context, mapID string, ids []string, del func(context.Context, string) error) *CascadeError {
	var (
		mu      sync.Mutex
		deleted []string
		failed  = make(map[string]error)
	)

	var g errgroup.Group
	g.SetLimit(cascadeParallelism)
	for _, id := range ids {
		g.Go(func() error {
			err := del(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[id] = err
			} else {
				deleted = append(deleted, id)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) == 0 {
		return nil
	}
	sort.Strings(deleted)
	return &CascadeError{MapID: mapID, Deleted: deleted, Failed: failed}
}

// wrap converts a backend failure into the error taxonomy.
func wrap(op string, err error) error {
	return models.WrapStoreError(op, err)
}
