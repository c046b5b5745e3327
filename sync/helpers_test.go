// ABOUTME: Shared fixtures for sync engine tests
// ABOUTME: In-memory local backend, a scriptable fake cloud store, and an event recorder
package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/harperreed/stakemap/db"
	"github.com/harperreed/stakemap/models"
	"github.com/stretchr/testify/require"
)

// memBackend is a goroutine-free db.Backend.
type memBackend struct {
	mu   gosync.Mutex
	data map[string][]byte
	// failSets makes every Set fail.
	failSets bool
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string][]byte)}
}

func (b *memBackend) Get(key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (b *memBackend) Set(key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSets {
		return errors.New("disk full")
	}
	b.data[key] = append([]byte(nil), value...)
	return nil
}

func (b *memBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}

func (b *memBackend) DropAll() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = make(map[string][]byte)
	return nil
}

func (b *memBackend) Close() error { return nil }

// memCloud is an in-memory cloud.Store that records every call.
type memCloud struct {
	mu           gosync.Mutex
	maps         map[string]*models.Map
	stakeholders map[string]*models.Stakeholder
	calls        []string

	fetchErr error
	// blockFetch makes FetchMaps wait for ctx to end.
	blockFetch bool
	// fetchDelay slows every FetchMaps call.
	fetchDelay time.Duration
	// putErr fails every put.
	putErr error
	// transient counts remaining failures per entity id before puts succeed.
	transient map[string]int
	// denied rejects puts for these ids.
	denied map[string]bool
}

func newMemCloud() *memCloud {
	return &memCloud{
		maps:         make(map[string]*models.Map),
		stakeholders: make(map[string]*models.Stakeholder),
		transient:    make(map[string]int),
		denied:       make(map[string]bool),
	}
}

func (c *memCloud) record(format string, args ...interface{}) {
	c.calls = append(c.calls, fmt.Sprintf(format, args...))
}

func (c *memCloud) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *memCloud) seedMap(m *models.Map, list ...*models.Stakeholder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maps[m.ID] = m.Clone()
	for _, st := range list {
		c.stakeholders[st.ID] = st.Clone()
	}
}

func (c *memCloud) FetchMaps(ctx context.Context, ownerID string) ([]*models.Map, error) {
	c.mu.Lock()
	c.record("fetch maps %s", ownerID)
	block, fetchErr, delay := c.blockFetch, c.fetchErr, c.fetchDelay
	c.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if block {
		<-ctx.Done()
		return nil, &models.StoreError{Op: "fetch maps", Err: ctx.Err()}
	}
	if fetchErr != nil {
		return nil, fetchErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*models.Map
	for _, m := range c.maps {
		if m.OwnerID == ownerID {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *memCloud) FetchStakeholders(_ context.Context, mapID string) ([]*models.Stakeholder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("fetch stakeholders %s", mapID)
	out := []*models.Stakeholder{}
	for _, st := range c.stakeholders {
		if st.MapID == mapID {
			out = append(out, st.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *memCloud) putFailure(op, id string) error {
	if c.putErr != nil {
		return c.putErr
	}
	if c.denied[id] {
		return &models.AccessDeniedError{Kind: op, ID: id}
	}
	if c.transient[id] > 0 {
		c.transient[id]--
		return &models.StoreError{Op: op, Err: errors.New("connection reset")}
	}
	return nil
}

func (c *memCloud) PutMap(_ context.Context, m *models.Map) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("put map %s", m.ID)
	if err := c.putFailure("map", m.ID); err != nil {
		return err
	}
	c.maps[m.ID] = m.Clone()
	return nil
}

func (c *memCloud) PutStakeholder(_ context.Context, st *models.Stakeholder) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("put stakeholder %s", st.ID)
	if err := c.putFailure("stakeholder", st.ID); err != nil {
		return err
	}
	c.stakeholders[st.ID] = st.Clone()
	return nil
}

func (c *memCloud) DeleteMap(_ context.Context, mapID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("delete map %s", mapID)
	for id, st := range c.stakeholders {
		if st.MapID == mapID {
			delete(c.stakeholders, id)
		}
	}
	delete(c.maps, mapID)
	return nil
}

func (c *memCloud) DeleteStakeholder(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("delete stakeholder %s", id)
	delete(c.stakeholders, id)
	return nil
}

func (c *memCloud) callsWithPrefix(prefix string) int {
	n := 0
	for _, call := range c.Calls() {
		if strings.HasPrefix(call, prefix) {
			n++
		}
	}
	return n
}

func (c *memCloud) cloudMap(id string) (*models.Map, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.maps[id]
	return m, ok
}

func (c *memCloud) cloudStakeholders(mapID string) []*models.Stakeholder {
	list, _ := c.FetchStakeholders(context.Background(), mapID)
	return list
}

func testOptions() Options {
	return Options{
		ReconcileTimeout:  2 * time.Second,
		MirrorTimeout:     time.Second,
		PromotionAttempts: 3,
		PromotionBackoff:  time.Millisecond,
	}
}

// setupEngine returns an engine over a fresh in-memory local store. The
// engine's mirror worker is stopped at cleanup.
func setupEngine(t *testing.T, cloud *memCloud) (*Engine, *db.LocalStore) {
	t.Helper()
	local := db.NewLocalStore(newMemBackend(), nil)
	var e *Engine
	if cloud == nil {
		e = NewEngine(local, nil, nil, testOptions())
	} else {
		e = NewEngine(local, cloud, nil, testOptions())
	}
	t.Cleanup(e.Close)
	return e, local
}

// eventLog records events delivered by an engine.
type eventLog struct {
	mu     gosync.Mutex
	events []Event
}

func recordEvents(e *Engine) *eventLog {
	l := &eventLog{}
	e.Subscribe(func(ev Event) {
		l.mu.Lock()
		l.events = append(l.events, ev)
		l.mu.Unlock()
	})
	return l
}

func (l *eventLog) ofKind(kind EventKind) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func mustCreateMap(t *testing.T, e *Engine, name string) *models.Map {
	t.Helper()
	m, err := e.CreateMap(models.MapInput{Name: name})
	require.NoError(t, err)
	return m
}

func mustAddStakeholder(t *testing.T, e *Engine, mapID, name string) *models.Stakeholder {
	t.Helper()
	st, err := e.AddStakeholder(models.StakeholderInput{MapID: mapID, Name: name})
	require.NoError(t, err)
	return st
}

func mapIDs(maps []*models.Map) []string {
	ids := make([]string, 0, len(maps))
	for _, m := range maps {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids
}
