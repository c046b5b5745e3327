// ABOUTME: Sync engine coordinating the local store with the cloud store
// ABOUTME: Tracks identity state, runs reconciliation on login, and mirrors local writes
package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/harperreed/stakemap/cloud"
	"github.com/harperreed/stakemap/db"
	"github.com/harperreed/stakemap/models"
	"go.uber.org/zap"
)

// ErrNoCloud is returned by HandleLogin when the engine runs without a cloud store.
var ErrNoCloud = errors.New("no cloud store configured")

// State is the engine's identity state.
type State int

const (
	StateAnonymous State = iota
	StateReconciling
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateReconciling:
		return "reconciling"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Options tunes reconciliation and mirroring.
type Options struct {
	// ReconcileTimeout bounds a whole reconciliation run.
	ReconcileTimeout time.Duration
	// MirrorTimeout bounds each cloud mirror write.
	MirrorTimeout time.Duration
	// PromotionAttempts is how many times each promotion write is tried.
	PromotionAttempts uint
	// PromotionBackoff is the first retry delay; later delays grow exponentially.
	PromotionBackoff time.Duration
}

func DefaultOptions() Options {
	return Options{
		ReconcileTimeout:  30 * time.Second,
		MirrorTimeout:     15 * time.Second,
		PromotionAttempts: 3,
		PromotionBackoff:  200 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ReconcileTimeout <= 0 {
		o.ReconcileTimeout = d.ReconcileTimeout
	}
	if o.MirrorTimeout <= 0 {
		o.MirrorTimeout = d.MirrorTimeout
	}
	if o.PromotionAttempts == 0 {
		o.PromotionAttempts = d.PromotionAttempts
	}
	if o.PromotionBackoff <= 0 {
		o.PromotionBackoff = d.PromotionBackoff
	}
	return o
}

// Engine owns the local snapshot and mirrors it to the cloud while a user
// is signed in. Operations are serialized; cloud mirrors run on a single
// background worker in issue order.
type Engine struct {
	local  *db.LocalStore
	cloud  cloud.Store
	logger *zap.Logger
	opts   Options
	bus    *Bus
	mirror *mirrorQueue

	mu gosync.Mutex

	stateMu gosync.RWMutex
	state   State
	userID  string
}

// NewEngine builds an engine. cloudStore may be nil for a local-only engine.
func NewEngine(local *db.LocalStore, cloudStore cloud.Store, logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		local:  local,
		cloud:  cloudStore,
		logger: logger,
		opts:   opts.withDefaults(),
		bus:    NewBus(),
	}
	e.mirror = newMirrorQueue(e.opts.MirrorTimeout, logger, e.mirrorFailed)
	return e
}

func (e *Engine) State() State {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state
}

// UserID returns the signed-in user, or "" when anonymous.
func (e *Engine) UserID() string {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	if e.state != StateAuthenticated {
		return ""
	}
	return e.userID
}

// identity returns the raw state and user, including while reconciling.
func (e *Engine) identity() (State, string) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state, e.userID
}

func (e *Engine) setState(s State, uid string) {
	e.stateMu.Lock()
	e.state = s
	e.userID = uid
	e.stateMu.Unlock()
}

// Subscribe registers h for engine events.
func (e *Engine) Subscribe(h Handler) func() {
	return e.bus.Subscribe(h)
}

// Flush waits for every queued cloud mirror to finish.
func (e *Engine) Flush() {
	e.mirror.flush()
}

// Close drains the mirror queue and stops its worker. The local store is
// left open; its owner closes it.
func (e *Engine) Close() {
	e.mirror.close()
}

// HandleLogin signs uid in and reconciles the local and cloud stores.
// Repeating the call for the signed-in user does nothing; a different
// user is signed out first.
func (e *Engine) HandleLogin(ctx context.Context, uid string) (*ReconcileResult, error) {
	if uid == "" {
		return nil, &models.ValidationError{Field: "userId", Reason: "is required"}
	}
	if e.cloud == nil {
		return nil, ErrNoCloud
	}

	// Identity is re-checked under e.mu so concurrent signals for one uid
	// reconcile once.
	for {
		e.mu.Lock()
		state, current := e.identity()
		if state == StateAnonymous {
			break
		}
		e.mu.Unlock()
		if current == uid {
			return &ReconcileResult{UserID: uid, Mode: ModeNone}, nil
		}
		e.HandleLogout()
	}

	e.setState(StateReconciling, uid)
	e.logger.Info("reconciling", zap.String("user_id", uid))

	rctx, cancel := context.WithTimeout(ctx, e.opts.ReconcileTimeout)
	result, err := e.reconcile(rctx, uid)
	cancel()
	if err != nil {
		e.setState(StateAnonymous, "")
		e.mu.Unlock()
		e.logger.Error("reconciliation failed", zap.String("user_id", uid), zap.Error(err))
		return nil, err
	}

	e.setState(StateAuthenticated, uid)
	maps := e.local.GetAllMaps()
	e.mu.Unlock()

	e.logger.Info("reconciled",
		zap.String("user_id", uid),
		zap.String("mode", string(result.Mode)),
		zap.Int("maps", len(maps)),
		zap.Bool("partial", result.Partial))

	e.bus.Publish(Event{Kind: EventSynced, UserID: uid, Maps: maps, Result: result})
	return result, nil
}

// HandleLogout waits for queued mirrors and returns to anonymous mode.
// The local snapshot is kept.
func (e *Engine) HandleLogout() {
	e.mirror.flush()

	e.mu.Lock()
	uid := e.UserID()
	wasSignedIn := e.State() != StateAnonymous
	e.setState(StateAnonymous, "")
	e.mu.Unlock()

	if !wasSignedIn {
		return
	}
	e.logger.Info("logged out", zap.String("user_id", uid))
	e.bus.Publish(Event{Kind: EventLoggedOut, UserID: uid})
}

// authenticatedUser returns the signed-in user; callers hold e.mu.
func (e *Engine) authenticatedUser() (string, bool) {
	uid := e.UserID()
	return uid, uid != ""
}

// checkOwner rejects writes to a map owned by someone other than the
// signed-in user. Anonymous sessions edit the local snapshot freely since
// nothing is mirrored.
func (e *Engine) checkOwner(m *models.Map) error {
	uid, ok := e.authenticatedUser()
	if !ok || m.OwnerID == "" || m.OwnerID == uid {
		return nil
	}
	return &models.AccessDeniedError{Kind: "map", ID: m.ID, UserID: uid}
}

// findOwnedMap is findMap plus checkOwner.
func (e *Engine) findOwnedMap(id string) ([]*models.Map, *models.Map, error) {
	maps, m, err := e.findMap(id)
	if err != nil {
		return nil, nil, err
	}
	if err := e.checkOwner(m); err != nil {
		return nil, nil, err
	}
	return maps, m, nil
}

func (e *Engine) mirrorFailed(job mirrorJob, err error) {
	e.logger.Warn("cloud mirror failed",
		zap.String("op", job.op),
		zap.String("entity_id", job.entityID),
		zap.Error(err))
	e.bus.Publish(Event{
		Kind:     EventMirrorFailed,
		UserID:   e.UserID(),
		Op:       job.op,
		EntityID: job.entityID,
		Err:      err,
	})
}

// enqueueMirror schedules a cloud write when a user is signed in.
func (e *Engine) enqueueMirror(op, entityID string, run func(ctx context.Context, store cloud.Store) error) {
	if _, ok := e.authenticatedUser(); !ok || e.cloud == nil {
		return
	}
	store := e.cloud
	e.mirror.enqueue(mirrorJob{
		op:       op,
		entityID: entityID,
		run:      func(ctx context.Context) error { return run(ctx, store) },
	})
}

func (e *Engine) mirrorMap(m *models.Map) {
	snap := m.Clone()
	e.enqueueMirror("put map", snap.ID, func(ctx context.Context, s cloud.Store) error {
		return s.PutMap(ctx, snap)
	})
}

func (e *Engine) mirrorStakeholder(st *models.Stakeholder) {
	snap := st.Clone()
	e.enqueueMirror("put stakeholder", snap.ID, func(ctx context.Context, s cloud.Store) error {
		return s.PutStakeholder(ctx, snap)
	})
}

// ListMaps returns every map in the local snapshot.
func (e *Engine) ListMaps() []*models.Map {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.local.GetAllMaps()
}

func (e *Engine) GetMap(id string) (*models.Map, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, m, err := e.findMap(id)
	return m, err
}

// GetStakeholders lists a map's stakeholders.
func (e *Engine) GetStakeholders(mapID string) ([]*models.Stakeholder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, _, err := e.findMap(mapID); err != nil {
		return nil, err
	}
	return e.local.GetStakeholders(mapID), nil
}

func (e *Engine) GetStakeholder(mapID, id string) (*models.Stakeholder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, st, err := e.findStakeholder(mapID, id)
	return st, err
}

// CurrentMapID returns the selected map, or "".
func (e *Engine) CurrentMapID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.local.GetCurrentMapID()
}

// SetCurrentMap selects a map.
func (e *Engine) SetCurrentMap(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, _, err := e.findMap(id); err != nil {
		return err
	}
	return e.local.SetCurrentMapID(id)
}

func (e *Engine) findMap(id string) ([]*models.Map, *models.Map, error) {
	maps := e.local.GetAllMaps()
	for _, m := range maps {
		if m.ID == id {
			return maps, m, nil
		}
	}
	return maps, nil, &models.NotFoundError{Kind: "map", ID: id}
}

func (e *Engine) findStakeholder(mapID, id string) ([]*models.Stakeholder, *models.Stakeholder, error) {
	if _, _, err := e.findMap(mapID); err != nil {
		return nil, nil, err
	}
	list := e.local.GetStakeholders(mapID)
	for _, st := range list {
		if st.ID == id {
			return list, st, nil
		}
	}
	return list, nil, &models.NotFoundError{Kind: "stakeholder", ID: id}
}
