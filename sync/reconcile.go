// ABOUTME: One-time reconciliation run when a user signs in
// ABOUTME: Either promotes anonymous local maps to the cloud or rebuilds the local snapshot from it
package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/harperreed/stakemap/models"
	"go.uber.org/zap"
)

// ReconcileMode names the path a reconciliation took.
type ReconcileMode string

const (
	// ModeNone means nothing needed to move.
	ModeNone ReconcileMode = "none"
	// ModePromotion means local maps were attached to the user and uploaded.
	ModePromotion ReconcileMode = "promotion"
	// ModePull means the local snapshot was replaced by the user's cloud maps.
	ModePull ReconcileMode = "pull"
)

// ReconcileResult describes what a reconciliation did. Promotion is not
// atomic: Partial is set when some writes failed, and the failures are
// keyed by entity id in Failed. Running the login again retries them.
type ReconcileResult struct {
	UserID string
	Mode   ReconcileMode

	PromotedMaps         []string
	PromotedStakeholders []string
	// Skipped lists local maps already owned by another user.
	Skipped []string

	PulledMaps         int
	PulledStakeholders int

	Failed  map[string]error
	Partial bool
}

func (r *ReconcileResult) fail(id string, err error) {
	if r.Failed == nil {
		r.Failed = make(map[string]error)
	}
	r.Failed[id] = err
	r.Partial = true
}

// reconcile runs with e.mu held.
func (e *Engine) reconcile(ctx context.Context, uid string) (*ReconcileResult, error) {
	cloudMaps, err := e.cloud.FetchMaps(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cloud maps: %w", err)
	}

	localMaps := e.local.GetAllMaps()

	var result *ReconcileResult
	switch {
	case len(cloudMaps) == 0 && len(localMaps) > 0:
		result, err = e.promote(ctx, uid, localMaps)
	case len(cloudMaps) > 0:
		result, err = e.pull(ctx, uid, cloudMaps)
	default:
		result = &ReconcileResult{UserID: uid, Mode: ModeNone}
	}
	if err != nil {
		return nil, err
	}

	if err := e.ensureCurrentMap(); err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) promote(ctx context.Context, uid string, localMaps []*models.Map) (*ReconcileResult, error) {
	result := &ReconcileResult{UserID: uid, Mode: ModePromotion}

	var targets []*models.Map
	claimed := false
	for _, m := range localMaps {
		switch m.OwnerID {
		case uid:
		case "":
			m.OwnerID = uid
			claimed = true
		default:
			result.Skipped = append(result.Skipped, m.ID)
			continue
		}
		targets = append(targets, m)
	}
	if claimed {
		if err := e.local.SaveMaps(localMaps); err != nil {
			return nil, fmt.Errorf("failed to claim local maps: %w", err)
		}
	}

	for _, m := range targets {
		if err := e.retry(ctx, func(ctx context.Context) error { return e.cloud.PutMap(ctx, m) }); err != nil {
			e.logger.Warn("promotion failed", zap.String("map_id", m.ID), zap.Error(err))
			result.fail(m.ID, err)
			continue
		}
		result.PromotedMaps = append(result.PromotedMaps, m.ID)

		for _, st := range e.local.GetStakeholders(m.ID) {
			if err := e.retry(ctx, func(ctx context.Context) error { return e.cloud.PutStakeholder(ctx, st) }); err != nil {
				e.logger.Warn("promotion failed", zap.String("stakeholder_id", st.ID), zap.Error(err))
				result.fail(st.ID, err)
				continue
			}
			result.PromotedStakeholders = append(result.PromotedStakeholders, st.ID)
		}
	}
	return result, nil
}

// pull replaces the local snapshot with the cloud's. Every stakeholder list
// is fetched before anything local is discarded.
func (e *Engine) pull(ctx context.Context, uid string, cloudMaps []*models.Map) (*ReconcileResult, error) {
	result := &ReconcileResult{UserID: uid, Mode: ModePull}

	children := make(map[string][]*models.Stakeholder, len(cloudMaps))
	for _, m := range cloudMaps {
		list, err := e.cloud.FetchStakeholders(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch stakeholders for map %s: %w", m.ID, err)
		}
		children[m.ID] = list
	}

	if err := e.local.Reset(); err != nil {
		return nil, fmt.Errorf("failed to reset local store: %w", err)
	}
	if err := e.local.SaveMaps(cloudMaps); err != nil {
		return nil, fmt.Errorf("failed to save pulled maps: %w", err)
	}
	for _, m := range cloudMaps {
		if err := e.local.SaveStakeholders(m.ID, children[m.ID]); err != nil {
			return nil, fmt.Errorf("failed to save pulled stakeholders: %w", err)
		}
		result.PulledStakeholders += len(children[m.ID])
	}
	result.PulledMaps = len(cloudMaps)
	return result, nil
}

// ensureCurrentMap points the selection at the first map when it is unset
// or names a map that is gone.
func (e *Engine) ensureCurrentMap() error {
	maps := e.local.GetAllMaps()
	current := e.local.GetCurrentMapID()
	for _, m := range maps {
		if m.ID == current {
			return nil
		}
	}
	if len(maps) == 0 {
		if current == "" {
			return nil
		}
		return e.local.ClearCurrentMapID()
	}
	return e.local.SetCurrentMapID(maps[0].ID)
}

// retry runs an idempotent cloud write with exponential backoff. Ownership
// and validation failures are not retried.
func (e *Engine) retry(ctx context.Context, op func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.opts.PromotionBackoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op(ctx)
		if errors.Is(err, models.ErrAccessDenied) || errors.Is(err, models.ErrValidation) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(e.opts.PromotionAttempts))
	return err
}
