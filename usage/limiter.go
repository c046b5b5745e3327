// ABOUTME: Weekly call quota for metered AI features
// ABOUTME: Reads fail open; recording failures are logged and never surface to callers
package usage

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/stakemap/cloud"
	"github.com/harperreed/stakemap/models"
	"go.uber.org/zap"
)

// DefaultWeeklyLimit applies when no limit is configured in the store.
const DefaultWeeklyLimit = 10

// Unbounded is the limit reported for users with unlimited access.
const Unbounded = math.MaxInt

// weekIDLayout formats the Sunday that starts a week.
const weekIDLayout = "2006-01-02"

// Options configures a Limiter.
type Options struct {
	// DefaultLimit is used when the store has no configured weekly limit.
	DefaultLimit int
	// Location fixes the time zone that week boundaries are computed in.
	// Nil means the process's local zone.
	Location *time.Location
	// Now overrides the clock.
	Now func() time.Time
}

// LimitStatus is the outcome of a quota check.
type LimitStatus struct {
	HasReachedLimit bool      `json:"hasReachedLimit"`
	CurrentUsage    int       `json:"currentUsage"`
	Limit           int       `json:"limit"`
	Unlimited       bool      `json:"unlimited"`
	ResetDate       time.Time `json:"resetDate"`
}

// Tokens reports what a metered call consumed.
type Tokens struct {
	Prompt int
	Output int
}

// Limiter enforces a per-user weekly call quota.
//
// CheckLimit, the metered call, and RecordUsage are separate steps.
// Callers racing for the last slot can all pass the check, so the counter
// may end above the limit. Only the increment itself is atomic.
type Limiter struct {
	store  cloud.UsageStore
	logger *zap.Logger

	defaultLimit int
	loc          *time.Location
	now          func() time.Time
}

func NewLimiter(store cloud.UsageStore, logger *zap.Logger, opts Options) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Limiter{
		store:        store,
		logger:       logger,
		defaultLimit: opts.DefaultLimit,
		loc:          opts.Location,
		now:          opts.Now,
	}
	if l.defaultLimit <= 0 {
		l.defaultLimit = DefaultWeeklyLimit
	}
	if l.loc == nil {
		l.loc = time.Local
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Window returns the week containing t: Sunday 00:00:00.000 through
// Saturday 23:59:59.999 in the limiter's zone, and the week's id.
func (l *Limiter) Window(t time.Time) (start, end time.Time, weekID string) {
	local := t.In(l.loc)
	start = time.Date(local.Year(), local.Month(), local.Day()-int(local.Weekday()), 0, 0, 0, 0, l.loc)
	end = start.AddDate(0, 0, 7).Add(-time.Millisecond)
	return start, end, start.Format(weekIDLayout)
}

// CheckLimit reports the user's standing for the current week. When the
// store cannot be read the check passes with the default limit.
func (l *Limiter) CheckLimit(ctx context.Context, userID string) LimitStatus {
	_, end, weekID := l.Window(l.now())
	open := LimitStatus{Limit: l.defaultLimit, ResetDate: end}

	unlimited, err := l.store.UnlimitedAccess(ctx, userID)
	if err != nil {
		l.failOpen("read user", userID, err)
		return open
	}
	if unlimited {
		return LimitStatus{Limit: Unbounded, Unlimited: true, ResetDate: end}
	}

	limit, ok, err := l.store.WeeklyCallLimit(ctx)
	if err != nil {
		l.failOpen("read limit", userID, err)
		return open
	}
	if !ok {
		limit = l.defaultLimit
	}

	counter, err := l.store.GetWeeklyUsage(ctx, userID, weekID)
	if err != nil {
		l.failOpen("read usage", userID, err)
		return open
	}
	usage := 0
	if counter != nil {
		usage = counter.CallCount
	}

	return LimitStatus{
		HasReachedLimit: usage >= limit,
		CurrentUsage:    usage,
		Limit:           limit,
		ResetDate:       end,
	}
}

func (l *Limiter) failOpen(step, userID string, err error) {
	l.logger.Warn("usage check failed, allowing call",
		zap.String("step", step),
		zap.String("user_id", userID),
		zap.Error(err))
}

// Guard returns a QuotaExceededError when the user has no calls left.
func (l *Limiter) Guard(ctx context.Context, userID string) error {
	status := l.CheckLimit(ctx, userID)
	if !status.HasReachedLimit {
		return nil
	}
	return &models.QuotaExceededError{
		Limit:     status.Limit,
		Usage:     status.CurrentUsage,
		ResetDate: status.ResetDate,
	}
}

// RecordUsage appends a usage event and bumps the user's weekly counter.
// Failures are logged only.
func (l *Limiter) RecordUsage(ctx context.Context, userID, callType, model string, tokens Tokens) {
	now := l.now()
	start, end, weekID := l.Window(now)

	ev := &models.UsageEvent{
		ID:           uuid.NewString(),
		UserID:       userID,
		Timestamp:    now.UTC(),
		Type:         callType,
		Model:        model,
		PromptTokens: tokens.Prompt,
		OutputTokens: tokens.Output,
	}
	if err := l.store.AppendUsageEvent(ctx, ev); err != nil {
		l.logger.Error("failed to append usage event",
			zap.String("user_id", userID),
			zap.String("event_id", ev.ID),
			zap.Error(err))
	}

	counter := &models.UsageCounter{
		UserID:      userID,
		WeekID:      weekID,
		StartDate:   start,
		EndDate:     end,
		CallCount:   1,
		Created:     now.UTC(),
		LastUpdated: now.UTC(),
	}
	count, err := l.store.IncrementWeeklyUsage(ctx, counter)
	if err != nil {
		l.logger.Error("failed to increment weekly usage",
			zap.String("user_id", userID),
			zap.String("week_id", weekID),
			zap.Error(err))
		return
	}
	l.logger.Debug("usage recorded",
		zap.String("user_id", userID),
		zap.String("week_id", weekID),
		zap.Int("call_count", count))
}

// Run guards fn with the quota and records the call when fn succeeds.
// fn's error is returned unchanged and nothing is recorded for it.
func (l *Limiter) Run(ctx context.Context, userID, callType, model string, fn func(context.Context) (Tokens, error)) error {
	if err := l.Guard(ctx, userID); err != nil {
		return err
	}
	tokens, err := fn(ctx)
	if err != nil {
		return err
	}
	l.RecordUsage(ctx, userID, callType, model, tokens)
	return nil
}
