// ABOUTME: Redis-backed cloud store for maps, stakeholders, and usage documents
// ABOUTME: JSON documents plus sorted-set indexes ordered by creation time
package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/harperreed/stakemap/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	usageEventsKey   = "aiUsage"
	aiLimitsKey      = "config:aiLimits"
	fieldUnlimited   = "unlimitedAiAccess"
	fieldWeeklyLimit = "weeklyCallLimit"

	// maxWatchRetries bounds optimistic transaction retries on PutMap.
	maxWatchRetries = 10
)

// RedisStore implements Store and UsageStore on a single Redis database.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string, logger *zap.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, logger), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, logger: logger}
}

func mapKey(id string) string { return "maps:" + id }
func stakeholderKey(id string) string { return "stakeholders:" + id }
func ownerMapsKey(uid string) string { return "owner:" + uid + ":maps" }
func mapStakeholdersKey(mapID string) string { return "map:" + mapID + ":stakeholders" }
func usageEventKey(id string) string { return usageEventsKey + ":" + id }
func weeklyUsageKey(key string) string { return "aiWeeklyUsage:" + key }
func userKey(uid string) string { return "users:" + uid }

func createdScore(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func (s *RedisStore) FetchMaps(ctx context.Context, ownerID string) ([]*models.Map, error) {
	docs, err := s.fetchIndexed(ctx, ownerMapsKey(ownerID), mapKey)
	if err != nil {
		return nil, wrap("fetch maps", err)
	}

	maps := make([]*models.Map, 0, len(docs))
	for _, doc := range docs {
		m, err := models.MapFromObject(doc)
		if err != nil {
			s.logger.Warn("skipping undecodable map document", zap.String("owner_id", ownerID), zap.Error(err))
			continue
		}
		maps = append(maps, m)
	}
	return maps, nil
}

func (s *RedisStore) FetchStakeholders(ctx context.Context, mapID string) ([]*models.Stakeholder, error) {
	docs, err := s.fetchIndexed(ctx, mapStakeholdersKey(mapID), stakeholderKey)
	if err != nil {
		return nil, wrap("fetch stakeholders", err)
	}

	list := make([]*models.Stakeholder, 0, len(docs))
	for _, doc := range docs {
		st, err := models.StakeholderFromObject(doc)
		if err != nil {
			s.logger.Warn("skipping undecodable stakeholder document", zap.String("map_id", mapID), zap.Error(err))
			continue
		}
		list = append(list, st)
	}
	return list, nil
}

// fetchIndexed loads the documents named by a sorted-set index, in score order.
// Index members whose document is gone are skipped.
func (s *RedisStore) fetchIndexed(ctx context.Context, indexKey string, docKey func(string) string) ([]map[string]interface{}, error) {
	ids, err := s.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	docs := make([]map[string]interface{}, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			s.logger.Debug("index entry without document", zap.String("index", indexKey), zap.String("id", ids[i]))
			continue
		}
		var doc map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			s.logger.Warn("corrupt document", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) getDoc(ctx context.Context, c getter, key string) (map[string]interface{}, error) {
	raw, err := c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return doc, nil
}

// PutMap upserts a map. Writing over a document owned by another user is
// rejected with AccessDeniedError.
func (s *RedisStore) PutMap(ctx context.Context, m *models.Map) error {
	data, err := json.Marshal(m.ToObject())
	if err != nil {
		return fmt.Errorf("marshal map: %w", err)
	}
	key := mapKey(m.ID)

	txf := func(tx *redis.Tx) error {
		existing, err := s.getDoc(ctx, tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			owner, _ := existing[models.FieldOwnerID].(string)
			if owner != "" && owner != m.OwnerID {
				return &models.AccessDeniedError{Kind: "map", ID: m.ID, UserID: m.OwnerID}
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if m.OwnerID != "" {
				pipe.ZAdd(ctx, ownerMapsKey(m.OwnerID), redis.Z{Score: createdScore(m.Created), Member: m.ID})
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return wrap("put map", err)
	}
	return &models.StoreError{Op: "put map", Err: redis.TxFailedErr}
}

func (s *RedisStore) PutStakeholder(ctx context.Context, st *models.Stakeholder) error {
	data, err := json.Marshal(st.ToObject())
	if err != nil {
		return fmt.Errorf("marshal stakeholder: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, stakeholderKey(st.ID), data, 0)
		pipe.ZAdd(ctx, mapStakeholdersKey(st.MapID), redis.Z{Score: createdScore(st.Created), Member: st.ID})
		return nil
	})
	return wrap("put stakeholder", err)
}

func (s *RedisStore) DeleteStakeholder(ctx context.Context, id string) error {
	doc, err := s.getDoc(ctx, s.client, stakeholderKey(id))
	if err != nil {
		return wrap("delete stakeholder", err)
	}
	mapID := ""
	if doc != nil {
		mapID, _ = doc[models.FieldMapID].(string)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, stakeholderKey(id))
		if mapID != "" {
			pipe.ZRem(ctx, mapStakeholdersKey(mapID), id)
		}
		return nil
	})
	return wrap("delete stakeholder", err)
}

// DeleteMap removes a map's stakeholders, then the map itself. On partial
// failure the map document survives and a *CascadeError is returned.
func (s *RedisStore) DeleteMap(ctx context.Context, mapID string) error {
	ids, err := s.client.ZRange(ctx, mapStakeholdersKey(mapID), 0, -1).Result()
	if err != nil {
		return wrap("delete map", err)
	}

	if cerr := deleteChildren(ctx, mapID, ids, s.DeleteStakeholder); cerr != nil {
		s.logger.Warn("partial map delete",
			zap.String("map_id", mapID),
			zap.Int("deleted", len(cerr.Deleted)),
			zap.Int("failed", len(cerr.Failed)))
		return cerr
	}

	doc, err := s.getDoc(ctx, s.client, mapKey(mapID))
	if err != nil {
		return wrap("delete map", err)
	}
	owner := ""
	if doc != nil {
		owner, _ = doc[models.FieldOwnerID].(string)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, mapKey(mapID), mapStakeholdersKey(mapID))
		if owner != "" {
			pipe.ZRem(ctx, ownerMapsKey(owner), mapID)
		}
		return nil
	})
	return wrap("delete map", err)
}

func (s *RedisStore) UnlimitedAccess(ctx context.Context, userID string) (bool, error) {
	v, err := s.client.HGet(ctx, userKey(userID), fieldUnlimited).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, wrap("read user", err)
	}
	unlimited, err := strconv.ParseBool(v)
	if err != nil {
		return false, nil
	}
	return unlimited, nil
}

func (s *RedisStore) SetUnlimitedAccess(ctx context.Context, userID string, unlimited bool) error {
	err := s.client.HSet(ctx, userKey(userID), fieldUnlimited, strconv.FormatBool(unlimited)).Err()
	return wrap("write user", err)
}

func (s *RedisStore) WeeklyCallLimit(ctx context.Context) (int, bool, error) {
	n, err := s.client.HGet(ctx, aiLimitsKey, fieldWeeklyLimit).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrap("read limits", err)
	}
	return n, true, nil
}

func (s *RedisStore) SetWeeklyCallLimit(ctx context.Context, limit int) error {
	return wrap("write limits", s.client.HSet(ctx, aiLimitsKey, fieldWeeklyLimit, limit).Err())
}

func (s *RedisStore) GetWeeklyUsage(ctx context.Context, userID, weekID string) (*models.UsageCounter, error) {
	vals, err := s.client.HGetAll(ctx, weeklyUsageKey(models.CounterKey(userID, weekID))).Result()
	if err != nil {
		return nil, wrap("read weekly usage", err)
	}
	if len(vals) == 0 {
		return nil, nil
	}

	count, err := strconv.Atoi(vals["callCount"])
	if err != nil {
		return nil, &models.StoreError{Op: "read weekly usage", Err: fmt.Errorf("bad callCount %q", vals["callCount"])}
	}
	return &models.UsageCounter{
		UserID:      vals["userId"],
		WeekID:      vals["weekId"],
		StartDate:   parseTime(vals["startDate"]),
		EndDate:     parseTime(vals["endDate"]),
		CallCount:   count,
		Created:     parseTime(vals["created"]),
		LastUpdated: parseTime(vals["lastUpdated"]),
	}, nil
}

// IncrementWeeklyUsage creates the counter fields if absent and adds one to
// callCount inside a single MULTI block.
func (s *RedisStore) IncrementWeeklyUsage(ctx context.Context, c *models.UsageCounter) (int, error) {
	key := weeklyUsageKey(c.Key())
	now := formatTime(time.Now())

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "userId", c.UserID)
		pipe.HSetNX(ctx, key, "weekId", c.WeekID)
		pipe.HSetNX(ctx, key, "startDate", formatTime(c.StartDate))
		pipe.HSetNX(ctx, key, "endDate", formatTime(c.EndDate))
		pipe.HSetNX(ctx, key, "created", now)
		incr = pipe.HIncrBy(ctx, key, "callCount", 1)
		pipe.HSet(ctx, key, "lastUpdated", now)
		return nil
	})
	if err != nil {
		return 0, wrap("increment weekly usage", err)
	}
	return int(incr.Val()), nil
}

func (s *RedisStore) AppendUsageEvent(ctx context.Context, ev *models.UsageEvent) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, usageEventKey(ev.ID),
			"id", ev.ID,
			"userId", ev.UserID,
			"timestamp", formatTime(ev.Timestamp),
			"type", ev.Type,
			"model", ev.Model,
			"promptTokens", ev.PromptTokens,
			"outputTokens", ev.OutputTokens,
		)
		pipe.RPush(ctx, usageEventsKey, ev.ID)
		return nil
	})
	return wrap("append usage event", err)
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
