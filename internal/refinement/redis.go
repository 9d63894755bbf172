package refinement

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agentoven/concierge/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	redisKeyPrefix   = "concierge:refinement:"
	fieldPlan        = "proposed_plan"
	fieldQueries     = "search_queries"
	fieldFulfillment = "fulfillment_context"
	fieldUpdatedAt   = "updated_at"
)

// RedisStore keeps one hash per thread. An unset field is an absent hash
// field, so a merge is HSET for written fields and HDEL for cleared ones,
// applied in a single MULTI.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore accepts either a redis:// URL or a bare host:port.
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}
	s := NewRedisStoreFromClient(redis.NewClient(opts), ttl)
	if err := s.HealthCheck(ctx); err != nil {
		_ = s.client.Close()
		return nil, unavailable("redis ping", err)
	}
	log.Info().Str("addr", opts.Addr).Msg("redis refinement store initialized")
	return s, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Kind() string { return "redis" }

func (s *RedisStore) key(threadID string) string { return redisKeyPrefix + threadID }

func (s *RedisStore) Load(ctx context.Context, threadID string) (*models.RefinementContext, error) {
	if err := validThread(threadID); err != nil {
		return nil, err
	}
	fields, err := s.client.HGetAll(ctx, s.key(threadID)).Result()
	if err != nil {
		return nil, unavailable("redis load", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeHash(threadID, fields)
}

func (s *RedisStore) Save(ctx context.Context, threadID string, update models.RefinementUpdate) (*models.RefinementContext, error) {
	if err := validThread(threadID); err != nil {
		return nil, err
	}
	set := map[string]interface{}{fieldUpdatedAt: nowUTC().Format(time.RFC3339Nano)}
	var del []string

	for _, f := range []struct {
		name    string
		present bool
		value   interface{}
		isNil   bool
	}{
		{fieldPlan, update.ProposedPlan.Present, update.ProposedPlan.Value, update.ProposedPlan.Value == nil},
		{fieldQueries, update.SearchQueries.Present, update.SearchQueries.Value, update.SearchQueries.Value == nil},
		{fieldFulfillment, update.FulfillmentContext.Present, update.FulfillmentContext.Value, update.FulfillmentContext.Value == nil},
	} {
		if !f.present {
			continue
		}
		if f.isNil {
			del = append(del, f.name)
			continue
		}
		b, err := json.Marshal(f.value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", f.name, err)
		}
		set[f.name] = string(b)
	}

	key := s.key(threadID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, set)
		if len(del) > 0 {
			pipe.HDel(ctx, key, del...)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return nil, unavailable("redis save", err)
	}
	return s.Load(ctx, threadID)
}

func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() {
	if err := s.client.Close(); err != nil {
		log.Warn().Err(err).Msg("redis close failed")
	}
}

func decodeHash(threadID string, fields map[string]string) (*models.RefinementContext, error) {
	rc := &models.RefinementContext{ThreadID: threadID}
	if v, ok := fields[fieldPlan]; ok {
		rc.ProposedPlan = []string{}
		if err := json.Unmarshal([]byte(v), &rc.ProposedPlan); err != nil {
			return nil, fmt.Errorf("decode %s: %w", fieldPlan, err)
		}
	}
	if v, ok := fields[fieldQueries]; ok {
		rc.SearchQueries = []string{}
		if err := json.Unmarshal([]byte(v), &rc.SearchQueries); err != nil {
			return nil, fmt.Errorf("decode %s: %w", fieldQueries, err)
		}
	}
	if v, ok := fields[fieldFulfillment]; ok {
		if err := json.Unmarshal([]byte(v), &rc.FulfillmentContext); err != nil {
			return nil, fmt.Errorf("decode %s: %w", fieldFulfillment, err)
		}
	}
	if v, ok := fields[fieldUpdatedAt]; ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			rc.UpdatedAt = t
		}
	}
	return rc, nil
}
