package refinement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agentoven/concierge/pkg/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PostgresStore keeps one row per thread. JSONB columns are NULL when the
// field is unset. Rows older than ttl read as absent and are overwritten
// rather than merged; a zero ttl keeps them forever.
type PostgresStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
	now  func() time.Time
}

// NewPostgresStore connects and creates the table if it doesn't exist.
func NewPostgresStore(ctx context.Context, connURL string, ttl time.Duration) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, unavailable("postgres connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, unavailable("postgres ping", err)
	}

	s := &PostgresStore{pool: pool, ttl: ttl, now: nowUTC}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("refinement migrate: %w", err)
	}

	log.Info().Msg("postgres refinement store initialized")
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS concierge_refinement (
			thread_id           TEXT PRIMARY KEY,
			proposed_plan       JSONB,
			search_queries      JSONB,
			fulfillment_context JSONB,
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_concierge_refinement_updated ON concierge_refinement(updated_at);
	`)
	return err
}

func (s *PostgresStore) Kind() string { return "postgres" }

func (s *PostgresStore) Load(ctx context.Context, threadID string) (*models.RefinementContext, error) {
	if err := validThread(threadID); err != nil {
		return nil, err
	}
	var plan, queries, fulfil []byte
	var updated time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT proposed_plan, search_queries, fulfillment_context, updated_at
		FROM concierge_refinement WHERE thread_id = $1 AND updated_at >= $2`,
		threadID, expiryCutoff(s.now(), s.ttl),
	).Scan(&plan, &queries, &fulfil, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("postgres load", err)
	}
	return decodeRow(threadID, plan, queries, fulfil, updated)
}

// Save upserts the row. Each column is overwritten only when its field is
// Present in the update; an expired row contributes nothing to the merge.
func (s *PostgresStore) Save(ctx context.Context, threadID string, update models.RefinementUpdate) (*models.RefinementContext, error) {
	if err := validThread(threadID); err != nil {
		return nil, err
	}
	plan, err := encodeJSON(update.ProposedPlan.Present, update.ProposedPlan.Value)
	if err != nil {
		return nil, err
	}
	queries, err := encodeJSON(update.SearchQueries.Present, update.SearchQueries.Value)
	if err != nil {
		return nil, err
	}
	fulfil, err := encodeJSON(update.FulfillmentContext.Present, update.FulfillmentContext.Value)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var outPlan, outQueries, outFulfil []byte
	var updated time.Time
	err = s.pool.QueryRow(ctx, `
		INSERT INTO concierge_refinement (thread_id, proposed_plan, search_queries, fulfillment_context, updated_at)
		VALUES ($1, $2::jsonb, $3::jsonb, $4::jsonb, $5)
		ON CONFLICT (thread_id) DO UPDATE SET
			proposed_plan       = CASE WHEN $6 THEN EXCLUDED.proposed_plan WHEN concierge_refinement.updated_at < $9 THEN NULL ELSE concierge_refinement.proposed_plan END,
			search_queries      = CASE WHEN $7 THEN EXCLUDED.search_queries WHEN concierge_refinement.updated_at < $9 THEN NULL ELSE concierge_refinement.search_queries END,
			fulfillment_context = CASE WHEN $8 THEN EXCLUDED.fulfillment_context WHEN concierge_refinement.updated_at < $9 THEN NULL ELSE concierge_refinement.fulfillment_context END,
			updated_at          = EXCLUDED.updated_at
		RETURNING proposed_plan, search_queries, fulfillment_context, updated_at`,
		threadID, plan, queries, fulfil, now,
		update.ProposedPlan.Present, update.SearchQueries.Present, update.FulfillmentContext.Present,
		expiryCutoff(now, s.ttl),
	).Scan(&outPlan, &outQueries, &outFulfil, &updated)
	if err != nil {
		return nil, unavailable("postgres save", err)
	}
	return decodeRow(threadID, outPlan, outQueries, outFulfil, updated)
}

// PurgeBefore deletes rows last updated before cutoff.
func (s *PostgresStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM concierge_refinement WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, unavailable("postgres purge", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// expiryCutoff is the oldest updated_at still considered live. With no ttl
// it is the zero time, which every row passes.
func expiryCutoff(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(-ttl)
}

// encodeJSON returns nil (SQL NULL) for absent or nil values.
func encodeJSON[T any](present bool, v T) ([]byte, error) {
	if !present {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode refinement field: %w", err)
	}
	if string(b) == "null" {
		return nil, nil
	}
	return b, nil
}

func decodeRow(threadID string, plan, queries, fulfil []byte, updated time.Time) (*models.RefinementContext, error) {
	rc := &models.RefinementContext{ThreadID: threadID, UpdatedAt: updated.UTC()}
	if plan != nil {
		if err := json.Unmarshal(plan, &rc.ProposedPlan); err != nil {
			return nil, fmt.Errorf("decode proposed_plan: %w", err)
		}
		if rc.ProposedPlan == nil {
			rc.ProposedPlan = []string{}
		}
	}
	if queries != nil {
		if err := json.Unmarshal(queries, &rc.SearchQueries); err != nil {
			return nil, fmt.Errorf("decode search_queries: %w", err)
		}
		if rc.SearchQueries == nil {
			rc.SearchQueries = []string{}
		}
	}
	if fulfil != nil {
		if err := json.Unmarshal(fulfil, &rc.FulfillmentContext); err != nil {
			return nil, fmt.Errorf("decode fulfillment_context: %w", err)
		}
	}
	return rc, nil
}
