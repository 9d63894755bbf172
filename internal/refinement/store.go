// Package refinement persists per-thread refinement context (purged
// categories, proposed plan, fulfilment fields) and decides, once per turn,
// how that context changes.
//
// Every store implements a merge: fields of a models.RefinementUpdate that
// are not Present keep their stored value, Present fields overwrite, and a
// Present nil clears. Rows are never deleted and re-inserted.
package refinement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agentoven/concierge/internal/config"
	"github.com/agentoven/concierge/pkg/contracts"
)

// ErrStoreUnavailable wraps backend failures.
var ErrStoreUnavailable = errors.New("refinement store unavailable")

// Store is a refinement store with lifecycle hooks.
type Store interface {
	contracts.RefinementStore
	Kind() string
	HealthCheck(ctx context.Context) error
	Close()
}

// Open builds the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemoryStore(cfg.TTL), nil
	case "postgres":
		return NewPostgresStore(ctx, cfg.URL, cfg.TTL)
	case "redis":
		return NewRedisStore(ctx, cfg.URL, cfg.TTL)
	default:
		return nil, fmt.Errorf("unknown refinement store backend %q", cfg.Backend)
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

func validThread(threadID string) error {
	if strings.TrimSpace(threadID) == "" {
		return errors.New("thread id is required")
	}
	return nil
}

func nowUTC() time.Time { return time.Now().UTC() }
