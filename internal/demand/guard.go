package demand

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/healthmap/internal/db"
	"github.com/sells-group/healthmap/internal/model"
)

// Guard serialises recompute passes. Do runs fn only when no other pass
// holds the guard and returns model.ErrRecomputeInProgress otherwise.
type Guard interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// LocalGuard serialises passes within one process.
type LocalGuard struct {
	mu sync.Mutex
}

// Do implements Guard.
func (g *LocalGuard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if !g.mu.TryLock() {
		return eris.Wrap(model.ErrRecomputeInProgress, "demand: local guard busy")
	}
	defer g.mu.Unlock()
	return fn(ctx)
}

// RecomputeLockKey keys the Postgres advisory lock shared by every
// healthmap process pointed at the same database.
const RecomputeLockKey int64 = 4150212

// AdvisoryGuard serialises passes across processes with a transaction-level
// Postgres advisory lock. The lock is released when the guarding
// transaction ends.
type AdvisoryGuard struct {
	pool db.Pool
	key  int64
}

// NewAdvisoryGuard creates an AdvisoryGuard on RecomputeLockKey.
func NewAdvisoryGuard(pool db.Pool) *AdvisoryGuard {
	return &AdvisoryGuard{pool: pool, key: RecomputeLockKey}
}

// Do implements Guard.
func (g *AdvisoryGuard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "demand: begin guard tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var acquired bool
	if err := tx.QueryRow(ctx, "SELECT pg_try_advisory_xact_lock($1)", g.key).Scan(&acquired); err != nil {
		return eris.Wrap(err, "demand: try advisory lock")
	}
	if !acquired {
		return eris.Wrap(model.ErrRecomputeInProgress, "demand: advisory lock held")
	}

	if err := fn(ctx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "demand: release advisory lock")
}
