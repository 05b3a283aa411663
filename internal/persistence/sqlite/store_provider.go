package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/oncall-scheduler/internal/scheduler"
)

// StoreProvider opens one transaction per populate run and hands the pipeline
// a store view bound to it.
type StoreProvider struct {
	pool  *ConnectionPool
	retry *RetryHelper
}

// NewStoreProvider creates a provider over the connection pool.
func NewStoreProvider(pool *ConnectionPool) *StoreProvider {
	return &StoreProvider{pool: pool, retry: NewRetryHelper(DefaultRetryConfig())}
}

// WithEngineStore runs fn against a transactional store. With commit true the
// transaction commits when fn succeeds; with commit false it always rolls
// back, so preview runs leave the database untouched. Lock contention retries
// the whole transaction, so fn must be safe to re-execute.
func (p *StoreProvider) WithEngineStore(ctx context.Context, commit bool, fn func(store scheduler.Store) error) error {
	run := p.pool.WithRollbackOnlyTransaction
	if commit {
		run = p.pool.WithTransaction
	}
	return p.retry.WithRetry(ctx, func() error {
		return run(ctx, func(tx *sql.Tx) error {
			return fn(NewEngineStore(tx))
		})
	})
}
