package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
	"github.com/mohammadpnp/school-import/internal/logging"
)

type AdvisoryLockerOptions struct {
	// MaxWait bounds how long Lock waits for a busy key.
	MaxWait time.Duration
	// PollInterval is the pause between attempts on a busy key.
	PollInterval time.Duration
}

// AdvisoryLocker serialises batch operations across processes with a
// session-level postgres advisory lock. The pool must be reserved for
// locking: a held lock pins one of its connections until unlock, and the
// operation it guards takes its own connections elsewhere. Waiters poll with
// pg_try_advisory_lock and hold no connection between attempts.
type AdvisoryLocker struct {
	pool   *pgxpool.Pool
	opts   AdvisoryLockerOptions
	logger *logging.Logger
}

func NewAdvisoryLocker(pool *pgxpool.Pool, opts AdvisoryLockerOptions, logger *logging.Logger) *AdvisoryLocker {
	if opts.MaxWait <= 0 {
		opts.MaxWait = 30 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	return &AdvisoryLocker{pool: pool, opts: opts, logger: logger}
}

// NewLockPool opens the connection pool an AdvisoryLocker holds its locks on.
func NewLockPool(ctx context.Context, databaseURL string, size int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse lock pool config: %w", err)
	}
	if size > 0 {
		cfg.MaxConns = size
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create lock pool: %w", err)
	}
	return pool, nil
}

func (l *AdvisoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.MaxWait)
	defer cancel()

	for {
		conn, err := l.pool.Acquire(ctx)
		if err != nil {
			return nil, l.waitError(ctx, key, fmt.Errorf("acquire lock connection: %w", err))
		}

		var locked bool
		if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock(hashtextextended($1, 0))", key).Scan(&locked); err != nil {
			conn.Release()
			return nil, l.waitError(ctx, key, fmt.Errorf("advisory lock %s: %w", key, err))
		}
		if locked {
			return l.unlocker(conn, key), nil
		}
		conn.Release()

		timer := time.NewTimer(l.opts.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, l.waitError(ctx, key, ctx.Err())
		case <-timer.C:
		}
	}
}

// waitError reports a lock wait that ran out of time as a busy batch; other
// failures are returned as they are.
func (l *AdvisoryLocker) waitError(ctx context.Context, key string, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return domain.NewError(domain.ErrStateConflict, "batch %s is busy with another operation", key).WithCause(err)
	}
	return err
}

func (l *AdvisoryLocker) unlocker(conn *pgxpool.Conn, key string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx := context.Background()
			if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock(hashtextextended($1, 0))", key); err != nil {
				// Closing the session drops every lock it holds.
				l.logger.WithError(err).WithField("lock_key", key).Warn("advisory unlock failed; closing connection")
				_ = conn.Hijack().Close(ctx)
				return
			}
			conn.Release()
		})
	}
}
