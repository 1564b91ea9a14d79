package repository_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
	"github.com/mohammadpnp/school-import/internal/infrastructure/repository"
	"github.com/mohammadpnp/school-import/internal/logging"
)

func newTestLocker(t *testing.T, size int32, maxWait time.Duration) *repository.AdvisoryLocker {
	t.Helper()
	openTestDB(t)
	pool, err := repository.NewLockPool(context.Background(), os.Getenv("TEST_DATABASE_URL"), size)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return repository.NewAdvisoryLocker(pool, repository.AdvisoryLockerOptions{
		MaxWait:      maxWait,
		PollInterval: 10 * time.Millisecond,
	}, logging.Discard())
}

func TestAdvisoryLockerIntegration(t *testing.T) {
	locker := newTestLocker(t, 4, 200*time.Millisecond)

	unlock, err := locker.Lock(context.Background(), "batch-1")
	require.NoError(t, err)

	_, err = locker.Lock(context.Background(), "batch-1")
	require.ErrorIs(t, err, domain.ErrStateConflict, "a held key gives up after the wait bound")

	other, err := locker.Lock(context.Background(), "batch-2")
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	again, err := locker.Lock(context.Background(), "batch-1")
	require.NoError(t, err)
	again()
}

func TestAdvisoryLockerWaitersHoldNoConnectionIntegration(t *testing.T) {
	locker := newTestLocker(t, 2, 2*time.Second)

	unlock, err := locker.Lock(context.Background(), "batch-1")
	require.NoError(t, err)

	// More waiters on the held key than the pool has connections.
	var wg sync.WaitGroup
	waitCtx, stopWaiting := context.WithCancel(context.Background())
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Lock(waitCtx, "batch-1")
			if err == nil {
				release()
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	other, err := locker.Lock(ctx, "batch-2")
	require.NoError(t, err, "another batch still gets its lock")
	other()

	stopWaiting()
	unlock()
	wg.Wait()
}

func TestAdvisoryLockerHonoursCallerCancellationIntegration(t *testing.T) {
	locker := newTestLocker(t, 2, time.Minute)

	unlock, err := locker.Lock(context.Background(), "batch-1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	_, err = locker.Lock(ctx, "batch-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrStateConflict, "a cancelled caller is not a busy batch")
}
