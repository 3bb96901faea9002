package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bsm/redislock"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const defaultLockTTL = 10 * time.Minute

// Locker obtains distributed locks; *redislock.Client satisfies it.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// exclusive runs fn while holding the per-business lock for job. A lock held by
// another worker skips the run without error. A nil locker runs fn directly.
func exclusive(ctx context.Context, locker Locker, job string, businessID int64, logger *slog.Logger, metrics *jobmetrics.Metrics, fn func(context.Context) error) error {
	if locker == nil {
		return fn(ctx)
	}
	lock, err := locker.Obtain(ctx, shared.JobLockKey(job, businessID), defaultLockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		logger.Info("job already running elsewhere", slog.String("job", job), slog.Int64("business_id", businessID))
		metrics.Skip(job, "locked")
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		// the run context may be done by now
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.Warn("release job lock", slog.String("job", job), slog.Any("error", err))
		}
	}()
	return fn(ctx)
}
