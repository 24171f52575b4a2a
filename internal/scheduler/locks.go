package scheduler

import (
	"context"
	"errors"

	obsmetrics "github.com/smallbiznis/audiostore/internal/observability/metrics"
	"go.uber.org/zap"
)

// withLock runs fn while holding the job's lease. Without a locker every
// replica runs the job; the conditional updates behind it keep that safe.
func (s *Scheduler) withLock(ctx context.Context, job string, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}

	key := s.cfg.LockKeyPrefix + job
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return errors.Join(obsmetrics.ErrLockUnavailable, err)
	}
	if !ok {
		obsmetrics.Scheduler().IncJobSkipped(job)
		s.logger(ctx).Debug("scheduler.job.skipped",
			zap.String("job", job),
			zap.String("lock_key", key),
		)
		return nil
	}
	defer func() {
		// release on a fresh context; the job context may already be done
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger(ctx).Warn("scheduler lock release failed",
				zap.String("job", job),
				zap.Error(err),
			)
		}
	}()
	return fn(ctx)
}
