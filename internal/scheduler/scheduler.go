package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/audiostore/internal/clock"
	"github.com/smallbiznis/audiostore/internal/distlock"
	obsmetrics "github.com/smallbiznis/audiostore/internal/observability/metrics"
	purchasedomain "github.com/smallbiznis/audiostore/internal/purchase/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const JobReclaimPending = "reclaim_pending"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log       *zap.Logger
	Purchases purchasedomain.Service
	Clock     clock.Clock
	Locker    distlock.Locker `optional:"true"`
	Config    Config          `optional:"true"`
}

type Scheduler struct {
	log       *zap.Logger
	cfg       Config
	clock     clock.Clock
	purchases purchasedomain.Service
	locker    distlock.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Purchases == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		clock:     p.Clock,
		purchases: p.Purchases,
		locker:    p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := s.withLock(ctx, name, fn)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// a deadline is a soft timeout: whatever the batch committed stays committed
	// and the next tick picks up the rest
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobReclaimPending, func(ctx context.Context) error {
			return s.runJob(ctx, JobReclaimPending, s.cfg.BatchSize, s.cfg.JobTimeout, s.ReclaimPendingJob)
		}},
	}

	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := time.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	if err := s.RunOnce(ctx); err != nil {
		s.log.Warn("scheduler run failed", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if lag := time.Since(nextRun); lag > 0 {
			schedMetrics.ObserveRunLoopLag(lag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// empty means every job runs
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}

// ReclaimPendingJob fails PENDING purchases older than the configured TTL.
// Batches are drained until one comes back short or the job deadline hits.
func (s *Scheduler) ReclaimPendingJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobReclaimPending, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	schedMetrics := obsmetrics.Scheduler()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.purchases.ReclaimStale(ctx, s.cfg.PendingTTL, s.cfg.BatchSize)
		if n > 0 {
			run.AddProcessed(n)
			schedMetrics.AddBatchProcessed(JobReclaimPending, "purchases", n)
			schedMetrics.AddPurchasesReclaimed(n)
		}
		if err != nil {
			s.logSchedulerError(ctx, run, "reclaim stale purchases failed", err,
				zap.Duration("pending_ttl", s.cfg.PendingTTL),
			)
			return err
		}
		if n < s.cfg.BatchSize {
			return nil
		}
	}
}
