package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SchedulerJobReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SchedulerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SchedulerJobReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestSchedulerMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSchedulerMetrics(registry, Config{ServiceName: "audiostore", Environment: "test"})

	m.AddBatchProcessed("reclaim_pending", "purchases", 3)
	m.AddBatchProcessed("reclaim_pending", "purchases", 0)
	m.IncJobRun("reclaim_pending")
	m.IncJobError("reclaim_pending", context.DeadlineExceeded)
	m.IncJobSkipped("reclaim_pending")
	m.ObserveJobDuration("reclaim_pending", 20*time.Millisecond)

	if got := testutil.ToFloat64(m.batchProcessed.WithLabelValues("reclaim_pending", "purchases")); got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobRuns.WithLabelValues("reclaim_pending")); got != 1 {
		t.Fatalf("expected run count 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobErrors.WithLabelValues("reclaim_pending", SchedulerJobReasonDeadlineExceeded)); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobSkipped.WithLabelValues("reclaim_pending")); got != 1 {
		t.Fatalf("expected skipped count 1, got %v", got)
	}
}

func TestHTTPMetricsReuseExistingCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := newHTTPMetrics(registry, Config{ServiceName: "audiostore", Environment: "test"})
	if err != nil {
		t.Fatalf("first registration: %v", err)
	}
	second, err := newHTTPMetrics(registry, Config{ServiceName: "audiostore", Environment: "test"})
	if err != nil {
		t.Fatalf("second registration: %v", err)
	}
	first.requests.WithLabelValues("GET", "/health", "200").Inc()
	if got := testutil.ToFloat64(second.requests.WithLabelValues("GET", "/health", "200")); got != 1 {
		t.Fatalf("expected shared counter, got %v", got)
	}
}
