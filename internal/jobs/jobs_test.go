// AngelaMos | 2026
// jobs_test.go

package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auramanager/aura-api/internal/config"
	"github.com/auramanager/aura-api/internal/core"
	"github.com/auramanager/aura-api/internal/metrics"
)

type countingExpirer struct{ calls int }

func (c *countingExpirer) ExpireLapsed(context.Context) (int, error) {
	c.calls++
	return 3, nil
}

type failingPurger struct{}

func (failingPurger) PurgeExpiredTokens(context.Context) (int64, error) {
	return 0, errors.New("database unavailable")
}

type noopJanitor struct{}

func (noopJanitor) FailStale(context.Context) (int64, error) { return 0, nil }

type noopApplier struct{}

func (noopApplier) ApplyPendingPlans(context.Context) (int64, error) { return 0, nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func jobRuns(t *testing.T, m *metrics.Metrics, job, outcome string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != "test_jobs_runs_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["job"] == job && labels["outcome"] == outcome {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestTriggerRecordsOutcome(t *testing.T) {
	m := metrics.New("test")
	s := NewScheduler(m, quietLogger())
	expirer := &countingExpirer{}

	jobs := Catalog(config.JobsConfig{}, Targets{
		Subscriptions: expirer,
		Tokens:        failingPurger{},
		Uploads:       noopJanitor{},
		Payments:      noopApplier{},
	})
	require.Len(t, jobs, 4)

	for _, job := range jobs {
		require.NoError(t, s.Add(job))
	}

	n, err := s.Trigger(JobExpireSubscriptions)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = s.Trigger(JobPurgeRefreshTokens)
	assert.EqualError(t, err, "database unavailable")

	_, err = s.Trigger("missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.Equal(t, 1, expirer.calls)
	assert.Equal(t, 1.0, jobRuns(t, m, JobExpireSubscriptions, "ok"))
	assert.Equal(t, 1.0, jobRuns(t, m, JobPurgeRefreshTokens, "error"))
}

func TestAddSkipsEmptySchedule(t *testing.T) {
	s := NewScheduler(nil, quietLogger())

	require.NoError(t, s.Add(Job{Name: "off", Run: func(context.Context) (int64, error) { return 7, nil }}))
	_, ok := s.Next("off")
	assert.False(t, ok)

	statuses := s.Jobs()
	require.Len(t, statuses, 1)
	assert.Equal(t, "off", statuses[0].Name)
	assert.Nil(t, statuses[0].Next)

	n, err := s.Trigger("off")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestAddRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(nil, quietLogger())

	err := s.Add(Job{Name: "bad", Schedule: "every tuesday", Run: func(context.Context) (int64, error) { return 0, nil }})
	assert.Error(t, err)
	assert.Empty(t, s.Jobs())
}

func TestScheduledJobRuns(t *testing.T) {
	s := NewScheduler(nil, quietLogger())
	ran := make(chan struct{}, 1)

	require.NoError(t, s.Add(Job{
		Name:     "tick",
		Schedule: "@every 1s",
		Run: func(context.Context) (int64, error) {
			select {
			case ran <- struct{}{}:
			default:
			}
			return 1, nil
		},
	}))

	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, s.Stop(ctx))
	}()

	next, ok := s.Next("tick")
	require.True(t, ok)
	assert.False(t, next.IsZero())

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}
