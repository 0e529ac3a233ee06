// AngelaMos | 2026
// jobs.go

package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/auramanager/aura-api/internal/core"
	"github.com/auramanager/aura-api/internal/metrics"
)

// Func is one unit of background work. The returned count is logged.
type Func func(ctx context.Context) (int64, error)

type Job struct {
	Name     string
	Schedule string
	Run      Func
	Timeout  time.Duration
}

// Scheduler runs jobs on cron schedules. A job never overlaps itself.
type Scheduler struct {
	cron    *cron.Cron
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	jobs    map[string]Job
	entries map[string]cron.EntryID
}

// Status describes a registered job. Next is nil for disabled jobs or
// before the scheduler starts.
type Status struct {
	Name     string     `json:"name"`
	Schedule string     `json:"schedule,omitempty"`
	Next     *time.Time `json:"next_run,omitempty"`
}

func NewScheduler(m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	logger = logger.With("component", "jobs")
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger{logger}),
			cron.WithChain(cron.Recover(cronLogger{logger})),
		),
		metrics: m,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers job. An empty schedule disables the timer but the job can
// still be triggered by name.
func (s *Scheduler) Add(job Job) error {
	if job.Timeout <= 0 {
		job.Timeout = 5 * time.Minute
	}

	s.mu.Lock()
	s.jobs[job.Name] = job
	s.mu.Unlock()

	if job.Schedule == "" {
		s.logger.Info("job disabled", "job", job.Name)
		return nil
	}

	wrapped := cron.NewChain(cron.SkipIfStillRunning(cronLogger{s.logger})).
		Then(cron.FuncJob(func() { _, _ = s.RunNow(job) }))

	id, err := s.cron.AddJob(job.Schedule, wrapped)
	if err != nil {
		s.mu.Lock()
		delete(s.jobs, job.Name)
		s.mu.Unlock()
		return fmt.Errorf("schedule job %s: %w", job.Name, err)
	}

	s.mu.Lock()
	s.entries[job.Name] = id
	s.mu.Unlock()

	s.logger.Info("job scheduled", "job", job.Name, "schedule", job.Schedule)
	return nil
}

// RunNow executes job immediately on the calling goroutine.
func (s *Scheduler) RunNow(job Job) (int64, error) {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	start := time.Now()
	n, err := job.Run(ctx)
	elapsed := time.Since(start)

	if err != nil {
		s.metrics.JobRun(job.Name, "error")
		s.logger.Error("job failed",
			"job", job.Name,
			"error", err,
			"elapsed", elapsed,
		)
		return 0, err
	}

	s.metrics.JobRun(job.Name, "ok")
	s.logger.Info("job finished",
		"job", job.Name,
		"affected", n,
		"elapsed", elapsed,
	)
	return n, nil
}

// Trigger runs the named job now.
func (s *Scheduler) Trigger(name string) (int64, error) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return 0, core.NotFoundError("job")
	}
	return s.RunNow(job)
}

// Jobs lists registered jobs sorted by name.
func (s *Scheduler) Jobs() []Status {
	s.mu.Lock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)

	out := make([]Status, 0, len(names))
	for _, name := range names {
		s.mu.Lock()
		st := Status{Name: name, Schedule: s.jobs[name].Schedule}
		s.mu.Unlock()

		if next, ok := s.Next(name); ok && !next.IsZero() {
			st.Next = &next
		}
		out = append(out, st)
	}
	return out
}

// Next reports when job runs next.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish. When ctx ends first their
// contexts are cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	defer s.cancel()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
