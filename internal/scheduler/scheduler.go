package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"reicrm/internal/config"
	"reicrm/internal/models"
	"reicrm/internal/repositories"
)

var (
	ErrRunning    = errors.New("job is already running")
	ErrUnknownJob = errors.New("unknown job")
)

// JobFunc does one run of a job and returns stats to persist with it.
type JobFunc func(ctx context.Context) (map[string]any, error)

// RunStore persists run records; repositories.AutomationRunRepository implements it.
type RunStore interface {
	Start(ctx context.Context, job models.JobName, trigger models.RunTrigger) (*models.AutomationRun, error)
	Finish(ctx context.Context, id int64, status models.RunStatus, stats map[string]any, errMsg string) error
	RecordSkipped(ctx context.Context, job models.JobName, trigger models.RunTrigger, reason string) error
	Latest(ctx context.Context, job models.JobName) (*models.AutomationRun, error)
}

type JobStatus struct {
	Job      models.JobName        `json:"job"`
	Schedule string                `json:"schedule,omitempty"`
	Running  bool                  `json:"running"`
	NextRun  *time.Time            `json:"nextRun,omitempty"`
	LastRun  *models.AutomationRun `json:"lastRun,omitempty"`
}

type job struct {
	name    models.JobName
	spec    string
	entry   cron.EntryID
	fn      JobFunc
	running atomic.Bool
}

type Scheduler struct {
	cron    *cron.Cron
	store   RunStore
	log     *slog.Logger
	timeout time.Duration

	mu   sync.RWMutex
	jobs map[models.JobName]*job
	wg   sync.WaitGroup
}

func New(cfg config.SchedulerConfig, store RunStore, logger *slog.Logger) (*Scheduler, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("scheduler timezone: %w", err)
		}
		loc = l
	}
	log := logger.With("component", "scheduler")
	cronLog := cron.PrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelWarn))
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cronLog))),
		store:   store,
		log:     log,
		timeout: cfg.JobTimeout,
		jobs:    make(map[models.JobName]*job),
	}, nil
}

// Register adds a job. An empty spec makes the job manual-only.
func (s *Scheduler) Register(name models.JobName, spec string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}
	j := &job{name: name, spec: spec, fn: fn}
	if spec != "" {
		id, err := s.cron.AddFunc(spec, func() { s.scheduled(j) })
		if err != nil {
			return fmt.Errorf("job %s: invalid schedule %q: %w", name, spec, err)
		}
		j.entry = id
	}
	s.jobs[name] = j
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop halts the cron and waits for running jobs, cron and manual alike, until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

func (s *Scheduler) lookup(name models.JobName) (*job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return j, nil
}

func (s *Scheduler) scheduled(j *job) {
	s.wg.Add(1)
	defer s.wg.Done()
	if !j.running.CompareAndSwap(false, true) {
		s.skip(j, models.TriggerCron)
		return
	}
	defer j.running.Store(false)

	ctx, cancel := s.jobContext()
	defer cancel()
	run, err := s.store.Start(ctx, j.name, models.TriggerCron)
	if err != nil {
		s.log.Error("failed to record run start", "job", j.name, "error", err)
		return
	}
	s.execute(ctx, j, run)
}

// Trigger starts a run in the background and returns its id.
// The run is detached from the caller and bounded by the job timeout.
func (s *Scheduler) Trigger(ctx context.Context, name models.JobName, trigger models.RunTrigger) (int64, error) {
	j, err := s.lookup(name)
	if err != nil {
		return 0, err
	}
	if !j.running.CompareAndSwap(false, true) {
		s.skip(j, trigger)
		return 0, ErrRunning
	}
	run, err := s.store.Start(ctx, j.name, trigger)
	if err != nil {
		j.running.Store(false)
		return 0, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer j.running.Store(false)
		jobCtx, cancel := s.jobContext()
		defer cancel()
		s.execute(jobCtx, j, run)
	}()
	return run.ID, nil
}

// RunNow runs the job in the caller's goroutine and returns the finished record.
func (s *Scheduler) RunNow(ctx context.Context, name models.JobName, trigger models.RunTrigger) (*models.AutomationRun, error) {
	j, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	if !j.running.CompareAndSwap(false, true) {
		s.skip(j, trigger)
		return nil, ErrRunning
	}
	defer j.running.Store(false)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	run, err := s.store.Start(ctx, j.name, trigger)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, j, run), nil
}

func (s *Scheduler) execute(ctx context.Context, j *job, run *models.AutomationRun) *models.AutomationRun {
	log := s.log.With("job", j.name, "run_id", run.ID, "trigger", run.Trigger)
	log.Info("job started")
	started := time.Now()

	stats, err := s.call(ctx, j)
	status, msg := models.RunSucceeded, ""
	if err != nil {
		status, msg = models.RunFailed, err.Error()
		log.Error("job failed", "error", err, "duration", time.Since(started))
	} else {
		log.Info("job finished", "duration", time.Since(started))
	}

	// the job context may already be expired
	finishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if ferr := s.store.Finish(finishCtx, run.ID, status, stats, msg); ferr != nil {
		log.Error("failed to record run finish", "error", ferr)
	}

	finished := time.Now().UTC()
	run.Status, run.Stats, run.Error, run.FinishedAt = status, stats, msg, &finished
	return run
}

func (s *Scheduler) call(ctx context.Context, j *job) (stats map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return j.fn(ctx)
}

func (s *Scheduler) skip(j *job, trigger models.RunTrigger) {
	s.log.Warn("job already running, skipped", "job", j.name, "trigger", trigger)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.RecordSkipped(ctx, j.name, trigger, "previous run still in progress"); err != nil {
		s.log.Error("failed to record skipped run", "job", j.name, "error", err)
	}
}

func (s *Scheduler) jobContext() (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(context.Background(), s.timeout)
	}
	return context.WithCancel(context.Background())
}

func (s *Scheduler) Running(name models.JobName) bool {
	j, err := s.lookup(name)
	return err == nil && j.running.Load()
}

// Status reports every registered job ordered by name.
func (s *Scheduler) Status(ctx context.Context) ([]JobStatus, error) {
	s.mu.RLock()
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.RUnlock()
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].name < jobs[b].name })

	out := make([]JobStatus, 0, len(jobs))
	for _, j := range jobs {
		st := JobStatus{Job: j.name, Schedule: j.spec, Running: j.running.Load()}
		if j.entry != 0 {
			if next := s.cron.Entry(j.entry).Next; !next.IsZero() {
				st.NextRun = &next
			}
		}
		last, err := s.store.Latest(ctx, j.name)
		switch {
		case err == nil:
			st.LastRun = last
		case !errors.Is(err, repositories.ErrNotFound):
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
