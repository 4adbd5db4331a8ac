package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/jonathan/content-engine/internal/db"
	"github.com/jonathan/content-engine/internal/logging"
)

const (
	defaultReloadInterval = 5 * time.Minute
	defaultLockTTL        = 30 * time.Minute
)

var (
	// ErrJobNotFound is returned when the job does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobRunning is returned when the job is already running on this instance.
	ErrJobRunning = errors.New("job is already running")

	// ErrJobLocked is returned when another instance holds the job's lock.
	ErrJobLocked = errors.New("job is running on another instance")
)

// JobStore loads jobs for scheduling.
type JobStore interface {
	ListActiveJobs(ctx context.Context) ([]db.ScheduledJob, error)
	GetJobByID(ctx context.Context, id uuid.UUID) (*db.ScheduledJob, error)
}

// JobRunner executes one run of a job.
type JobRunner interface {
	Run(ctx context.Context, job *db.ScheduledJob, trigger string, onProgress ProgressFunc) (*RunReport, error)
}

// Locker provides distributed locks.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// Observer records scheduler gauges.
type Observer interface {
	SetScheduledJobs(n int)
	JobStarted()
	JobFinished()
}

// Options configures a Scheduler.
type Options struct {
	ReloadInterval time.Duration
	LockTTL        time.Duration
	Observer       Observer
	Logger         logging.Logger
}

type entry struct {
	id   cron.EntryID
	spec string
}

// Scheduler registers active jobs with cron and runs them, guarding each run
// with a local running set and a distributed lock.
type Scheduler struct {
	store    JobStore
	runner   JobRunner
	locker   Locker
	observer Observer
	logger   logging.Logger

	cron           *cron.Cron
	reloadInterval time.Duration
	lockTTL        time.Duration

	mu      sync.Mutex
	entries map[uuid.UUID]entry
	running map[uuid.UUID]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler. Call Start to begin firing jobs.
func New(store JobStore, runner JobRunner, locker Locker, opts Options) *Scheduler {
	if opts.ReloadInterval <= 0 {
		opts.ReloadInterval = defaultReloadInterval
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:          store,
		runner:         runner,
		locker:         locker,
		observer:       opts.Observer,
		logger:         opts.Logger,
		cron:           cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cronLogger{logger: opts.Logger}))),
		reloadInterval: opts.ReloadInterval,
		lockTTL:        opts.LockTTL,
		entries:        make(map[uuid.UUID]entry),
		running:        make(map[uuid.UUID]bool),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start loads the active jobs, starts cron and the periodic reloader.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.ReloadAll(ctx); err != nil {
		return err
	}
	s.cron.Start()

	s.wg.Add(1)
	go s.periodicReload()

	s.logger.Info("scheduler started",
		logging.Int("jobs", s.Scheduled()),
		logging.Duration("reload_interval", s.reloadInterval),
	)
	return nil
}

// Stop stops firing jobs and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) periodicReload() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.reloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.ReloadAll(s.ctx); err != nil {
				s.logger.Error("failed to reload jobs", logging.Error(err))
			}
		}
	}
}

// ReloadAll syncs cron entries with the store's active jobs.
func (s *Scheduler) ReloadAll(ctx context.Context) error {
	jobs, err := s.store.ListActiveJobs(ctx)
	if err != nil {
		return fmt.Errorf("list active jobs: %w", err)
	}

	active := make(map[uuid.UUID]bool, len(jobs))
	for i := range jobs {
		job := &jobs[i]
		active[job.ID] = true
		if err := s.schedule(job); err != nil {
			s.logger.Error("failed to schedule job",
				logging.String("job_id", job.ID.String()),
				logging.String("cron", job.CronExpression),
				logging.Error(err),
			)
		}
	}

	s.mu.Lock()
	for id, e := range s.entries {
		if !active[id] {
			s.cron.Remove(e.id)
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()

	s.observeScheduled()
	return nil
}

// Reload re-reads one job and updates its cron entry. Missing or inactive
// jobs are unscheduled.
func (s *Scheduler) Reload(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.store.GetJobByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	if job == nil || !job.Active {
		s.Remove(jobID)
		return nil
	}
	if err := s.schedule(job); err != nil {
		return err
	}
	s.observeScheduled()
	return nil
}

// Remove unschedules a job.
func (s *Scheduler) Remove(jobID uuid.UUID) {
	s.mu.Lock()
	if e, ok := s.entries[jobID]; ok {
		s.cron.Remove(e.id)
		delete(s.entries, jobID)
		s.logger.Info("job unscheduled", logging.String("job_id", jobID.String()))
	}
	s.mu.Unlock()
	s.observeScheduled()
}

// Scheduled returns how many jobs have cron entries.
func (s *Scheduler) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// NextFire returns the cron's next activation for a scheduled job.
func (s *Scheduler) NextFire(jobID uuid.UUID) (time.Time, bool) {
	s.mu.Lock()
	e, ok := s.entries[jobID]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(e.id).Next, true
}

func (s *Scheduler) schedule(job *db.ScheduledJob) error {
	spec := CronSpec(job.CronExpression, job.Timezone)

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[job.ID]; ok {
		if e.spec == spec {
			return nil
		}
		s.cron.Remove(e.id)
		delete(s.entries, job.ID)
	}

	jobID := job.ID
	id, err := s.cron.AddFunc(spec, func() {
		if _, err := s.execute(s.ctx, jobID, db.TriggerSchedule, nil); err != nil {
			s.logger.Warn("scheduled run skipped",
				logging.String("job_id", jobID.String()),
				logging.Error(err),
			)
		}
	})
	if err != nil {
		return &ScheduleError{Expression: job.CronExpression, Timezone: job.Timezone, Message: "cannot register", Cause: err}
	}
	s.entries[job.ID] = entry{id: id, spec: spec}
	s.logger.Info("job scheduled",
		logging.String("job_id", job.ID.String()),
		logging.String("spec", spec),
	)
	return nil
}

// RunNow runs a job immediately regardless of its schedule or active flag.
func (s *Scheduler) RunNow(ctx context.Context, jobID uuid.UUID, onProgress ProgressFunc) (*RunReport, error) {
	return s.execute(ctx, jobID, db.TriggerManual, onProgress)
}

func (s *Scheduler) execute(ctx context.Context, jobID uuid.UUID, trigger string, onProgress ProgressFunc) (*RunReport, error) {
	s.mu.Lock()
	if s.running[jobID] {
		s.mu.Unlock()
		return nil, ErrJobRunning
	}
	s.running[jobID] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, jobID)
		s.mu.Unlock()
	}()

	lockKey := "job:" + jobID.String()
	token, ok, err := s.locker.AcquireLock(ctx, lockKey, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire job lock: %w", err)
	}
	if !ok {
		return nil, ErrJobLocked
	}
	defer func() {
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.logger.Warn("failed to release job lock", logging.String("job_id", jobID.String()), logging.Error(err))
		}
	}()

	job, err := s.store.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		s.Remove(jobID)
		return nil, ErrJobNotFound
	}
	if trigger == db.TriggerSchedule && !job.Active {
		s.Remove(jobID)
		return nil, fmt.Errorf("job %s is paused", jobID)
	}

	if s.observer != nil {
		s.observer.JobStarted()
		defer s.observer.JobFinished()
	}

	report, err := s.runner.Run(ctx, job, trigger, onProgress)
	if err != nil {
		return nil, err
	}
	if report.Job != nil && !report.Job.Active {
		s.Remove(jobID)
	}
	return report, nil
}

func (s *Scheduler) observeScheduled() {
	if s.observer != nil {
		s.observer.SetScheduledJobs(s.Scheduled())
	}
}
