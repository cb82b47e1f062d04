package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ManuelReschke/MeterGate/internal/pkg/cache"
	"github.com/ManuelReschke/MeterGate/internal/pkg/lifecycle"
	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"
)

var (
	// ErrJobLocked is returned when another process holds the job lock.
	ErrJobLocked  = errors.New("job is locked by another instance")
	ErrUnknownJob = errors.New("unknown job")
)

// Locker is the distributed lock used around job runs.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (*cache.Lock, bool, error)
}

// Manager runs the lifecycle jobs on their cron schedules
type Manager struct {
	cron      *cron.Cron
	jobs      map[string]lifecycle.Job
	schedules map[string]string
	locker    Locker
	lockTTL   time.Duration
	mu        sync.Mutex
	running   bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLocker wraps every run in a lock held for at most ttl.
func WithLocker(l Locker, ttl time.Duration) Option {
	return func(m *Manager) {
		m.locker = l
		m.lockTTL = ttl
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{}),
			cron.SkipIfStillRunning(cronLogger{}),
		)),
		jobs:      map[string]lifecycle.Job{},
		schedules: map[string]string{},
		lockTTL:   30 * time.Minute,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds job under the given cron spec (standard 5 field syntax or
// descriptors like "@every 1h"). An empty spec registers the job for manual
// runs only.
func (m *Manager) Register(job lifecycle.Job, spec string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := job.Name()
	if _, exists := m.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}
	if spec != "" {
		if _, err := m.cron.AddFunc(spec, func() { m.tick(job) }); err != nil {
			return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
		}
	}
	m.jobs[name] = job
	m.schedules[name] = spec
	return nil
}

// Start starts the cron loop
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.running = true
	log.Info("[Scheduler] Starting lifecycle jobs")
	for _, name := range m.sortedNames() {
		if spec := m.schedules[name]; spec != "" {
			log.Infof("[Scheduler] %s scheduled at %q", name, spec)
		}
	}
	m.cron.Start()
	log.Info("[Scheduler] Started successfully")
}

// Stop stops the cron loop and waits for running jobs to finish
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	log.Info("[Scheduler] Stopping lifecycle jobs...")
	<-m.cron.Stop().Done()
	log.Info("[Scheduler] Stopped successfully")
}

// IsRunning returns whether the scheduler is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Jobs returns the registered job names with their schedules.
func (m *Manager) Jobs() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.schedules))
	for k, v := range m.schedules {
		out[k] = v
	}
	return out
}

// RunNow runs the named job once, outside its schedule.
func (m *Manager) RunNow(ctx context.Context, name string) (*lifecycle.Result, error) {
	m.mu.Lock()
	job, ok := m.jobs[name]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownJob, name)
	}
	return m.run(ctx, job)
}

func (m *Manager) tick(job lifecycle.Job) {
	name := job.Name()
	res, err := m.run(context.Background(), job)
	switch {
	case errors.Is(err, ErrJobLocked):
		log.Infof("[Scheduler] %s skipped, lock held by another instance", name)
	case err != nil:
		log.Errorf("[Scheduler] %s failed: %v", name, err)
	default:
		log.Infof("[Scheduler] %s finished: processed=%d affected=%d failed=%d in %s",
			name, res.Processed, res.Affected, res.Failed, res.FinishedAt.Sub(res.StartedAt))
	}
}

// run executes job, holding the lock if one is configured. An unreachable
// lock backend does not block the run since every job is idempotent.
func (m *Manager) run(ctx context.Context, job lifecycle.Job) (*lifecycle.Result, error) {
	if m.locker != nil {
		lock, acquired, err := m.locker.Acquire(ctx, job.Name(), m.lockTTL)
		switch {
		case err != nil:
			log.Warnf("[Scheduler] Lock unavailable for %s, running without it: %v", job.Name(), err)
		case !acquired:
			return nil, ErrJobLocked
		default:
			defer func() {
				if rerr := lock.Release(context.Background()); rerr != nil {
					log.Warnf("[Scheduler] Failed to release lock for %s: %v", job.Name(), rerr)
				}
			}()
		}
	}
	return job.Run(ctx)
}

func (m *Manager) sortedNames() []string {
	names := make([]string, 0, len(m.jobs))
	for name := range m.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// cronLogger routes cron's internal logging to the fiber logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debugf("[Scheduler] %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Errorf("[Scheduler] %s: %v %v", msg, err, keysAndValues)
}
