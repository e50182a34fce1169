package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/forgo/exitlane/api/internal/metrics"
)

// DefaultRunTimeout bounds a single job run
const DefaultRunTimeout = 2 * time.Minute

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrJobRunning = errors.New("job is already running")
)

// Task is one unit of scheduled work. It returns how many records it touched.
type Task func(ctx context.Context) (int, error)

type job struct {
	name    string
	spec    string
	task    Task
	entryID cron.EntryID
}

// Scheduler runs named tasks on cron schedules. A task never overlaps with
// itself; a tick that arrives while the previous run is still going is skipped.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration

	mu      sync.Mutex
	jobs    map[string]*job
	running map[string]bool
	started bool
}

// NewScheduler creates a scheduler. A zero timeout uses DefaultRunTimeout.
func NewScheduler(timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		timeout: timeout,
		jobs:    make(map[string]*job),
		running: make(map[string]bool),
	}
}

// Add schedules task under name. spec accepts the standard five-field
// format and descriptors such as "@hourly" or "@every 1m".
func (s *Scheduler) Add(name, spec string, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	j := &job{name: name, spec: spec, task: task}
	id, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.run(ctx, j); err != nil && !errors.Is(err, ErrJobRunning) {
			log.Printf("Job %s failed: %v", name, err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}
	j.entryID = id
	s.jobs[name] = j
	return nil
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	count := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	log.Printf("Job scheduler started (%d jobs)", count)
}

// Stop stops scheduling and waits for running jobs until ctx is done
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		log.Println("Job scheduler stopped")
	case <-ctx.Done():
		log.Println("Job scheduler stopped with jobs still running")
	}
}

// RunOnce runs a registered job now (for manual trigger or testing)
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, j)
}

// Jobs returns the registered job names with their schedules
func (s *Scheduler) Jobs() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.jobs))
	for name, j := range s.jobs {
		out[name] = j.spec
	}
	return out
}

// IsRunning returns whether the named job is currently executing
func (s *Scheduler) IsRunning(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[name]
}

func (s *Scheduler) run(ctx context.Context, j *job) error {
	s.mu.Lock()
	if s.running[j.name] {
		s.mu.Unlock()
		log.Printf("Job %s skipped: previous run still in progress", j.name)
		return ErrJobRunning
	}
	s.running[j.name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, j.name)
		s.mu.Unlock()
	}()

	start := time.Now()
	n, err := j.task(ctx)
	elapsed := time.Since(start)
	metrics.RecordJobRun(j.name, elapsed, err)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("Job %s processed %d records in %v", j.name, n, elapsed.Round(time.Millisecond))
	}
	return nil
}
