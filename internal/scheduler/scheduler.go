// Package scheduler runs the daemon's periodic jobs: calendar sync and the
// reminder sweep.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/quantumlife/lifectx/internal/logging"
)

// JobFunc is the function executed on each tick
type JobFunc func(ctx context.Context) error

// DefaultTimeout bounds a single run when a job sets none
const DefaultTimeout = 5 * time.Minute

// Job is a function run at a fixed interval
type Job struct {
	Name    string
	Every   time.Duration
	Timeout time.Duration
	Run     JobFunc
}

// Stats describes a job's run history
type Stats struct {
	Name      string     `json:"name"`
	Every     string     `json:"every"`
	Runs      int64      `json:"runs"`
	Errors    int64      `json:"errors"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
}

type entry struct {
	job   Job
	stats Stats
}

// Scheduler manages interval jobs
type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]*entry
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started bool
	now     func() time.Time
}

// New creates an empty scheduler
func New() *Scheduler {
	return &Scheduler{
		jobs: make(map[string]*entry),
		now:  time.Now,
	}
}

// Add registers a job. Jobs must be added before Start.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if job.Run == nil {
		return fmt.Errorf("job %s: run function is required", job.Name)
	}
	if job.Every <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name)
	}
	if job.Timeout == 0 {
		job.Timeout = DefaultTimeout
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("job %s: scheduler already started", job.Name)
	}
	if _, ok := s.jobs[job.Name]; ok {
		return fmt.Errorf("job %s: already registered", job.Name)
	}
	s.jobs[job.Name] = &entry{
		job:   job,
		stats: Stats{Name: job.Name, Every: job.Every.String()},
	}
	return nil
}

// Start launches one loop per job. Each job first runs one interval after
// Start. Loops stop when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for _, e := range s.jobs {
		next := s.now().Add(e.job.Every)
		e.stats.NextRun = &next

		s.wg.Add(1)
		go s.loop(ctx, e)
	}

	logging.WithField("jobs", len(s.jobs)).Info("scheduler started")
	return nil
}

// Stop cancels every loop and waits for running jobs to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.started = false
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	defer s.wg.Done()

	ticker := time.NewTicker(e.job.Every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.execute(ctx, e)
		}
	}
}

// RunNow runs a job once, synchronously, outside its schedule
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("job not found: %s", name)
	}
	return s.execute(ctx, e)
}

func (s *Scheduler) execute(ctx context.Context, e *entry) error {
	runCtx, cancel := context.WithTimeout(ctx, e.job.Timeout)
	defer cancel()

	err := e.job.Run(runCtx)

	s.mu.Lock()
	now := s.now()
	e.stats.Runs++
	e.stats.LastRun = &now
	if err != nil {
		e.stats.Errors++
		e.stats.LastError = err.Error()
	} else {
		e.stats.LastError = ""
	}
	if s.started {
		next := now.Add(e.job.Every)
		e.stats.NextRun = &next
	}
	s.mu.Unlock()

	if err != nil {
		logging.WithField("job", e.job.Name).Warn("job failed: %v", err)
	}
	return err
}

// Stats returns every job's history, ordered by name
func (s *Scheduler) Stats() []Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Stats, 0, len(s.jobs))
	for _, e := range s.jobs {
		out = append(out, e.stats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
