package worker

import (
	"context"
	"log"
	"sync"
	"time"
)

// JobScheduler submits its jobs to a pool on a fixed interval.
type JobScheduler struct {
	Name       string
	Interval   time.Duration
	RunAtStart bool
	Pool       *WorkingPool

	mu      sync.RWMutex
	jobs    []NamedJob
	nextRun time.Time
	now     func() time.Time
}

func NewJobScheduler(name string, interval time.Duration, pool *WorkingPool) *JobScheduler {
	return &JobScheduler{
		Name:     name,
		Interval: interval,
		Pool:     pool,
		now:      time.Now,
	}
}

func (s *JobScheduler) AddJob(name string, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, NamedJob{Name: name, Run: job})
}

// NextRun returns when the ticker fires next. Zero before Run.
func (s *JobScheduler) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextRun
}

func (s *JobScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	log.Printf("[Scheduler %s] Running every %v\n", s.Name, s.Interval)

	s.setNextRun()
	if s.RunAtStart {
		s.submitJobs(ctx)
	}

	for {
		select {
		case <-ticker.C:
			s.setNextRun()
			s.submitJobs(ctx)
		case <-ctx.Done():
			log.Printf("[Scheduler %s] Shutting down.\n", s.Name)
			return
		}
	}
}

func (s *JobScheduler) setNextRun() {
	s.mu.Lock()
	s.nextRun = s.now().Add(s.Interval)
	s.mu.Unlock()
}

func (s *JobScheduler) submitJobs(ctx context.Context) {
	s.mu.RLock()
	jobsToRun := make([]NamedJob, len(s.jobs))
	copy(jobsToRun, s.jobs)
	s.mu.RUnlock()

	for _, job := range jobsToRun {
		submitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := s.Pool.SubmitJob(submitCtx, job); err != nil {
			log.Printf("[Scheduler %s] FAILED to submit job %s: %v\n", s.Name, job.Name, err)
		}
		cancel()
	}
}
