package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"plant-monitor-service/internal/metrics"
)

type WorkingPool struct {
	Name       string
	NumWorkers int
	JobTimeout time.Duration

	jobChan  chan NamedJob
	stopped  chan struct{}
	stopOnce sync.Once
}

func NewWorkingPool(name string, numWorkers int, queueSize int) *WorkingPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &WorkingPool{
		Name:       name,
		NumWorkers: numWorkers,
		jobChan:    make(chan NamedJob, queueSize),
		stopped:    make(chan struct{}),
	}
}

// SubmitJob queues job, blocking while the queue is full.
func (p *WorkingPool) SubmitJob(ctx context.Context, job NamedJob) error {
	select {
	case <-p.stopped:
		return ErrPoolStopped
	default:
	}

	select {
	case p.jobChan <- job:
		return nil
	case <-p.stopped:
		return ErrPoolStopped
	case <-ctx.Done():
		return fmt.Errorf("failed to submit job %s: %w", job.Name, ctx.Err())
	}
}

// Start runs the workers until ctx is cancelled. Queued jobs that have not
// been picked up are dropped.
func (p *WorkingPool) Start(ctx context.Context, managerWg *sync.WaitGroup) {
	defer managerWg.Done()

	var workerWg sync.WaitGroup
	for i := range p.NumWorkers {
		workerWg.Add(1)
		go p.worker(ctx, &workerWg, i+1)
	}

	<-ctx.Done()

	log.Printf("[WorkingPool %s] Shutdown signaled.\n", p.Name)
	p.stopOnce.Do(func() { close(p.stopped) })

	workerWg.Wait()
	log.Printf("[WorkingPool %s] All workers stopped.\n", p.Name)
}

func (p *WorkingPool) worker(ctx context.Context, wg *sync.WaitGroup, id int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.jobChan:
			// Both cases may be ready at shutdown.
			if ctx.Err() != nil {
				return
			}
			p.safeExecution(ctx, job, id)
		}
	}
}

func (p *WorkingPool) safeExecution(ctx context.Context, job NamedJob, workerID int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WorkingPool %s-Worker %d] FATAL: Panic recovered in job %s: %v\n", p.Name, workerID, job.Name, r)
			metrics.WorkerJobs.WithLabelValues(p.Name, "panic").Inc()
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()

	if p.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.JobTimeout)
		defer cancel()
	}

	err = job.Run(ctx)
	if err != nil {
		log.Printf("[WorkingPool %s-Worker %d] Error executing job %s: %s\n", p.Name, workerID, job.Name, err)
		metrics.WorkerJobs.WithLabelValues(p.Name, "error").Inc()
		return err
	}
	metrics.WorkerJobs.WithLabelValues(p.Name, "ok").Inc()
	return nil
}
