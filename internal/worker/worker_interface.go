package worker

import (
	"context"
	"errors"
)

var ErrPoolStopped = errors.New("working pool stopped")

type Job func(ctx context.Context) error

// NamedJob pairs a job with the name used in logs and metrics.
type NamedJob struct {
	Name string
	Run  Job
}
