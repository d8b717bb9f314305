package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Job asks for one pipeline run of a case.
type Job struct {
	ID          string    `json:"id"`
	Protocol    string    `json:"protocol"`
	Attempt     int       `json:"attempt,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	Source      string    `json:"source,omitempty"`
}

// NewJob stamps a job with an id and submission time.
func NewJob(protocol, source string) Job {
	return Job{
		ID:          uuid.NewString(),
		Protocol:    protocol,
		SubmittedAt: time.Now().UTC(),
		Source:      source,
	}
}

// HandlerFunc runs a job to completion.
type HandlerFunc func(ctx context.Context, job Job) error

var ErrQueueClosed = errors.New("queue is shutting down")

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
