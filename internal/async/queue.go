package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/doctext/internal/pipeline"
)

var (
	// ErrQueueClosed is returned once Shutdown has started.
	ErrQueueClosed = errors.New("extraction queue is shutting down")
	// ErrRejected is returned when the caller's context ends before a worker picks the job up.
	ErrRejected = errors.New("extraction request expired while queued")
)

// Extractor is the unit of work a worker runs.
type Extractor interface {
	Extract(ctx context.Context, req pipeline.Request) pipeline.Outcome
}

// Job is one queued extraction.
type Job struct {
	Request     pipeline.Request
	SubmittedAt time.Time

	ctx   context.Context
	reply chan result
}

type result struct {
	out pipeline.Outcome
	err error
}
