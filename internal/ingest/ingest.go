// Package ingest feeds documents from the local filesystem into the extraction pipeline.
package ingest

import (
	"context"
	"time"

	"github.com/joseph-ayodele/doctext/internal/pipeline"
)

// FileResult is the per-file extraction summary.
type FileResult struct {
	Path         string
	HashHex      string
	Deduplicated bool // same content already extracted in this run
	Format       string
	Chars        int
	JobID        string
	Kind         string // failure kind, empty on success
	Err          string
	Duration     time.Duration
}

func (r FileResult) OK() bool { return r.Err == "" }

// DirStats summarizes a directory run.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Extractor is the pipeline entry point the ingestor drives.
type Extractor interface {
	Extract(ctx context.Context, req pipeline.Request) pipeline.Outcome
}

// OnFile receives each processed file. The outcome is zero for deduplicated files.
type OnFile func(FileResult, pipeline.Outcome)
