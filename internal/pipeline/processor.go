// Package pipeline runs one document through scratch storage, classification and
// the matching text extractor, always removing the scratch copy afterwards.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/doctext/constants"
	"github.com/joseph-ayodele/doctext/internal/common"
	"github.com/joseph-ayodele/doctext/internal/extract"
	"github.com/joseph-ayodele/doctext/internal/repository"
	"github.com/joseph-ayodele/doctext/internal/scratch"
)

// MaxFileNameLength bounds the caller-declared filename, in characters.
const MaxFileNameLength = 255

// Scratch is the transient storage the processor writes uploads to.
type Scratch interface {
	Persist(fileName string, content io.Reader) (scratch.File, error)
	Remove(f scratch.File) error
}

// Request is one extraction call. FileName is untrusted and used only for
// classification and display.
type Request struct {
	FileName string
	Content  io.Reader
}

// Outcome holds either Text (Failure == nil) or Failure, never both.
type Outcome struct {
	RequestID string
	JobID     uuid.UUID // uuid.Nil when no job store is configured
	FileName  string
	Format    constants.FormatKind
	Method    string
	Text      string
	Duration  time.Duration
	Failure   *common.ExtractionError
}

func (o Outcome) OK() bool { return o.Failure == nil }

// Err returns the failure as an error, or nil on success.
func (o Outcome) Err() error {
	if o.Failure == nil {
		return nil
	}
	return o.Failure
}

type Processor struct {
	logger *slog.Logger
	store  Scratch
	docx   extract.TextExtractor
	legacy extract.TextExtractor
	jobs   repository.ExtractJobRepository
}

// NewProcessor wires one extractor per supported format. jobs may be nil.
func NewProcessor(
	logger *slog.Logger,
	store Scratch,
	docx extract.TextExtractor,
	legacy extract.TextExtractor,
	jobs repository.ExtractJobRepository,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger, store: store, docx: docx, legacy: legacy, jobs: jobs}
}

// Extract never returns a partially filled success and never panics; every
// failure is reported through Outcome.Failure.
func (p *Processor) Extract(ctx context.Context, req Request) (out Outcome) {
	start := time.Now()
	out = Outcome{RequestID: common.RequestIDFromContext(ctx), FileName: req.FileName}
	logger := common.LoggerFromContext(ctx, p.logger)

	if xe := checkFileName(req.FileName); xe != nil {
		out.Failure = xe
		out.Duration = time.Since(start)
		logger.Warn("pipeline.extract.rejected", "kind", xe.Kind, "detail", xe.Detail)
		return out
	}

	// Extraction and job bookkeeping outlive the caller's context.
	ctx = context.WithoutCancel(ctx)

	var tc scratch.File
	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline.extract.panic", "panic", r, "stack", string(debug.Stack()))
			out.Text, out.Method = "", ""
			out.Failure = common.NewExtractionError(common.KindInternal, fmt.Sprintf("unexpected fault: %v", r), nil)
		}
		p.finishJob(ctx, logger, out)
		p.cleanup(logger, tc)
		out.Duration = time.Since(start)
		p.logOutcome(logger, out)
	}()

	var err error
	tc, err = p.store.Persist(req.FileName, req.Content)
	if err != nil {
		logger.Error("pipeline.persist.failed", "err", err)
		out.Failure = common.NewExtractionError(common.KindInternal, "failed to store upload", err)
		return out
	}

	out.Format = constants.Classify(req.FileName)
	out.JobID = p.startJob(ctx, logger, req, out, tc)

	ex, supported := p.extractorFor(out.Format)
	if !supported {
		out.Failure = common.NewExtractionError(common.KindUnsupportedFormat,
			"Only .doc and .docx files are supported", nil)
		return out
	}
	if ex == nil {
		out.Failure = common.NewExtractionError(common.KindInternal,
			fmt.Sprintf("no extractor configured for %s", out.Format), nil)
		return out
	}

	res, err := ex.Extract(ctx, tc.Path)
	if err != nil {
		out.Failure = common.AsExtractionError(err)
		return out
	}
	out.Text = res.Text
	out.Method = res.Method
	return out
}

func (p *Processor) extractorFor(kind constants.FormatKind) (extract.TextExtractor, bool) {
	switch kind {
	case constants.FormatXMLContainer:
		return p.docx, true
	case constants.FormatLegacyBinary:
		return p.legacy, true
	case constants.FormatUnsupported:
		return nil, false
	default:
		return nil, false
	}
}

func checkFileName(name string) *common.ExtractionError {
	v := common.NewValidator().
		Field("filename", name, common.Required, common.MaxLength(MaxFileNameLength), common.NoControlChars)
	if v.HasErrors() {
		errs := v.Errors()
		return common.NewExtractionError(common.KindInvalidInput, "filename "+errs[0].Message, nil)
	}
	return nil
}

func (p *Processor) startJob(ctx context.Context, logger *slog.Logger, req Request, out Outcome, tc scratch.File) uuid.UUID {
	if p.jobs == nil {
		return uuid.Nil
	}
	format := string(out.Format)
	if format == "" {
		format = "UNSUPPORTED"
	}
	job, err := p.jobs.Start(ctx, repository.StartJob{
		RequestID:     out.RequestID,
		FileName:      req.FileName,
		Format:        format,
		ContentSHA256: tc.HashHex,
		SizeBytes:     tc.Size,
	})
	if err != nil {
		logger.Error("pipeline.job.start.failed", "err", err)
		return uuid.Nil
	}
	return job.ID
}

func (p *Processor) finishJob(ctx context.Context, logger *slog.Logger, out Outcome) {
	if p.jobs == nil || out.JobID == uuid.Nil {
		return
	}
	var err error
	if out.Failure != nil {
		err = p.jobs.FinishFailure(ctx, out.JobID, string(out.Failure.Kind), out.Failure.Detail)
	} else {
		err = p.jobs.FinishSuccess(ctx, out.JobID, out.Method, len(out.Text))
	}
	if err != nil {
		logger.Error("pipeline.job.finish.failed", "job_id", out.JobID, "err", err)
	}
}

func (p *Processor) cleanup(logger *slog.Logger, tc scratch.File) {
	if tc.Path == "" {
		return
	}
	if err := p.store.Remove(tc); err != nil {
		logger.Warn("pipeline.cleanup.failed", "token", tc.Token, "err", err)
	}
}

func (p *Processor) logOutcome(logger *slog.Logger, out Outcome) {
	if out.Failure == nil {
		logger.Info("pipeline.extract.ok",
			"file_name", out.FileName,
			"format", out.Format,
			"method", out.Method,
			"chars", len(out.Text),
			"job_id", out.JobID,
			"duration", out.Duration,
		)
		return
	}
	level := slog.LevelError
	if out.Failure.Kind.ClientFault() {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "pipeline.extract.failed",
		"file_name", out.FileName,
		"format", out.Format,
		"kind", out.Failure.Kind,
		"detail", out.Failure.Detail,
		"job_id", out.JobID,
		"duration", out.Duration,
	)
}
