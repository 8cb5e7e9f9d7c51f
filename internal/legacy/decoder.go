// Package legacy decodes pre-2007 binary word documents with an external command-line tool.
package legacy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/joseph-ayodele/doctext/internal/common"
)

// DefaultTimeout bounds a single decoder run.
const DefaultTimeout = 30 * time.Second

// LegacyDecoder turns a binary document on disk into text.
// Failures are *common.ExtractionError values.
type LegacyDecoder interface {
	Decode(ctx context.Context, path string, timeout time.Duration) (string, error)
}

type Config struct {
	Command string        // binary name or absolute path; if empty -> "antiword"
	Args    []string      // fixed args placed before the document path
	Timeout time.Duration // used when Decode gets a non-positive timeout
}

type Decoder struct {
	cfg      Config
	runner   Runner
	lookPath func(string) (string, error)
	logger   *slog.Logger
}

type Option func(*Decoder)

// WithRunner replaces the process runner.
func WithRunner(r Runner) Option {
	return func(d *Decoder) {
		if r != nil {
			d.runner = r
		}
	}
}

// WithLookPath replaces executable resolution.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(d *Decoder) {
		if fn != nil {
			d.lookPath = fn
		}
	}
}

func NewDecoder(cfg Config, logger *slog.Logger, opts ...Option) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Command == "" {
		cfg.Command = "antiword"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	d := &Decoder{
		cfg:      cfg,
		runner:   ExecRunner{Logger: logger},
		lookPath: exec.LookPath,
		logger:   logger,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Command returns the configured decoder executable.
func (d *Decoder) Command() string { return d.cfg.Command }

// Available reports whether the decoder executable can be resolved.
func (d *Decoder) Available() bool {
	_, err := d.lookPath(d.cfg.Command)
	return err == nil
}

// Decode runs the decoder against path and returns its stdout verbatim.
func (d *Decoder) Decode(ctx context.Context, path string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = d.cfg.Timeout
	}

	bin, err := d.lookPath(d.cfg.Command)
	if err != nil {
		d.logger.Error("legacy decoder not found", "cmd", d.cfg.Command, "error", err)
		return "", common.NewExtractionError(common.KindToolUnavailable,
			fmt.Sprintf("decoder %q is not installed", d.cfg.Command), err)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := make([]string, 0, len(d.cfg.Args)+1)
	args = append(args, d.cfg.Args...)
	args = append(args, path)

	stdout, stderr, err := d.runner.Run(runCtx, bin, args...)
	if err == nil {
		return string(stdout), nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		d.logger.Warn("legacy decoder timed out", "cmd", d.cfg.Command, "timeout", timeout.String(), "partial_stdout_bytes", len(stdout))
		return "", common.NewExtractionError(common.KindTimeout,
			fmt.Sprintf("decoder did not finish within %s", timeout), runCtx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		detail := strings.TrimSpace(string(stderr))
		if detail == "" {
			detail = exitErr.Error()
		}
		return "", common.NewExtractionError(common.KindToolFailure, detail, err)
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return "", common.NewExtractionError(common.KindToolUnavailable,
			fmt.Sprintf("decoder %q is not installed", d.cfg.Command), err)
	}

	return "", common.NewExtractionError(common.KindInvocationFailure, err.Error(), err)
}
