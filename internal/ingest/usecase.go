package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/doctext/internal/pipeline"
)

type Usecase struct {
	proc   Extractor
	logger *slog.Logger
}

func NewUsecase(proc Extractor, logger *slog.Logger) *Usecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &Usecase{proc: proc, logger: logger}
}

// IngestPath extracts one file. The returned error covers local I/O only;
// extraction failures are reported in the outcome and the result.
func (u *Usecase) IngestPath(ctx context.Context, path string) (FileResult, pipeline.Outcome, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileResult{Path: path, Err: err.Error()}, pipeline.Outcome{}, fmt.Errorf("abs path: %w", err)
	}
	hexHash, err := hashFile(abs)
	if err != nil {
		return FileResult{Path: abs, Err: err.Error()}, pipeline.Outcome{}, err
	}
	return u.extract(ctx, abs, hexHash)
}

func (u *Usecase) extract(ctx context.Context, abs, hexHash string) (FileResult, pipeline.Outcome, error) {
	f, err := os.Open(abs)
	if err != nil {
		return FileResult{Path: abs, Err: err.Error()}, pipeline.Outcome{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	out := u.proc.Extract(ctx, pipeline.Request{FileName: filepath.Base(abs), Content: f})
	res := FileResult{
		Path:     abs,
		HashHex:  hexHash,
		Format:   out.Format.Ext(),
		Chars:    len([]rune(out.Text)),
		Duration: out.Duration,
	}
	if out.JobID != uuid.Nil {
		res.JobID = out.JobID.String()
	}
	if out.Failure != nil {
		res.Kind = string(out.Failure.Kind)
		res.Err = out.Failure.Error()
	}
	return res, out, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
