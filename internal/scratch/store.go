// Package scratch holds the short-lived on-disk copies of uploaded documents.
package scratch

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/doctext/constants"
)

// ErrOutsideScratch is returned when a computed path would leave the scratch directory.
var ErrOutsideScratch = errors.New("path escapes scratch directory")

const maxExtLen = 10

// File is a transient copy owned by exactly one extraction call.
type File struct {
	Token   uuid.UUID
	Path    string
	Size    int64
	HashHex string // sha256 of the content
}

// Store writes transient copies into a single directory. Names are
// "<uuid><ext>"; the caller's filename only contributes a sanitized extension.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates dir if needed.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("scratch dir is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("scratch dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Store{dir: abs, logger: logger}, nil
}

func (s *Store) Dir() string { return s.dir }

// Persist copies content into a new file. On error nothing is left behind.
func (s *Store) Persist(fileName string, content io.Reader) (File, error) {
	token := uuid.New()
	p, err := s.pathFor(token.String() + safeExt(fileName))
	if err != nil {
		return File{}, err
	}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return File{}, fmt.Errorf("create transient copy: %w", err)
	}

	h := sha256.New()
	n, copyErr := io.Copy(io.MultiWriter(f, h), content)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(p)
		if copyErr != nil {
			return File{}, fmt.Errorf("write transient copy: %w", copyErr)
		}
		return File{}, fmt.Errorf("close transient copy: %w", closeErr)
	}

	out := File{Token: token, Path: p, Size: n, HashHex: hex.EncodeToString(h.Sum(nil))}
	s.logger.Debug("scratch.persist.ok", "token", token, "bytes", n)
	return out, nil
}

// Remove deletes a transient copy. A file that is already gone is not an error.
func (s *Store) Remove(f File) error {
	if f.Path == "" {
		return nil
	}
	if _, err := s.pathFor(filepath.Base(f.Path)); err != nil || filepath.Dir(f.Path) != s.dir {
		return ErrOutsideScratch
	}
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Sweep removes regular files older than maxAge, e.g. leftovers of a crashed process.
func (s *Store) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read scratch dir: %w", err)
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("scratch.sweep", "removed", removed, "dir", s.dir)
	}
	return removed, nil
}

func (s *Store) pathFor(name string) (string, error) {
	p := filepath.Join(s.dir, name)
	rel, err := filepath.Rel(s.dir, p)
	if err != nil || rel == "." || rel != filepath.Base(p) || strings.HasPrefix(rel, "..") {
		return "", ErrOutsideScratch
	}
	return p, nil
}

// safeExt keeps only a short alphanumeric extension of the caller's filename.
func safeExt(fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, `\`, "/"))
	ext := constants.NormalizeExt(path.Ext(base))
	if ext == "" || len(ext) > maxExtLen {
		return ""
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return "." + ext
}
