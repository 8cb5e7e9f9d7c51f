package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/doctext/constants"
	"github.com/joseph-ayodele/doctext/internal/pipeline"
)

// IngestDirectory walks root and extracts every supported document, calling
// onFile for each one. Files whose content and format were already seen in
// this walk are reported as deduplicated without being extracted again.
func (u *Usecase) IngestDirectory(ctx context.Context, root string, skipHidden bool, onFile OnFile) (DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return DirStats{}, errors.New("root path is required")
	}

	var stats DirStats
	seen := map[string]FileResult{}
	emit := func(r FileResult, out pipeline.Outcome) {
		if onFile != nil {
			onFile(r, out)
		}
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			emit(FileResult{Path: path, Err: walkErr.Error()}, pipeline.Outcome{})
			stats.Failed++
			return nil // continue walking
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		hexHash, err := hashFile(path)
		if err != nil {
			emit(FileResult{Path: path, Err: err.Error()}, pipeline.Outcome{})
			stats.Failed++
			return nil
		}
		key := dedupKey(hexHash, path)
		if prev, ok := seen[key]; ok {
			dup := prev
			dup.Path, dup.Deduplicated = path, true
			emit(dup, pipeline.Outcome{})
			stats.Deduplicated++
			if dup.OK() {
				stats.Succeeded++
			} else {
				stats.Failed++
			}
			return nil
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		res, out, err := u.extract(ctx, abs, hexHash)
		if err == nil {
			seen[key] = res
		}
		emit(res, out)
		if res.OK() {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
		return nil
	})

	if err != nil {
		return stats, fmt.Errorf("walk: %w", err)
	}
	u.logger.Info("ingest.directory.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return stats, nil
}

// dedupKey is the content hash plus the suffix-derived format; identical bytes
// under .doc and .docx are extracted separately.
func dedupKey(hexHash, path string) string {
	return hexHash + "|" + string(constants.Classify(filepath.Base(path)))
}
