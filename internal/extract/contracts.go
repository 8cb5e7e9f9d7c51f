package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/doctext/constants"
)

// TextExtractor turns a persisted document into plain text.
// Failures are *common.ExtractionError values.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text       string
	Format     constants.FormatKind
	Method     string // "docx-xml" | "legacy-decoder"
	Paragraphs int    // 0 when the method does not expose paragraph structure
	Duration   time.Duration
}
