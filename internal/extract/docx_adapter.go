package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/doctext/constants"
	"github.com/joseph-ayodele/doctext/internal/docx"
)

type DocxAdapter struct {
	extractor *docx.Extractor
	logger    *slog.Logger
}

func NewDocxAdapter(e *docx.Extractor, l *slog.Logger) *DocxAdapter {
	if l == nil {
		l = slog.Default()
	}
	return &DocxAdapter{
		extractor: e,
		logger:    l,
	}
}

func (a *DocxAdapter) Extract(ctx context.Context, path string) (TextExtractionResult, error) {
	start := time.Now()
	doc, err := a.extractor.Extract(ctx, path)
	if err != nil {
		return TextExtractionResult{Format: constants.FormatXMLContainer}, err
	}
	res := TextExtractionResult{
		Text:       doc.Text(),
		Format:     constants.FormatXMLContainer,
		Method:     "docx-xml",
		Paragraphs: len(doc.Paragraphs),
		Duration:   time.Since(start),
	}
	a.logger.Debug("extract.docx.ok",
		"path", path,
		"paragraphs", res.Paragraphs,
		"chars", len(res.Text),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
