package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/doctext/constants"
	"github.com/joseph-ayodele/doctext/internal/legacy"
)

type LegacyAdapter struct {
	decoder legacy.LegacyDecoder
	timeout time.Duration
	logger  *slog.Logger
}

// NewLegacyAdapter bounds every decode by timeout (the decoder default when <= 0).
func NewLegacyAdapter(d legacy.LegacyDecoder, timeout time.Duration, l *slog.Logger) *LegacyAdapter {
	if l == nil {
		l = slog.Default()
	}
	return &LegacyAdapter{decoder: d, timeout: timeout, logger: l}
}

func (a *LegacyAdapter) Extract(ctx context.Context, path string) (TextExtractionResult, error) {
	start := time.Now()
	text, err := a.decoder.Decode(ctx, path, a.timeout)
	if err != nil {
		return TextExtractionResult{Format: constants.FormatLegacyBinary}, err
	}
	res := TextExtractionResult{
		Text:     text,
		Format:   constants.FormatLegacyBinary,
		Method:   "legacy-decoder",
		Duration: time.Since(start),
	}
	a.logger.Debug("extract.legacy.ok",
		"path", path,
		"chars", len(res.Text),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
