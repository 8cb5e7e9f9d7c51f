package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/doctext/internal/entity"
	"github.com/joseph-ayodele/doctext/internal/repository"
)

const (
	jobsSheet    = "Jobs"
	summarySheet = "Summary"
	maxRows      = 100000
)

// Service turns the extraction job log into XLSX workbooks.
type Service struct {
	jobsRepo repository.ExtractJobRepository
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo repository.ExtractJobRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobsRepo: repo, logger: logger, now: time.Now}
}

// ExportJobsXLSX returns a workbook of jobs started in the given date window.
// Both dates are inclusive calendar days in UTC.
// If only from is provided -> from..today.
// If only to is provided   -> beginning..to.
// If neither is provided   -> all jobs.
func (s *Service) ExportJobsXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	var lo, hi time.Time
	if from != nil {
		lo = dateOnly(*from)
	}
	if to != nil {
		hi = dateOnly(*to).AddDate(0, 0, 1)
	} else if from != nil {
		hi = dateOnly(s.now()).AddDate(0, 0, 1)
	}
	if !lo.IsZero() && !hi.IsZero() && !lo.Before(hi) {
		return nil, fmt.Errorf("from date is after to date")
	}

	jobs, err := s.jobsRepo.List(ctx, lo, hi, maxRows)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", jobsSheet); err != nil {
		return nil, err
	}
	if err := writeJobs(f, jobs); err != nil {
		return nil, err
	}
	if err := writeSummary(f, jobs); err != nil {
		return nil, err
	}
	idx, _ := f.GetSheetIndex(jobsSheet)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(jobs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

var jobHeaders = []string{
	"Started At",
	"File Name",
	"Format",
	"Status",
	"Method",
	"Error Kind",
	"Error Message",
	"Text Bytes",
	"Duration (ms)",
	"Job ID",
	"Request ID",
}

func writeJobs(f *excelize.File, jobs []entity.ExtractJob) error {
	if err := f.SetSheetRow(jobsSheet, "A1", &jobHeaders); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetRowStyle(jobsSheet, 1, 1, bold)
	}

	for i, j := range jobs {
		var durationMs any = ""
		if j.FinishedAt != nil {
			durationMs = j.Duration().Milliseconds()
		}
		var textBytes any = ""
		if j.TextBytes != nil {
			textBytes = *j.TextBytes
		}
		row := []any{
			j.StartedAt.UTC().Format(time.RFC3339),
			j.FileName,
			j.Format,
			j.Status,
			deref(j.Method),
			deref(j.ErrorKind),
			truncate(deref(j.ErrorMessage), 200),
			textBytes,
			durationMs,
			j.ID.String(),
			j.RequestID,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(jobsSheet, cell, &row); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(jobsSheet, "A", "A", 22) // started
	_ = f.SetColWidth(jobsSheet, "B", "B", 36) // file name
	_ = f.SetColWidth(jobsSheet, "C", "F", 16)
	_ = f.SetColWidth(jobsSheet, "G", "G", 48) // message
	_ = f.SetColWidth(jobsSheet, "H", "I", 14)
	_ = f.SetColWidth(jobsSheet, "J", "K", 38) // ids
	return f.SetPanes(jobsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeSummary(f *excelize.File, jobs []entity.ExtractJob) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	counts := map[string]int{}
	for _, j := range jobs {
		key := j.Status
		if j.ErrorKind != nil {
			key = j.Status + " / " + *j.ErrorKind
		}
		counts[key]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if err := f.SetSheetRow(summarySheet, "A1", &[]any{"Outcome", "Jobs"}); err != nil {
		return err
	}
	for i, k := range keys {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(summarySheet, cell, &[]any{k, counts[k]}); err != nil {
			return err
		}
	}
	total, _ := excelize.CoordinatesToCellName(1, len(keys)+2)
	if err := f.SetSheetRow(summarySheet, total, &[]any{"Total", len(jobs)}); err != nil {
		return err
	}
	return f.SetColWidth(summarySheet, "A", "A", 32)
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
