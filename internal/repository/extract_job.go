package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/doctext/constants"
	"github.com/joseph-ayodele/doctext/internal/common"
	"github.com/joseph-ayodele/doctext/internal/entity"
)

// StartJob describes an upload as it enters extraction.
type StartJob struct {
	RequestID     string
	FileName      string
	Format        string
	ContentSHA256 string
	SizeBytes     int64
}

type ExtractJobRepository interface {
	Start(ctx context.Context, in StartJob) (*entity.ExtractJob, error)
	FinishSuccess(ctx context.Context, jobID uuid.UUID, method string, textBytes int) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, kind, message string) error
	Get(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, error)
	// List returns jobs started in [from, to), oldest first. Zero bounds are open.
	List(ctx context.Context, from, to time.Time, limit int) ([]entity.ExtractJob, error)
}

type extractJobRepo struct {
	db  *DB
	log *slog.Logger
	now func() time.Time
}

func NewExtractJobRepository(db *DB, log *slog.Logger) ExtractJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &extractJobRepo{db: db, log: log, now: time.Now}
}

const jobColumns = `id, request_id, file_name, format, content_sha256, size_bytes, status,
	method, error_kind, error_message, text_bytes, started_at, finished_at`

func (r *extractJobRepo) Start(ctx context.Context, in StartJob) (*entity.ExtractJob, error) {
	job := &entity.ExtractJob{
		ID:            uuid.New(),
		RequestID:     in.RequestID,
		FileName:      in.FileName,
		Format:        in.Format,
		ContentSHA256: in.ContentSHA256,
		SizeBytes:     in.SizeBytes,
		Status:        string(constants.JobStatusRunning),
		StartedAt:     r.now().UTC(),
	}
	_, err := r.db.SQL.ExecContext(ctx, r.db.Rebind(`INSERT INTO extract_jobs
		(id, request_id, file_name, format, content_sha256, size_bytes, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		job.ID.String(), job.RequestID, job.FileName, job.Format, job.ContentSHA256,
		job.SizeBytes, job.Status, job.StartedAt.UnixMicro(),
	)
	if err != nil {
		r.log.Error("extract_job.start.failed", "file_name", in.FileName, "err", err)
		return nil, fmt.Errorf("%w: start job: %v", common.ErrDatabase, err)
	}
	r.log.Debug("extract_job.start.ok", "job_id", job.ID, "format", job.Format)
	return job, nil
}

func (r *extractJobRepo) FinishSuccess(ctx context.Context, jobID uuid.UUID, method string, textBytes int) error {
	res, err := r.db.SQL.ExecContext(ctx, r.db.Rebind(`UPDATE extract_jobs
		SET status = ?, method = ?, text_bytes = ?, finished_at = ?
		WHERE id = ?`),
		string(constants.JobStatusTextOK), method, int64(textBytes), r.now().UTC().UnixMicro(), jobID.String(),
	)
	if err := finished(res, err); err != nil {
		r.log.Error("extract_job.finish_ok.failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Debug("extract_job.finish_ok", "job_id", jobID, "method", method)
	return nil
}

func (r *extractJobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, kind, message string) error {
	res, err := r.db.SQL.ExecContext(ctx, r.db.Rebind(`UPDATE extract_jobs
		SET status = ?, error_kind = ?, error_message = ?, finished_at = ?
		WHERE id = ?`),
		string(constants.JobStatusFailed), kind, message, r.now().UTC().UnixMicro(), jobID.String(),
	)
	if err := finished(res, err); err != nil {
		r.log.Error("extract_job.finish_failed.failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Debug("extract_job.finish_failed", "job_id", jobID, "kind", kind)
	return nil
}

func finished(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("%w: finish job: %v", common.ErrDatabase, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: finish job: %v", common.ErrDatabase, err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *extractJobRepo) Get(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(`SELECT `+jobColumns+` FROM extract_jobs WHERE id = ?`), jobID.String())
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get job: %v", common.ErrDatabase, err)
	}
	return job, nil
}

func (r *extractJobRepo) List(ctx context.Context, from, to time.Time, limit int) ([]entity.ExtractJob, error) {
	q := `SELECT ` + jobColumns + ` FROM extract_jobs WHERE 1 = 1`
	var args []any
	if !from.IsZero() {
		q += ` AND started_at >= ?`
		args = append(args, from.UTC().UnixMicro())
	}
	if !to.IsZero() {
		q += ` AND started_at < ?`
		args = append(args, to.UTC().UnixMicro())
	}
	q += ` ORDER BY started_at, id`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.SQL.QueryContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list jobs: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	out := make([]entity.ExtractJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan job: %v", common.ErrDatabase, err)
		}
		out = append(out, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list jobs: %v", common.ErrDatabase, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*entity.ExtractJob, error) {
	var (
		id                          string
		job                         entity.ExtractJob
		method, errKind, errMessage sql.NullString
		textBytes, finishedAt       sql.NullInt64
		startedAt                   int64
	)
	if err := s.Scan(&id, &job.RequestID, &job.FileName, &job.Format, &job.ContentSHA256,
		&job.SizeBytes, &job.Status, &method, &errKind, &errMessage, &textBytes,
		&startedAt, &finishedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("job id %q: %w", id, err)
	}
	job.ID = parsed
	job.StartedAt = time.UnixMicro(startedAt).UTC()
	if method.Valid {
		job.Method = &method.String
	}
	if errKind.Valid {
		job.ErrorKind = &errKind.String
	}
	if errMessage.Valid {
		job.ErrorMessage = &errMessage.String
	}
	if textBytes.Valid {
		job.TextBytes = &textBytes.Int64
	}
	if finishedAt.Valid {
		t := time.UnixMicro(finishedAt.Int64).UTC()
		job.FinishedAt = &t
	}
	return &job, nil
}
