package entity

import (
	"time"

	"github.com/google/uuid"
)

// ExtractJob is one row of the extraction log.
type ExtractJob struct {
	ID            uuid.UUID  `json:"id"`
	RequestID     string     `json:"request_id,omitempty"`
	FileName      string     `json:"file_name"`
	Format        string     `json:"format"`
	ContentSHA256 string     `json:"content_sha256,omitempty"`
	SizeBytes     int64      `json:"size_bytes"`
	Status        string     `json:"status"`
	Method        *string    `json:"method,omitempty"`
	ErrorKind     *string    `json:"error_kind,omitempty"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	TextBytes     *int64     `json:"text_bytes,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// Duration is zero while the job is still running.
func (j ExtractJob) Duration() time.Duration {
	if j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}
