package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/doctext/internal/async"
	"github.com/joseph-ayodele/doctext/internal/common"
	"github.com/joseph-ayodele/doctext/internal/export"
	"github.com/joseph-ayodele/doctext/internal/pipeline"
	"github.com/joseph-ayodele/doctext/internal/repository"
)

const (
	multipartMemory   = 8 << 20
	maxExportBodySize = 16 << 10
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Submitter hands an extraction to the worker pool and waits for its outcome.
type Submitter interface {
	Submit(ctx context.Context, req pipeline.Request) (pipeline.Outcome, error)
}

// Server is the HTTP surface of the extraction service. Jobs and Export are
// optional; their endpoints answer 503 when nil.
type Server struct {
	queue          Submitter
	jobs           repository.ExtractJobRepository
	export         *export.Service
	logger         *slog.Logger
	maxUploadBytes int64
	exportSchema   *jsonschema.Schema
}

type Options struct {
	Queue          Submitter
	Jobs           repository.ExtractJobRepository
	Export         *export.Service
	MaxUploadBytes int64
	Logger         *slog.Logger
}

func NewServer(opts Options) (*Server, error) {
	if opts.Queue == nil {
		return nil, errors.New("server: queue is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	schema, err := compileSchema("export_request.json", exportRequestSchema)
	if err != nil {
		return nil, err
	}
	return &Server{
		queue:          opts.Queue,
		jobs:           opts.Jobs,
		export:         opts.Export,
		logger:         opts.Logger,
		maxUploadBytes: opts.MaxUploadBytes,
		exportSchema:   schema,
	}, nil
}

// Handler returns the routed handler wrapped with request-ID middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /extract_text", s.handleExtract)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("POST /jobs/export", s.handleExport)
	return withRequestContext(s.logger, mux)
}

// NewHTTPServer applies read/write/idle timeouts. writeTimeout must cover a
// full decode plus queueing.
func NewHTTPServer(addr string, h http.Handler, writeTimeout time.Duration) *http.Server {
	if writeTimeout <= 0 {
		writeTimeout = 90 * time.Second
	}
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Microservice is running"})
}

type extractResponse struct {
	Status   string `json:"status"`
	FileName string `json:"filename"`
	Format   string `json:"format"`
	Text     string `json:"text"`
	JobID    string `json:"job_id,omitempty"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	logger := common.LoggerFromContext(r.Context(), s.logger)
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, string(common.KindInvalidInput),
				fmt.Sprintf("File exceeds the %d byte upload limit", s.maxUploadBytes))
			return
		}
		logger.Warn("http.extract.bad_form", "err", err)
		writeError(w, http.StatusBadRequest, string(common.KindInvalidInput), "No file provided")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		// a part named "file" with an empty filename is parsed as a plain value
		if _, ok := r.MultipartForm.Value["file"]; ok {
			writeError(w, http.StatusBadRequest, string(common.KindInvalidInput), "Empty filename")
			return
		}
		writeError(w, http.StatusBadRequest, string(common.KindInvalidInput), "No file provided")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, string(common.KindInvalidInput), "Empty filename")
		return
	}

	out, err := s.queue.Submit(r.Context(), pipeline.Request{FileName: header.Filename, Content: file})
	if err != nil {
		logger.Warn("http.extract.unavailable", "err", err)
		writeError(w, http.StatusServiceUnavailable, "", "Service is busy, try again later")
		return
	}

	if out.Failure != nil {
		status := http.StatusInternalServerError
		if out.Failure.Kind.ClientFault() {
			status = http.StatusBadRequest
		}
		writeError(w, status, string(out.Failure.Kind), out.Failure.Detail)
		return
	}

	resp := extractResponse{
		Status:   "success",
		FileName: header.Filename,
		Format:   out.Format.Ext(),
		Text:     out.Text,
	}
	if out.JobID != uuid.Nil {
		resp.JobID = out.JobID.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "", "Job store is not configured")
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if v := common.NewValidator().Field("id", id, common.Required, common.UUID); v.HasErrors() {
		writeError(w, http.StatusBadRequest, string(common.KindInvalidInput), "job id must be a UUID")
		return
	}
	jobID := uuid.MustParse(id)

	job, err := s.jobs.Get(r.Context(), jobID)
	if errors.Is(err, common.ErrNotFound) {
		writeError(w, http.StatusNotFound, "", "Job not found")
		return
	}
	if err != nil {
		common.LoggerFromContext(r.Context(), s.logger).Error("http.jobs.get.failed", "job_id", jobID, "err", err)
		writeError(w, http.StatusInternalServerError, string(common.KindInternal), "Could not load job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type exportRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	logger := common.LoggerFromContext(r.Context(), s.logger)
	if s.export == nil {
		writeError(w, http.StatusServiceUnavailable, "", "Job store is not configured")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxExportBodySize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, string(common.KindInvalidInput), "Request body too large")
		return
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}
	if err := validateJSON(s.exportSchema, body); err != nil {
		writeError(w, http.StatusBadRequest, string(common.KindInvalidInput), err.Error())
		return
	}

	var req exportRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(common.KindInvalidInput), "invalid JSON")
		return
	}
	from, err := parseDate(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(common.KindInvalidInput), "from must be YYYY-MM-DD")
		return
	}
	to, err := parseDate(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(common.KindInvalidInput), "to must be YYYY-MM-DD")
		return
	}
	if from != nil && to != nil && from.After(*to) {
		writeError(w, http.StatusBadRequest, string(common.KindInvalidInput), "from must not be after to")
		return
	}

	xlsx, err := s.export.ExportJobsXLSX(r.Context(), from, to)
	if err != nil {
		logger.Error("export.xlsx.failed", "err", err)
		writeError(w, http.StatusInternalServerError, string(common.KindInternal), "Export failed")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="extract-jobs.xlsx"`)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(xlsx); err != nil {
		logger.Warn("export.xlsx.write_failed", "err", err)
	}
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large")
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

var _ Submitter = (*async.ProcessorQueue)(nil)
