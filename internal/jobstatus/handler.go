// Package jobstatus answers synchronous job status polls.
package jobstatus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/your-org/assetmanager/internal/httpapi"
	"github.com/your-org/assetmanager/internal/streaming"
	"github.com/your-org/assetmanager/pkg/mediaservice"
	"github.com/your-org/assetmanager/pkg/tracing"
)

const (
	msgInvalidRequest = "Invalid request"
	msgMalformed      = "malformed payload"
	msgMissingJobID   = "Please pass the job ID in the request body."
	msgJobNotFound    = "Job is not found."

	tracerName = "github.com/your-org/assetmanager/internal/jobstatus"
)

// ErrJobNotFound is returned by Check when the service has no such job.
var ErrJobNotFound = errors.New("job not found")

type Request struct {
	JobID string `json:"jobId"`
}

type Params struct {
	Media        mediaservice.Builder
	Resolver     *streaming.Resolver
	Logger       *zap.Logger
	MaxBodyBytes int64
}

type Handler struct {
	media        mediaservice.Builder
	resolver     *streaming.Resolver
	logger       *zap.Logger
	maxBodyBytes int64
}

func NewHandler(p Params) *Handler {
	resolver := p.Resolver
	if resolver == nil {
		resolver = streaming.NewResolver(p.Logger)
	}
	return &Handler{
		media:        p.Media,
		resolver:     resolver,
		logger:       p.Logger,
		maxBodyBytes: p.MaxBodyBytes,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/check-job", h.handleCheckJob)
}

func (h *Handler) handleCheckJob(w http.ResponseWriter, r *http.Request) {
	body := io.Reader(r.Body)
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	payload, err := io.ReadAll(body)
	if err != nil || len(bytes.TrimSpace(payload)) == 0 {
		httpapi.WriteError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, msgMalformed)
		return
	}
	if req.JobID == "" {
		httpapi.WriteError(w, http.StatusBadRequest, msgMissingJobID)
		return
	}

	report, err := h.Check(r.Context(), req.JobID)
	switch {
	case errors.Is(err, ErrJobNotFound):
		h.logger.Info("job is not found", zap.String("job_id", req.JobID))
		httpapi.WriteError(w, http.StatusInternalServerError, msgJobNotFound)
	case err != nil:
		h.logger.Error("check job", zap.String("job_id", req.JobID), zap.Error(err))
		httpapi.WriteError(w, http.StatusInternalServerError, err.Error())
	default:
		httpapi.WriteJSON(w, http.StatusOK, report)
	}
}

// Check reports the job's state. Once the job has stopped running it also
// publishes the output stream and removes the input asset.
func (h *Handler) Check(ctx context.Context, jobID string) (report Report, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "jobstatus.Check", attribute.String("job.id", jobID))
	defer func() { tracing.End(span, err) }()

	api, err := h.media()
	if err != nil {
		return Report{}, fmt.Errorf("build media context: %w", err)
	}

	job, err := api.GetJob(ctx, jobID)
	if errors.Is(err, mediaservice.ErrNotFound) {
		return Report{}, ErrJobNotFound
	}
	if err != nil {
		return Report{}, fmt.Errorf("lookup job: %w", err)
	}
	h.logger.Info("job status", zap.String("job_id", job.ID), zap.Stringer("state", job.State))

	report = NewReport(job)
	if !job.State.Terminal() {
		return report, nil
	}

	res, err := h.resolver.Resolve(ctx, api, job)
	if err != nil {
		return Report{}, err
	}
	report.StreamURL = res.URL
	return report, nil
}
