// Package notification serves the webhook the media service calls on job
// and task state changes.
package notification

import (
	"context"
	"encoding/base64"
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
	finishedState  = "Finished"
	invalidRequest = "Invalid request."

	tracerName = "github.com/your-org/assetmanager/internal/notification"
)

// Params configures the webhook handler. SigningKey is the base64 key the
// endpoint was registered with; it is only needed when VerifySignature is set.
type Params struct {
	Media           mediaservice.Builder
	Resolver        *streaming.Resolver
	Logger          *zap.Logger
	SigningKey      string
	VerifySignature bool
	MaxBodyBytes    int64
}

type Handler struct {
	media        mediaservice.Builder
	resolver     *streaming.Resolver
	logger       *zap.Logger
	key          []byte
	verify       bool
	maxBodyBytes int64
}

func NewHandler(p Params) (*Handler, error) {
	h := &Handler{
		media:        p.Media,
		resolver:     p.Resolver,
		logger:       p.Logger,
		verify:       p.VerifySignature,
		maxBodyBytes: p.MaxBodyBytes,
	}
	if h.resolver == nil {
		h.resolver = streaming.NewResolver(p.Logger)
	}
	if p.VerifySignature {
		key, err := base64.StdEncoding.DecodeString(p.SigningKey)
		if err != nil {
			return nil, fmt.Errorf("decode webhook signing key: %w", err)
		}
		if len(key) == 0 {
			return nil, errors.New("webhook signature verification needs a signing key")
		}
		h.key = key
	}
	return h, nil
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/listen-event", h.handleNotification)
}

func (h *Handler) handleNotification(w http.ResponseWriter, r *http.Request) {
	signature, signed := r.Header[http.CanonicalHeaderKey(SignatureHeader)]

	body := io.Reader(r.Body)
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	payload, err := io.ReadAll(body)
	if err != nil {
		h.logger.Warn("read notification body", zap.Error(err))
		httpapi.WriteJSON(w, http.StatusBadRequest, invalidRequest)
		return
	}
	if !signed || len(payload) == 0 {
		httpapi.WriteJSON(w, http.StatusBadRequest, invalidRequest)
		return
	}
	if h.verify && !VerifySignature(signature[0], payload, h.key) {
		h.logger.Warn("notification signature mismatch")
		httpapi.WriteJSON(w, http.StatusBadRequest, invalidRequest)
		return
	}

	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		h.logger.Warn("decode notification", zap.Error(err))
		httpapi.WriteJSON(w, http.StatusBadRequest, invalidRequest)
		return
	}

	jobID, state := ev.JobID(), ev.NewState()
	h.logger.Info("job state notification",
		zap.String("job_id", jobID),
		zap.String("new_state", state),
		zap.Stringer("event_type", ev.EventType),
	)

	if state == finishedState {
		h.finish(r.Context(), jobID)
	}
	w.WriteHeader(http.StatusOK)
}

// finish publishes the output of a finished job. Failures are logged only;
// the webhook is acknowledged regardless.
func (h *Handler) finish(ctx context.Context, jobID string) {
	var err error
	ctx, span := tracing.Start(ctx, tracerName, "notification.finish", attribute.String("job.id", jobID))
	defer func() { tracing.End(span, err) }()

	api, err := h.media()
	if err != nil {
		h.logger.Error("build media context", zap.Error(err))
		return
	}

	job, err := api.GetJob(ctx, jobID)
	if errors.Is(err, mediaservice.ErrNotFound) {
		err = nil
		h.logger.Info("job not found", zap.String("job_id", jobID))
		return
	}
	if err != nil {
		h.logger.Error("lookup job", zap.String("job_id", jobID), zap.Error(err))
		return
	}

	res, err := h.resolver.Resolve(ctx, api, job)
	if err != nil {
		h.logger.Error("resolve stream url", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	h.logger.Info("job finished",
		zap.String("job_id", jobID),
		zap.String("stream_url", res.URL),
		zap.Bool("input_deleted", res.InputDeleted),
	)
}
