package ingestion

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/your-org/assetmanager/internal/httpapi"
)

// HTTPHandler receives Event Grid deliveries for new source blobs.
type HTTPHandler struct {
	service      *Service
	logger       *zap.Logger
	maxBodyBytes int64
}

// NewHTTPHandler constructs the HTTP handler.
func NewHTTPHandler(service *Service, logger *zap.Logger, maxBodyBytes int64) *HTTPHandler {
	return &HTTPHandler{
		service:      service,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

func (h *HTTPHandler) Register(r chi.Router) {
	r.Post("/api/encoder", h.handleEvents)
}

func (h *HTTPHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	var events []GridEvent
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		h.logger.Warn("decode event grid payload", zap.Error(err))
		httpapi.WriteError(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	for _, ev := range events {
		switch ev.EventType {
		case EventTypeSubscriptionValidation:
			var data ValidationData
			if err := json.Unmarshal(ev.Data, &data); err != nil || data.ValidationCode == "" {
				httpapi.WriteError(w, http.StatusBadRequest, "invalid validation event")
				return
			}
			h.logger.Info("event grid subscription validated", zap.String("event_id", ev.ID))
			httpapi.WriteJSON(w, http.StatusOK, map[string]string{"validationResponse": data.ValidationCode})
			return

		case EventTypeBlobCreated:
			var data BlobCreatedData
			if err := json.Unmarshal(ev.Data, &data); err != nil {
				httpapi.WriteError(w, http.StatusBadRequest, "invalid blob event data")
				return
			}
			blob, ok := h.service.BlobFromSubject(ev.Subject, data.ContentType)
			if !ok {
				h.logger.Debug("ignoring blob outside ingest path", zap.String("subject", ev.Subject))
				continue
			}
			res, err := h.service.Ingest(r.Context(), blob)
			if err != nil {
				h.logger.Error("ingest failed", zap.String("event_id", ev.ID), zap.String("blob", blob.Name), zap.Error(err))
				httpapi.WriteError(w, http.StatusInternalServerError, err.Error())
				return
			}
			if res.JobID != "" {
				h.logger.Info("blob ingested", zap.String("asset_id", res.AssetID), zap.String("job_id", res.JobID))
			}

		default:
			h.logger.Debug("ignoring unsupported event type", zap.String("event_type", ev.EventType))
		}
	}

	w.WriteHeader(http.StatusOK)
}
