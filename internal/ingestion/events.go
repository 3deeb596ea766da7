package ingestion

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/assetmanager/pkg/eventgrid"
)

const (
	EventTypeSubscriptionValidation = "Microsoft.EventGrid.SubscriptionValidationEvent"
	EventTypeBlobCreated            = "Microsoft.Storage.BlobCreated"
	EventTypeJobStarted             = "MediaService.Assets.JobStartedEvent"

	jobStartedSubject     = "Encoding"
	jobStartedDataVersion = "2.0"
)

// GridEvent is an inbound Event Grid event; Data is decoded per EventType.
type GridEvent struct {
	ID          string          `json:"id"`
	EventType   string          `json:"eventType"`
	Subject     string          `json:"subject"`
	EventTime   time.Time       `json:"eventTime"`
	Data        json.RawMessage `json:"data"`
	DataVersion string          `json:"dataVersion"`
	Topic       string          `json:"topic,omitempty"`
}

type ValidationData struct {
	ValidationCode string `json:"validationCode"`
}

// BlobCreatedData is the payload of Microsoft.Storage.BlobCreated.
type BlobCreatedData struct {
	API           string `json:"api"`
	ContentType   string `json:"contentType"`
	ContentLength int64  `json:"contentLength"`
	BlobType      string `json:"blobType"`
	URL           string `json:"url"`
}

// JobStartedData is the payload of the event emitted after a job is
// submitted.
type JobStartedData struct {
	JobID     string `json:"JobId"`
	EventType string `json:"EventType"`
}

// NewJobStartedEvent builds the outbound event announcing jobID.
func NewJobStartedEvent(jobID string, now time.Time) eventgrid.Event {
	return eventgrid.Event{
		ID:        uuid.NewString(),
		EventType: EventTypeJobStarted,
		Subject:   jobStartedSubject,
		EventTime: now.UTC(),
		Data: JobStartedData{
			JobID:     jobID,
			EventType: EventTypeJobStarted,
		},
		DataVersion: jobStartedDataVersion,
	}
}

// ParseBlobSubject splits "/blobServices/default/containers/{c}/blobs/{key}".
func ParseBlobSubject(subject string) (container, key string, ok bool) {
	const (
		containersSeg = "/containers/"
		blobsSeg      = "/blobs/"
	)
	i := strings.Index(subject, containersSeg)
	if i < 0 {
		return "", "", false
	}
	rest := subject[i+len(containersSeg):]
	j := strings.Index(rest, blobsSeg)
	if j <= 0 {
		return "", "", false
	}
	container, key = rest[:j], rest[j+len(blobsSeg):]
	if key == "" {
		return "", "", false
	}
	return container, key, true
}
