package ingestion

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/assetmanager/internal/httpapi"
)

func blobCreatedBody(subject, contentType string) string {
	return `[{
		"id": "evt-1",
		"eventType": "Microsoft.Storage.BlobCreated",
		"subject": "` + subject + `",
		"eventTime": "2024-03-01T12:00:00Z",
		"dataVersion": "",
		"data": {
			"api": "PutBlob",
			"contentType": "` + contentType + `",
			"contentLength": 16,
			"blobType": "BlockBlob",
			"url": "https://acct.blob.core.windows.net/assets/video/chapters/original/clip.mp4"
		}
	}]`
}

const clipSubject = "/blobServices/default/containers/assets/blobs/video/chapters/original/clip.mp4"

func postEvents(t *testing.T, f *fixture, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := httpapi.NewRouter(0, NewHTTPHandler(f.service, zap.NewNop(), 1<<20))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/encoder", strings.NewReader(body)))
	return rec
}

func TestHandleSubscriptionValidation(t *testing.T) {
	f := newFixture(t)
	rec := postEvents(t, f, `[{
		"id": "v-1",
		"eventType": "Microsoft.EventGrid.SubscriptionValidationEvent",
		"subject": "",
		"data": {"validationCode": "512d38b6-c7b8-40c8-89fe-f46f9e9622b6"}
	}]`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"validationResponse":"512d38b6-c7b8-40c8-89fe-f46f9e9622b6"}`, rec.Body.String())
	assert.Empty(t, f.fake.Calls)
}

func TestHandleBlobCreated(t *testing.T) {
	f := newFixture(t)
	rec := postEvents(t, f, blobCreatedBody(clipSubject, "video/mp4"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Len(t, f.fake.Submitted, 1)
	assert.Len(t, f.pub.events, 1)
}

func TestHandleIgnoredBlobs(t *testing.T) {
	cases := []struct {
		name        string
		subject     string
		contentType string
	}{
		{name: "wrong content type", subject: clipSubject, contentType: "image/jpeg"},
		{name: "outside ingest path", subject: "/blobServices/default/containers/assets/blobs/thumbs/clip.mp4", contentType: "video/mp4"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			rec := postEvents(t, f, blobCreatedBody(tc.subject, tc.contentType))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Empty(t, f.fake.Calls)
			assert.Empty(t, f.pub.events)
		})
	}
}

func TestHandleUnsupportedEventType(t *testing.T) {
	f := newFixture(t)
	rec := postEvents(t, f, `[{"id":"d-1","eventType":"Microsoft.Storage.BlobDeleted","subject":"`+clipSubject+`","data":{}}]`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.fake.Calls)
}

func TestHandleMalformedPayload(t *testing.T) {
	f := newFixture(t)
	rec := postEvents(t, f, `{"eventType":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid event payload"}`, rec.Body.String())
}

func TestHandleIngestFailure(t *testing.T) {
	f := newFixture(t)
	f.fake.Fail["CreateAsset"] = errors.New("service unavailable")

	rec := postEvents(t, f, blobCreatedBody(clipSubject, "video/mp4"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "create asset")
	assert.Empty(t, f.pub.events)
}
