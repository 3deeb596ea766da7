package jobstatus

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/assetmanager/internal/httpapi"
	"github.com/your-org/assetmanager/pkg/mediaservice"
	"github.com/your-org/assetmanager/pkg/mediaservice/mediaservicetest"
)

func checkJob(t *testing.T, fake *mediaservicetest.Fake, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewHandler(Params{Media: fake.Builder(), Logger: zap.NewNop(), MaxBodyBytes: 1 << 20})
	rec := httptest.NewRecorder()
	httpapi.NewRouter(0, h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/check-job", strings.NewReader(body)))
	return rec
}

func decodeReport(t *testing.T, rec *httptest.ResponseRecorder) Report {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var r Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	return r
}

func TestCheckRunningJob(t *testing.T) {
	fake := mediaservicetest.New()
	job := fake.AddJob(mediaservice.Job{
		ID:    "nb:jid:UUID:1",
		State: mediaservice.JobStateProcessing,
		Tasks: []mediaservice.Task{{Name: "Encode", Progress: 42}},
	}, "clip.ism")

	r := decodeReport(t, checkJob(t, fake, `{"jobId":"nb:jid:UUID:1"}`))
	assert.Equal(t, "Processing", r.JobState)
	assert.Equal(t, "true", r.IsRunning)
	assert.Equal(t, "false", r.IsSuccessful)
	assert.Equal(t, 42.0, r.Progress)
	assert.Empty(t, r.StreamURL)
	assert.Zero(t, fake.Called("CreateLocator"))
	assert.Contains(t, fake.Assets, job.InputAssetIDs[0])
}

func TestCheckFinishedJobResolvesStream(t *testing.T) {
	fake := mediaservicetest.New()
	fake.LocatorPath = "https://origin.example.net/loc/"
	job := fake.AddJob(mediaservice.Job{ID: "job-1", State: mediaservice.JobStateFinished}, "clip.mp4", "clip.ism")

	rec := checkJob(t, fake, `{"jobId":"job-1"}`)
	r := decodeReport(t, rec)
	assert.Equal(t, "Finished", r.JobState)
	assert.Equal(t, "false", r.IsRunning)
	assert.Equal(t, "true", r.IsSuccessful)
	assert.Equal(t, "https://origin.example.net/loc/clip.ism/manifest(format=m3u8-aapl)", r.StreamURL)
	assert.NotContains(t, fake.Assets, job.InputAssetIDs[0])

	// a second poll after the input is gone still succeeds
	r = decodeReport(t, checkJob(t, fake, `{"jobId":"job-1"}`))
	assert.NotEmpty(t, r.StreamURL)
}

func TestCheckFailedJobWithoutManifest(t *testing.T) {
	fake := mediaservicetest.New()
	job := fake.AddJob(mediaservice.Job{
		ID:    "job-1",
		State: mediaservice.JobStateError,
		Tasks: []mediaservice.Task{{Name: "Encode", ErrorDetails: []mediaservice.ErrorDetail{{Message: "unsupported codec"}}}},
	})

	r := decodeReport(t, checkJob(t, fake, `{"jobId":"job-1"}`))
	assert.Equal(t, "Error", r.JobState)
	assert.Equal(t, "Encode : unsupported codec\n", r.ErrorText)
	assert.Equal(t, "false", r.IsRunning)
	assert.Equal(t, "false", r.IsSuccessful)
	assert.Empty(t, r.StreamURL)
	assert.Contains(t, fake.Assets, job.InputAssetIDs[0])
}

func TestCheckResponseShape(t *testing.T) {
	fake := mediaservicetest.New()
	fake.AddJob(mediaservice.Job{ID: "job-1", State: mediaservice.JobStateQueued})

	rec := checkJob(t, fake, `{"jobId":"job-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"jobState": "Queued",
		"errorText": "",
		"startTime": "",
		"endTime": "",
		"runningDuration": "",
		"isRunning": "true",
		"isSuccessful": "false",
		"progress": 0,
		"streamURL": ""
	}`, rec.Body.String())
}

func TestCheckUnknownJob(t *testing.T) {
	fake := mediaservicetest.New()
	rec := checkJob(t, fake, `{"jobId":"nb:jid:UUID:missing"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Job is not found."}`, rec.Body.String())
}

func TestCheckUpstreamFailure(t *testing.T) {
	fake := mediaservicetest.New()
	fake.Fail["GetJob"] = errors.New("token expired")
	rec := checkJob(t, fake, `{"jobId":"job-1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"lookup job: token expired"}`, rec.Body.String())
}

func TestCheckMediaContextFailure(t *testing.T) {
	h := NewHandler(Params{
		Media:  func() (mediaservice.API, error) { return nil, errors.New("invalid client secret") },
		Logger: zap.NewNop(),
	})
	rec := httptest.NewRecorder()
	httpapi.NewRouter(0, h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/check-job", strings.NewReader(`{"jobId":"job-1"}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid client secret")
}

func TestCheckBadRequests(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "empty", body: "", want: "Invalid request"},
		{name: "whitespace", body: "  \n", want: "Invalid request"},
		{name: "malformed", body: `{"jobId":`, want: "malformed payload"},
		{name: "wrong type", body: `{"jobId":42}`, want: "malformed payload"},
		{name: "missing id", body: `{}`, want: "Please pass the job ID in the request body."},
		{name: "empty id", body: `{"jobId":""}`, want: "Please pass the job ID in the request body."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := mediaservicetest.New()
			rec := checkJob(t, fake, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"`+tc.want+`"}`, rec.Body.String())
			assert.Empty(t, fake.Calls)
		})
	}
}
