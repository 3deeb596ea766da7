package ingestion

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/assetmanager/pkg/eventgrid"
	"github.com/your-org/assetmanager/pkg/kafka"
	"github.com/your-org/assetmanager/pkg/mediaservice"
	"github.com/your-org/assetmanager/pkg/mediaservice/mediaservicetest"
	"github.com/your-org/assetmanager/pkg/storage/objectstore"
)

const (
	sourceContainer = "assets"
	sourceKey       = "video/chapters/original/clip.mp4"
)

type memStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	types      map[string]string
	containers map[string]bool
	putErr     error
	closed     bool
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, types: map[string]string{}, containers: map[string]bool{}}
}

func (m *memStore) add(container, key, contentType string, data []byte) {
	m.objects[container+"/"+key] = data
	m.types[container+"/"+key] = contentType
}

func (m *memStore) Open(_ context.Context, container, key string) (*objectstore.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[container+"/"+key]
	if !ok {
		return nil, objectstore.ErrObjectNotFound
	}
	return &objectstore.Object{
		Body:        io.NopCloser(bytes.NewReader(data)),
		Size:        int64(len(data)),
		ContentType: m.types[container+"/"+key],
	}, nil
}

func (m *memStore) EnsureContainer(_ context.Context, container string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.containers[container] = true
	return nil
}

func (m *memStore) Put(_ context.Context, container, key string, reader io.Reader, _ int64, opts objectstore.PutOptions) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.add(container, key, opts.ContentType, data)
	return nil
}

func (m *memStore) Close() error {
	m.closed = true
	return nil
}

type capturePublisher struct {
	events []eventgrid.Event
	err    error
	closed bool
}

func (p *capturePublisher) Publish(_ context.Context, event eventgrid.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close(context.Context) error {
	p.closed = true
	return nil
}

type fixture struct {
	fake    *mediaservicetest.Fake
	store   *memStore
	pub     *capturePublisher
	service *Service
	payload []byte
}

func testSettings() Settings {
	return Settings{
		PathPrefix:         "assets/video/chapters/original/",
		ContentType:        "video/mp4",
		WebhookName:        "EncodingWebHook",
		WebhookURL:         "https://hooks.example.net/api/listen-event",
		WebhookKey:         base64.StdEncoding.EncodeToString([]byte("signing-key")),
		MediaProcessor:     "Media Encoder Standard",
		Preset:             "Adaptive Streaming",
		DeletePreviousJobs: true,
		WriteLocatorTTL:    4 * time.Hour,
		PublishTimeout:     time.Second,
	}
}

func newFixture(t *testing.T, mutate ...func(*Settings)) *fixture {
	t.Helper()
	settings := testSettings()
	for _, m := range mutate {
		m(&settings)
	}

	f := &fixture{
		fake:    mediaservicetest.New(),
		store:   newMemStore(),
		pub:     &capturePublisher{},
		payload: []byte("fake mp4 payload"),
	}
	f.fake.Processors = []mediaservice.MediaProcessor{
		{ID: "nb:mpid:UUID:old", Name: "Media Encoder Standard", Version: "4.7"},
		{ID: "nb:mpid:UUID:new", Name: "Media Encoder Standard", Version: "4.10"},
		{ID: "nb:mpid:UUID:other", Name: "Media Encoder Premium Workflow", Version: "9.0"},
	}
	f.store.add(sourceContainer, sourceKey, "video/mp4", f.payload)
	f.service = NewService(Params{
		Store:     f.store,
		Publisher: f.pub,
		Media:     f.fake.Builder(),
		Logger:    zap.NewNop(),
		Settings:  settings,
	})
	return f
}

func (f *fixture) blob(contentType string) Blob {
	return Blob{Container: sourceContainer, Key: sourceKey, Name: "clip.mp4", ContentType: contentType}
}

func TestIngestSubmitsJobAndPublishesEvent(t *testing.T) {
	f := newFixture(t)
	f.fake.AddJob(mediaservice.Job{ID: "finished-job", State: mediaservice.JobStateFinished})
	f.fake.AddJob(mediaservice.Job{ID: "running-job", State: mediaservice.JobStateProcessing})

	res, err := f.service.Ingest(context.Background(), f.blob("video/mp4"))
	require.NoError(t, err)
	require.NotEmpty(t, res.JobID)
	assert.False(t, res.Skipped)

	// endpoint registered on first use
	require.Len(t, f.fake.EndPoints, 1)
	var endpoint mediaservice.NotificationEndPoint
	for _, e := range f.fake.EndPoints {
		endpoint = e
	}
	assert.Equal(t, "EncodingWebHook", endpoint.Name)
	assert.Equal(t, mediaservice.EndPointTypeWebHook, endpoint.Type)
	assert.Equal(t, "https://hooks.example.net/api/listen-event", endpoint.Address)

	// blob copied into the locator's container and registered as primary file
	assert.Equal(t, f.payload, f.store.objects["asset-container/clip.mp4"])
	assert.True(t, f.store.containers["asset-container"])
	files := f.fake.Files[res.AssetID]
	require.Len(t, files, 1)
	assert.Equal(t, "clip.mp4", files[0].Name)
	assert.True(t, files[0].IsPrimary)
	assert.Equal(t, int64(len(f.payload)), files[0].ContentFileSize)

	// write locator and policy are gone
	require.Len(t, f.fake.CreatedPolicy, 1)
	assert.Equal(t, "writePolicy", f.fake.CreatedPolicy[0].Name)
	assert.Equal(t, 4*time.Hour, f.fake.CreatedPolicy[0].Duration)
	assert.Equal(t, mediaservice.PermissionWrite, f.fake.CreatedPolicy[0].Permissions)
	assert.Empty(t, f.fake.Locators)
	assert.Empty(t, f.fake.Policies)

	// previous finished jobs removed, others kept
	assert.NotContains(t, f.fake.Jobs, "finished-job")
	assert.Contains(t, f.fake.Jobs, "running-job")

	require.Len(t, f.fake.Submitted, 1)
	spec := f.fake.Submitted[0]
	assert.Equal(t, "Encoding Job for - clip.mp4", spec.Name)
	assert.Equal(t, "Encode with Adaptive Streaming", spec.TaskName)
	assert.Equal(t, "nb:mpid:UUID:new", spec.ProcessorID)
	assert.Equal(t, "Adaptive Streaming", spec.Configuration)
	assert.Equal(t, res.AssetID, spec.InputAssetID)
	assert.Equal(t, "clip.mp4", spec.OutputAssetName)
	assert.Equal(t, endpoint.ID, spec.NotificationID)
	assert.Equal(t, mediaservice.NotifyAll, spec.NotifyOn)
	assert.True(t, spec.IncludeProgress)

	require.Len(t, f.pub.events, 1)
	ev := f.pub.events[0]
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, EventTypeJobStarted, ev.EventType)
	assert.Equal(t, "Encoding", ev.Subject)
	assert.Equal(t, "2.0", ev.DataVersion)
	assert.Equal(t, time.UTC, ev.EventTime.Location())
	assert.Equal(t, JobStartedData{JobID: res.JobID, EventType: EventTypeJobStarted}, ev.Data)
}

func TestIngestIgnoresOtherContentTypes(t *testing.T) {
	f := newFixture(t)
	built := 0
	f.service.media = func() (mediaservice.API, error) {
		built++
		return f.fake, nil
	}

	for _, ct := range []string{"image/png", "video/MP4", "", "video/mp4; codecs=avc1"} {
		res, err := f.service.Ingest(context.Background(), f.blob(ct))
		require.NoError(t, err, ct)
		assert.True(t, res.Skipped, ct)
	}
	assert.Zero(t, built)
	assert.Empty(t, f.fake.Calls)
	assert.Empty(t, f.pub.events)
	assert.Len(t, f.store.objects, 1)
}

func TestIngestReusesRegisteredEndPoint(t *testing.T) {
	f := newFixture(t)
	f.fake.EndPoints["nep-1"] = mediaservice.NotificationEndPoint{ID: "nep-1", Name: "EncodingWebHook"}

	_, err := f.service.Ingest(context.Background(), f.blob("video/mp4"))
	require.NoError(t, err)
	assert.Zero(t, f.fake.Called("CreateNotificationEndPoint"))
	require.Len(t, f.fake.Submitted, 1)
	assert.Equal(t, "nep-1", f.fake.Submitted[0].NotificationID)
}

func TestIngestRejectsUndecodableWebhookKey(t *testing.T) {
	f := newFixture(t, func(s *Settings) { s.WebhookKey = "not base64!" })

	_, err := f.service.Ingest(context.Background(), f.blob("video/mp4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode webhook key")
	assert.Zero(t, f.fake.Called("CreateAsset"))
}

func TestIngestCleansUpWriteLocatorWhenCopyFails(t *testing.T) {
	f := newFixture(t)
	f.store.putErr = errors.New("disk full")

	_, err := f.service.Ingest(context.Background(), f.blob("video/mp4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	assert.Equal(t, 1, f.fake.Called("DeleteLocator"))
	assert.Equal(t, 1, f.fake.Called("DeleteAccessPolicy"))
	assert.Empty(t, f.fake.Locators)
	assert.Empty(t, f.fake.Policies)
	assert.Zero(t, f.fake.Called("SubmitJob"))
	assert.Empty(t, f.pub.events)
}

func TestIngestMissingSourceBlob(t *testing.T) {
	f := newFixture(t)
	blob := f.blob("video/mp4")
	blob.Key = "video/chapters/original/missing.mp4"

	_, err := f.service.Ingest(context.Background(), blob)
	require.ErrorIs(t, err, objectstore.ErrObjectNotFound)
	assert.Empty(t, f.fake.Locators)
}

func TestIngestWithoutProcessorCreatesNoJob(t *testing.T) {
	f := newFixture(t)
	f.fake.Processors = nil

	res, err := f.service.Ingest(context.Background(), f.blob("video/mp4"))
	require.NoError(t, err)
	assert.NotEmpty(t, res.AssetID)
	assert.Empty(t, res.JobID)
	assert.Zero(t, f.fake.Called("SubmitJob"))
	assert.Empty(t, f.pub.events)
}

func TestIngestKeepsFinishedJobsWhenDisabled(t *testing.T) {
	f := newFixture(t, func(s *Settings) { s.DeletePreviousJobs = false })
	f.fake.AddJob(mediaservice.Job{ID: "finished-job", State: mediaservice.JobStateFinished})

	_, err := f.service.Ingest(context.Background(), f.blob("video/mp4"))
	require.NoError(t, err)
	assert.Contains(t, f.fake.Jobs, "finished-job")
	assert.Zero(t, f.fake.Called("ListJobs"))
}

func TestIngestSubmitFailurePublishesNothing(t *testing.T) {
	f := newFixture(t)
	f.fake.Fail["SubmitJob"] = errors.New("quota exceeded")

	_, err := f.service.Ingest(context.Background(), f.blob("video/mp4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "submit job")
	assert.Empty(t, f.pub.events)
}

func TestIngestPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("topic unavailable")

	res, err := f.service.Ingest(context.Background(), f.blob("video/mp4"))
	require.Error(t, err)
	assert.NotEmpty(t, res.JobID)
	assert.Contains(t, err.Error(), "publish job started event")
}

func TestServiceClose(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.service.Close(context.Background()))
	assert.True(t, f.pub.closed)
	assert.True(t, f.store.closed)
}

func TestContainerFromLocator(t *testing.T) {
	cases := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{path: "https://acct.blob.core.windows.net/asset-1234?sv=2017&sig=x", want: "asset-1234"},
		{path: "https://acct.blob.core.windows.net/asset-1234/clip.mp4", want: "asset-1234"},
		{path: "https://acct.blob.core.windows.net/", wantErr: true},
		{path: "://bad", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ContainerFromLocator(tc.path)
		if tc.wantErr {
			assert.Error(t, err, tc.path)
			continue
		}
		require.NoError(t, err, tc.path)
		assert.Equal(t, tc.want, got)
	}
}

func TestBlobFromSubject(t *testing.T) {
	f := newFixture(t)

	blob, ok := f.service.BlobFromSubject("/blobServices/default/containers/assets/blobs/video/chapters/original/intro.mp4", "video/mp4")
	require.True(t, ok)
	assert.Equal(t, Blob{Container: "assets", Key: "video/chapters/original/intro.mp4", Name: "intro.mp4", ContentType: "video/mp4"}, blob)

	for _, subject := range []string{
		"/blobServices/default/containers/assets/blobs/video/chapters/encoded/intro.mp4",
		"/blobServices/default/containers/other/blobs/video/chapters/original/intro.mp4",
		"/blobServices/default/containers/assets/blobs/video/chapters/original/",
		"/blobServices/default/containers/assets",
	} {
		_, ok := f.service.BlobFromSubject(subject, "video/mp4")
		assert.False(t, ok, subject)
	}
}

type captureWriter struct {
	msgs []kafkago.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestKafkaPublisherKeysByJobID(t *testing.T) {
	w := &captureWriter{}
	pub := NewKafkaPublisher(kafka.NewProducerWithWriter(w))

	ev := NewJobStartedEvent("nb:jid:UUID:1", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, pub.Publish(context.Background(), ev))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "nb:jid:UUID:1", string(msg.Key))
	assert.Contains(t, string(msg.Value), `"JobId":"nb:jid:UUID:1"`)
	assert.Contains(t, string(msg.Value), `"eventType":"MediaService.Assets.JobStartedEvent"`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_id", msg.Headers[0].Key)
	assert.Equal(t, "event_type", msg.Headers[1].Key)
	assert.Equal(t, EventTypeJobStarted, string(msg.Headers[1].Value))
}

type captureSender struct {
	batches [][]eventgrid.Event
}

func (s *captureSender) PublishEvents(_ context.Context, events []eventgrid.Event) error {
	s.batches = append(s.batches, events)
	return nil
}

func TestGridPublisherSendsSingleEventBatch(t *testing.T) {
	s := &captureSender{}
	pub := NewGridPublisher(s)

	ev := NewJobStartedEvent("job-1", time.Now())
	require.NoError(t, pub.Publish(context.Background(), ev))
	require.Len(t, s.batches, 1)
	assert.Equal(t, []eventgrid.Event{ev}, s.batches[0])
}
