package ingestion

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/your-org/assetmanager/pkg/mediaservice"
	"github.com/your-org/assetmanager/pkg/storage/objectstore"
	"github.com/your-org/assetmanager/pkg/tracing"
)

const (
	writePolicyName = "writePolicy"
	jobNamePrefix   = "Encoding Job for - "
	taskName        = "Encode with Adaptive Streaming"

	tracerName = "github.com/your-org/assetmanager/internal/ingestion"
)

// Settings carries the static configuration of the ingest flow.
type Settings struct {
	PathPrefix         string
	ContentType        string
	WebhookName        string
	WebhookURL         string
	WebhookKey         string
	MediaProcessor     string
	Preset             string
	DeletePreviousJobs bool
	WriteLocatorTTL    time.Duration
	PublishTimeout     time.Duration
}

// Service copies new source blobs into media assets and submits encoding
// jobs for them.
type Service struct {
	store     objectstore.Client
	publisher Publisher
	media     mediaservice.Builder
	logger    *zap.Logger
	settings  Settings
	now       func() time.Time
}

type Params struct {
	Store     objectstore.Client
	Publisher Publisher
	Media     mediaservice.Builder
	Logger    *zap.Logger
	Settings  Settings
}

// Blob identifies a source blob that just arrived. Name is the part of the
// path after the ingest prefix and names both the asset and the output.
type Blob struct {
	Container   string
	Key         string
	Name        string
	ContentType string
}

// Result reports what Ingest did. Skipped is set when the blob was ignored.
type Result struct {
	Skipped bool
	AssetID string
	JobID   string
}

// NewService constructs an ingestion Service.
func NewService(p Params) *Service {
	pub := p.Publisher
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Service{
		store:     p.Store,
		publisher: pub,
		media:     p.Media,
		logger:    p.Logger,
		settings:  p.Settings,
		now:       time.Now,
	}
}

// BlobFromSubject maps an Event Grid blob subject onto a Blob under the
// ingest prefix.
func (s *Service) BlobFromSubject(subject, contentType string) (Blob, bool) {
	container, key, ok := ParseBlobSubject(subject)
	if !ok {
		return Blob{}, false
	}
	name, ok := strings.CutPrefix(container+"/"+key, s.settings.PathPrefix)
	if !ok || name == "" {
		return Blob{}, false
	}
	return Blob{Container: container, Key: key, Name: name, ContentType: contentType}, true
}

// Ingest runs the full flow for one blob. Any error aborts the flow; work
// already done is not rolled back.
func (s *Service) Ingest(ctx context.Context, blob Blob) (res Result, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "ingestion.Ingest",
		attribute.String("blob.container", blob.Container),
		attribute.String("blob.key", blob.Key),
	)
	defer func() { tracing.End(span, err) }()

	log := s.logger.With(zap.String("blob", blob.Name), zap.String("content_type", blob.ContentType))
	if blob.ContentType != s.settings.ContentType {
		log.Info("ignoring blob with unsupported content type")
		return Result{Skipped: true}, nil
	}
	log.Info("valid content type, starting to encode")

	api, err := s.media()
	if err != nil {
		return Result{}, fmt.Errorf("build media context: %w", err)
	}

	endpoint, err := s.ensureEndPoint(ctx, api)
	if err != nil {
		return Result{}, err
	}

	asset, err := s.createAsset(ctx, api, blob)
	if err != nil {
		return Result{}, err
	}
	res.AssetID = asset.ID

	job, submitted, err := s.createJob(ctx, api, blob.Name, asset, endpoint)
	if err != nil {
		return res, err
	}
	if !submitted {
		return res, nil
	}
	res.JobID = job.ID

	if err := s.publishJobStarted(ctx, job.ID); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Service) ensureEndPoint(ctx context.Context, api mediaservice.API) (mediaservice.NotificationEndPoint, error) {
	endpoint, err := api.FindNotificationEndPoint(ctx, s.settings.WebhookName)
	if err == nil {
		s.logger.Debug("notification endpoint already registered", zap.String("endpoint_id", endpoint.ID))
		return endpoint, nil
	}
	if !errors.Is(err, mediaservice.ErrNotFound) {
		return mediaservice.NotificationEndPoint{}, fmt.Errorf("find notification endpoint: %w", err)
	}

	key, err := base64.StdEncoding.DecodeString(s.settings.WebhookKey)
	if err != nil {
		return mediaservice.NotificationEndPoint{}, fmt.Errorf("decode webhook key: %w", err)
	}
	endpoint, err = api.CreateNotificationEndPoint(ctx, mediaservice.NotificationEndPointSpec{
		Name:       s.settings.WebhookName,
		Type:       mediaservice.EndPointTypeWebHook,
		Address:    s.settings.WebhookURL,
		SigningKey: key,
	})
	if err != nil {
		return mediaservice.NotificationEndPoint{}, fmt.Errorf("create notification endpoint: %w", err)
	}
	s.logger.Info("notification endpoint created", zap.String("endpoint_id", endpoint.ID))
	return endpoint, nil
}

// createAsset registers a new asset and copies the source blob into its
// container through a short-lived write locator. The locator and its policy
// are removed whether or not the copy succeeds.
func (s *Service) createAsset(ctx context.Context, api mediaservice.API, blob Blob) (_ mediaservice.Asset, err error) {
	asset, err := api.CreateAsset(ctx, blob.Name)
	if err != nil {
		return mediaservice.Asset{}, fmt.Errorf("create asset: %w", err)
	}
	s.logger.Info("asset created", zap.String("asset_id", asset.ID), zap.String("asset_name", asset.Name))

	policy, err := api.CreateAccessPolicy(ctx, writePolicyName, s.settings.WriteLocatorTTL, mediaservice.PermissionWrite)
	if err != nil {
		return mediaservice.Asset{}, fmt.Errorf("create write policy: %w", err)
	}
	defer func() {
		if derr := api.DeleteAccessPolicy(ctx, policy.ID); derr != nil {
			err = errors.Join(err, fmt.Errorf("delete write policy: %w", derr))
		}
	}()

	locator, err := api.CreateLocator(ctx, mediaservice.LocatorTypeSAS, asset.ID, policy.ID)
	if err != nil {
		return mediaservice.Asset{}, fmt.Errorf("create write locator: %w", err)
	}
	defer func() {
		if derr := api.DeleteLocator(ctx, locator.ID); derr != nil {
			err = errors.Join(err, fmt.Errorf("delete write locator: %w", derr))
		}
	}()

	container, err := ContainerFromLocator(locator.Path)
	if err != nil {
		return mediaservice.Asset{}, err
	}

	size, err := s.copyBlob(ctx, blob, container)
	if err != nil {
		s.logger.Error("copy failed", zap.String("asset_id", asset.ID), zap.Error(err))
		return mediaservice.Asset{}, err
	}
	s.logger.Info("copy complete", zap.String("container", container), zap.Int64("size", size))

	file, err := api.CreateAssetFile(ctx, mediaservice.AssetFile{
		Name:          blob.Name,
		ParentAssetID: asset.ID,
		MimeType:      blob.ContentType,
	})
	if err != nil {
		return mediaservice.Asset{}, fmt.Errorf("create asset file: %w", err)
	}
	file.ContentFileSize = size
	file.IsPrimary = true
	if err := api.UpdateAssetFile(ctx, file); err != nil {
		return mediaservice.Asset{}, fmt.Errorf("update asset file: %w", err)
	}
	return asset, nil
}

func (s *Service) copyBlob(ctx context.Context, blob Blob, container string) (int64, error) {
	if err := s.store.EnsureContainer(ctx, container); err != nil {
		// The service normally creates the container with the asset.
		s.logger.Warn("ensure asset container", zap.String("container", container), zap.Error(err))
	}

	src, err := s.store.Open(ctx, blob.Container, blob.Key)
	if err != nil {
		return 0, fmt.Errorf("open source blob: %w", err)
	}
	defer src.Body.Close()

	if err := s.store.Put(ctx, container, blob.Name, src.Body, src.Size, objectstore.PutOptions{
		ContentType: blob.ContentType,
	}); err != nil {
		return 0, fmt.Errorf("copy blob: %w", err)
	}
	return src.Size, nil
}

// createJob submits the encoding job. It reports false without error when
// no processor with the configured name exists.
func (s *Service) createJob(ctx context.Context, api mediaservice.API, name string, input mediaservice.Asset, endpoint mediaservice.NotificationEndPoint) (mediaservice.Job, bool, error) {
	if s.settings.DeletePreviousJobs {
		if err := s.deleteFinishedJobs(ctx, api); err != nil {
			return mediaservice.Job{}, false, err
		}
	}

	processors, err := api.ListMediaProcessors(ctx, s.settings.MediaProcessor)
	if err != nil {
		return mediaservice.Job{}, false, fmt.Errorf("list media processors: %w", err)
	}
	processor, err := mediaservice.NewestProcessor(processors)
	if errors.Is(err, mediaservice.ErrNotFound) {
		s.logger.Warn("media processor not found, job not created", zap.String("processor", s.settings.MediaProcessor))
		return mediaservice.Job{}, false, nil
	}
	if err != nil {
		return mediaservice.Job{}, false, err
	}

	job, err := api.SubmitJob(ctx, mediaservice.JobSpec{
		Name:            jobNamePrefix + name,
		TaskName:        taskName,
		ProcessorID:     processor.ID,
		Configuration:   s.settings.Preset,
		InputAssetID:    input.ID,
		OutputAssetName: name,
		NotificationID:  endpoint.ID,
		NotifyOn:        mediaservice.NotifyAll,
		IncludeProgress: true,
	})
	if err != nil {
		return mediaservice.Job{}, false, fmt.Errorf("submit job: %w", err)
	}
	s.logger.Info("encoding job submitted", zap.String("job_id", job.ID), zap.String("processor_version", processor.Version))
	return job, true, nil
}

func (s *Service) deleteFinishedJobs(ctx context.Context, api mediaservice.API) error {
	jobs, err := api.ListJobs(ctx, mediaservice.JobStateFinished)
	if err != nil {
		return fmt.Errorf("list finished jobs: %w", err)
	}
	for _, j := range jobs {
		if err := api.DeleteJob(ctx, j.ID); err != nil {
			return fmt.Errorf("delete job %s: %w", j.ID, err)
		}
	}
	if len(jobs) > 0 {
		s.logger.Info("finished jobs deleted", zap.Int("count", len(jobs)))
	}
	return nil
}

func (s *Service) publishJobStarted(ctx context.Context, jobID string) error {
	if s.settings.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.PublishTimeout)
		defer cancel()
	}
	event := NewJobStartedEvent(jobID, s.now())
	if err := s.publisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish job started event: %w", err)
	}
	s.logger.Info("job started event published", zap.String("job_id", jobID), zap.String("event_id", event.ID))
	return nil
}

// ContainerFromLocator returns the first path segment of a SAS locator URL,
// which names the asset's storage container.
func ContainerFromLocator(path string) (string, error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse locator path: %w", err)
	}
	container, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if container == "" {
		return "", fmt.Errorf("locator path %q has no container", path)
	}
	return container, nil
}

// Close releases underlying resources.
func (s *Service) Close(ctx context.Context) error {
	return errors.Join(s.publisher.Close(ctx), s.store.Close())
}
