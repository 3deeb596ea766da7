// Package streaming turns a completed job's output asset into a playback URL
// and removes the job's input asset once the output is streamable.
package streaming

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/your-org/assetmanager/pkg/mediaservice"
	"github.com/your-org/assetmanager/pkg/tracing"
)

const (
	ReadPolicyName     = "readPolicy"
	ReadPolicyDuration = 10 * 365 * 24 * time.Hour

	manifestSuffix = ".ism"
	hlsManifest    = "/manifest(format=m3u8-aapl)"

	tracerName = "github.com/your-org/assetmanager/internal/streaming"
)

// Result describes what Resolve did. URL is empty when the output has no
// manifest yet.
type Result struct {
	URL           string
	OutputAssetID string
	InputAssetID  string
	InputDeleted  bool
}

type Resolver struct {
	logger *zap.Logger
}

func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve publishes the job's output through an on-demand origin locator and
// returns its HLS URL. When a manifest exists the input asset is deleted;
// an input that is already gone is not an error.
func (r *Resolver) Resolve(ctx context.Context, api mediaservice.API, job mediaservice.Job) (res Result, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "streaming.Resolve", attribute.String("job.id", job.ID))
	defer func() { tracing.End(span, err) }()

	output, found, err := lookupAsset(ctx, api, job.OutputAssetIDs)
	if err != nil {
		return Result{}, fmt.Errorf("lookup output asset: %w", err)
	}
	if !found {
		r.logger.Info("job has no output asset", zap.String("job_id", job.ID))
		return Result{}, nil
	}
	res.OutputAssetID = output.ID

	files, err := api.ListAssetFiles(ctx, output.ID)
	if err != nil {
		return res, fmt.Errorf("list output files: %w", err)
	}
	manifest, ok := FindManifest(files)
	if !ok {
		r.logger.Info("output asset has no manifest", zap.String("job_id", job.ID), zap.String("asset_id", output.ID))
		return res, nil
	}

	policy, err := r.readPolicy(ctx, api)
	if err != nil {
		return res, err
	}
	locator, err := api.CreateLocator(ctx, mediaservice.LocatorTypeOnDemandOrigin, output.ID, policy.ID)
	if err != nil {
		return res, fmt.Errorf("create origin locator: %w", err)
	}
	res.URL = ManifestURL(locator.Path, manifest.Name)
	r.logger.Info("stream url ready", zap.String("job_id", job.ID), zap.String("stream_url", res.URL))

	input, found, err := lookupAsset(ctx, api, job.InputAssetIDs)
	if err != nil {
		return res, fmt.Errorf("lookup input asset: %w", err)
	}
	if !found {
		return res, nil
	}
	res.InputAssetID = input.ID
	if err := api.DeleteAsset(ctx, input.ID); err != nil {
		return res, fmt.Errorf("delete input asset: %w", err)
	}
	res.InputDeleted = true
	r.logger.Info("input asset deleted", zap.String("job_id", job.ID), zap.String("asset_id", input.ID))
	return res, nil
}

func (r *Resolver) readPolicy(ctx context.Context, api mediaservice.API) (mediaservice.AccessPolicy, error) {
	policy, err := api.FindAccessPolicy(ctx, ReadPolicyName)
	if err == nil {
		return policy, nil
	}
	if !errors.Is(err, mediaservice.ErrNotFound) {
		return mediaservice.AccessPolicy{}, fmt.Errorf("find read policy: %w", err)
	}
	policy, err = api.CreateAccessPolicy(ctx, ReadPolicyName, ReadPolicyDuration, mediaservice.PermissionRead)
	if err != nil {
		return mediaservice.AccessPolicy{}, fmt.Errorf("create read policy: %w", err)
	}
	return policy, nil
}

// lookupAsset resolves the first id in ids.
func lookupAsset(ctx context.Context, api mediaservice.API, ids []string) (mediaservice.Asset, bool, error) {
	if len(ids) == 0 {
		return mediaservice.Asset{}, false, nil
	}
	asset, err := api.GetAsset(ctx, ids[0])
	if errors.Is(err, mediaservice.ErrNotFound) {
		return mediaservice.Asset{}, false, nil
	}
	if err != nil {
		return mediaservice.Asset{}, false, err
	}
	return asset, true, nil
}

// FindManifest returns the first file whose name ends in ".ism", ignoring case.
func FindManifest(files []mediaservice.AssetFile) (mediaservice.AssetFile, bool) {
	for _, f := range files {
		if strings.HasSuffix(strings.ToLower(f.Name), manifestSuffix) {
			return f, true
		}
	}
	return mediaservice.AssetFile{}, false
}

func ManifestURL(locatorPath, manifestName string) string {
	return locatorPath + manifestName + hlsManifest
}
