// Package mediaservicetest provides an in-memory mediaservice.API for tests.
package mediaservicetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/your-org/assetmanager/pkg/mediaservice"
)

// Fake stores entities in maps and records every mutating call in Calls.
// Fail lets a test inject an error for a named operation.
type Fake struct {
	mu sync.Mutex

	Assets        map[string]mediaservice.Asset
	Files         map[string][]mediaservice.AssetFile
	Policies      map[string]mediaservice.AccessPolicy
	Locators      map[string]mediaservice.Locator
	Jobs          map[string]mediaservice.Job
	EndPoints     map[string]mediaservice.NotificationEndPoint
	Processors    []mediaservice.MediaProcessor
	Submitted     []mediaservice.JobSpec
	CreatedPolicy []mediaservice.AccessPolicy
	Calls         []string
	Fail          map[string]error

	// LocatorPath is the path handed out for new locators.
	LocatorPath string

	seq int
}

var _ mediaservice.API = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Assets:      map[string]mediaservice.Asset{},
		Files:       map[string][]mediaservice.AssetFile{},
		Policies:    map[string]mediaservice.AccessPolicy{},
		Locators:    map[string]mediaservice.Locator{},
		Jobs:        map[string]mediaservice.Job{},
		EndPoints:   map[string]mediaservice.NotificationEndPoint{},
		Fail:        map[string]error{},
		LocatorPath: "https://account.blob.core.windows.net/asset-container?sv=sig",
	}
}

// Builder returns a mediaservice.Builder that always yields f.
func (f *Fake) Builder() mediaservice.Builder {
	return func() (mediaservice.API, error) { return f, nil }
}

// Called reports how many times op was invoked.
func (f *Fake) Called(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == op || strings.HasPrefix(c, op+":") {
			n++
		}
	}
	return n
}

func (f *Fake) record(op, arg string) error {
	f.Calls = append(f.Calls, op+":"+arg)
	return f.Fail[op]
}

func (f *Fake) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("nb:%s:UUID:%04d", prefix, f.seq)
}

func (f *Fake) FindNotificationEndPoint(_ context.Context, name string) (mediaservice.NotificationEndPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("FindNotificationEndPoint", name); err != nil {
		return mediaservice.NotificationEndPoint{}, err
	}
	for _, e := range f.EndPoints {
		if e.Name == name {
			return e, nil
		}
	}
	return mediaservice.NotificationEndPoint{}, mediaservice.ErrNotFound
}

func (f *Fake) CreateNotificationEndPoint(_ context.Context, spec mediaservice.NotificationEndPointSpec) (mediaservice.NotificationEndPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateNotificationEndPoint", spec.Name); err != nil {
		return mediaservice.NotificationEndPoint{}, err
	}
	e := mediaservice.NotificationEndPoint{ID: f.nextID("nepid"), Name: spec.Name, Address: spec.Address, Type: spec.Type}
	f.EndPoints[e.ID] = e
	return e, nil
}

func (f *Fake) CreateAsset(_ context.Context, name string) (mediaservice.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateAsset", name); err != nil {
		return mediaservice.Asset{}, err
	}
	a := mediaservice.Asset{ID: f.nextID("cid"), Name: name}
	f.Assets[a.ID] = a
	return a, nil
}

func (f *Fake) GetAsset(_ context.Context, id string) (mediaservice.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetAsset", id); err != nil {
		return mediaservice.Asset{}, err
	}
	a, ok := f.Assets[id]
	if !ok {
		return mediaservice.Asset{}, mediaservice.ErrNotFound
	}
	return a, nil
}

func (f *Fake) DeleteAsset(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteAsset", id); err != nil {
		return err
	}
	delete(f.Assets, id)
	delete(f.Files, id)
	return nil
}

func (f *Fake) ListAssetFiles(_ context.Context, assetID string) ([]mediaservice.AssetFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListAssetFiles", assetID); err != nil {
		return nil, err
	}
	return append([]mediaservice.AssetFile(nil), f.Files[assetID]...), nil
}

func (f *Fake) CreateAssetFile(_ context.Context, file mediaservice.AssetFile) (mediaservice.AssetFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateAssetFile", file.Name); err != nil {
		return mediaservice.AssetFile{}, err
	}
	file.ID = f.nextID("fid")
	f.Files[file.ParentAssetID] = append(f.Files[file.ParentAssetID], file)
	return file, nil
}

func (f *Fake) UpdateAssetFile(_ context.Context, file mediaservice.AssetFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateAssetFile", file.ID); err != nil {
		return err
	}
	files := f.Files[file.ParentAssetID]
	for i := range files {
		if files[i].ID == file.ID {
			files[i] = file
			return nil
		}
	}
	return mediaservice.ErrNotFound
}

func (f *Fake) FindAccessPolicy(_ context.Context, name string) (mediaservice.AccessPolicy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("FindAccessPolicy", name); err != nil {
		return mediaservice.AccessPolicy{}, err
	}
	for _, p := range f.Policies {
		if p.Name == name {
			return p, nil
		}
	}
	return mediaservice.AccessPolicy{}, mediaservice.ErrNotFound
}

func (f *Fake) CreateAccessPolicy(_ context.Context, name string, duration time.Duration, perms mediaservice.AccessPermissions) (mediaservice.AccessPolicy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateAccessPolicy", name); err != nil {
		return mediaservice.AccessPolicy{}, err
	}
	p := mediaservice.AccessPolicy{ID: f.nextID("pid"), Name: name, Duration: duration, Permissions: perms}
	f.Policies[p.ID] = p
	f.CreatedPolicy = append(f.CreatedPolicy, p)
	return p, nil
}

func (f *Fake) DeleteAccessPolicy(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteAccessPolicy", id); err != nil {
		return err
	}
	delete(f.Policies, id)
	return nil
}

func (f *Fake) CreateLocator(_ context.Context, typ mediaservice.LocatorType, assetID, policyID string) (mediaservice.Locator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateLocator", assetID); err != nil {
		return mediaservice.Locator{}, err
	}
	l := mediaservice.Locator{ID: f.nextID("lid"), Type: typ, Path: f.LocatorPath, AssetID: assetID, AccessPolicyID: policyID}
	f.Locators[l.ID] = l
	return l, nil
}

func (f *Fake) DeleteLocator(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteLocator", id); err != nil {
		return err
	}
	delete(f.Locators, id)
	return nil
}

func (f *Fake) ListMediaProcessors(_ context.Context, name string) ([]mediaservice.MediaProcessor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListMediaProcessors", name); err != nil {
		return nil, err
	}
	var out []mediaservice.MediaProcessor
	for _, p := range f.Processors {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *Fake) GetJob(_ context.Context, id string) (mediaservice.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetJob", id); err != nil {
		return mediaservice.Job{}, err
	}
	j, ok := f.Jobs[id]
	if !ok {
		return mediaservice.Job{}, mediaservice.ErrNotFound
	}
	return j, nil
}

func (f *Fake) ListJobs(_ context.Context, state mediaservice.JobState) ([]mediaservice.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListJobs", state.String()); err != nil {
		return nil, err
	}
	var out []mediaservice.Job
	for _, j := range f.Jobs {
		if j.State == state {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *Fake) DeleteJob(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteJob", id); err != nil {
		return err
	}
	delete(f.Jobs, id)
	return nil
}

func (f *Fake) SubmitJob(_ context.Context, spec mediaservice.JobSpec) (mediaservice.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SubmitJob", spec.Name); err != nil {
		return mediaservice.Job{}, err
	}
	out := mediaservice.Asset{ID: f.nextID("cid"), Name: spec.OutputAssetName}
	f.Assets[out.ID] = out
	j := mediaservice.Job{
		ID:             f.nextID("jid"),
		Name:           spec.Name,
		State:          mediaservice.JobStateQueued,
		Tasks:          []mediaservice.Task{{Name: spec.TaskName}},
		InputAssetIDs:  []string{spec.InputAssetID},
		OutputAssetIDs: []string{out.ID},
	}
	f.Jobs[j.ID] = j
	f.Submitted = append(f.Submitted, spec)
	return j, nil
}

// AddJob stores job and creates its input/output assets; outputFiles are
// attached to the output asset.
func (f *Fake) AddJob(job mediaservice.Job, outputFiles ...string) mediaservice.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(job.InputAssetIDs) == 0 {
		in := mediaservice.Asset{ID: f.nextID("cid"), Name: "input"}
		f.Assets[in.ID] = in
		job.InputAssetIDs = []string{in.ID}
	}
	if len(job.OutputAssetIDs) == 0 {
		out := mediaservice.Asset{ID: f.nextID("cid"), Name: "output"}
		f.Assets[out.ID] = out
		job.OutputAssetIDs = []string{out.ID}
	}
	for _, name := range outputFiles {
		f.Files[job.OutputAssetIDs[0]] = append(f.Files[job.OutputAssetIDs[0]], mediaservice.AssetFile{
			ID:            f.nextID("fid"),
			Name:          name,
			ParentAssetID: job.OutputAssetIDs[0],
		})
	}
	f.Jobs[job.ID] = job
	return job
}
