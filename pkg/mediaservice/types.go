package mediaservice

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups when the requested entity does not exist.
var ErrNotFound = errors.New("mediaservice: entity not found")

// JobState mirrors the numeric job states reported by the service.
type JobState int

const (
	JobStateQueued JobState = iota
	JobStateScheduled
	JobStateProcessing
	JobStateFinished
	JobStateError
	JobStateCanceled
	JobStateCanceling
)

var jobStateNames = map[JobState]string{
	JobStateQueued:     "Queued",
	JobStateScheduled:  "Scheduled",
	JobStateProcessing: "Processing",
	JobStateFinished:   "Finished",
	JobStateError:      "Error",
	JobStateCanceled:   "Canceled",
	JobStateCanceling:  "Canceling",
}

func (s JobState) String() string {
	if name, ok := jobStateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Terminal reports whether the service will not move the job any further.
func (s JobState) Terminal() bool {
	return s == JobStateFinished || s == JobStateCanceled || s == JobStateError
}

// AccessPermissions is a bit set of rights granted by an access policy.
type AccessPermissions int

const (
	PermissionNone   AccessPermissions = 0
	PermissionRead   AccessPermissions = 1
	PermissionWrite  AccessPermissions = 2
	PermissionDelete AccessPermissions = 4
	PermissionList   AccessPermissions = 8
)

// LocatorType selects between upload/download SAS URLs and streaming origins.
type LocatorType int

const (
	LocatorTypeNone           LocatorType = 0
	LocatorTypeSAS            LocatorType = 1
	LocatorTypeOnDemandOrigin LocatorType = 2
)

// NotificationJobState selects which task transitions trigger a callback.
type NotificationJobState int

const (
	NotifyNone            NotificationJobState = 0
	NotifyFinalStatesOnly NotificationJobState = 1
	NotifyAll             NotificationJobState = 2
)

// NotificationEndPointType identifies the delivery channel of an endpoint.
type NotificationEndPointType int

const (
	EndPointTypeNone       NotificationEndPointType = 0
	EndPointTypeAzureQueue NotificationEndPointType = 1
	EndPointTypeWebHook    NotificationEndPointType = 3
)

type Asset struct {
	ID   string
	Name string
}

type AssetFile struct {
	ID              string
	Name            string
	ParentAssetID   string
	ContentFileSize int64
	IsPrimary       bool
	MimeType        string
}

type AccessPolicy struct {
	ID          string
	Name        string
	Duration    time.Duration
	Permissions AccessPermissions
}

type Locator struct {
	ID             string
	Type           LocatorType
	Path           string
	AssetID        string
	AccessPolicyID string
}

type MediaProcessor struct {
	ID      string
	Name    string
	Version string
}

type NotificationEndPoint struct {
	ID      string
	Name    string
	Address string
	Type    NotificationEndPointType
}

// ErrorDetail is one failure reason attached to a task.
type ErrorDetail struct {
	Code    string
	Message string
}

type Task struct {
	ID           string
	Name         string
	Progress     float64
	ErrorDetails []ErrorDetail
}

// Job is a snapshot of a job and the assets it reads and writes. Optional
// timestamps are nil until the service sets them.
type Job struct {
	ID              string
	Name            string
	State           JobState
	StartTime       *time.Time
	EndTime         *time.Time
	RunningDuration *time.Duration
	Tasks           []Task
	InputAssetIDs   []string
	OutputAssetIDs  []string
}

// OverallProgress averages task progress, in percent.
func (j Job) OverallProgress() float64 {
	if len(j.Tasks) == 0 {
		return 0
	}
	var total float64
	for _, t := range j.Tasks {
		total += t.Progress
	}
	return total / float64(len(j.Tasks))
}

// JobSpec describes a single-task job to submit.
type JobSpec struct {
	Name            string
	TaskName        string
	ProcessorID     string
	Configuration   string
	InputAssetID    string
	OutputAssetName string
	NotificationID  string
	NotifyOn        NotificationJobState
	IncludeProgress bool
}

// NotificationEndPointSpec describes a webhook registration.
type NotificationEndPointSpec struct {
	Name       string
	Type       NotificationEndPointType
	Address    string
	SigningKey []byte
}

// API is the subset of the media service used by the handlers. Lookups
// return ErrNotFound for absent entities; deletes of absent entities
// succeed.
type API interface {
	FindNotificationEndPoint(ctx context.Context, name string) (NotificationEndPoint, error)
	CreateNotificationEndPoint(ctx context.Context, spec NotificationEndPointSpec) (NotificationEndPoint, error)

	CreateAsset(ctx context.Context, name string) (Asset, error)
	GetAsset(ctx context.Context, id string) (Asset, error)
	DeleteAsset(ctx context.Context, id string) error
	ListAssetFiles(ctx context.Context, assetID string) ([]AssetFile, error)
	CreateAssetFile(ctx context.Context, file AssetFile) (AssetFile, error)
	UpdateAssetFile(ctx context.Context, file AssetFile) error

	FindAccessPolicy(ctx context.Context, name string) (AccessPolicy, error)
	CreateAccessPolicy(ctx context.Context, name string, duration time.Duration, perms AccessPermissions) (AccessPolicy, error)
	DeleteAccessPolicy(ctx context.Context, id string) error
	CreateLocator(ctx context.Context, typ LocatorType, assetID, policyID string) (Locator, error)
	DeleteLocator(ctx context.Context, id string) error

	ListMediaProcessors(ctx context.Context, name string) ([]MediaProcessor, error)

	GetJob(ctx context.Context, id string) (Job, error)
	ListJobs(ctx context.Context, state JobState) ([]Job, error)
	DeleteJob(ctx context.Context, id string) error
	SubmitJob(ctx context.Context, spec JobSpec) (Job, error)
}

// Builder produces a fresh authenticated API handle. Handlers call it once
// per invocation.
type Builder func() (API, error)
