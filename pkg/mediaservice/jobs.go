package mediaservice

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type jobDTO struct {
	ID              string    `json:"Id"`
	Name            string    `json:"Name"`
	State           int       `json:"State"`
	StartTime       timestamp `json:"StartTime"`
	EndTime         timestamp `json:"EndTime"`
	RunningDuration number    `json:"RunningDuration"`
}

func (d jobDTO) job() Job {
	j := Job{
		ID:        d.ID,
		Name:      d.Name,
		State:     JobState(d.State),
		StartTime: d.StartTime.ptr(),
		EndTime:   d.EndTime.ptr(),
	}
	if d.RunningDuration.Valid {
		dur := time.Duration(d.RunningDuration.Value * float64(time.Second))
		j.RunningDuration = &dur
	}
	return j
}

type errorDetailDTO struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

type taskDTO struct {
	ID           string                     `json:"Id"`
	Name         string                     `json:"Name"`
	Progress     number                     `json:"Progress"`
	ErrorDetails collection[errorDetailDTO] `json:"ErrorDetails"`
}

func (d taskDTO) task() Task {
	t := Task{ID: d.ID, Name: d.Name, Progress: d.Progress.Value}
	for _, e := range d.ErrorDetails {
		t.ErrorDetails = append(t.ErrorDetails, ErrorDetail{Code: e.Code, Message: e.Message})
	}
	return t
}

// GetJob loads the job together with its tasks and the ids of its input
// and output assets.
func (c *Client) GetJob(ctx context.Context, id string) (Job, error) {
	path := entityPath("Jobs", id)

	var dto jobDTO
	if err := c.getOne(ctx, path, &dto); err != nil {
		return Job{}, fmt.Errorf("get job %s: %w", id, err)
	}
	job := dto.job()

	var tasks []taskDTO
	if err := c.list(ctx, path+"/Tasks", "", &tasks); err != nil {
		return Job{}, fmt.Errorf("list tasks of job %s: %w", id, err)
	}
	for _, t := range tasks {
		job.Tasks = append(job.Tasks, t.task())
	}

	var err error
	if job.InputAssetIDs, err = c.linkedAssetIDs(ctx, path+"/InputMediaAssets"); err != nil {
		return Job{}, fmt.Errorf("list inputs of job %s: %w", id, err)
	}
	if job.OutputAssetIDs, err = c.linkedAssetIDs(ctx, path+"/OutputMediaAssets"); err != nil {
		return Job{}, fmt.Errorf("list outputs of job %s: %w", id, err)
	}
	return job, nil
}

func (c *Client) linkedAssetIDs(ctx context.Context, path string) ([]string, error) {
	var assets []assetDTO
	if err := c.list(ctx, path, "", &assets); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(assets))
	for _, a := range assets {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

// ListJobs returns the jobs currently in state, without tasks or assets.
func (c *Client) ListJobs(ctx context.Context, state JobState) ([]Job, error) {
	var dtos []jobDTO
	if err := c.list(ctx, "Jobs", "State eq "+strconv.Itoa(int(state)), &dtos); err != nil {
		return nil, fmt.Errorf("list %s jobs: %w", state, err)
	}
	jobs := make([]Job, 0, len(dtos))
	for _, d := range dtos {
		jobs = append(jobs, d.job())
	}
	return jobs, nil
}

func (c *Client) DeleteJob(ctx context.Context, id string) error {
	if err := c.remove(ctx, entityPath("Jobs", id)); err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}

type subscriptionBody struct {
	IncludeTaskProgress    bool   `json:"IncludeTaskProgress"`
	NotificationEndPointID string `json:"NotificationEndPointId"`
	TargetJobState         int    `json:"TargetJobState"`
}

type taskBody struct {
	Name                          string             `json:"Name"`
	Configuration                 string             `json:"Configuration"`
	MediaProcessorID              string             `json:"MediaProcessorId"`
	TaskBody                      string             `json:"TaskBody"`
	TaskNotificationSubscriptions []subscriptionBody `json:"TaskNotificationSubscriptions,omitempty"`
}

type jobBody struct {
	Name             string        `json:"Name"`
	InputMediaAssets []metadataRef `json:"InputMediaAssets"`
	Tasks            []taskBody    `json:"Tasks"`
}

// SubmitJob creates and starts a single-task job that reads the input asset
// and writes a new output asset.
func (c *Client) SubmitJob(ctx context.Context, spec JobSpec) (Job, error) {
	task := taskBody{
		Name:             spec.TaskName,
		Configuration:    spec.Configuration,
		MediaProcessorID: spec.ProcessorID,
		TaskBody:         taskBodyXML(spec.OutputAssetName),
	}
	if spec.NotificationID != "" {
		task.TaskNotificationSubscriptions = []subscriptionBody{{
			IncludeTaskProgress:    spec.IncludeProgress,
			NotificationEndPointID: spec.NotificationID,
			TargetJobState:         int(spec.NotifyOn),
		}}
	}

	body := jobBody{
		Name:             spec.Name,
		InputMediaAssets: []metadataRef{refTo(c.entityURI("Assets", spec.InputAssetID))},
		Tasks:            []taskBody{task},
	}

	var out jobDTO
	if err := c.create(ctx, "Jobs", body, &out); err != nil {
		return Job{}, fmt.Errorf("submit job %q: %w", spec.Name, err)
	}
	job := out.job()
	job.InputAssetIDs = []string{spec.InputAssetID}
	return job, nil
}

func taskBodyXML(outputAssetName string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?><taskBody><inputAsset>JobInputAsset(0)</inputAsset>`)
	b.WriteString(`<outputAsset assetCreationOptions="0" assetName="`)
	_ = xml.EscapeText(&b, []byte(outputAssetName))
	b.WriteString(`">JobOutputAsset(0)</outputAsset></taskBody>`)
	return b.String()
}
