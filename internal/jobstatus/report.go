package jobstatus

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/your-org/assetmanager/pkg/mediaservice"
)

// RoundTripLayout renders timestamps with seven fractional digits, the
// format clients of this endpoint already parse.
const RoundTripLayout = "2006-01-02T15:04:05.0000000Z07:00"

// Report is the status endpoint's response body.
type Report struct {
	JobState        string  `json:"jobState"`
	ErrorText       string  `json:"errorText"`
	StartTime       string  `json:"startTime"`
	EndTime         string  `json:"endTime"`
	RunningDuration string  `json:"runningDuration"`
	IsRunning       string  `json:"isRunning"`
	IsSuccessful    string  `json:"isSuccessful"`
	Progress        float64 `json:"progress"`
	StreamURL       string  `json:"streamURL"`
}

// NewReport summarises job. StreamURL is left for the caller to fill in.
func NewReport(job mediaservice.Job) Report {
	r := Report{
		JobState:     job.State.String(),
		IsRunning:    strconv.FormatBool(!job.State.Terminal()),
		IsSuccessful: strconv.FormatBool(job.State == mediaservice.JobStateFinished),
		Progress:     job.OverallProgress(),
	}
	if job.State == mediaservice.JobStateError || job.State == mediaservice.JobStateCanceled {
		r.ErrorText = ErrorText(job.Tasks)
	}
	if job.StartTime != nil {
		r.StartTime = job.StartTime.UTC().Format(RoundTripLayout)
	}
	if job.EndTime != nil {
		r.EndTime = job.EndTime.UTC().Format(RoundTripLayout)
	}
	if job.RunningDuration != nil {
		r.RunningDuration = FormatDuration(*job.RunningDuration)
	}
	return r
}

// ErrorText lists every task error as "{task} : {message}", one per line.
func ErrorText(tasks []mediaservice.Task) string {
	var b strings.Builder
	for _, t := range tasks {
		for _, d := range t.ErrorDetails {
			fmt.Fprintf(&b, "%s : %s\n", t.Name, d.Message)
		}
	}
	return b.String()
}

// FormatDuration renders d as [-][d.]hh:mm:ss[.fffffff].
func FormatDuration(d time.Duration) string {
	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}
	const day = 24 * time.Hour
	days := d / day
	d -= days * day
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	ticks := (d - seconds*time.Second) / 100

	if days > 0 {
		fmt.Fprintf(&b, "%d.", days)
	}
	fmt.Fprintf(&b, "%02d:%02d:%02d", hours, minutes, seconds)
	if ticks > 0 {
		fmt.Fprintf(&b, ".%07d", ticks)
	}
	return b.String()
}
