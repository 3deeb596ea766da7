// Package eventgrid publishes custom events to an Event Grid topic.
package eventgrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
)

const (
	apiVersion = "2018-01-01"
	keyHeader  = "aeg-sas-key"
)

// Event is the Event Grid event schema.
type Event struct {
	ID          string    `json:"id"`
	EventType   string    `json:"eventType"`
	Subject     string    `json:"subject"`
	EventTime   time.Time `json:"eventTime"`
	Data        any       `json:"data"`
	DataVersion string    `json:"dataVersion"`
	Topic       string    `json:"topic,omitempty"`
}

// Options configures the topic client.
type Options struct {
	azcore.ClientOptions
}

// Client posts event batches to a single topic.
type Client struct {
	endpoint string
	pl       runtime.Pipeline
}

// NewClient accepts the topic endpoint either as a bare host or as a full
// URL; only the host is used, as the service expects.
func NewClient(topicHost, key string, opts *Options) (*Client, error) {
	host, err := hostOf(topicHost)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("event grid topic key is required")
	}
	if opts == nil {
		opts = &Options{}
	}
	pl := runtime.NewPipeline("assetmanager/eventgrid", "v0.1.0", runtime.PipelineOptions{
		PerRetry: []policy.Policy{sasKey(key)},
	}, &opts.ClientOptions)

	return &Client{endpoint: "https://" + host + "/api/events?api-version=" + apiVersion, pl: pl}, nil
}

func hostOf(topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", fmt.Errorf("event grid topic host is required")
	}
	if !strings.Contains(topic, "://") {
		return strings.TrimSuffix(topic, "/"), nil
	}
	u, err := url.Parse(topic)
	if err != nil {
		return "", fmt.Errorf("parse topic endpoint: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("topic endpoint %q has no host", topic)
	}
	return u.Host, nil
}

type sasKey string

func (k sasKey) Do(req *policy.Request) (*http.Response, error) {
	req.Raw().Header.Set(keyHeader, string(k))
	return req.Next()
}

// PublishEvents sends the batch in one request.
func (c *Client) PublishEvents(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	payload, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}
	req, err := runtime.NewRequest(ctx, http.MethodPost, c.endpoint)
	if err != nil {
		return fmt.Errorf("build publish request: %w", err)
	}
	if err := req.SetBody(streaming.NopCloser(bytes.NewReader(payload)), "application/json"); err != nil {
		return fmt.Errorf("set publish body: %w", err)
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return fmt.Errorf("publish events: %w", err)
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return fmt.Errorf("publish events: %w", runtime.NewResponseError(resp))
	}
	return resp.Body.Close()
}
