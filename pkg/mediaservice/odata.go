package mediaservice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Verbose OData wraps entities in {"d": {...}} and feeds in
// {"d": {"results": [...]}}; JSON light uses {"value": [...]}.
type envelope struct {
	D     json.RawMessage `json:"d"`
	Value json.RawMessage `json:"value"`
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

func decodeOne(resp *http.Response, out any) error {
	body, err := readBody(resp)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode entity: %w", err)
	}
	payload := body
	if len(env.D) > 0 {
		payload = env.D
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode entity: %w", err)
	}
	return nil
}

func decodeList(resp *http.Response, out any) error {
	body, err := readBody(resp)
	if err != nil {
		return err
	}
	payload, err := feedPayload(body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode feed: %w", err)
	}
	return nil
}

func feedPayload(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return trimmed, nil
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	switch {
	case len(env.Value) > 0:
		return env.Value, nil
	case len(env.D) > 0:
		return collectionPayload(env.D)
	default:
		return json.RawMessage("[]"), nil
	}
}

func collectionPayload(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return trimmed, nil
	}
	var wrapped struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	if len(wrapped.Results) == 0 {
		return json.RawMessage("[]"), nil
	}
	return wrapped.Results, nil
}

// collection accepts both a bare array and the verbose
// {"__metadata": ..., "results": [...]} form.
type collection[T any] []T

func (c *collection[T]) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*c = nil
		return nil
	}
	payload, err := collectionPayload(data)
	if err != nil {
		return err
	}
	var items []T
	if err := json.Unmarshal(payload, &items); err != nil {
		return err
	}
	*c = items
	return nil
}

// timestamp decodes "/Date(ms)/" as well as ISO 8601 values. The service
// omits the zone on some fields; those are read as UTC.
type timestamp struct {
	time.Time
	Valid bool
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	*t = timestamp{}
	if raw == nil || *raw == "" {
		return nil
	}
	s := *raw

	if strings.HasPrefix(s, "/Date(") && strings.HasSuffix(s, ")/") {
		inner := strings.TrimSuffix(strings.TrimPrefix(s, "/Date("), ")/")
		if i := strings.IndexAny(inner, "+-"); i > 0 {
			inner = inner[:i]
		}
		ms, err := strconv.ParseInt(inner, 10, 64)
		if err != nil {
			return fmt.Errorf("decode timestamp %q: %w", s, err)
		}
		t.Time, t.Valid = time.UnixMilli(ms).UTC(), true
		return nil
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			if parsed.IsZero() || parsed.Year() <= 1 {
				return nil
			}
			t.Time, t.Valid = parsed, true
			return nil
		}
	}
	return fmt.Errorf("decode timestamp %q: unsupported layout", s)
}

func (t timestamp) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// number accepts Edm.Int64/Edm.Double serialized either as JSON numbers or
// as strings.
type number struct {
	Value float64
	Valid bool
}

func (n *number) UnmarshalJSON(data []byte) error {
	*n = number{}
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("decode number %q: %w", s, err)
	}
	n.Value, n.Valid = v, true
	return nil
}

// metadataRef is the verbose OData deferred link used to bind navigation
// properties on insert.
type metadataRef struct {
	Metadata struct {
		URI string `json:"uri"`
	} `json:"__metadata"`
}

func refTo(uri string) metadataRef {
	var ref metadataRef
	ref.Metadata.URI = uri
	return ref
}
