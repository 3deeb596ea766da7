package mediaservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

const (
	moduleName    = "assetmanager/mediaservice"
	moduleVersion = "v0.1.0"

	// DefaultScope is the AAD resource of the media services REST API.
	DefaultScope = "https://rest.media.azure.net/.default"
	// DefaultAPIVersion is sent as x-ms-version on every request.
	DefaultAPIVersion = "2.19"

	verboseJSON = "application/json;odata=verbose"
)

// Credentials identify the service principal and the account endpoint.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	APIEndpoint  string
}

// ClientOptions tunes the underlying azcore pipeline.
type ClientOptions struct {
	azcore.ClientOptions

	APIVersion string
	Scope      string
	// Credential replaces the client secret credential built from
	// Credentials when set.
	Credential azcore.TokenCredential
}

// Client is an authenticated session against one media services account.
type Client struct {
	endpoint string
	pl       runtime.Pipeline
}

var _ API = (*Client)(nil)

// NewContext builds a Client from service principal credentials. Bad
// credentials are only reported by the first call that needs a token.
func NewContext(creds Credentials, opts *ClientOptions) (*Client, error) {
	if opts == nil {
		opts = &ClientOptions{}
	}

	cred := opts.Credential
	if cred == nil {
		secret, err := azidentity.NewClientSecretCredential(creds.TenantID, creds.ClientID, creds.ClientSecret,
			&azidentity.ClientSecretCredentialOptions{ClientOptions: opts.ClientOptions})
		if err != nil {
			return nil, fmt.Errorf("create client secret credential: %w", err)
		}
		cred = secret
	}

	scope := opts.Scope
	if scope == "" {
		scope = DefaultScope
	}
	version := opts.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}

	endpoint := creds.APIEndpoint
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}

	pl := runtime.NewPipeline(moduleName, moduleVersion, runtime.PipelineOptions{
		PerCall:  []policy.Policy{odataHeaders{version: version}},
		PerRetry: []policy.Policy{runtime.NewBearerTokenPolicy(cred, []string{scope}, nil)},
	}, &opts.ClientOptions)

	return &Client{endpoint: endpoint, pl: pl}, nil
}

// NewBuilder returns a Builder that creates a fresh Client on every call.
func NewBuilder(creds Credentials, opts *ClientOptions) Builder {
	return func() (API, error) {
		return NewContext(creds, opts)
	}
}

type odataHeaders struct {
	version string
}

func (p odataHeaders) Do(req *policy.Request) (*http.Response, error) {
	h := req.Raw().Header
	h.Set("x-ms-version", p.version)
	h.Set("DataServiceVersion", "3.0")
	h.Set("MaxDataServiceVersion", "3.0")
	h.Set("Accept", verboseJSON)
	return req.Next()
}

type call struct {
	method string
	path   string
	filter string
	body   any
	ok     []int
}

func (c *Client) send(ctx context.Context, cl call) (*http.Response, error) {
	req, err := runtime.NewRequest(ctx, cl.method, c.endpoint+cl.path)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", cl.method, cl.path, err)
	}
	if cl.filter != "" {
		q := url.Values{"$filter": []string{cl.filter}}
		req.Raw().URL.RawQuery = strings.ReplaceAll(q.Encode(), "+", "%20")
	}
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s body: %w", cl.path, err)
		}
		if err := req.SetBody(streaming.NopCloser(bytes.NewReader(payload)), verboseJSON); err != nil {
			return nil, fmt.Errorf("set %s body: %w", cl.path, err)
		}
	}

	resp, err := c.pl.Do(req)
	if err != nil {
		return nil, err
	}
	if !runtime.HasStatusCode(resp, cl.ok...) {
		return nil, runtime.NewResponseError(resp)
	}
	return resp, nil
}

func (c *Client) getOne(ctx context.Context, path string, out any) error {
	resp, err := c.send(ctx, call{method: http.MethodGet, path: path, ok: []int{http.StatusOK}})
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	return decodeOne(resp, out)
}

func (c *Client) list(ctx context.Context, path, filter string, out any) error {
	resp, err := c.send(ctx, call{method: http.MethodGet, path: path, filter: filter, ok: []int{http.StatusOK}})
	if err != nil {
		return err
	}
	return decodeList(resp, out)
}

func (c *Client) create(ctx context.Context, path string, body, out any) error {
	resp, err := c.send(ctx, call{method: http.MethodPost, path: path, body: body, ok: []int{http.StatusCreated, http.StatusOK}})
	if err != nil {
		return err
	}
	return decodeOne(resp, out)
}

func (c *Client) merge(ctx context.Context, path string, body any) error {
	resp, err := c.send(ctx, call{method: "MERGE", path: path, body: body, ok: []int{http.StatusNoContent, http.StatusOK}})
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// remove deletes an entity; a 404 means someone else already did.
func (c *Client) remove(ctx context.Context, path string) error {
	resp, err := c.send(ctx, call{method: http.MethodDelete, path: path, ok: []int{http.StatusNoContent, http.StatusOK, http.StatusAccepted}})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	return resp.Body.Close()
}

func (c *Client) entityURI(set, id string) string {
	return c.endpoint + entityPath(set, id)
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

func entityPath(set, id string) string {
	return set + "('" + url.PathEscape(strings.ReplaceAll(id, "'", "''")) + "')"
}

// quote renders s as an OData string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func nameFilter(name string) string {
	return "Name eq " + quote(name)
}
