package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/sanisideup/jira-workspace-sync/pkg/logging"
	"github.com/sanisideup/jira-workspace-sync/pkg/models"
	"github.com/sanisideup/jira-workspace-sync/pkg/telemetry"
)

// DefaultTimeout bounds every remote call
const DefaultTimeout = 30 * time.Second

// Family selects which Jira REST API a request targets
type Family string

const (
	// FamilyCore is the platform REST API (projects, issues, fields, filters)
	FamilyCore Family = "core"
	// FamilyAgile is the Jira Software API (boards, sprints)
	FamilyAgile Family = "agile"
)

// Prefix returns the URL path prefix of the API family
func (f Family) Prefix() string {
	if f == FamilyAgile {
		return "/rest/agile/1.0"
	}
	return "/rest/api/3"
}

// ErrTimeout is returned when a call exceeds the client timeout
var ErrTimeout = errors.New("request timed out")

// ErrNotJSON is returned when decoding a response that is not JSON
var ErrNotJSON = errors.New("response is not JSON")

// Client represents a Jira API client
type Client struct {
	HostURL    string
	Email      string
	APIToken   string
	Timeout    time.Duration
	HTTPClient *resty.Client

	calls metric.Int64Counter
}

// Option customizes a Client
type Option func(*Client)

// WithHostURL overrides the https://{domain} host, e.g. for a test server
func WithHostURL(hostURL string) Option {
	return func(c *Client) { c.HostURL = strings.TrimSuffix(hostURL, "/") }
}

// WithTimeout overrides the per-call timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.Timeout = d }
}

// New creates a new Jira API client for the given credentials
func New(creds models.Credentials, opts ...Option) *Client {
	client := &Client{
		HostURL:  HostURL(creds.Domain),
		Email:    creds.Email,
		APIToken: creds.APIToken,
		Timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(client)
	}

	// No retry configuration: the transport surfaces every failure and
	// leaves retry decisions to callers (see Retry).
	client.HTTPClient = resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("Authorization", client.getAuthHeader()).
		SetTimeout(client.Timeout)

	if counter, err := telemetry.Meter().Int64Counter("jws.remote.calls",
		metric.WithDescription("Remote Jira API calls by family, method and status")); err == nil {
		client.calls = counter
	}

	return client
}

// HostURL normalizes a Jira domain into https://{domain}
func HostURL(domain string) string {
	domain = strings.TrimSpace(domain)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	return "https://" + strings.TrimSuffix(domain, "/")
}

// Request describes one remote call
type Request struct {
	Family   Family
	Method   string
	Endpoint string
	Query    map[string]string
	Body     interface{}
}

// Response is a successful (2xx) remote response
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Empty reports whether the server returned no body (e.g. 204 on PUT)
func (r *Response) Empty() bool {
	return r.StatusCode == http.StatusNoContent || len(r.Body) == 0
}

// IsJSON reports whether the body is declared as JSON
func (r *Response) IsJSON() bool {
	return strings.Contains(strings.ToLower(r.ContentType), "json")
}

// Text returns the raw body
func (r *Response) Text() string {
	return string(r.Body)
}

// Decode unmarshals a JSON body into v. An empty response leaves v untouched.
func (r *Response) Decode(v interface{}) error {
	if r.Empty() || v == nil {
		return nil
	}
	if !r.IsJSON() {
		return fmt.Errorf("%w (content-type %q)", ErrNotJSON, r.ContentType)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// URL builds the absolute URL for an endpoint of the given family
func (c *Client) URL(family Family, endpoint string) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.HostURL + family.Prefix() + endpoint
}

// Do executes a request. Non-2xx responses become *APIError carrying the
// status and the raw body; timeouts wrap ErrTimeout.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Family == "" {
		req.Family = FamilyCore
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	url := c.URL(req.Family, req.Endpoint)

	ctx, span := telemetry.Tracer().Start(ctx, "jira."+string(req.Family)+" "+req.Method)
	defer span.End()
	span.SetAttributes(
		attribute.String("jira.family", string(req.Family)),
		attribute.String("http.method", req.Method),
		attribute.String("jira.endpoint", req.Endpoint),
	)

	r := c.HTTPClient.R().SetContext(ctx)
	if len(req.Query) > 0 {
		r.SetQueryParams(req.Query)
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}

	logging.Debug("jira request", "method", req.Method, "url", url)
	resp, err := r.Execute(req.Method, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.count(ctx, req, 0)
		if isTimeout(err) {
			return nil, fmt.Errorf("%s %s: %w after %s", req.Method, url, ErrTimeout, c.Timeout)
		}
		return nil, fmt.Errorf("%s %s: %w", req.Method, url, err)
	}

	status := resp.StatusCode()
	span.SetAttributes(attribute.Int("http.status_code", status))
	c.count(ctx, req, status)

	if status < 200 || status >= 300 {
		apiErr := newAPIError(req.Method, url, status, resp.Body())
		span.SetStatus(codes.Error, apiErr.Status)
		logging.Debug("jira request failed", "method", req.Method, "url", url, "status", status)
		return nil, apiErr
	}

	return &Response{
		StatusCode:  status,
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
	}, nil
}

// Get performs a GET and decodes the JSON body into out
func (c *Client) Get(ctx context.Context, family Family, endpoint string, query map[string]string, out interface{}) error {
	return c.call(ctx, Request{Family: family, Method: http.MethodGet, Endpoint: endpoint, Query: query}, out)
}

// Post performs a POST with a JSON body and decodes the response into out
func (c *Client) Post(ctx context.Context, family Family, endpoint string, body, out interface{}) error {
	return c.call(ctx, Request{Family: family, Method: http.MethodPost, Endpoint: endpoint, Body: body}, out)
}

// Put performs a PUT with a JSON body; Jira usually answers 204
func (c *Client) Put(ctx context.Context, family Family, endpoint string, body, out interface{}) error {
	return c.call(ctx, Request{Family: family, Method: http.MethodPut, Endpoint: endpoint, Body: body}, out)
}

func (c *Client) call(ctx context.Context, req Request, out interface{}) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if s, ok := out.(*string); ok && !resp.IsJSON() {
		*s = resp.Text()
		return nil
	}
	return resp.Decode(out)
}

func (c *Client) count(ctx context.Context, req Request, status int) {
	if c.calls == nil {
		return
	}
	c.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("family", string(req.Family)),
		attribute.String("method", req.Method),
		attribute.Int("status", status),
	))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
