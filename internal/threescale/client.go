// Package threescale is a client for the 3scale Account Management CMS API.
package threescale

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/schaermu/portalsync/internal/cms"
)

const (
	apiPrefix         = "/admin/api/cms"
	providerEndpoint  = "/admin/api/provider.json"
	defaultPerPage    = 100
	defaultTimeout    = 30 * time.Second
	defaultConcurrent = 4
)

// ErrMissingDraft is returned when a template is created without content.
var ErrMissingDraft = errors.New("new template must have draft content")

// Options configures a Client
type Options struct {
	BaseURL     string
	AccessToken string

	// PerPage is the page size of list requests.
	PerPage int
	// Concurrency bounds the pages fetched in parallel per listing.
	Concurrency int
	Timeout     time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client implements cms.Remote over HTTP
type Client struct {
	baseURL     *url.URL
	token       string
	perPage     int
	concurrency int
	http        *http.Client
	logger      *slog.Logger
}

var _ cms.Remote = (*Client)(nil)

// New creates a client for the admin portal at opts.BaseURL.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", opts.BaseURL)
	}

	c := &Client{
		baseURL:     u,
		token:       opts.AccessToken,
		perPage:     opts.PerPage,
		concurrency: opts.Concurrency,
		http:        opts.HTTPClient,
		logger:      opts.Logger,
	}
	if c.perPage <= 0 {
		c.perPage = defaultPerPage
	}
	if c.concurrency <= 0 {
		c.concurrency = defaultConcurrent
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// APIError is returned for every failed call, including transport failures,
// which have a zero StatusCode.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("3scale api: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("3scale api: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

type errorResponse struct {
	Error  string              `json:"error"`
	Errors map[string][]string `json:"errors"`
}

// request is one API call. Exactly one of form and body may be set.
type request struct {
	method      string
	path        string
	query       url.Values
	form        url.Values
	body        io.Reader
	contentType string
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path

	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	if c.token != "" {
		q.Set("access_token", c.token)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// do performs r and decodes a JSON response into out, which may be nil.
func (c *Client) do(ctx context.Context, r request, out any) error {
	body := r.body
	contentType := r.contentType
	if r.form != nil {
		body = strings.NewReader(r.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.endpoint(r.path, r.query), body)
	if err != nil {
		return &APIError{Message: "failed to build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.logger.Debug("3scale request", "method", r.method, "path", r.path)

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Message: "transport error", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "failed to decode response", Body: string(data), Err: err}
	}
	return nil
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Body: string(body), Message: http.StatusText(status)}

	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return e
	}
	switch {
	case parsed.Error != "":
		e.Message = parsed.Error
	case len(parsed.Errors) > 0:
		var parts []string
		for field, msgs := range parsed.Errors {
			parts = append(parts, field+" "+strings.Join(msgs, ", "))
		}
		sort.Strings(parts)
		e.Message = strings.Join(parts, "; ")
	}
	return e
}
