package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jzempel/continuity/internal/debug"
	"github.com/jzempel/continuity/internal/types"
)

// DefaultTimeout bounds every request made by a REST client.
const DefaultTimeout = 30 * time.Second

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 10 * 1024 * 1024

// HTTPError is returned for non-2xx responses. It unwraps to the error
// class for its status code.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	class      error
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.URL, e.StatusCode, body)
}

func (e *HTTPError) Unwrap() error {
	return e.class
}

// ClassifyStatus maps an HTTP status code to an error class. Mutations
// rejected as invalid are conflicts; on reads the same codes are generic.
func ClassifyStatus(code int, mutation bool) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return types.ErrUnauthorized
	case code == http.StatusNotFound:
		return types.ErrNotFound
	case mutation && (code == http.StatusBadRequest || code == http.StatusConflict || code == http.StatusUnprocessableEntity):
		return types.ErrConflict
	case code >= 500:
		return types.ErrUnreachable
	}
	return nil
}

// ClassifyTransportError wraps a failed round trip. Context cancellation
// is returned unchanged so callers can tell an interrupt from an outage.
func ClassifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", types.ErrUnreachable, err)
}

// RESTClient is a small JSON-over-HTTP client shared by the REST backends.
type RESTClient struct {
	BaseURL    string
	HTTPClient *http.Client
	// Authorize decorates each request with credentials.
	Authorize func(req *http.Request)
}

// NewRESTClient creates a client rooted at baseURL.
func NewRESTClient(baseURL string, authorize func(*http.Request)) *RESTClient {
	return &RESTClient{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		Authorize:  authorize,
	}
}

// URL joins path and query onto the base URL.
func (c *RESTClient) URL(path string, query url.Values) string {
	u := c.BaseURL + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Do performs a request and decodes a JSON response into out (when non-nil).
func (c *RESTClient) Do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	respBody, err := c.doRequest(ctx, method, c.URL(path, query), body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *RESTClient) doRequest(ctx context.Context, method, urlStr string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "continuity")
	if c.Authorize != nil {
		c.Authorize(req)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		debug.Logf("%s %s: %v\n", method, urlStr, err)
		return nil, ClassifyTransportError(err)
	}
	defer resp.Body.Close()
	debug.Logf("%s %s: %d (%s)\n", method, urlStr, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, ClassifyTransportError(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			Method:     method,
			URL:        urlStr,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			class:      ClassifyStatus(resp.StatusCode, method != http.MethodGet),
		}
	}
	return respBody, nil
}
