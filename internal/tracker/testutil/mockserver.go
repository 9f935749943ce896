// Package testutil provides testing utilities for tracker backend tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

// RecordedRequest stores information about a request made to the mock server.
type RecordedRequest struct {
	Method  string
	Path    string
	Query   string
	Headers http.Header
	Body    []byte
}

// MockResponse represents a configured response for the mock server.
type MockResponse struct {
	StatusCode int
	Body       interface{}
	Headers    map[string]string
}

// MockTrackerServer is the base mock server for tracker backend tests.
// It provides request recording, response configuration, and error
// simulation. Stateful fakes plug in through SetDefaultHandler.
type MockTrackerServer struct {
	Server *httptest.Server
	mu     sync.RWMutex

	requests []RecordedRequest

	// "METHOD /path" or "/path" -> response
	responses      map[string]MockResponse
	defaultHandler http.HandlerFunc

	authError   bool
	serverError bool
}

// NewMockTrackerServer creates a new mock server.
func NewMockTrackerServer() *MockTrackerServer {
	m := &MockTrackerServer{
		responses: make(map[string]MockResponse),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handleRequest))
	return m
}

func (m *MockTrackerServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
		_ = r.Body.Close()
	}

	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   r.URL.RawQuery,
		Headers: r.Header.Clone(),
		Body:    body,
	})
	authError, serverError := m.authError, m.serverError
	resp, found := m.responses[r.Method+" "+r.URL.Path]
	if !found {
		resp, found = m.responses[r.URL.Path]
	}
	handler := m.defaultHandler
	m.mu.Unlock()

	if authError {
		WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}
	if serverError {
		WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	if found {
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		code := resp.StatusCode
		if code == 0 {
			code = http.StatusOK
		}
		WriteJSON(w, code, resp.Body)
		return
	}

	if handler != nil {
		r.Body = io.NopCloser(bytes.NewReader(body))
		handler(w, r)
		return
	}

	WriteJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
}

// URL returns the mock server URL.
func (m *MockTrackerServer) URL() string {
	return m.Server.URL
}

// Close shuts down the mock server.
func (m *MockTrackerServer) Close() {
	m.Server.Close()
}

// SetResponse configures a response for a path. The key may be prefixed
// with a method, e.g. "PUT /stories/1".
func (m *MockTrackerServer) SetResponse(key string, statusCode int, body interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[key] = MockResponse{StatusCode: statusCode, Body: body}
}

// SetDefaultHandler sets a custom handler for unmatched requests.
func (m *MockTrackerServer) SetDefaultHandler(handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultHandler = handler
}

// SetAuthError enables/disables 401 Unauthorized responses.
func (m *MockTrackerServer) SetAuthError(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authError = enabled
}

// SetServerError enables/disables 500 Internal Server Error responses.
func (m *MockTrackerServer) SetServerError(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serverError = enabled
}

// GetRequests returns all recorded requests.
func (m *MockTrackerServer) GetRequests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]RecordedRequest, len(m.requests))
	copy(result, m.requests)
	return result
}

// FindRequests returns recorded requests matching method and path.
func (m *MockTrackerServer) FindRequests(method, path string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range m.GetRequests() {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// CountMutations returns how many non-GET requests were recorded.
func (m *MockTrackerServer) CountMutations() int {
	n := 0
	for _, r := range m.GetRequests() {
		if r.Method != http.MethodGet {
			n++
		}
	}
	return n
}

// ClearRequests clears all recorded requests.
func (m *MockTrackerServer) ClearRequests() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// WriteJSON writes body as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// DecodeJSON reads a JSON request body into v.
func DecodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
