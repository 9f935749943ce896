package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jzempel/continuity/internal/types"
)

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		from, to types.Status
		ok       bool
	}{
		{types.StatusUnstarted, types.StatusStarted, true},
		{types.StatusUnstarted, types.StatusFinished, true},
		{types.StatusStarted, types.StatusFinished, true},
		{types.StatusStarted, types.StatusStarted, true},
		{types.StatusRejected, types.StatusStarted, true},
		{types.StatusOther, types.StatusStarted, true},
		{types.StatusFinished, types.StatusStarted, false},
		{types.StatusStarted, types.StatusUnstarted, false},
		{types.StatusFinished, types.StatusUnstarted, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			err := CheckTransition("1", tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, types.ErrConflict))
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, types.ErrUnauthorized, ClassifyStatus(401, false))
	assert.Equal(t, types.ErrUnauthorized, ClassifyStatus(403, true))
	assert.Equal(t, types.ErrNotFound, ClassifyStatus(404, false))
	assert.Equal(t, types.ErrConflict, ClassifyStatus(422, true))
	assert.Equal(t, types.ErrConflict, ClassifyStatus(409, true))
	assert.Nil(t, ClassifyStatus(400, false))
	assert.Equal(t, types.ErrUnreachable, ClassifyStatus(502, false))
}

func TestRESTClientDo(t *testing.T) {
	var gotToken, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Token")
		gotQuery = r.URL.RawQuery
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"name":"x"}`))
		case "/empty":
			w.WriteHeader(http.StatusNoContent)
		case "/reject":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"invalid"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewRESTClient(server.URL+"/", func(r *http.Request) { r.Header.Set("X-Token", "secret") })
	ctx := context.Background()

	var out struct{ Name string }
	require.NoError(t, c.Do(ctx, http.MethodGet, "ok", url.Values{"a": {"1"}}, nil, &out))
	assert.Equal(t, "x", out.Name)
	assert.Equal(t, "secret", gotToken)
	assert.Equal(t, "a=1", gotQuery)

	require.NoError(t, c.Do(ctx, http.MethodDelete, "/empty", nil, nil, &out))

	err := c.Do(ctx, http.MethodPut, "/reject", nil, map[string]bool{"x": true}, nil)
	assert.True(t, errors.Is(err, types.ErrConflict))
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 422, httpErr.StatusCode)

	err = c.Do(ctx, http.MethodGet, "/missing", nil, nil, nil)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestRESTClientUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	c := NewRESTClient(base, nil)
	err := c.Do(context.Background(), http.MethodGet, "/x", nil, nil, nil)
	assert.True(t, errors.Is(err, types.ErrUnreachable), "got %v", err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.Do(ctx, http.MethodGet, "/x", nil, nil, nil)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}
