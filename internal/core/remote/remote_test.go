package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldsync/fieldsync/internal/core"
	"github.com/fieldsync/fieldsync/internal/core/ratelimit"
)

func TestDoSuccess(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL}, nil)
	err := client.Do(context.Background(), http.MethodPost, "/actions/create_reading", []byte(`{"v":1}`))
	require.NoError(t, err)
	require.Equal(t, "/actions/create_reading", gotPath)
	require.Equal(t, http.MethodPost, gotMethod)
}

func TestDoClassifiesServerErrorsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL}, nil)
	err := client.Do(context.Background(), http.MethodGet, "/readings", nil)
	require.Error(t, err)
	require.Equal(t, ratelimit.CategoryRetryable, ratelimit.Classify(err))
}

func TestDoClassifiesTooManyRequestsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL}, nil)
	err := client.Do(context.Background(), http.MethodGet, "/readings", nil)
	require.Error(t, err)
	require.Equal(t, ratelimit.CategoryRetryable, ratelimit.Classify(err))
	require.Contains(t, err.Error(), "retry after 30s")
}

func TestDoClassifiesClientErrorsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL}, nil)
	err := client.Do(context.Background(), http.MethodPost, "/readings", []byte(`{}`))
	require.Error(t, err)
	require.Equal(t, ratelimit.CategoryPermanent, ratelimit.Classify(err))
}

func TestDoClassifiesNetworkFailureRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := New(Config{BaseURL: srv.URL, Timeout: time.Second}, nil)
	err := client.Do(context.Background(), http.MethodGet, "/readings", nil)
	require.Error(t, err)
	require.Equal(t, ratelimit.CategoryRetryable, ratelimit.Classify(err))
}

func TestExecutorPostsActionPayload(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL}, nil)
	exec := client.Executor()
	err := exec(context.Background(), core.OfflineAction{
		ID:      "a1",
		Type:    "update_reading",
		Payload: []byte(`{"v":2}`),
	})
	require.NoError(t, err)
	require.Equal(t, "/actions/update_reading", gotPath)
}

func TestReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
	}))
	client := New(Config{BaseURL: srv.URL}, nil)
	require.True(t, client.Reachable(context.Background()))

	srv.Close()
	require.False(t, client.Reachable(context.Background()))
}

func TestRetryAfterHeader(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	require.Zero(t, retryAfterHeader(resp))

	resp.Header.Set("Retry-After", "45")
	require.Equal(t, 45*time.Second, retryAfterHeader(resp))

	resp.Header.Set("Retry-After", time.Now().Add(time.Minute).UTC().Format(http.TimeFormat))
	wait := retryAfterHeader(resp)
	require.Greater(t, wait, 50*time.Second)
}
