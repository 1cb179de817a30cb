package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_FetchActivities(t *testing.T) {
	var gotPath, gotAuth string
	var gotFilters []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFilters = r.URL.Query()["filter"]
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"activities":[{"activityid":"9","time":350}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", "secret", nil, nil)
	batch, err := client.FetchActivities(context.Background(), RefreshFilter(300_000))
	require.NoError(t, err)
	require.Len(t, batch.Activities, 1)
	require.Equal(t, "/activities", gotPath)
	require.Equal(t, []string{"status=true", "updated>300"}, gotFilters)
	require.Equal(t, "Bearer secret", gotAuth)
}

func TestClient_ServerErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"E42","description":"bad filter"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", nil, nil).FetchActivities(context.Background(), FirstPageFilter(10))
	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, "E42", serverErr.Code)
	require.Equal(t, http.StatusBadRequest, serverErr.HTTPStatus)
}

func TestClient_PlainHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", nil, nil).FetchActivities(context.Background(), FirstPageFilter(10))
	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, http.StatusServiceUnavailable, serverErr.HTTPStatus)
	require.Equal(t, "down for maintenance", serverErr.Description)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(srv.URL, "", nil, nil).FetchActivities(ctx, FirstPageFilter(10))
	require.ErrorIs(t, err, ErrTimeout)
}

func TestClient_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "", nil, nil).FetchActivities(context.Background(), FirstPageFilter(10))
	require.ErrorIs(t, err, ErrUnavailable)
}
