package dgx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	var got registerRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/jobs", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(Job{
			ID:                   "job-1",
			Status:               JobQueued,
			Position:             3,
			RecommendedBatchSize: 16,
		})
	}))
	defer srv.Close()

	c := NewJobClient(srv.URL)
	job, err := c.Register(context.Background(), "cartograph", 1200, "inst-a")
	require.NoError(t, err)

	assert.Equal(t, "cartograph", got.Project)
	assert.Equal(t, 1200, got.TotalChunks)
	assert.Equal(t, "inst-a", got.InstanceID)

	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, JobQueued, job.Status)
	assert.Equal(t, 3, job.Position)
	assert.Equal(t, 16, job.RecommendedBatchSize)
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/jobs/job-1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(JobStatus{Status: JobActive, Position: 0})
	}))
	defer srv.Close()

	c := NewJobClient(srv.URL)
	status, err := c.Status(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, JobActive, status.Status)
}

func TestStatus_ServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such job", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewJobClient(srv.URL)
	_, err := c.Status(context.Background(), "gone")
	assert.Error(t, err)
}

func TestFireAndForgetNotifications(t *testing.T) {
	var mu sync.Mutex
	paths := make(map[string][]byte)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		paths[r.URL.Path] = body
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewJobClient(srv.URL)
	c.Progress("job-1", 500)
	c.Complete("job-1")
	c.Fail("job-2", "boom")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(paths) == 3
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.JSONEq(t, `{"current":500}`, string(paths["/jobs/job-1/progress"]))
	assert.Contains(t, paths, "/jobs/job-1/complete")
	assert.JSONEq(t, `{"error":"boom"}`, string(paths["/jobs/job-2/fail"]))
}
