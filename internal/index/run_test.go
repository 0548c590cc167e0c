package index

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartograph-dev/cartograph/internal/dgx"
	carterrors "github.com/cartograph-dev/cartograph/internal/errors"
)

// jobServer is a scripted DGX job registry: jobs stay queued for
// activateAfter status polls, then report active.
type jobServer struct {
	activateAfter int

	mu        sync.Mutex
	polls     int
	progress  []int
	completed bool
	failed    bool
}

func (s *jobServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"job_id":                 "job-1",
			"status":                 "queued",
			"position":               2,
			"recommended_batch_size": 4,
		})
	})
	mux.HandleFunc("GET /jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.polls++
		status := "queued"
		if s.polls > s.activateAfter {
			status = "active"
		}
		s.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "position": 1})
	})
	mux.HandleFunc("POST /jobs/job-1/progress", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Current int `json:"current"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.progress = append(s.progress, body.Current)
		s.mu.Unlock()
	})
	mux.HandleFunc("POST /jobs/job-1/complete", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.completed = true
		s.mu.Unlock()
	})
	mux.HandleFunc("POST /jobs/job-1/fail", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.failed = true
		s.mu.Unlock()
	})
	return mux
}

func newQueuedFixture(t *testing.T, srv *jobServer, timeout time.Duration) *fixture {
	t.Helper()
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)

	dir := newProject(t)
	f := newFixture(t, dir, filepath.Join(t.TempDir(), "index.json"))
	f.orch.jobs = dgx.NewJobClient(ts.URL)
	f.orch.cfg.JobPollInterval = 10 * time.Millisecond
	f.orch.cfg.JobActivationTimeout = timeout
	return f
}

func TestFullPass_WaitsForJobActivation(t *testing.T) {
	srv := &jobServer{activateAfter: 2}
	f := newQueuedFixture(t, srv, 5*time.Second)

	require.NoError(t, f.orch.fullPass(context.Background()))

	assert.Equal(t, f.idx.Len(), f.emb.embedded())

	// Notifications are fire-and-forget and may land out of order; wait
	// for the progress high-water mark to reach the embedded count.
	require.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		maxProgress := 0
		for _, p := range srv.progress {
			if p > maxProgress {
				maxProgress = p
			}
		}
		return srv.completed && maxProgress == f.emb.embedded()
	}, 3*time.Second, 10*time.Millisecond)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.GreaterOrEqual(t, srv.polls, 3)
}

func TestFullPass_ActivationTimeoutFailsRun(t *testing.T) {
	srv := &jobServer{activateAfter: 1 << 30} // never activates
	f := newQueuedFixture(t, srv, 60*time.Millisecond)

	err := f.orch.fullPass(context.Background())
	require.Error(t, err)

	var cerr *carterrors.CartoError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, carterrors.ErrCodeJobTimeout, cerr.Code)

	// Nothing was embedded while queued.
	assert.Zero(t, f.emb.embedded())

	require.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return srv.failed
	}, 3*time.Second, 10*time.Millisecond)
}

func TestFullPass_UsesRecommendedBatchSize(t *testing.T) {
	srv := &jobServer{activateAfter: 0}
	f := newQueuedFixture(t, srv, 5*time.Second)

	require.NoError(t, f.orch.fullPass(context.Background()))
	assert.Equal(t, 4, f.orch.Status().BatchSize)
}

func TestEffectiveBatchSize_Precedence(t *testing.T) {
	dir := newProject(t)
	f := newFixture(t, dir, filepath.Join(t.TempDir(), "index.json"))

	assert.Equal(t, 7, func() int {
		f.orch.cfg.BatchSizeOverride = 7
		defer func() { f.orch.cfg.BatchSizeOverride = 0 }()
		return f.orch.effectiveBatchSize(4)
	}())
	assert.Equal(t, 4, f.orch.effectiveBatchSize(4))
	assert.Equal(t, f.emb.DefaultBatchSize(), f.orch.effectiveBatchSize(0))
}

func TestRunFailure_KeepsPriorIndexQueryable(t *testing.T) {
	dir := newProject(t)
	cp := filepath.Join(t.TempDir(), "index.json")
	f := newFixture(t, dir, cp)

	require.NoError(t, f.orch.fullPass(context.Background()))

	// A later run that dies while queued must not clear the index.
	srv := &jobServer{activateAfter: 1 << 30}
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)
	f.orch.jobs = dgx.NewJobClient(ts.URL)
	f.orch.cfg.JobPollInterval = 10 * time.Millisecond
	f.orch.cfg.JobActivationTimeout = 60 * time.Millisecond

	writeFile(t, dir, "alpha.go", strings.Replace(alphaSource, "hello", "hi", 1))
	f.cache.Update(context.Background(), []string{"alpha.go"})

	err := f.orch.fullPass(context.Background())
	require.Error(t, err)

	assert.Greater(t, f.idx.Len(), 0)
	results, err := f.idx.Search(context.Background(), "say hello", 3)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}
