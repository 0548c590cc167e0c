// Package index contains the indexing orchestrator: the state machine that
// owns indexing runs, coordinates with the DGX job queue, persists
// checkpoints, and keeps sibling instances in sync through the checkpoint
// file. Only one run is active per process; queries never block on a run.
package index

import (
	"sync"
	"time"

	"github.com/cartograph-dev/cartograph/internal/chunk"
	"github.com/cartograph-dev/cartograph/internal/dgx"
	"github.com/cartograph-dev/cartograph/internal/embed"
	"github.com/cartograph-dev/cartograph/internal/source"
	"github.com/cartograph-dev/cartograph/internal/store"
)

// Phase is the orchestrator's current position in the run state machine.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseRegistering   Phase = "registering"
	PhaseQueued        Phase = "queued"
	PhaseActive        Phase = "active"
	PhaseEmbedding     Phase = "embedding"
	PhaseCheckpointing Phase = "checkpointing"
	PhaseFinalizing    Phase = "finalizing"
	PhaseError         Phase = "error"
)

// Defaults for orchestrator tuning knobs.
const (
	DefaultCheckpointInterval   = 500
	DefaultJobPollInterval      = 2 * time.Second
	DefaultJobActivationTimeout = 5 * time.Minute
)

// Config configures an Orchestrator.
type Config struct {
	// ProjectName identifies this project to the job queue.
	ProjectName string

	// InstanceID identifies this process instance to the job queue.
	InstanceID string

	// CheckpointPath is where the index is persisted.
	CheckpointPath string

	// CheckpointInterval is how many chunks are embedded between
	// incomplete-checkpoint saves.
	CheckpointInterval int

	// JobPollInterval is how often job status is polled while queued.
	JobPollInterval time.Duration

	// JobActivationTimeout bounds the total wait for job activation.
	// Exceeding it is run-fatal.
	JobActivationTimeout time.Duration

	// BatchSizeOverride forces the embedding batch size. Zero means use
	// the server recommendation, falling back to the provider default.
	BatchSizeOverride int
}

func (c Config) withDefaults() Config {
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = DefaultCheckpointInterval
	}
	if c.JobPollInterval <= 0 {
		c.JobPollInterval = DefaultJobPollInterval
	}
	if c.JobActivationTimeout <= 0 {
		c.JobActivationTimeout = DefaultJobActivationTimeout
	}
	return c
}

// Status is a read-only snapshot of orchestrator state.
type Status struct {
	Phase         Phase         `json:"phase"`
	Running       bool          `json:"running"`
	Processed     int           `json:"processed"`
	Total         int           `json:"total"`
	Elapsed       time.Duration `json:"elapsed"`
	ETA           time.Duration `json:"eta"`
	ChunksPerSec  float64       `json:"chunksPerSec"`
	Provider      string        `json:"provider"`
	BatchSize     int           `json:"batchSize"`
	LastError     string        `json:"lastError,omitempty"`
	IndexSize     int           `json:"indexSize"`
	JobID         string        `json:"jobId,omitempty"`
	QueuePosition int           `json:"queuePosition,omitempty"`
}

// Orchestrator owns indexing runs for one project instance.
// All mutable state lives behind one mutex held only for field access,
// never across extraction, embedding, or I/O.
type Orchestrator struct {
	cfg       Config
	cache     *source.Cache
	extractor *chunk.Extractor
	embedder  embed.Embedder
	index     *store.EmbeddingIndex
	jobs      *dgx.JobClient // nil in offline mode

	mu            sync.Mutex
	phase         Phase
	running       bool
	processed     int
	total         int
	totalExpected int
	batchSize     int
	jobID         string
	queuePos      int
	lastErr       string
	startedAt     time.Time
	pending       map[string]struct{}
	resumeJobID   string
	lastSelfWrite time.Time
	lastConsumed  time.Time
}

// New creates an orchestrator. jobs may be nil, in which case runs embed
// without job-queue coordination (offline/static provider).
func New(cfg Config, cache *source.Cache, extractor *chunk.Extractor, embedder embed.Embedder, idx *store.EmbeddingIndex, jobs *dgx.JobClient) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg.withDefaults(),
		cache:     cache,
		extractor: extractor,
		embedder:  embedder,
		index:     idx,
		jobs:      jobs,
		phase:     PhaseIdle,
		pending:   make(map[string]struct{}),
	}
}

// Index exposes the underlying embedding index for query surfaces.
func (o *Orchestrator) Index() *store.EmbeddingIndex {
	return o.index
}

// Status returns a snapshot of the current run.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.statusLocked()
}

func (o *Orchestrator) statusLocked() Status {
	s := Status{
		Phase:         o.phase,
		Running:       o.running,
		Processed:     o.processed,
		Total:         o.total,
		Provider:      o.embedder.ModelName(),
		BatchSize:     o.batchSize,
		LastError:     o.lastErr,
		IndexSize:     o.index.Len(),
		JobID:         o.jobID,
		QueuePosition: o.queuePos,
	}
	if !o.startedAt.IsZero() {
		s.Elapsed = time.Since(o.startedAt)
		if o.running && o.processed > 0 && s.Elapsed > 0 {
			s.ChunksPerSec = float64(o.processed) / s.Elapsed.Seconds()
			if remaining := o.total - o.processed; remaining > 0 && s.ChunksPerSec > 0 {
				s.ETA = time.Duration(float64(remaining)/s.ChunksPerSec) * time.Second
			}
		}
	}
	return s
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
}

func (o *Orchestrator) setError(err error) {
	o.mu.Lock()
	o.phase = PhaseError
	o.lastErr = err.Error()
	o.mu.Unlock()
}

// NotifyChanged queues changed paths for reconciliation. During an active
// run the paths are drained into an incremental pass when the run
// finishes; otherwise an incremental run starts immediately.
func (o *Orchestrator) NotifyChanged(paths []string) {
	o.mu.Lock()
	for _, p := range paths {
		o.pending[p] = struct{}{}
	}
	shouldStart := !o.running
	if shouldStart {
		o.running = true
		o.startedAt = time.Now()
	}
	o.mu.Unlock()

	if shouldStart {
		go o.drainPending()
	}
}

// takePending atomically claims the queued change set.
func (o *Orchestrator) takePending() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.pending) == 0 {
		return nil
	}
	out := make([]string, 0, len(o.pending))
	for p := range o.pending {
		out = append(out, p)
	}
	o.pending = make(map[string]struct{})
	return out
}
