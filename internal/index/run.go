package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cartograph-dev/cartograph/internal/chunk"
	"github.com/cartograph-dev/cartograph/internal/dgx"
	carterrors "github.com/cartograph-dev/cartograph/internal/errors"
	"github.com/cartograph-dev/cartograph/internal/source"
)

// Build starts a full indexing run in the background and returns a status
// snapshot immediately. If a run is already active this is a no-op beyond
// returning the current status.
func (o *Orchestrator) Build(ctx context.Context) Status {
	o.mu.Lock()
	if o.running {
		s := o.statusLocked()
		o.mu.Unlock()
		return s
	}
	o.running = true
	o.processed = 0
	o.total = 0
	o.lastErr = ""
	o.jobID = ""
	o.queuePos = 0
	o.startedAt = time.Now()
	s := o.statusLocked()
	o.mu.Unlock()

	// The run outlives the caller's request.
	go o.run(context.WithoutCancel(ctx))
	return s
}

func (o *Orchestrator) run(ctx context.Context) {
	if err := o.fullPass(ctx); err != nil {
		slog.Error("indexing run failed", slog.String("error", err.Error()))
		o.setError(err)
		o.finishRun(false)
		return
	}
	ok := o.drainChanges(ctx)
	o.finishRun(ok)
}

// drainPending is the entry point for change-triggered runs: the watcher
// queued paths while no run was active.
func (o *Orchestrator) drainPending() {
	ok := o.drainChanges(context.Background())
	o.finishRun(ok)
}

// drainChanges applies incremental passes until the pending set is empty.
func (o *Orchestrator) drainChanges(ctx context.Context) bool {
	for {
		changed := o.takePending()
		if len(changed) == 0 {
			return true
		}
		if err := o.incremental(ctx, changed); err != nil {
			slog.Error("incremental indexing failed",
				slog.Int("changed_files", len(changed)),
				slog.String("error", err.Error()),
			)
			o.setError(err)
			return false
		}
	}
}

func (o *Orchestrator) finishRun(ok bool) {
	o.mu.Lock()
	// A notification that landed after the last drain saw running==true
	// and queued its paths without starting a goroutine; drain it now
	// instead of going idle with work pending.
	if len(o.pending) > 0 {
		o.mu.Unlock()
		go o.drainPending()
		return
	}
	o.running = false
	if ok && o.phase != PhaseError {
		o.phase = PhaseIdle
	}
	o.jobID = ""
	o.queuePos = 0
	o.mu.Unlock()
}

// fullPass reconciles the index against the full current chunk set. It
// loads any checkpoint first and embeds only the minimal set: everything
// when starting cold, only changed-file chunks plus virtual chunks when
// resuming a complete checkpoint, and only missing ids when resuming an
// interrupted run.
func (o *Orchestrator) fullPass(ctx context.Context) error {
	files := o.cache.Files()
	chunks, err := o.extractor.ExtractAll(ctx, files)
	if err != nil {
		return err
	}
	hashes := o.cache.Hashes()

	loaded, err := o.index.Load(o.cfg.CheckpointPath, hashes)
	if err != nil {
		slog.Warn("checkpoint load failed, rebuilding from scratch",
			slog.String("path", o.cfg.CheckpointPath),
			slog.String("error", err.Error()),
		)
		loaded = nil
	}
	o.recordConsumed()

	var toEmbed []chunk.Chunk
	resumeJobID := ""
	switch {
	case loaded == nil:
		toEmbed = chunks

	case loaded.IsComplete:
		if len(loaded.Changed) == 0 {
			// Index is current; nothing to embed, nothing to rewrite.
			o.index.SetFileHashes(hashes)
			slog.Info("index is up to date", slog.Int("chunks", o.index.Len()))
			return nil
		}
		changedSet := make(map[string]struct{}, len(loaded.Changed))
		for _, p := range loaded.Changed {
			changedSet[p] = struct{}{}
		}
		o.index.RemoveFiles(loaded.Changed)
		o.index.RemoveVirtual()
		for _, c := range chunks {
			if _, ok := changedSet[c.File]; ok || c.Kind.IsVirtual() {
				toEmbed = append(toEmbed, c)
			}
		}

	default:
		// Interrupted run: embed exactly the ids the checkpoint is missing.
		resumeJobID = loaded.JobID
		for _, c := range chunks {
			if !o.index.Contains(c.ID) {
				toEmbed = append(toEmbed, c)
			}
		}
		slog.Info("resuming interrupted run",
			slog.Int("already_indexed", o.index.Len()),
			slog.Int("remaining", len(toEmbed)),
		)
	}

	o.index.SetFileHashes(hashes)

	o.mu.Lock()
	o.total = len(toEmbed)
	o.totalExpected = len(chunks)
	o.resumeJobID = resumeJobID
	o.mu.Unlock()

	if len(toEmbed) == 0 {
		o.setPhase(PhaseFinalizing)
		o.saveCheckpoint(true, len(chunks), "")
		return nil
	}

	jobID, batchSize, err := o.claimJob(ctx, len(toEmbed))
	if err != nil {
		// A registered job that never activated still holds a queue slot;
		// release it before surfacing the error.
		if o.jobs != nil && jobID != "" {
			o.jobs.Fail(jobID, err.Error())
		}
		return err
	}

	if err := o.embedChunks(ctx, toEmbed, jobID, batchSize); err != nil {
		if o.jobs != nil && jobID != "" {
			o.jobs.Fail(jobID, err.Error())
		}
		return err
	}

	o.setPhase(PhaseFinalizing)
	o.saveCheckpoint(true, len(chunks), "")
	if o.jobs != nil && jobID != "" {
		o.jobs.Complete(jobID)
	}

	slog.Info("full indexing pass finished",
		slog.Int("embedded", len(toEmbed)),
		slog.Int("index_size", o.index.Len()),
	)
	return nil
}

// incremental re-embeds chunks from the changed files plus the entire
// virtual layer, which derives from the full file set and is invalidated
// wholesale by any change. Incremental batches are small enough that no
// job-queue slot is claimed.
func (o *Orchestrator) incremental(ctx context.Context, changed []string) error {
	slog.Info("incremental pass", slog.Int("changed_files", len(changed)))

	changedSet := make(map[string]struct{}, len(changed))
	for _, p := range changed {
		changedSet[p] = struct{}{}
	}

	// Only the changed files are re-extracted; unchanged files contribute
	// their stored chunk snapshots. Deleted files are absent from the
	// cache, so they produce no new chunks here.
	files := o.cache.Files()
	var changedFiles []*source.ParsedFile
	for _, f := range files {
		if _, ok := changedSet[f.Path]; ok {
			changedFiles = append(changedFiles, f)
		}
	}

	newChunks, err := o.extractor.ExtractFiles(ctx, changedFiles)
	if err != nil {
		return err
	}

	o.index.RemoveFiles(changed)
	o.index.RemoveVirtual()

	fileChunks := append(o.index.FileChunks(), newChunks...)
	fileChunks = chunk.AttachCallGraph(fileChunks)
	virtual := o.extractor.Virtual(fileChunks, files)

	var toEmbed []chunk.Chunk
	for _, c := range fileChunks {
		if _, ok := changedSet[c.File]; ok {
			toEmbed = append(toEmbed, c)
		}
	}
	toEmbed = append(toEmbed, virtual...)

	totalExpected := len(fileChunks) + len(virtual)
	o.mu.Lock()
	o.processed = 0
	o.total = len(toEmbed)
	o.totalExpected = totalExpected
	o.startedAt = time.Now()
	o.mu.Unlock()

	if err := o.embedChunks(ctx, toEmbed, "", o.effectiveBatchSize(0)); err != nil {
		return err
	}

	o.index.SetFileHashes(o.cache.Hashes())
	o.setPhase(PhaseFinalizing)
	o.saveCheckpoint(true, totalExpected, "")
	return nil
}

// claimJob registers with the job queue (or resumes an in-flight job) and
// waits for activation. With no job client the run proceeds immediately.
func (o *Orchestrator) claimJob(ctx context.Context, totalChunks int) (string, int, error) {
	if o.jobs == nil {
		batch := o.effectiveBatchSize(0)
		o.mu.Lock()
		o.batchSize = batch
		o.mu.Unlock()
		return "", batch, nil
	}

	o.setPhase(PhaseRegistering)

	o.mu.Lock()
	resume := o.resumeJobID
	o.resumeJobID = ""
	o.mu.Unlock()

	var job *dgx.Job
	if resume != "" {
		st, err := o.jobs.Status(ctx, resume)
		if err == nil && (st.Status == dgx.JobActive || st.Status == dgx.JobQueued) {
			job = &dgx.Job{ID: resume, Status: st.Status, Position: st.Position}
			slog.Info("resuming embedding job",
				slog.String("job_id", resume),
				slog.String("status", string(st.Status)),
			)
		}
	}
	if job == nil {
		registered, err := o.jobs.Register(ctx, o.cfg.ProjectName, totalChunks, o.cfg.InstanceID)
		if err != nil {
			return "", 0, err
		}
		job = registered
	}

	batch := o.effectiveBatchSize(job.RecommendedBatchSize)
	o.mu.Lock()
	o.jobID = job.ID
	o.queuePos = job.Position
	o.batchSize = batch
	o.mu.Unlock()

	if job.Status != dgx.JobActive {
		if err := o.awaitActivation(ctx, job.ID); err != nil {
			return job.ID, batch, err
		}
	}
	o.setPhase(PhaseActive)
	return job.ID, batch, nil
}

// awaitActivation polls job status until the server activates the job.
// Exceeding the activation timeout fails the run.
func (o *Orchestrator) awaitActivation(ctx context.Context, jobID string) error {
	o.setPhase(PhaseQueued)

	deadline := time.Now().Add(o.cfg.JobActivationTimeout)
	ticker := time.NewTicker(o.cfg.JobPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			st, err := o.jobs.Status(ctx, jobID)
			switch {
			case err != nil:
				slog.Warn("job status poll failed",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			case st.Status == dgx.JobActive:
				return nil
			case st.Status == dgx.JobFailed:
				return carterrors.New(carterrors.ErrCodeIndexFailed,
					fmt.Sprintf("job %s failed while queued", jobID), nil)
			default:
				o.mu.Lock()
				o.queuePos = st.Position
				o.mu.Unlock()
			}

			if time.Now().After(deadline) {
				return carterrors.New(carterrors.ErrCodeJobTimeout,
					fmt.Sprintf("job %s not activated within %s", jobID, o.cfg.JobActivationTimeout), nil)
			}
		}
	}
}

// embedChunks pushes the chunks through the embedder in batches, updating
// progress after each batch and saving an incomplete checkpoint at the
// configured interval so an interrupted run can resume mid-stream.
func (o *Orchestrator) embedChunks(ctx context.Context, chunks []chunk.Chunk, jobID string, batchSize int) error {
	o.setPhase(PhaseEmbedding)

	sinceCheckpoint := 0
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].EmbeddingText()
		}

		vectors, err := o.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if err := o.index.Put(batch, vectors); err != nil {
			return err
		}

		o.mu.Lock()
		o.processed += len(batch)
		processed := o.processed
		totalExpected := o.totalExpected
		o.mu.Unlock()

		if o.jobs != nil && jobID != "" {
			o.jobs.Progress(jobID, processed)
		}

		sinceCheckpoint += len(batch)
		if sinceCheckpoint >= o.cfg.CheckpointInterval && end < len(chunks) {
			o.setPhase(PhaseCheckpointing)
			o.saveCheckpoint(false, totalExpected, jobID)
			o.setPhase(PhaseEmbedding)
			sinceCheckpoint = 0
		}
	}
	return nil
}

// effectiveBatchSize resolves the batch size: explicit override, then the
// server recommendation, then the provider default.
func (o *Orchestrator) effectiveBatchSize(recommended int) int {
	if o.cfg.BatchSizeOverride > 0 {
		return o.cfg.BatchSizeOverride
	}
	if recommended > 0 {
		return recommended
	}
	return o.embedder.DefaultBatchSize()
}

// saveCheckpoint persists the index. Save failures never abort a run; the
// index stays valid in memory and the next save retries.
func (o *Orchestrator) saveCheckpoint(complete bool, totalExpected int, jobID string) {
	if err := o.index.Save(o.cfg.CheckpointPath, complete, totalExpected, jobID); err != nil {
		slog.Warn("checkpoint save failed, continuing in memory",
			slog.String("path", o.cfg.CheckpointPath),
			slog.String("error", err.Error()),
		)
		return
	}
	o.recordSelfWrite()
}

// recordSelfWrite remembers the mtime of our own checkpoint write so the
// cross-instance watcher does not reload it.
func (o *Orchestrator) recordSelfWrite() {
	info, err := os.Stat(o.cfg.CheckpointPath)
	if err != nil {
		return
	}
	o.mu.Lock()
	o.lastSelfWrite = info.ModTime()
	o.mu.Unlock()
}

// recordConsumed remembers the mtime of the checkpoint version we just
// loaded, so the watcher only reloads strictly newer writes.
func (o *Orchestrator) recordConsumed() {
	info, err := os.Stat(o.cfg.CheckpointPath)
	if err != nil {
		return
	}
	o.mu.Lock()
	o.lastConsumed = info.ModTime()
	o.mu.Unlock()
}
