package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cartograph-dev/cartograph/internal/chunk"
	"github.com/cartograph-dev/cartograph/internal/config"
	"github.com/cartograph-dev/cartograph/internal/detect"
	"github.com/cartograph-dev/cartograph/internal/dgx"
	"github.com/cartograph-dev/cartograph/internal/embed"
	"github.com/cartograph-dev/cartograph/internal/index"
	"github.com/cartograph-dev/cartograph/internal/source"
	"github.com/cartograph-dev/cartograph/internal/store"
)

// runtime bundles the wired components behind every command that touches
// the index.
type runtime struct {
	root  string
	cfg   *config.Config
	cache *source.Cache
	orch  *index.Orchestrator

	closers []func()
}

func (r *runtime) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// newRuntime discovers the project root, loads config, scans sources, and
// wires the embedding provider and orchestrator.
func newRuntime(ctx context.Context, startDir string, offline bool) (*runtime, error) {
	root, err := config.FindProjectRoot(startDir)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if offline {
		cfg.Embed.Offline = true
	}

	rt := &runtime{root: root, cfg: cfg}

	cache := source.NewCache(root, cfg.Paths.Exclude)
	if err := cache.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	rt.cache = cache
	rt.closers = append(rt.closers, cache.Close)

	var embedder embed.Embedder
	var jobs *dgx.JobClient
	if cfg.Embed.Offline {
		embedder = embed.NewStaticEmbedder()
	} else {
		remote, err := embed.NewRemoteEmbedder(ctx, embed.RemoteConfig{
			ServerURL:  cfg.Embed.ServerURL,
			Timeout:    cfg.Embed.Timeout,
			MaxRetries: cfg.Embed.MaxRetries,
		})
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("embed server unavailable (try --offline): %w", err)
		}
		embedder = embed.NewCachedEmbedder(remote, cfg.Embed.CacheSize)
		jobs = dgx.NewJobClient(cfg.Embed.ServerURL)
	}
	rt.closers = append(rt.closers, func() { _ = embedder.Close() })

	findings, err := detect.NewCache(detect.DefaultCacheSize)
	if err != nil {
		rt.close()
		return nil, err
	}

	checkpointPath, err := store.CheckpointPath(root)
	if err != nil {
		rt.close()
		return nil, err
	}

	rt.orch = index.New(index.Config{
		ProjectName:          filepath.Base(root),
		InstanceID:           instanceID(),
		CheckpointPath:       checkpointPath,
		CheckpointInterval:   cfg.Indexing.CheckpointInterval,
		JobPollInterval:      cfg.Indexing.JobPollInterval,
		JobActivationTimeout: cfg.Indexing.JobActivationTimeout,
		BatchSizeOverride:    cfg.Embed.BatchSize,
	}, cache, chunk.NewExtractor(findings), embedder, store.NewEmbeddingIndex(embedder), jobs)

	return rt, nil
}

// instanceID identifies this process to the shared job queue.
func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
