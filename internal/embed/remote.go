package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	carterrors "github.com/cartograph-dev/cartograph/internal/errors"
)

// Remote provider defaults.
const (
	DefaultRemoteTimeout    = 120 * time.Second
	DefaultRemoteRetries    = 3
	DefaultRemoteBatchSize  = 32
	remoteHealthTimeout     = 10 * time.Second
	remoteRetryInitialDelay = 1 * time.Second
	remoteRetryMaxDelay     = 8 * time.Second
)

// RemoteConfig configures the remote embedding provider.
type RemoteConfig struct {
	// ServerURL is the embedding server base URL (e.g. http://dgx:8080).
	ServerURL string

	// Timeout is the per-request timeout for embedding calls.
	Timeout time.Duration

	// MaxRetries is the number of attempts per batch.
	MaxRetries int
}

// RemoteEmbedder generates embeddings against the DGX server's /embed
// endpoint. Model name and dimensionality come from /health at startup.
type RemoteEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    RemoteConfig
	modelName string
	dims      int

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Embedder = (*RemoteEmbedder)(nil)

type healthResponse struct {
	Status     string `json:"status"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

type embedRequest struct {
	Inputs []string `json:"inputs"`
}

// NewRemoteEmbedder creates a remote embedder and verifies the server is
// reachable. Dimensions and model name are taken from the health response.
func NewRemoteEmbedder(ctx context.Context, cfg RemoteConfig) (*RemoteEmbedder, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRemoteTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultRemoteRetries
	}

	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
	}

	e := &RemoteEmbedder{
		// No client-level timeout: per-request contexts carry it so a
		// single slow batch cannot be cut short by a static deadline.
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
	}

	health, err := e.health(ctx)
	if err != nil {
		transport.CloseIdleConnections()
		return nil, carterrors.New(carterrors.ErrCodeEmbedFailed,
			fmt.Sprintf("embedding server unreachable at %s", cfg.ServerURL), err)
	}
	e.modelName = health.Model
	e.dims = health.Dimensions

	slog.Info("connected to embedding server",
		slog.String("url", cfg.ServerURL),
		slog.String("model", e.modelName),
		slog.Int("dimensions", e.dims),
	)

	return e, nil
}

// Embed generates an embedding for a single text.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends one batch to /embed, retrying with exponential backoff.
func (e *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, carterrors.New(carterrors.ErrCodeEmbedFailed, "embedder is closed", nil)
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var (
		vecs    [][]float32
		lastErr error
		delay   = remoteRetryInitialDelay
	)

	for attempt := 0; attempt < e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > remoteRetryMaxDelay {
				delay = remoteRetryMaxDelay
			}
		}

		vecs, lastErr = e.doEmbed(ctx, texts)
		if lastErr == nil {
			return vecs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		slog.Debug("embed batch attempt failed",
			slog.Int("attempt", attempt+1),
			slog.Int("batch_size", len(texts)),
			slog.String("error", lastErr.Error()),
		)
	}

	return nil, carterrors.New(carterrors.ErrCodeEmbedFailed,
		fmt.Sprintf("embedding batch of %d failed after %d attempts", len(texts), e.config.MaxRetries),
		lastErr)
}

func (e *RemoteEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Inputs: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.config.ServerURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embed request returned %d: %s", resp.StatusCode, msg)
	}

	var raw [][]float64
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(raw) != len(texts) {
		return nil, fmt.Errorf("server returned %d vectors for %d inputs", len(raw), len(texts))
	}

	vecs := make([][]float32, len(raw))
	for i, v := range raw {
		vec := make([]float32, len(v))
		for j, x := range v {
			vec[j] = float32(x)
		}
		vecs[i] = normalizeVector(vec)
	}
	return vecs, nil
}

func (e *RemoteEmbedder) health(ctx context.Context) (*healthResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, remoteHealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, e.config.ServerURL+"/health", nil)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health check returned %d", resp.StatusCode)
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &health, nil
}

// Dimensions returns the vector dimensionality reported by the server.
func (e *RemoteEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier reported by the server.
func (e *RemoteEmbedder) ModelName() string {
	return e.modelName
}

// DefaultBatchSize returns the provider default batch size.
func (e *RemoteEmbedder) DefaultBatchSize() int {
	return DefaultRemoteBatchSize
}

// Available reports whether the server responds to a health check.
func (e *RemoteEmbedder) Available(ctx context.Context) bool {
	_, err := e.health(ctx)
	return err == nil
}

// Close releases connection resources.
func (e *RemoteEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}
