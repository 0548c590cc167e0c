// Package dgx implements the job-queue protocol against the shared DGX
// embedding server. The server arbitrates access to the GPU across
// instances and projects; this client only registers jobs, polls status,
// and reports progress. Progress and terminal notifications are
// fire-and-forget: the index never blocks on them and their failures are
// logged at debug only.
package dgx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// JobState is the server-side lifecycle state of a job.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobActive    JobState = "active"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Job is the server's response to a registration.
type Job struct {
	ID                   string   `json:"job_id"`
	Status               JobState `json:"status"`
	Position             int      `json:"position"`
	RecommendedBatchSize int      `json:"recommended_batch_size"`
}

// JobStatus is a polled snapshot of a registered job.
type JobStatus struct {
	Status   JobState `json:"status"`
	Position int      `json:"position"`
}

// Default request timeouts.
const (
	defaultRequestTimeout = 15 * time.Second
	notifyTimeout         = 5 * time.Second
)

// JobClient talks to the DGX server's job registry.
type JobClient struct {
	baseURL string
	client  *http.Client
}

// NewJobClient creates a client for the given server base URL.
func NewJobClient(baseURL string) *JobClient {
	return &JobClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultRequestTimeout},
	}
}

type registerRequest struct {
	Project     string `json:"project"`
	TotalChunks int    `json:"total_chunks"`
	InstanceID  string `json:"instance_id"`
}

// Register claims a slot in the job queue for this indexing run.
func (c *JobClient) Register(ctx context.Context, project string, totalChunks int, instanceID string) (*Job, error) {
	body, err := json.Marshal(registerRequest{
		Project:     project,
		TotalChunks: totalChunks,
		InstanceID:  instanceID,
	})
	if err != nil {
		return nil, err
	}

	var job Job
	if err := c.post(ctx, "/jobs", body, &job); err != nil {
		return nil, fmt.Errorf("job registration failed: %w", err)
	}

	slog.Info("registered embedding job",
		slog.String("job_id", job.ID),
		slog.String("status", string(job.Status)),
		slog.Int("position", job.Position),
		slog.Int("recommended_batch_size", job.RecommendedBatchSize),
	)
	return &job, nil
}

// Status polls the current state of a job.
func (c *JobClient) Status(ctx context.Context, id string) (*JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+id, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("job status poll failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("job status returned %d: %s", resp.StatusCode, msg)
	}

	var status JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode job status: %w", err)
	}
	return &status, nil
}

// Progress reports the current chunk count, fire-and-forget.
func (c *JobClient) Progress(id string, current int) {
	body, _ := json.Marshal(map[string]int{"current": current})
	c.notify("/jobs/"+id+"/progress", body)
}

// Complete marks the job finished, fire-and-forget.
func (c *JobClient) Complete(id string) {
	c.notify("/jobs/"+id+"/complete", nil)
}

// Fail marks the job failed with the error text, fire-and-forget.
func (c *JobClient) Fail(id string, errText string) {
	body, _ := json.Marshal(map[string]string{"error": errText})
	c.notify("/jobs/"+id+"/fail", body)
}

// notify posts without retries in a goroutine. Failures are debug-logged
// and otherwise ignored: the server reconciles jobs on its own timeline.
func (c *JobClient) notify(path string, body []byte) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := c.post(ctx, path, body, nil); err != nil {
			slog.Debug("job notification failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func (c *JobClient) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, msg)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
