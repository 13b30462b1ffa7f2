package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"discourse-search-platform/internal/logger"
	"discourse-search-platform/services"
)

const (
	TaskIngestDocument = "document:ingest"
	TaskUpdateMetadata = "document:metadata"
	TaskDeleteDocument = "document:delete"
)

type DocumentPayload struct {
	Path string `json:"path"`
}

// Task creators
func NewIngestDocumentTask(path string) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentPayload{Path: path})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Minute),
		asynq.Queue("default"),
	), nil
}

func NewUpdateMetadataTask(path string) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentPayload{Path: path})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskUpdateMetadata,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Queue("critical"),
	), nil
}

func NewDeleteDocumentTask(path string) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentPayload{Path: path})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskDeleteDocument,
		payload,
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// Task handlers
type TaskProcessor struct {
	pipeline *services.Pipeline
}

func NewTaskProcessor(pipeline *services.Pipeline) *TaskProcessor {
	return &TaskProcessor{pipeline: pipeline}
}

func (p *TaskProcessor) HandleIngestDocument(ctx context.Context, t *asynq.Task) error {
	var payload DocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Ingest task started", "path", payload.Path)
	if err := p.pipeline.IngestDocument(ctx, payload.Path); err != nil {
		if services.IsFatal(err) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}

func (p *TaskProcessor) HandleUpdateMetadata(ctx context.Context, t *asynq.Task) error {
	var payload DocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Metadata task started", "path", payload.Path)
	return p.pipeline.UpdateDocMetadata(ctx, payload.Path)
}

func (p *TaskProcessor) HandleDeleteDocument(ctx context.Context, t *asynq.Task) error {
	var payload DocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Delete task started", "path", payload.Path)
	return p.pipeline.DeleteDocument(ctx, payload.Path)
}

// Dispatcher enqueues discovery work onto the task queue.
type Dispatcher struct {
	client *asynq.Client
}

func NewDispatcher(client *asynq.Client) *Dispatcher {
	return &Dispatcher{client: client}
}

func (d *Dispatcher) DispatchIngest(ctx context.Context, relPath string) error {
	task, err := NewIngestDocumentTask(relPath)
	if err != nil {
		return err
	}
	_, err = d.client.EnqueueContext(ctx, task)
	return err
}

func (d *Dispatcher) DispatchMetadataUpdate(ctx context.Context, relPath string) error {
	task, err := NewUpdateMetadataTask(relPath)
	if err != nil {
		return err
	}
	_, err = d.client.EnqueueContext(ctx, task)
	return err
}

func (d *Dispatcher) DispatchDelete(ctx context.Context, relPath string) error {
	task, err := NewDeleteDocumentTask(relPath)
	if err != nil {
		return err
	}
	_, err = d.client.EnqueueContext(ctx, task)
	return err
}
