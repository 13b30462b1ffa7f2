package services

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// InlineDispatcher runs pipeline work in-process with bounded concurrency,
// for one-shot scans that have no queue behind them. Call Wait after the
// scan to drain outstanding work.
type InlineDispatcher struct {
	pipeline *Pipeline
	group    *errgroup.Group
	ctx      context.Context
}

func NewInlineDispatcher(ctx context.Context, pipeline *Pipeline, concurrency int) *InlineDispatcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	return &InlineDispatcher{
		pipeline: pipeline,
		group:    group,
		ctx:      groupCtx,
	}
}

func (d *InlineDispatcher) DispatchIngest(_ context.Context, relPath string) error {
	d.group.Go(func() error {
		if err := d.pipeline.IngestDocument(d.ctx, relPath); err != nil && IsFatal(err) {
			return err
		}
		return nil
	})
	return nil
}

func (d *InlineDispatcher) DispatchMetadataUpdate(_ context.Context, relPath string) error {
	d.group.Go(func() error {
		if err := d.pipeline.UpdateDocMetadata(d.ctx, relPath); err != nil && IsFatal(err) {
			return err
		}
		return nil
	})
	return nil
}

func (d *InlineDispatcher) DispatchDelete(_ context.Context, relPath string) error {
	d.group.Go(func() error {
		if err := d.pipeline.DeleteDocument(d.ctx, relPath); err != nil && IsFatal(err) {
			return err
		}
		return nil
	})
	return nil
}

// Wait blocks until every dispatched task finishes. Only fatal errors
// propagate; per-document failures were already recorded in the state store.
func (d *InlineDispatcher) Wait() error {
	return d.group.Wait()
}
