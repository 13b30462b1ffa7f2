package services

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"discourse-search-platform/internal/config"
	"discourse-search-platform/internal/logger"
	"discourse-search-platform/internal/telemetry"
	"discourse-search-platform/models"
	"discourse-search-platform/utils"
)

// Dispatcher receives the work items discovery classified. The worker binary
// enqueues asynq tasks; the scan CLI runs the pipeline inline.
type Dispatcher interface {
	DispatchIngest(ctx context.Context, relPath string) error
	DispatchMetadataUpdate(ctx context.Context, relPath string) error
	DispatchDelete(ctx context.Context, relPath string) error
}

// FileStates is the slice of the state store discovery reads and writes.
type FileStates interface {
	Get(ctx context.Context, path string) (*models.FileState, error)
	Upsert(ctx context.Context, state *models.FileState) error
	All(ctx context.Context, fn func(*models.FileState) error) error
}

// ScanStats summarizes one discovery pass.
type ScanStats struct {
	New            int
	ContentChanged int
	ConfigChanged  int
	Unchanged      int
	Deleted        int
	Failed         int
}

// Discovery walks the corpus, diffs every PDF against the state store, and
// dispatches the resulting work. Per-file failures never abort a scan; only
// state store errors do.
type Discovery struct {
	cfg        *config.Config
	resolver   *ConfigResolver
	store      FileStates
	dispatcher Dispatcher
	metrics    *telemetry.Metrics
}

func NewDiscovery(cfg *config.Config, resolver *ConfigResolver, store FileStates, dispatcher Dispatcher, metrics *telemetry.Metrics) *Discovery {
	return &Discovery{
		cfg:        cfg,
		resolver:   resolver,
		store:      store,
		dispatcher: dispatcher,
		metrics:    metrics,
	}
}

// Scan performs one full discovery pass over the corpus root.
func (d *Discovery) Scan(ctx context.Context) (*ScanStats, error) {
	stats := &ScanStats{}
	seen := make(map[string]bool)

	err := filepath.WalkDir(d.cfg.CorpusRoot, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			logger.Warn("Corpus walk error", "path", path, "error", walkErr)
			return nil
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		relPath, err := filepath.Rel(d.cfg.CorpusRoot, path)
		if err != nil {
			return nil
		}
		seen[relPath] = true

		if err := d.scanFile(ctx, path, relPath, stats); err != nil {
			if IsFatal(err) || ctx.Err() != nil {
				return err
			}
			stats.Failed++
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	// Deletion detection: state rows whose files vanished from disk.
	var deleted []string
	err = d.store.All(ctx, func(state *models.FileState) error {
		if !seen[state.Path] {
			deleted = append(deleted, state.Path)
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	for _, relPath := range deleted {
		if err := d.dispatcher.DispatchDelete(ctx, relPath); err != nil {
			logger.Error("Delete dispatch failed", "path", relPath, "error", err)
			stats.Failed++
			continue
		}
		stats.Deleted++
		d.recordOutcome(string(models.WorkDeleted))
	}

	logger.Info("Corpus scan complete",
		"new", stats.New,
		"content_changed", stats.ContentChanged,
		"config_changed", stats.ConfigChanged,
		"unchanged", stats.Unchanged,
		"deleted", stats.Deleted,
		"failed", stats.Failed)
	return stats, nil
}

// scanFile classifies one PDF and dispatches it if work is needed.
func (d *Discovery) scanFile(ctx context.Context, absPath, relPath string, stats *ScanStats) error {
	item, err := d.Classify(ctx, absPath, relPath)
	if err != nil {
		d.markFailed(ctx, relPath, err)
		return err
	}
	d.recordOutcome(string(item.Kind))

	switch item.Kind {
	case models.WorkUnchanged:
		stats.Unchanged++
		return nil

	case models.WorkNew:
		stats.New++
	case models.WorkContentChange:
		stats.ContentChanged++
	case models.WorkConfigChange:
		stats.ConfigChanged++
	}

	if item.Kind == models.WorkConfigChange {
		if err := d.dispatcher.DispatchMetadataUpdate(ctx, relPath); err != nil {
			d.markFailed(ctx, relPath, err)
			return err
		}
		return nil
	}

	if err := d.dispatcher.DispatchIngest(ctx, relPath); err != nil {
		d.markFailed(ctx, relPath, err)
		return err
	}
	return nil
}

// Classify compares a PDF against its state row. The content hash is only
// recomputed when size or mtime moved; the config hash is always computed.
func (d *Discovery) Classify(ctx context.Context, absPath, relPath string) (*models.WorkItem, error) {
	_, configHash, err := d.resolver.Resolve(relPath)
	if err != nil {
		return nil, err
	}

	fi, err := fileInfo(absPath)
	if err != nil {
		return nil, WrapError(KindIO, relPath, err)
	}

	state, err := d.store.Get(ctx, relPath)
	if err != nil {
		return nil, err
	}

	item := &models.WorkItem{Path: relPath, ConfigHash: configHash}

	if state == nil {
		sha, err := utils.FileSha256(absPath)
		if err != nil {
			return nil, WrapError(KindIO, relPath, err)
		}
		item.Kind = models.WorkNew
		item.PDFSha256 = sha
		return item, nil
	}

	// Lazy fingerprint: trust the recorded hash while size and mtime match.
	sha := state.PDFSha256
	if state.Size != fi.size || !state.ModTime.Equal(fi.modTime) {
		sha, err = utils.FileSha256(absPath)
		if err != nil {
			return nil, WrapError(KindIO, relPath, err)
		}
	}
	item.PDFSha256 = sha

	bookmarksHash := state.BookmarksHash
	if bookmarks, err := ExtractBookmarks(absPath); err == nil {
		bookmarksHash = utils.StringsHash(bookmarks)
	}

	switch {
	case sha != state.PDFSha256 || state.Status == models.StatusFailed:
		item.Kind = models.WorkContentChange
	case configHash != state.ConfigHash || bookmarksHash != state.BookmarksHash:
		item.Kind = models.WorkConfigChange
	default:
		item.Kind = models.WorkUnchanged
	}

	return item, nil
}

func (d *Discovery) recordOutcome(kind string) {
	if d.metrics != nil {
		d.metrics.RecordScanOutcome(kind)
	}
}

func (d *Discovery) markFailed(ctx context.Context, relPath string, cause error) {
	state, err := d.store.Get(ctx, relPath)
	if err != nil {
		return
	}
	if state == nil {
		state = &models.FileState{Path: relPath}
	}
	state.Status = models.StatusFailed
	state.LastError = cause.Error()

	if err := d.store.Upsert(ctx, state); err != nil {
		logger.Error("Failed to record scan failure", "path", relPath, "error", err)
	}
}
