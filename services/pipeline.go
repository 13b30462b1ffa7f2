package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"discourse-search-platform/internal/config"
	"discourse-search-platform/internal/logger"
	"discourse-search-platform/internal/telemetry"
	"discourse-search-platform/models"
	"discourse-search-platform/utils"
)

// embedBatchSize bounds how many chunk texts go into one embedding call.
const embedBatchSize = 64

// Pipeline executes the ingest stages for one document: OCR, paragraph
// generation, chunking, embedding, and indexing. One pipeline call owns its
// document end to end, which serializes index writes per doc_id.
type Pipeline struct {
	cfg      *config.Config
	resolver *ConfigResolver
	store    *StateStore
	ocr      *OCRClient
	embedder Embedder
	indexer  *Indexer
	metrics  *telemetry.Metrics
}

func NewPipeline(cfg *config.Config, resolver *ConfigResolver, store *StateStore, ocr *OCRClient, embedder Embedder, indexer *Indexer, metrics *telemetry.Metrics) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		resolver: resolver,
		store:    store,
		ocr:      ocr,
		embedder: embedder,
		indexer:  indexer,
		metrics:  metrics,
	}
}

// IngestDocument runs the full pipeline for a corpus-relative path and
// records the outcome in the state store. On cancellation, partial index
// writes are rolled back by deleting the document's chunks.
func (p *Pipeline) IngestDocument(ctx context.Context, relPath string) error {
	started := time.Now()
	absPath := filepath.Join(p.cfg.CorpusRoot, relPath)

	resolved, configHash, err := p.resolver.Resolve(relPath)
	if err != nil {
		return p.recordFailure(relPath, err)
	}

	sha, err := utils.FileSha256(absPath)
	if err != nil {
		return p.recordFailure(relPath, WrapError(KindIO, relPath, err))
	}

	bookmarks, err := ExtractBookmarks(absPath)
	if err != nil {
		// A missing outline is not fatal to ingest
		logger.Warn("Bookmark extraction failed", "path", relPath, "error", err)
		bookmarks = nil
	}

	pages, err := PageCount(absPath)
	if err != nil {
		pages = 0
	}

	ocrStarted := time.Now()
	lines, geometry, err := p.ocr.ExtractLines(ctx, absPath, sha, resolved)
	if err != nil {
		return p.recordFailure(relPath, err)
	}
	if p.metrics != nil {
		p.metrics.OCRDuration.Record(ctx, time.Since(ocrStarted).Seconds())
	}

	generator := NewParagraphGenerator(resolved)
	paragraphs := generator.Generate(lines, geometry)

	if warnings := generator.ClassificationWarnings(); warnings > 0 {
		logger.Warn("Lines without geometry degraded to prose", "path", relPath, "count", warnings)
		if p.metrics != nil {
			p.metrics.ClassificationWarnings.Add(ctx, int64(warnings))
		}
	}
	if p.metrics != nil {
		p.metrics.ParagraphsEmitted.Add(ctx, int64(len(paragraphs)))
	}

	strategy, err := NewChunkStrategy(resolved.ChunkStrategy, p.embedder)
	if err != nil {
		return p.recordFailure(relPath, WrapError(KindConfig, relPath, err))
	}

	chunks, err := strategy.Chunk(ctx, relPath, paragraphs, resolved)
	if err != nil {
		return p.recordFailure(relPath, WrapError(KindEmbedding, relPath, err))
	}

	embedStarted := time.Now()
	if err := p.embedChunks(ctx, chunks); err != nil {
		return p.recordFailure(relPath, err)
	}
	if p.metrics != nil {
		p.metrics.EmbeddingDuration.Record(ctx, time.Since(embedStarted).Seconds())
	}

	meta := DocMetadata{
		Language:         resolved.Language,
		Categories:       resolved.Categories,
		Bookmarks:        bookmarks,
		ContentType:      resolved.ContentType(),
		OriginalFilename: filepath.Base(relPath),
	}

	if err := p.indexer.IndexChunks(ctx, relPath, chunks, meta); err != nil {
		if ctx.Err() != nil {
			p.rollback(relPath)
		}
		return p.recordFailure(relPath, err)
	}

	if ctx.Err() != nil {
		p.rollback(relPath)
		return WrapError(KindCanceled, relPath, ctx.Err())
	}

	fi, statErr := fileInfo(absPath)
	state := &models.FileState{
		Path:          relPath,
		PDFSha256:     sha,
		ConfigHash:    configHash,
		BookmarksHash: utils.StringsHash(bookmarks),
		Pages:         pages,
		Status:        models.StatusIndexed,
		LastIndexedAt: time.Now(),
	}
	if statErr == nil {
		state.Size = fi.size
		state.ModTime = fi.modTime
	}
	if err := p.store.Upsert(context.WithoutCancel(ctx), state); err != nil {
		return err
	}

	if p.metrics != nil {
		p.metrics.RecordDocumentIndexed(resolved.Language, len(chunks))
	}
	logger.Info("Document indexed",
		"path", relPath,
		"pages", pages,
		"paragraphs", len(paragraphs),
		"chunks", len(chunks),
		"language", resolved.Language,
		"duration", time.Since(started).String())
	return nil
}

// UpdateDocMetadata re-indexes categories, bookmarks, and the content type
// bucket without re-OCR or re-embedding. Chunk text and vectors are
// preserved.
func (p *Pipeline) UpdateDocMetadata(ctx context.Context, relPath string) error {
	absPath := filepath.Join(p.cfg.CorpusRoot, relPath)

	resolved, configHash, err := p.resolver.Resolve(relPath)
	if err != nil {
		return p.recordFailure(relPath, err)
	}

	bookmarks, err := ExtractBookmarks(absPath)
	if err != nil {
		logger.Warn("Bookmark extraction failed", "path", relPath, "error", err)
		bookmarks = nil
	}

	meta := DocMetadata{
		Language:         resolved.Language,
		Categories:       resolved.Categories,
		Bookmarks:        bookmarks,
		ContentType:      resolved.ContentType(),
		OriginalFilename: filepath.Base(relPath),
	}

	if err := p.indexer.UpdateMetadata(ctx, relPath, meta); err != nil {
		return p.recordFailure(relPath, err)
	}

	state, err := p.store.Get(ctx, relPath)
	if err != nil {
		return err
	}
	if state == nil {
		state = &models.FileState{Path: relPath}
	}
	state.ConfigHash = configHash
	state.BookmarksHash = utils.StringsHash(bookmarks)
	state.Status = models.StatusIndexed
	state.LastIndexedAt = time.Now()
	state.LastError = ""

	if err := p.store.Upsert(context.WithoutCancel(ctx), state); err != nil {
		return err
	}

	logger.Info("Document metadata updated", "path", relPath)
	return nil
}

// DeleteDocument removes a document's chunks and its state row.
func (p *Pipeline) DeleteDocument(ctx context.Context, relPath string) error {
	if err := p.indexer.DeleteDoc(ctx, relPath); err != nil {
		return err
	}
	if err := p.store.Delete(ctx, relPath); err != nil {
		return err
	}

	logger.Info("Document removed from index", "path", relPath)
	return nil
}

// embedChunks fills chunk vectors in batches.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []models.Chunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return WrapError(KindEmbedding, chunks[start].DocID, err)
		}

		for i := range vectors {
			chunks[start+i].Vector = vectors[i]
		}
	}
	return nil
}

// rollback deletes any partially indexed chunks after a cancellation.
func (p *Pipeline) rollback(relPath string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := p.indexer.DeleteDoc(ctx, relPath); err != nil {
		logger.Error("Rollback failed", "path", relPath, "error", err)
	}
}

// recordFailure marks the file FAILED so the next scan retries it. Prior
// chunks stay in the index untouched. Fatal state errors take precedence.
func (p *Pipeline) recordFailure(relPath string, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	state, err := p.store.Get(ctx, relPath)
	if err != nil {
		return err
	}
	if state == nil {
		state = &models.FileState{Path: relPath}
	}
	state.Status = models.StatusFailed
	state.LastError = cause.Error()

	if err := p.store.Upsert(ctx, state); err != nil {
		return err
	}

	logger.Error("Document ingest failed", "path", relPath, "kind", string(KindOf(cause, KindOCR)), "error", cause)
	return cause
}

type basicFileInfo struct {
	size    int64
	modTime time.Time
}

func fileInfo(path string) (basicFileInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return basicFileInfo{}, fmt.Errorf("stat failed: %w", err)
	}
	return basicFileInfo{size: fi.Size(), modTime: fi.ModTime()}, nil
}
