package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"discourse-search-platform/internal/search"
	"discourse-search-platform/models"
)

// DocMetadata is the per-document metadata attached to every chunk record.
type DocMetadata struct {
	Language         string
	Categories       map[string][]string
	Bookmarks        []string
	ContentType      string
	OriginalFilename string
}

// Indexer owns the chunk records in the search cluster. Index writes for one
// doc_id always happen inside a single pipeline task, so deletes and inserts
// for the same document never race.
type Indexer struct {
	client *search.Client
}

func NewIndexer(client *search.Client) *Indexer {
	return &Indexer{client: client}
}

// IndexChunks replaces every record of the document: existing chunks are
// deleted first, then the new set is bulk-inserted. Atomicity is best-effort;
// on failure discovery retries the whole document next scan.
func (ix *Indexer) IndexChunks(ctx context.Context, docID string, chunks []models.Chunk, meta DocMetadata) error {
	if err := ix.DeleteDoc(ctx, docID); err != nil {
		return err
	}

	if len(chunks) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for i, chunk := range chunks {
		record := recordForChunk(chunk, i, meta)

		action, err := json.Marshal(map[string]interface{}{
			"index": map[string]interface{}{"_id": chunk.ChunkID},
		})
		if err != nil {
			return WrapError(KindIndex, docID, err)
		}
		payload, err := json.Marshal(record)
		if err != nil {
			return WrapError(KindIndex, docID, err)
		}

		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(payload)
		buf.WriteByte('\n')
	}

	if err := ix.client.Bulk(ctx, &buf); err != nil {
		return WrapError(KindIndex, docID, err)
	}
	return nil
}

// UpdateMetadata partially updates every chunk of the document, leaving text
// and vector fields untouched. Used for the CONFIG_CHANGED path.
func (ix *Indexer) UpdateMetadata(ctx context.Context, docID string, meta DocMetadata) error {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"doc_id": docID},
		},
		"script": map[string]interface{}{
			"lang":   "painless",
			"source": "ctx._source.categories = params.categories; ctx._source.bookmarks = params.bookmarks; ctx._source.content_type = params.content_type; ctx._source.original_filename = params.original_filename",
			"params": map[string]interface{}{
				"categories":        meta.Categories,
				"bookmarks":         meta.Bookmarks,
				"content_type":      meta.ContentType,
				"original_filename": meta.OriginalFilename,
			},
		},
	}

	if err := ix.client.UpdateByQuery(ctx, body); err != nil {
		return WrapError(KindIndex, docID, err)
	}
	return nil
}

// DeleteDoc removes all chunks of a document.
func (ix *Indexer) DeleteDoc(ctx context.Context, docID string) error {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"doc_id": docID},
		},
	}

	if err := ix.client.DeleteByQuery(ctx, body); err != nil {
		return WrapError(KindIndex, docID, err)
	}
	return nil
}

// ListDocIDs returns every distinct doc_id in the index, for deletion
// detection. Pages through a composite aggregation.
func (ix *Indexer) ListDocIDs(ctx context.Context) (map[string]bool, error) {
	ids := make(map[string]bool)
	var after interface{}

	for {
		composite := map[string]interface{}{
			"size": 1000,
			"sources": []interface{}{
				map[string]interface{}{
					"doc": map[string]interface{}{
						"terms": map[string]interface{}{"field": "doc_id"},
					},
				},
			},
		}
		if after != nil {
			composite["after"] = after
		}

		body := map[string]interface{}{
			"size": 0,
			"aggs": map[string]interface{}{
				"doc_ids": map[string]interface{}{"composite": composite},
			},
		}

		envelope, err := ix.client.Search(ctx, body)
		if err != nil {
			return nil, WrapError(KindIndex, "", err)
		}

		raw, ok := envelope.Aggregations["doc_ids"]
		if !ok {
			break
		}

		var agg struct {
			AfterKey map[string]interface{} `json:"after_key"`
			Buckets  []struct {
				Key struct {
					Doc string `json:"doc"`
				} `json:"key"`
			} `json:"buckets"`
		}
		if err := json.Unmarshal(raw, &agg); err != nil {
			return nil, WrapError(KindIndex, "", fmt.Errorf("failed to decode doc_ids aggregation: %w", err))
		}

		for _, bucket := range agg.Buckets {
			ids[bucket.Key.Doc] = true
		}

		if len(agg.Buckets) < 1000 || agg.AfterKey == nil {
			break
		}
		after = agg.AfterKey
	}

	return ids, nil
}

// recordForChunk builds the cluster record, populating only the text field
// matching the document language so per-language analyzers apply. seq is the
// chunk's position within the document, a contiguous range from 0.
func recordForChunk(chunk models.Chunk, seq int, meta DocMetadata) models.IndexedRecord {
	record := models.IndexedRecord{
		ChunkID:          chunk.ChunkID,
		DocID:            chunk.DocID,
		PageNum:          chunk.PageNum,
		SeqNum:           seq,
		ParagraphSeqNum:  chunk.ParagraphSeqNum,
		VectorEmbedding:  chunk.Vector,
		Categories:       meta.Categories,
		Bookmarks:        meta.Bookmarks,
		ContentType:      meta.ContentType,
		OriginalFilename: meta.OriginalFilename,
	}

	switch meta.Language {
	case "gu":
		record.TextContentGu = chunk.Text
	case "en":
		record.TextContentEn = chunk.Text
	default:
		record.TextContentHi = chunk.Text
	}

	return record
}
