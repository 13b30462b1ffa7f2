package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"discourse-search-platform/utils"
)

// OCRPageCache stores normalized OCR page output keyed by content hash and
// engine, so retried or re-segmented documents skip the OCR round trip.
// Payloads are compressed before storage.
type OCRPageCache struct {
	collection *mongo.Collection
}

type ocrCacheRow struct {
	PDFSha256   string `bson:"pdf_sha256"`
	Page        int    `bson:"page"`
	Engine      string `bson:"engine"`
	Payload     []byte `bson:"payload"`
	Compression string `bson:"compression"`
}

func NewOCRPageCache(db *mongo.Database) *OCRPageCache {
	return &OCRPageCache{
		collection: db.Collection("ocr_page_cache"),
	}
}

// Get returns all cached pages for a document, ordered by page number.
// An empty slice means a cache miss.
func (c *OCRPageCache) Get(ctx context.Context, pdfSha, engine string) ([]ocrPage, error) {
	cursor, err := c.collection.Find(ctx, bson.M{"pdf_sha256": pdfSha, "engine": engine})
	if err != nil {
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}
	defer cursor.Close(ctx)

	var pages []ocrPage
	for cursor.Next(ctx) {
		var row ocrCacheRow
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("cache decode failed: %w", err)
		}

		raw, err := utils.DecompressText(row.Payload, utils.CompressionAlgorithm(row.Compression))
		if err != nil {
			return nil, fmt.Errorf("cache decompress failed: %w", err)
		}

		var page ocrPage
		if err := json.Unmarshal([]byte(raw), &page); err != nil {
			return nil, fmt.Errorf("cache unmarshal failed: %w", err)
		}
		pages = append(pages, page)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Page < pages[j].Page })
	return pages, nil
}

// Put stores every page of a document, replacing any previous rows.
func (c *OCRPageCache) Put(ctx context.Context, pdfSha, engine string, pages []ocrPage) error {
	batch := make([]mongo.WriteModel, 0, len(pages))
	for _, page := range pages {
		raw, err := json.Marshal(page)
		if err != nil {
			return fmt.Errorf("cache marshal failed: %w", err)
		}

		compressed, algorithm, err := utils.CompressText(string(raw))
		if err != nil {
			return fmt.Errorf("cache compress failed: %w", err)
		}

		row := ocrCacheRow{
			PDFSha256:   pdfSha,
			Page:        page.Page,
			Engine:      engine,
			Payload:     compressed,
			Compression: string(algorithm),
		}
		batch = append(batch, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"pdf_sha256": pdfSha, "page": page.Page, "engine": engine}).
			SetReplacement(row).
			SetUpsert(true))
	}

	if len(batch) == 0 {
		return nil
	}

	_, err := c.collection.BulkWrite(ctx, batch, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}
	return nil
}
