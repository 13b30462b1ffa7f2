package services

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"discourse-search-platform/models"
)

// Embedder is the minimal embedding surface the dynamic chunk strategy and
// the query planner need.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStrategy splits paragraphs into embeddable chunks. Chunks never span
// paragraph boundaries.
type ChunkStrategy interface {
	Chunk(ctx context.Context, docID string, paragraphs []models.Paragraph, cfg *models.ResolvedConfig) ([]models.Chunk, error)
}

// NewChunkStrategy selects an implementation by config name.
func NewChunkStrategy(name string, embedder Embedder) (ChunkStrategy, error) {
	switch name {
	case "", "default":
		return &fixedWindowChunker{}, nil
	case "dynamic":
		if embedder == nil {
			return nil, fmt.Errorf("dynamic chunk strategy requires an embedder")
		}
		return &dynamicChunker{embedder: embedder, threshold: 0.8}, nil
	default:
		return nil, fmt.Errorf("unknown chunk strategy: %s", name)
	}
}

// fixedWindowChunker slides a fixed-size window with overlap over each
// paragraph independently.
type fixedWindowChunker struct{}

func (c *fixedWindowChunker) Chunk(_ context.Context, docID string, paragraphs []models.Paragraph, cfg *models.ResolvedConfig) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, p := range paragraphs {
		for _, text := range windowText(p.Text, cfg.ChunkSize, cfg.ChunkOverlap) {
			chunks = append(chunks, models.Chunk{
				DocID:           docID,
				ChunkID:         uuid.NewString(),
				ParagraphSeqNum: p.SeqNum,
				PageNum:         p.PageNumStart,
				Text:            text,
			})
		}
	}
	return chunks, nil
}

// dynamicChunker merges adjacent paragraphs while their embedding cosine
// similarity stays above the threshold, then windows within each group.
// Grouped chunks keep the seq number of the group's first paragraph.
type dynamicChunker struct {
	embedder  Embedder
	threshold float64
}

func (c *dynamicChunker) Chunk(ctx context.Context, docID string, paragraphs []models.Paragraph, cfg *models.ResolvedConfig) ([]models.Chunk, error) {
	if len(paragraphs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(paragraphs))
	for i, p := range paragraphs {
		texts[i] = p.Text
	}

	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("dynamic chunking embed failed: %w", err)
	}

	type group struct {
		text    string
		seqNum  int
		pageNum int
	}

	groups := []group{{text: paragraphs[0].Text, seqNum: paragraphs[0].SeqNum, pageNum: paragraphs[0].PageNumStart}}
	for i := 1; i < len(paragraphs); i++ {
		if CosineSimilarity(vectors[i-1], vectors[i]) >= c.threshold {
			last := &groups[len(groups)-1]
			last.text = last.text + "\n" + paragraphs[i].Text
		} else {
			groups = append(groups, group{
				text:    paragraphs[i].Text,
				seqNum:  paragraphs[i].SeqNum,
				pageNum: paragraphs[i].PageNumStart,
			})
		}
	}

	var chunks []models.Chunk
	for _, g := range groups {
		for _, text := range windowText(g.text, cfg.ChunkSize, cfg.ChunkOverlap) {
			chunks = append(chunks, models.Chunk{
				DocID:           docID,
				ChunkID:         uuid.NewString(),
				ParagraphSeqNum: g.seqNum,
				PageNum:         g.pageNum,
				Text:            text,
			})
		}
	}
	return chunks, nil
}

// windowText slices text into chunkSize-rune windows stepping by
// chunkSize-overlap. Short text yields a single chunk.
func windowText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= chunkSize {
		return []string{text}
	}

	step := chunkSize - overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

// CosineSimilarity of two vectors; zero when lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
