package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"discourse-search-platform/internal/config"
	"discourse-search-platform/internal/logger"
	"discourse-search-platform/internal/search"
	"discourse-search-platform/internal/telemetry"
	"discourse-search-platform/models"
)

const (
	// rrfK dampens the rank reciprocal so deep ranks still contribute.
	rrfK = 60

	// branchFetchSize is how many candidates each branch pulls before fusion.
	branchFetchSize = 100

	// rerankDepth bounds how many fused results go to the cross-encoder.
	rerankDepth = 50

	defaultPageSize  = 10
	snippetRuneLimit = 200

	metadataCacheKey = "search:metadata:v1"
	metadataCacheTTL = 10 * time.Minute
)

var highlightTagPattern = regexp.MustCompile(`<em>(.*?)</em>`)

// HybridSearcher runs the lexical and vector branches in parallel and fuses
// them with reciprocal rank fusion. One branch failing degrades the result
// set; both failing is an error.
type HybridSearcher struct {
	cfg      *config.Config
	client   *search.Client
	planner  *QueryPlanner
	embedder Embedder
	reranker *Reranker
	redis    *redis.Client
	metrics  *telemetry.Metrics
}

func NewHybridSearcher(cfg *config.Config, client *search.Client, embedder Embedder, reranker *Reranker, redisClient *redis.Client, metrics *telemetry.Metrics) *HybridSearcher {
	return &HybridSearcher{
		cfg:      cfg,
		client:   client,
		planner:  NewQueryPlanner(branchFetchSize),
		embedder: embedder,
		reranker: reranker,
		redis:    redisClient,
		metrics:  metrics,
	}
}

// Search runs the full hybrid query and returns one result set per content
// type bucket.
func (h *HybridSearcher) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	started := time.Now()

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageNumber <= 0 {
		req.PageNumber = 1
	}
	if req.SearchType == "" {
		req.SearchType = models.SearchTypeSpeed
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.SearchTimeout)
	defer cancel()

	lang := DetectLanguage(req.Keywords)

	buckets := req.ContentTypes
	if len(buckets) == 0 {
		buckets = []string{"pravachan", "granth"}
	}

	response := &models.SearchResponse{}
	var suggestions []string
	highlightSet := map[string]bool{}
	failures := 0

	for _, bucket := range buckets {
		set, bucketSuggestions, bucketHighlights, err := h.searchBucket(ctx, req, lang, bucket)
		if err != nil {
			logger.Error("Search bucket failed", "bucket", bucket, "error", err)
			failures++
			continue
		}

		suggestions = append(suggestions, bucketSuggestions...)
		for _, w := range bucketHighlights {
			highlightSet[w] = true
		}

		switch bucket {
		case "granth":
			response.GranthResults = set
		default:
			response.PravachanResults = set
		}
	}

	if failures == len(buckets) {
		return nil, WrapError(KindSearch, "", fmt.Errorf("all search branches failed"))
	}

	for _, token := range strings.Fields(req.Keywords) {
		highlightSet[token] = true
	}
	response.HighlightWords = sortedKeys(highlightSet)
	response.Suggestions = dedupeStrings(suggestions)

	if h.metrics != nil {
		h.metrics.SearchDuration.Record(ctx, time.Since(started).Seconds())
	}
	return response, nil
}

// searchBucket runs both branches for one content type and fuses them.
func (h *HybridSearcher) searchBucket(ctx context.Context, req *models.SearchRequest, lang, contentType string) (*models.ResultSet, []string, []string, error) {
	bucketReq := *req
	bucketReq.ContentTypes = []string{contentType}

	var (
		wg          sync.WaitGroup
		lexHits     []search.Hit
		vecHits     []search.Hit
		suggestions []string
		lexErr      error
		vecErr      error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		body := h.planner.LexicalQuery(&bucketReq, lang, branchFetchSize)
		envelope, err := h.client.Search(ctx, body)
		if err != nil {
			lexErr = err
			return
		}
		lexHits = envelope.Hits.Hits
		for _, entries := range envelope.Suggest {
			for _, entry := range entries {
				for _, opt := range entry.Options {
					suggestions = append(suggestions, opt.Text)
				}
			}
		}
	}()
	go func() {
		defer wg.Done()
		vector, err := h.embedder.Embed(ctx, req.Keywords)
		if err != nil {
			vecErr = err
			return
		}
		body := h.planner.VectorQuery(&bucketReq, vector, branchFetchSize)
		envelope, err := h.client.Search(ctx, body)
		if err != nil {
			vecErr = err
			return
		}
		vecHits = envelope.Hits.Hits
	}()
	wg.Wait()

	if lexErr != nil && vecErr != nil {
		return nil, nil, nil, fmt.Errorf("lexical: %v; vector: %v", lexErr, vecErr)
	}

	degraded := false
	if lexErr != nil {
		degraded = true
		h.recordBranchError("lexical", lexErr)
	}
	if vecErr != nil {
		degraded = true
		h.recordBranchError("vector", vecErr)
	}

	fused := fuseRRF(lexHits, vecHits)

	if req.SearchType == models.SearchTypeRelevance && h.reranker.Enabled() {
		if err := h.rerank(ctx, req.Keywords, fused); err != nil {
			logger.Warn("Rerank failed, keeping fusion order", "error", err)
			degraded = true
		}
	}

	total := len(fused)
	start := (req.PageNumber - 1) * req.PageSize
	if start > total {
		start = total
	}
	end := start + req.PageSize
	if end > total {
		end = total
	}

	results := make([]models.SearchResult, 0, end-start)
	var highlights []string
	for _, f := range fused[start:end] {
		results = append(results, resultFromHit(f.hit, f.score, lang))
		for _, fragments := range f.hit.Highlight {
			for _, fragment := range fragments {
				for _, m := range highlightTagPattern.FindAllStringSubmatch(fragment, -1) {
					highlights = append(highlights, m[1])
				}
			}
		}
	}

	return &models.ResultSet{
		TotalHits:  total,
		PageSize:   req.PageSize,
		PageNumber: req.PageNumber,
		Degraded:   degraded,
		Results:    results,
	}, suggestions, highlights, nil
}

// fusedHit carries one chunk through fusion with its provenance ranks.
type fusedHit struct {
	hit     search.Hit
	score   float64
	lexRank int
}

// fuseRRF merges both ranked lists with reciprocal rank fusion. A chunk in
// both lists sums its contributions. Ties break toward the better lexical
// rank, then the chunk id, so the ordering is deterministic.
func fuseRRF(lexical, vector []search.Hit) []fusedHit {
	byChunk := make(map[string]*fusedHit)

	for i, hit := range lexical {
		f := &fusedHit{hit: hit, lexRank: i + 1}
		f.score = 1.0 / float64(rrfK+i+1)
		byChunk[hit.Source.ChunkID] = f
	}
	for i, hit := range vector {
		if f, ok := byChunk[hit.Source.ChunkID]; ok {
			f.score += 1.0 / float64(rrfK+i+1)
			continue
		}
		byChunk[hit.Source.ChunkID] = &fusedHit{
			hit:   hit,
			score: 1.0 / float64(rrfK+i+1),
		}
	}

	fused := make([]fusedHit, 0, len(byChunk))
	for _, f := range byChunk {
		fused = append(fused, *f)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		ri, rj := fused[i].lexRank, fused[j].lexRank
		if ri == 0 {
			ri = rrfK + len(fused) + 1
		}
		if rj == 0 {
			rj = rrfK + len(fused) + 1
		}
		if ri != rj {
			return ri < rj
		}
		return fused[i].hit.Source.ChunkID < fused[j].hit.Source.ChunkID
	})

	return fused
}

// rerank reorders the top fused results in place by cross-encoder score. The
// tail below rerankDepth keeps its fusion order.
func (h *HybridSearcher) rerank(ctx context.Context, query string, fused []fusedHit) error {
	depth := rerankDepth
	if depth > len(fused) {
		depth = len(fused)
	}
	if depth == 0 {
		return nil
	}

	documents := make([]string, depth)
	for i := 0; i < depth; i++ {
		documents[i] = fused[i].hit.Source.TextContent()
	}

	scores, err := h.reranker.Score(ctx, query, documents)
	if err != nil {
		return err
	}

	head := fused[:depth]
	for i := range head {
		head[i].score = scores[i]
	}
	sort.SliceStable(head, func(i, j int) bool {
		return head[i].score > head[j].score
	})
	return nil
}

// SimilarDocuments finds chunks semantically close to the given chunk,
// excluding its own document.
func (h *HybridSearcher) SimilarDocuments(ctx context.Context, chunkID string, size int) ([]models.SearchResult, error) {
	if size <= 0 {
		size = defaultPageSize
	}

	record, vector, err := h.fetchChunk(ctx, chunkID, true)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, WrapError(KindSearch, chunkID, fmt.Errorf("chunk has no stored vector"))
	}

	body := map[string]interface{}{
		"size":    size,
		"_source": map[string]interface{}{"excludes": []string{"vector_embedding"}},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"knn": map[string]interface{}{
							"vector_embedding": map[string]interface{}{
								"vector": vector,
								"k":      size * 2,
							},
						},
					},
				},
				"must_not": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"doc_id": record.DocID},
					},
				},
			},
		},
	}

	envelope, err := h.client.Search(ctx, body)
	if err != nil {
		return nil, WrapError(KindSearch, chunkID, err)
	}

	results := make([]models.SearchResult, 0, len(envelope.Hits.Hits))
	for _, hit := range envelope.Hits.Hits {
		results = append(results, resultFromHit(hit, hit.Score, ""))
	}
	return results, nil
}

// Context returns the chunk along with its sequence neighbors in the same
// document, for reading around a hit.
func (h *HybridSearcher) Context(ctx context.Context, chunkID string) (*models.ParagraphContext, error) {
	record, _, err := h.fetchChunk(ctx, chunkID, false)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"size":    3,
		"_source": map[string]interface{}{"excludes": []string{"vector_embedding"}},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"doc_id": record.DocID},
					},
					map[string]interface{}{
						"terms": map[string]interface{}{
							"seq_num": []int{record.SeqNum - 1, record.SeqNum, record.SeqNum + 1},
						},
					},
				},
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"seq_num": "asc"},
		},
	}

	envelope, err := h.client.Search(ctx, body)
	if err != nil {
		return nil, WrapError(KindSearch, chunkID, err)
	}

	pc := &models.ParagraphContext{}
	for _, hit := range envelope.Hits.Hits {
		result := resultFromHit(hit, hit.Score, "")
		switch hit.Source.SeqNum {
		case record.SeqNum - 1:
			prev := result
			pc.Previous = &prev
		case record.SeqNum:
			cur := result
			pc.Current = &cur
		case record.SeqNum + 1:
			next := result
			pc.Next = &next
		}
	}

	if pc.Current == nil {
		return nil, WrapError(KindSearch, chunkID, fmt.Errorf("chunk not found"))
	}
	return pc, nil
}

// MetadataSummary lists the filterable values present in the index.
type MetadataSummary struct {
	ContentTypes   []string `json:"content_types"`
	Bookmarks      []string `json:"bookmarks"`
	CategoryValues []string `json:"category_values"`
}

// Metadata aggregates the distinct filter values, cached in Redis since the
// set only moves when a scan runs.
func (h *HybridSearcher) Metadata(ctx context.Context) (*MetadataSummary, error) {
	if h.redis != nil {
		if cached, err := h.redis.Get(ctx, metadataCacheKey).Result(); err == nil {
			var summary MetadataSummary
			if json.Unmarshal([]byte(cached), &summary) == nil {
				return &summary, nil
			}
		}
	}

	body := map[string]interface{}{
		"size": 0,
		"aggs": map[string]interface{}{
			"content_types": map[string]interface{}{
				"terms": map[string]interface{}{"field": "content_type", "size": 50},
			},
			"bookmarks": map[string]interface{}{
				"terms": map[string]interface{}{"field": "bookmarks.raw", "size": 1000},
			},
			"category_values": map[string]interface{}{
				"terms": map[string]interface{}{"field": "categories", "size": 1000},
			},
		},
	}

	envelope, err := h.client.Search(ctx, body)
	if err != nil {
		return nil, WrapError(KindSearch, "", err)
	}

	summary := &MetadataSummary{
		ContentTypes:   aggKeys(envelope.Aggregations["content_types"]),
		Bookmarks:      aggKeys(envelope.Aggregations["bookmarks"]),
		CategoryValues: aggKeys(envelope.Aggregations["category_values"]),
	}

	if h.redis != nil {
		if payload, err := json.Marshal(summary); err == nil {
			if err := h.redis.Set(ctx, metadataCacheKey, payload, metadataCacheTTL).Err(); err != nil {
				logger.Warn("Metadata cache write failed", "error", err)
			}
		}
	}
	return summary, nil
}

// fetchChunk loads one record by chunk id, optionally with its vector.
func (h *HybridSearcher) fetchChunk(ctx context.Context, chunkID string, withVector bool) (*models.IndexedRecord, []float32, error) {
	body := map[string]interface{}{
		"size": 1,
		"query": map[string]interface{}{
			"term": map[string]interface{}{"chunk_id": chunkID},
		},
	}
	if !withVector {
		body["_source"] = map[string]interface{}{"excludes": []string{"vector_embedding"}}
	}

	envelope, err := h.client.Search(ctx, body)
	if err != nil {
		return nil, nil, WrapError(KindSearch, chunkID, err)
	}
	if len(envelope.Hits.Hits) == 0 {
		return nil, nil, WrapError(KindSearch, chunkID, fmt.Errorf("chunk not found"))
	}

	record := envelope.Hits.Hits[0].Source
	return &record, record.VectorEmbedding, nil
}

func (h *HybridSearcher) recordBranchError(branch string, err error) {
	logger.Warn("Search branch degraded", "branch", branch, "error", err)
	if h.metrics != nil {
		h.metrics.RecordSearchBranchError(branch)
	}
}

// resultFromHit builds the client-facing result. The snippet prefers the
// highlighted fragment; otherwise the chunk text is truncated.
func resultFromHit(hit search.Hit, score float64, lang string) models.SearchResult {
	snippet := ""
	if lang != "" {
		if fragments, ok := hit.Highlight[TextField(lang)]; ok && len(fragments) > 0 {
			snippet = fragments[0]
		}
	}
	if snippet == "" {
		for _, fragments := range hit.Highlight {
			if len(fragments) > 0 {
				snippet = fragments[0]
				break
			}
		}
	}
	if snippet == "" {
		snippet = truncateRunes(hit.Source.TextContent(), snippetRuneLimit)
	}

	return models.SearchResult{
		ChunkID:          hit.Source.ChunkID,
		DocID:            hit.Source.DocID,
		PageNumber:       hit.Source.PageNum,
		ContentSnippet:   snippet,
		Score:            score,
		OriginalFilename: hit.Source.OriginalFilename,
		Metadata:         hit.Source.Categories,
	}
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}

func aggKeys(raw json.RawMessage) []string {
	if raw == nil {
		return nil
	}
	var agg struct {
		Buckets []struct {
			Key string `json:"key"`
		} `json:"buckets"`
	}
	if err := json.Unmarshal(raw, &agg); err != nil {
		return nil
	}
	keys := make([]string, 0, len(agg.Buckets))
	for _, b := range agg.Buckets {
		keys = append(keys, b.Key)
	}
	return keys
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
