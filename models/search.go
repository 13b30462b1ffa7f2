package models

// SearchType selects the speed/quality trade-off of a query.
const (
	SearchTypeSpeed     = "speed"
	SearchTypeRelevance = "relevance"
)

// SearchRequest is the POST /search body.
type SearchRequest struct {
	Keywords          string              `json:"keywords" binding:"required"`
	ProximityDistance int                 `json:"proximity_distance"`
	ExactMatch        bool                `json:"exact_match"`
	ExcludeWords      []string            `json:"exclude_words"`
	Categories        map[string][]string `json:"categories"`
	Bookmark          string              `json:"bookmark"`
	ContentTypes      []string            `json:"content_types"`
	PageSize          int                 `json:"page_size"`
	PageNumber        int                 `json:"page_number"`
	SearchType        string              `json:"search_type"`
}

// SearchResult is one hit returned to the client.
type SearchResult struct {
	ChunkID          string              `json:"chunk_id"`
	DocID            string              `json:"doc_id"`
	PageNumber       int                 `json:"page_number"`
	ContentSnippet   string              `json:"content_snippet"`
	Score            float64             `json:"score"`
	OriginalFilename string              `json:"original_filename"`
	Metadata         map[string][]string `json:"metadata,omitempty"`
}

// ResultSet is one paginated bucket of fused results.
type ResultSet struct {
	TotalHits  int            `json:"total_hits"`
	PageSize   int            `json:"page_size"`
	PageNumber int            `json:"page_number"`
	Degraded   bool           `json:"degraded,omitempty"`
	Results    []SearchResult `json:"results"`
}

// SearchResponse is the POST /search reply.
type SearchResponse struct {
	PravachanResults *ResultSet `json:"pravachan_results,omitempty"`
	GranthResults    *ResultSet `json:"granth_results,omitempty"`
	Suggestions      []string   `json:"suggestions"`
	HighlightWords   []string   `json:"highlight_words"`
}

// ParagraphContext is the GET /context reply.
type ParagraphContext struct {
	Previous *SearchResult `json:"previous,omitempty"`
	Current  *SearchResult `json:"current"`
	Next     *SearchResult `json:"next,omitempty"`
}
