package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"discourse-search-platform/internal/config"
	"discourse-search-platform/models"
)

// Client wraps the OpenSearch connection with the chunk index contract: three
// language-analyzed text fields, a cosine knn vector, and keyword metadata.
type Client struct {
	os    *opensearch.Client
	Index string
	Dim   int
}

func NewClient(cfg *config.Config) (*Client, error) {
	osClient, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.OpenSearchURL},
		Username:  cfg.OpenSearchUser,
		Password:  cfg.OpenSearchPass,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenSearch client: %w", err)
	}

	return &Client{
		os:    osClient,
		Index: cfg.OpenSearchIndex,
		Dim:   cfg.VectorDim,
	}, nil
}

// indexMapping builds the index body. Gujarati has no built-in analyzer, so it
// gets indic normalization plus a stopword list; Hindi and English use the
// Lucene language analyzers.
func indexMapping(dim int) string {
	return fmt.Sprintf(`{
  "settings": {
    "index": {
      "knn": true,
      "number_of_shards": 1,
      "number_of_replicas": 1
    },
    "analysis": {
      "filter": {
        "gujarati_stop": {
          "type": "stop",
          "stopwords": ["છે", "અને", "તે", "એ", "ના", "ની", "નો", "માં", "થી", "પર"]
        }
      },
      "analyzer": {
        "gujarati_analyzer": {
          "tokenizer": "icu_tokenizer",
          "filter": ["icu_normalizer", "gujarati_stop"]
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "chunk_id": {"type": "keyword"},
      "doc_id": {"type": "keyword"},
      "page_num": {"type": "integer"},
      "seq_num": {"type": "integer"},
      "paragraph_seq_num": {"type": "integer"},
      "original_filename": {"type": "keyword"},
      "content_type": {"type": "keyword"},
      "bookmarks": {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "categories": {"type": "flat_object"},
      "text_content_hi": {"type": "text", "analyzer": "hindi"},
      "text_content_gu": {"type": "text", "analyzer": "gujarati_analyzer"},
      "text_content_en": {"type": "text", "analyzer": "english"},
      "vector_embedding": {
        "type": "knn_vector",
        "dimension": %d,
        "method": {
          "name": "hnsw",
          "space_type": "cosinesimil",
          "engine": "nmslib"
        }
      }
    }
  }
}`, dim)
}

// EnsureIndex creates the chunk index if it does not exist.
func (c *Client) EnsureIndex(ctx context.Context) error {
	exists := opensearchapi.IndicesExistsRequest{Index: []string{c.Index}}
	res, err := exists.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("index exists check failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	create := opensearchapi.IndicesCreateRequest{
		Index: c.Index,
		Body:  strings.NewReader(indexMapping(c.Dim)),
	}
	createRes, err := create.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("index create failed: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		body, _ := io.ReadAll(createRes.Body)
		return fmt.Errorf("index create failed with status %d: %s", createRes.StatusCode, string(body))
	}

	return nil
}

// Hit is one search cluster hit.
type Hit struct {
	ID        string               `json:"_id"`
	Score     float64              `json:"_score"`
	Source    models.IndexedRecord `json:"_source"`
	Highlight map[string][]string  `json:"highlight,omitempty"`
}

// Envelope is the subset of the search response body we consume.
type Envelope struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []Hit `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations,omitempty"`
	Suggest      map[string][]struct {
		Options []struct {
			Text string `json:"text"`
		} `json:"options"`
	} `json:"suggest,omitempty"`
}

// Search executes a query body against the chunk index.
func (c *Client) Search(ctx context.Context, body map[string]interface{}) (*Envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search body: %w", err)
	}

	res, err := c.os.Search(
		c.os.Search.WithContext(ctx),
		c.os.Search.WithIndex(c.Index),
		c.os.Search.WithBody(strings.NewReader(string(payload))),
	)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search failed with status %d: %s", res.StatusCode, string(raw))
	}

	var envelope Envelope
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	return &envelope, nil
}

// bulkResponse is the subset of the bulk API reply needed for error checks.
type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

// Bulk sends an NDJSON bulk body and fails on any per-item error. Callers get
// best-effort atomicity only; discovery retries the whole document on failure.
func (c *Client) Bulk(ctx context.Context, body io.Reader) error {
	req := opensearchapi.BulkRequest{
		Index:   c.Index,
		Body:    body,
		Refresh: "true",
	}
	res, err := req.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return fmt.Errorf("bulk failed with status %d: %s", res.StatusCode, string(raw))
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}

	if parsed.Errors {
		for _, item := range parsed.Items {
			for op, detail := range item {
				if detail.Error != nil {
					return fmt.Errorf("bulk %s failed: %s: %s", op, detail.Error.Type, detail.Error.Reason)
				}
			}
		}
		return fmt.Errorf("bulk reported errors without detail")
	}

	return nil
}

// DeleteByQuery removes every document matching the query body.
func (c *Client) DeleteByQuery(ctx context.Context, body map[string]interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal delete query: %w", err)
	}

	req := opensearchapi.DeleteByQueryRequest{
		Index:   []string{c.Index},
		Body:    strings.NewReader(string(payload)),
		Refresh: boolPtr(true),
	}
	res, err := req.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("delete by query failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return fmt.Errorf("delete by query failed with status %d: %s", res.StatusCode, string(raw))
	}

	return nil
}

// UpdateByQuery applies a partial update script to every matching document.
func (c *Client) UpdateByQuery(ctx context.Context, body map[string]interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal update query: %w", err)
	}

	refresh := true
	req := opensearchapi.UpdateByQueryRequest{
		Index:   []string{c.Index},
		Body:    strings.NewReader(string(payload)),
		Refresh: &refresh,
	}
	res, err := req.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("update by query failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return fmt.Errorf("update by query failed with status %d: %s", res.StatusCode, string(raw))
	}

	return nil
}

func boolPtr(b bool) *bool {
	return &b
}
