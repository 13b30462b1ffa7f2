package services

import (
	"testing"

	"discourse-search-platform/models"
)

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"सम्यग्दर्शन होते ही जीव", "hi"},
		{"આત્મા જ્ઞાનસ્વરૂપ છે", "gu"},
		{"the nature of the soul", "en"},
		{"मोक्ष path", "hi"},
	}
	for _, tc := range cases {
		if got := DetectLanguage(tc.text); got != tc.want {
			t.Errorf("DetectLanguage(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestTextField(t *testing.T) {
	if TextField("gu") != "text_content_gu" {
		t.Error("gu should map to text_content_gu")
	}
	if TextField("en") != "text_content_en" {
		t.Error("en should map to text_content_en")
	}
	if TextField("hi") != "text_content_hi" || TextField("") != "text_content_hi" {
		t.Error("hi and unknown should map to text_content_hi")
	}
}

func lexicalBool(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	query, ok := body["query"].(map[string]interface{})
	if !ok {
		t.Fatal("missing query")
	}
	boolQuery, ok := query["bool"].(map[string]interface{})
	if !ok {
		t.Fatal("missing bool query")
	}
	return boolQuery
}

func TestLexicalQuerySlop(t *testing.T) {
	qp := NewQueryPlanner(100)

	req := &models.SearchRequest{Keywords: "सम्यग्दर्शन जीव", ProximityDistance: 12}
	boolQuery := lexicalBool(t, qp.LexicalQuery(req, "hi", 50))

	must := boolQuery["must"].([]interface{})
	phrase := must[0].(map[string]interface{})["match_phrase"].(map[string]interface{})
	params := phrase["text_content_hi"].(map[string]interface{})
	if params["slop"] != 12 {
		t.Errorf("expected slop 12, got %v", params["slop"])
	}

	// Default proximity
	boolQuery = lexicalBool(t, qp.LexicalQuery(&models.SearchRequest{Keywords: "x"}, "hi", 50))
	must = boolQuery["must"].([]interface{})
	params = must[0].(map[string]interface{})["match_phrase"].(map[string]interface{})["text_content_hi"].(map[string]interface{})
	if params["slop"] != defaultProximity {
		t.Errorf("expected default slop %d, got %v", defaultProximity, params["slop"])
	}

	// Exact match forces slop 0
	boolQuery = lexicalBool(t, qp.LexicalQuery(&models.SearchRequest{Keywords: "x", ExactMatch: true, ProximityDistance: 9}, "hi", 50))
	must = boolQuery["must"].([]interface{})
	params = must[0].(map[string]interface{})["match_phrase"].(map[string]interface{})["text_content_hi"].(map[string]interface{})
	if params["slop"] != 0 {
		t.Errorf("exact match must use slop 0, got %v", params["slop"])
	}
}

func TestLexicalQueryExcludeWords(t *testing.T) {
	qp := NewQueryPlanner(100)
	req := &models.SearchRequest{Keywords: "आत्मा", ExcludeWords: []string{"कर्म", "मोह"}}

	boolQuery := lexicalBool(t, qp.LexicalQuery(req, "hi", 50))
	mustNot, ok := boolQuery["must_not"].([]interface{})
	if !ok || len(mustNot) != 2 {
		t.Fatalf("expected 2 must_not clauses, got %v", boolQuery["must_not"])
	}
	match := mustNot[0].(map[string]interface{})["match"].(map[string]interface{})
	if match["text_content_hi"] != "कर्म" {
		t.Errorf("unexpected exclusion clause: %v", match)
	}
}

func TestFilterClausesCategorySemantics(t *testing.T) {
	qp := NewQueryPlanner(100)
	req := &models.SearchRequest{
		Keywords: "x",
		Categories: map[string][]string{
			"series": {"samaysar", "pravachansar"},
			"year":   {"1978"},
		},
		ContentTypes: []string{"granth"},
		Bookmark:     "गाथा 15",
	}

	filter := qp.filterClauses(req)
	// One terms clause per category key (AND across keys), values OR within,
	// plus bookmark and content type.
	if len(filter) != 4 {
		t.Fatalf("expected 4 filter clauses, got %d: %v", len(filter), filter)
	}

	foundSeries := false
	for _, clause := range filter {
		m := clause.(map[string]interface{})
		if terms, ok := m["terms"].(map[string]interface{}); ok {
			if values, ok := terms["categories.series"].([]string); ok {
				foundSeries = true
				if len(values) != 2 {
					t.Errorf("series values should OR within the key, got %v", values)
				}
			}
		}
	}
	if !foundSeries {
		t.Error("missing categories.series terms clause")
	}
}

func TestVectorQueryCarriesFilter(t *testing.T) {
	qp := NewQueryPlanner(100)
	req := &models.SearchRequest{
		Keywords:     "x",
		ContentTypes: []string{"pravachan"},
	}

	body := qp.VectorQuery(req, []float32{0.1, 0.2}, 50)
	knn := body["query"].(map[string]interface{})["knn"].(map[string]interface{})["vector_embedding"].(map[string]interface{})

	if knn["k"] != 100 {
		t.Errorf("expected k=100, got %v", knn["k"])
	}
	if _, ok := knn["filter"]; !ok {
		t.Error("knn clause must carry the metadata filter")
	}

	// No filters: clause must be absent
	body = qp.VectorQuery(&models.SearchRequest{Keywords: "x"}, []float32{0.1}, 50)
	knn = body["query"].(map[string]interface{})["knn"].(map[string]interface{})["vector_embedding"].(map[string]interface{})
	if _, ok := knn["filter"]; ok {
		t.Error("unfiltered query must not emit an empty filter")
	}
}

func TestLexicalQueryExcludesVectorSource(t *testing.T) {
	qp := NewQueryPlanner(100)
	body := qp.LexicalQuery(&models.SearchRequest{Keywords: "x"}, "hi", 50)

	source := body["_source"].(map[string]interface{})
	excludes := source["excludes"].([]string)
	if len(excludes) != 1 || excludes[0] != "vector_embedding" {
		t.Errorf("vectors must be excluded from hits, got %v", excludes)
	}
}
