package services

import (
	"github.com/abadojack/whatlanggo"

	"discourse-search-platform/models"
)

// defaultProximity is the phrase slop applied when the request leaves
// proximity_distance unset.
const defaultProximity = 5

// QueryPlanner translates a search request into the lexical and vector query
// bodies for the cluster. Language routing picks which text field the lexical
// branch targets.
type QueryPlanner struct {
	knnK int
}

func NewQueryPlanner(knnK int) *QueryPlanner {
	if knnK <= 0 {
		knnK = 100
	}
	return &QueryPlanner{knnK: knnK}
}

// DetectLanguage routes a query to hi, gu, or en. Script ranges decide first;
// Latin-script text falls through to statistical detection, and anything
// unrecognized defaults to English.
func DetectLanguage(text string) string {
	var devanagari, gujarati, other int
	for _, r := range text {
		switch {
		case r >= 0x0900 && r <= 0x097F:
			devanagari++
		case r >= 0x0A80 && r <= 0x0AFF:
			gujarati++
		case r > 0x0020:
			other++
		}
	}

	if devanagari > gujarati && devanagari >= other {
		return "hi"
	}
	if gujarati > devanagari && gujarati >= other {
		return "gu"
	}
	if devanagari == 0 && gujarati == 0 {
		info := whatlanggo.Detect(text)
		switch info.Lang {
		case whatlanggo.Hin:
			return "hi"
		case whatlanggo.Guj:
			return "gu"
		}
	}
	return "en"
}

// TextField maps a language code to its analyzed field name.
func TextField(lang string) string {
	switch lang {
	case "gu":
		return "text_content_gu"
	case "en":
		return "text_content_en"
	default:
		return "text_content_hi"
	}
}

// LexicalQuery builds the BM25 branch: a phrase match with slop, exclusions as
// must_not, and the shared metadata filter.
func (qp *QueryPlanner) LexicalQuery(req *models.SearchRequest, lang string, size int) map[string]interface{} {
	field := TextField(lang)

	slop := req.ProximityDistance
	if slop == 0 {
		slop = defaultProximity
	}
	if req.ExactMatch {
		slop = 0
	}

	boolQuery := map[string]interface{}{
		"must": []interface{}{
			map[string]interface{}{
				"match_phrase": map[string]interface{}{
					field: map[string]interface{}{
						"query": req.Keywords,
						"slop":  slop,
					},
				},
			},
		},
	}

	if len(req.ExcludeWords) > 0 {
		var mustNot []interface{}
		for _, word := range req.ExcludeWords {
			mustNot = append(mustNot, map[string]interface{}{
				"match": map[string]interface{}{field: word},
			})
		}
		boolQuery["must_not"] = mustNot
	}

	if filter := qp.filterClauses(req); len(filter) > 0 {
		boolQuery["filter"] = filter
	}

	return map[string]interface{}{
		"size":    size,
		"_source": map[string]interface{}{"excludes": []string{"vector_embedding"}},
		"query":   map[string]interface{}{"bool": boolQuery},
		"highlight": map[string]interface{}{
			"fields": map[string]interface{}{
				field: map[string]interface{}{
					"fragment_size":       200,
					"number_of_fragments": 1,
				},
			},
		},
		"suggest": map[string]interface{}{
			"keyword_suggest": map[string]interface{}{
				"text": req.Keywords,
				"term": map[string]interface{}{
					"field": field,
					"size":  3,
					"sort":  "frequency",
					"mode":  "missing",
				},
			},
		},
	}
}

// VectorQuery builds the knn branch over the query embedding, carrying the
// same metadata filter as the lexical branch.
func (qp *QueryPlanner) VectorQuery(req *models.SearchRequest, vector []float32, size int) map[string]interface{} {
	knn := map[string]interface{}{
		"vector": vector,
		"k":      qp.knnK,
	}
	if filter := qp.filterClauses(req); len(filter) > 0 {
		knn["filter"] = map[string]interface{}{
			"bool": map[string]interface{}{"filter": filter},
		}
	}

	return map[string]interface{}{
		"size":    size,
		"_source": map[string]interface{}{"excludes": []string{"vector_embedding"}},
		"query": map[string]interface{}{
			"knn": map[string]interface{}{
				"vector_embedding": knn,
			},
		},
	}
}

// filterClauses builds the shared metadata filter. Categories AND across keys
// and OR within a key's values; a terms clause gives the OR for free.
func (qp *QueryPlanner) filterClauses(req *models.SearchRequest) []interface{} {
	var filter []interface{}

	for key, values := range req.Categories {
		if len(values) == 0 {
			continue
		}
		filter = append(filter, map[string]interface{}{
			"terms": map[string]interface{}{"categories." + key: values},
		})
	}

	if req.Bookmark != "" {
		filter = append(filter, map[string]interface{}{
			"match": map[string]interface{}{"bookmarks": req.Bookmark},
		})
	}

	if len(req.ContentTypes) > 0 {
		filter = append(filter, map[string]interface{}{
			"terms": map[string]interface{}{"content_type": req.ContentTypes},
		})
	}

	return filter
}
