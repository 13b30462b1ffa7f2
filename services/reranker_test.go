package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRerankerDisabledWhenUnconfigured(t *testing.T) {
	r := NewReranker("")
	if r.Enabled() {
		t.Error("empty URL must disable the reranker")
	}
}

func TestRerankerScore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/rerank" {
			t.Errorf("unexpected path %s", req.URL.Path)
		}
		var body rerankRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Query == "" || len(body.Documents) != 2 {
			t.Errorf("unexpected request: %+v", body)
		}
		json.NewEncoder(w).Encode(rerankResponse{Scores: []float64{0.9, 0.1}})
	}))
	defer server.Close()

	r := NewReranker(server.URL)
	scores, err := r.Score(context.Background(), "आत्मा", []string{"doc one", "doc two"})
	if err != nil {
		t.Fatal(err)
	}
	if len(scores) != 2 || scores[0] != 0.9 || scores[1] != 0.1 {
		t.Errorf("unexpected scores %v", scores)
	}
}

func TestRerankerScoreCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(rerankResponse{Scores: []float64{0.5}})
	}))
	defer server.Close()

	r := NewReranker(server.URL)
	if _, err := r.Score(context.Background(), "q", []string{"a", "b"}); err == nil {
		t.Error("expected error for score count mismatch")
	}
}

func TestRerankerServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	r := NewReranker(server.URL)
	if _, err := r.Score(context.Background(), "q", []string{"a"}); err == nil {
		t.Error("expected error for 500 response")
	}
}
