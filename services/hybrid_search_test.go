package services

import (
	"math"
	"testing"

	"discourse-search-platform/internal/search"
	"discourse-search-platform/models"
)

func hitFor(chunkID string) search.Hit {
	return search.Hit{Source: models.IndexedRecord{ChunkID: chunkID}}
}

func TestFuseRRFKnownRanking(t *testing.T) {
	lexical := []search.Hit{hitFor("c1"), hitFor("c2"), hitFor("c3")}
	vector := []search.Hit{hitFor("c2"), hitFor("c4"), hitFor("c1")}

	fused := fuseRRF(lexical, vector)

	wantOrder := []string{"c2", "c1", "c4", "c3"}
	if len(fused) != len(wantOrder) {
		t.Fatalf("expected %d fused results, got %d", len(wantOrder), len(fused))
	}
	for i, want := range wantOrder {
		if got := fused[i].hit.Source.ChunkID; got != want {
			t.Errorf("position %d: got %s, want %s", i, got, want)
		}
	}

	wantScores := map[string]float64{
		"c1": 1.0/61 + 1.0/63,
		"c2": 1.0/62 + 1.0/61,
		"c3": 1.0 / 63,
		"c4": 1.0 / 62,
	}
	for _, f := range fused {
		want := wantScores[f.hit.Source.ChunkID]
		if math.Abs(f.score-want) > 1e-12 {
			t.Errorf("%s: score %v, want %v", f.hit.Source.ChunkID, f.score, want)
		}
	}
}

func TestFuseRRFIsDeterministic(t *testing.T) {
	lexical := []search.Hit{hitFor("a"), hitFor("b"), hitFor("c")}
	vector := []search.Hit{hitFor("d"), hitFor("e"), hitFor("f")}

	first := fuseRRF(lexical, vector)
	for i := 0; i < 20; i++ {
		again := fuseRRF(lexical, vector)
		for j := range first {
			if first[j].hit.Source.ChunkID != again[j].hit.Source.ChunkID {
				t.Fatalf("run %d: order differs at %d", i, j)
			}
		}
	}
}

func TestFuseRRFTieBreaksTowardLexical(t *testing.T) {
	// a at lexical rank 1, b at vector rank 1: identical scores
	lexical := []search.Hit{hitFor("a")}
	vector := []search.Hit{hitFor("b")}

	fused := fuseRRF(lexical, vector)
	if fused[0].hit.Source.ChunkID != "a" {
		t.Errorf("equal scores should prefer the lexical hit, got %s first", fused[0].hit.Source.ChunkID)
	}
}

func TestFuseRRFSingleBranch(t *testing.T) {
	lexical := []search.Hit{hitFor("x"), hitFor("y")}

	fused := fuseRRF(lexical, nil)
	if len(fused) != 2 {
		t.Fatalf("expected 2 results, got %d", len(fused))
	}
	if fused[0].hit.Source.ChunkID != "x" {
		t.Errorf("lexical order must survive, got %s first", fused[0].hit.Source.ChunkID)
	}
}

func TestFuseRRFDeduplicatesChunks(t *testing.T) {
	lexical := []search.Hit{hitFor("same")}
	vector := []search.Hit{hitFor("same")}

	fused := fuseRRF(lexical, vector)
	if len(fused) != 1 {
		t.Fatalf("duplicate chunk must fuse to one result, got %d", len(fused))
	}
	want := 1.0/61 + 1.0/61
	if math.Abs(fused[0].score-want) > 1e-12 {
		t.Errorf("fused score %v, want %v", fused[0].score, want)
	}
}

func TestResultFromHitSnippets(t *testing.T) {
	hit := search.Hit{
		Score: 2.5,
		Source: models.IndexedRecord{
			ChunkID:          "c9",
			DocID:            "talks/doc.pdf",
			PageNum:          7,
			TextContentHi:    "पूरा पाठ यहाँ है।",
			OriginalFilename: "doc.pdf",
		},
		Highlight: map[string][]string{
			"text_content_hi": {"पूरा <em>पाठ</em> यहाँ है।"},
		},
	}

	result := resultFromHit(hit, 0.5, "hi")
	if result.ContentSnippet != "पूरा <em>पाठ</em> यहाँ है।" {
		t.Errorf("expected highlighted snippet, got %q", result.ContentSnippet)
	}
	if result.Score != 0.5 {
		t.Errorf("expected fused score, got %v", result.Score)
	}

	plain := resultFromHit(search.Hit{Source: hit.Source}, 0.5, "hi")
	if plain.ContentSnippet != "पूरा पाठ यहाँ है।" {
		t.Errorf("expected text fallback, got %q", plain.ContentSnippet)
	}
}

func TestHighlightTagExtraction(t *testing.T) {
	fragment := "यह <em>सम्यग्दर्शन</em> और <em>जीव</em> का पाठ"
	matches := highlightTagPattern.FindAllStringSubmatch(fragment, -1)

	var words []string
	for _, m := range matches {
		words = append(words, m[1])
	}
	if len(words) != 2 || words[0] != "सम्यग्दर्शन" || words[1] != "जीव" {
		t.Errorf("unexpected highlight words: %v", words)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("छोटा", 10); got != "छोटा" {
		t.Errorf("short text should pass through, got %q", got)
	}
	long := truncateRunes("अआइईउऊएऐओऔ", 5)
	if len([]rune(long)) != 6 {
		t.Errorf("expected 5 runes plus ellipsis, got %q", long)
	}
}
