package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileSha256(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := FileSha256(path)
	if err != nil {
		t.Fatal(err)
	}
	// sha256("hello")
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got != want {
		t.Errorf("FileSha256 = %s, want %s", got, want)
	}

	if _, err := FileSha256(filepath.Join(dir, "missing.pdf")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCanonicalJSONHashMapOrder(t *testing.T) {
	a := map[string][]string{"series": {"samaysar"}, "year": {"1978"}}
	b := map[string][]string{"year": {"1978"}, "series": {"samaysar"}}

	ha, err := CanonicalJSONHash(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := CanonicalJSONHash(b)
	if err != nil {
		t.Fatal(err)
	}
	if ha != hb {
		t.Error("equal maps must hash equally regardless of insertion order")
	}

	c := map[string][]string{"series": {"pravachansar"}}
	hc, _ := CanonicalJSONHash(c)
	if ha == hc {
		t.Error("different values must hash differently")
	}
}

func TestStringsHash(t *testing.T) {
	if StringsHash([]string{"a", "b"}) == StringsHash([]string{"ab"}) {
		t.Error("element boundaries must affect the hash")
	}
	if StringsHash([]string{"a", "b"}) != StringsHash([]string{"a", "b"}) {
		t.Error("hash must be stable")
	}
	if StringsHash(nil) != StringsHash([]string{}) {
		t.Error("nil and empty list should hash equally")
	}
}
