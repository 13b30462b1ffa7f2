package services

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExtractBookmarksRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a.pdf")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ExtractBookmarks(path); err == nil {
		t.Error("expected an error for a non-PDF file")
	}
}

func TestPageCountRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a.pdf")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := PageCount(path); err == nil {
		t.Error("expected an error for a non-PDF file")
	}
}
