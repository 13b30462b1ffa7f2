package services

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractBookmarks flattens a PDF's outline tree into a list of titles, in
// document order. PDFs without an outline return an empty list.
func ExtractBookmarks(path string) ([]string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF for bookmarks: %w", err)
	}
	defer f.Close()

	var titles []string
	var walk func(outline pdf.Outline)
	walk = func(outline pdf.Outline) {
		title := strings.TrimSpace(outline.Title)
		if title != "" {
			titles = append(titles, title)
		}
		for _, child := range outline.Child {
			walk(child)
		}
	}
	walk(reader.Outline())

	return titles, nil
}

// PageCount returns the number of pages in a PDF.
func PageCount(path string) (int, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	return reader.NumPage(), nil
}
