package models

// VerseDetection holds the geometry thresholds for verse/centered lines, in
// page pixels.
type VerseDetection struct {
	CenterThreshold float64 `json:"center_threshold"`
	MinRightIndent  float64 `json:"min_right_indent"`
}

// ResolvedConfig is the effective configuration for one PDF after merging
// every config.json from the corpus root down to the file, plus the optional
// per-file override. Deeper values win; lists and maps replace, never merge.
type ResolvedConfig struct {
	Language        string              `json:"language"`
	OCREngine       string              `json:"ocr_engine"`
	HeaderRegex     []string            `json:"header_regex"`
	FooterRegex     []string            `json:"footer_regex"`
	VerseDetection  VerseDetection      `json:"verse_detection"`
	QAMarkers       []string            `json:"qa_markers"`
	ChunkStrategy   string              `json:"chunk_strategy"`
	ChunkSize       int                 `json:"chunk_size"`
	ChunkOverlap    int                 `json:"chunk_overlap"`
	Categories      map[string][]string `json:"categories"`
	FileURLTemplate string              `json:"file_url_template"`

	MinLeftIndent  float64 `json:"min_left_indent"`
	ShortLineChars int     `json:"short_line_chars"`
	CropTopPct     float64 `json:"crop_top_pct"`
	CropBottomPct  float64 `json:"crop_bottom_pct"`
}

// DefaultResolvedConfig returns the root-level defaults applied before any
// config.json override.
func DefaultResolvedConfig() ResolvedConfig {
	return ResolvedConfig{
		Language:      "hi",
		OCREngine:     "tesseract",
		ChunkStrategy: "default",
		ChunkSize:     1000,
		ChunkOverlap:  200,
		VerseDetection: VerseDetection{
			CenterThreshold: 100,
			MinRightIndent:  40,
		},
		MinLeftIndent:  40,
		ShortLineChars: 50,
	}
}

// ContentType derives the pravachan/granth bucket from categories.
func (c *ResolvedConfig) ContentType() string {
	if v, ok := c.Categories["content_type"]; ok && len(v) > 0 {
		return v[0]
	}
	return "pravachan"
}
