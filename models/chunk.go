package models

// Chunk is one embeddable unit of paragraph text. Chunks never span
// paragraphs; a long paragraph yields several overlapping chunks.
type Chunk struct {
	DocID           string    `json:"doc_id"`
	ChunkID         string    `json:"chunk_id"`
	ParagraphSeqNum int       `json:"paragraph_seq_num"`
	PageNum         int       `json:"page_num"`
	Text            string    `json:"text"`
	Vector          []float32 `json:"vector,omitempty"`
}

// IndexedRecord is the per-chunk document stored in the search cluster. Only
// the text field matching the document language is populated so each field
// keeps its language-specific analyzer.
type IndexedRecord struct {
	ChunkID          string              `json:"chunk_id"`
	DocID            string              `json:"doc_id"`
	PageNum          int                 `json:"page_num"`
	SeqNum           int                 `json:"seq_num"`
	ParagraphSeqNum  int                 `json:"paragraph_seq_num"`
	TextContentHi    string              `json:"text_content_hi,omitempty"`
	TextContentGu    string              `json:"text_content_gu,omitempty"`
	TextContentEn    string              `json:"text_content_en,omitempty"`
	VectorEmbedding  []float32           `json:"vector_embedding,omitempty"`
	Categories       map[string][]string `json:"categories,omitempty"`
	Bookmarks        []string            `json:"bookmarks,omitempty"`
	ContentType      string              `json:"content_type,omitempty"`
	OriginalFilename string              `json:"original_filename"`
}

// TextContent returns whichever language field is populated.
func (r *IndexedRecord) TextContent() string {
	switch {
	case r.TextContentHi != "":
		return r.TextContentHi
	case r.TextContentGu != "":
		return r.TextContentGu
	default:
		return r.TextContentEn
	}
}
