package models

// ParagraphType is the semantic class assigned by the paragraph generator.
type ParagraphType string

const (
	StandardProse ParagraphType = "STANDARD_PROSE"
	VerseBlock    ParagraphType = "VERSE_BLOCK"
	QABlock       ParagraphType = "QA_BLOCK"
	HeaderBlock   ParagraphType = "HEADER_BLOCK"
)

// Paragraph is a semantically grouped block of text reconstructed from OCR
// lines. SeqNum is a monotonic counter across the whole document; a paragraph
// spans pages only when the generator joined a cross-page continuation.
type Paragraph struct {
	PageNumStart int           `json:"page_num_start" bson:"page_num_start"`
	PageNumEnd   int           `json:"page_num_end" bson:"page_num_end"`
	Text         string        `json:"text" bson:"text"`
	Type         ParagraphType `json:"type" bson:"type"`
	SeqNum       int           `json:"seq_num" bson:"seq_num"`

	// NoCombine blocks Phase-3 prose merging with the following paragraph.
	// Set when the last line was introductory or the predecessor was a header.
	NoCombine bool `json:"-" bson:"-"`
}
