package models

// Tag marks a geometric or lexical property of an OCR line.
// Tags are additive; a line may carry several.
type Tag string

const (
	TagCentered          Tag = "IS_CENTERED"
	TagIndented          Tag = "IS_INDENTED"
	TagNotRightJustified Tag = "IS_NOT_RIGHT_JUSTIFIED"
	TagHeaderRegex       Tag = "IS_HEADER_REGEX"
	TagQAMarker          Tag = "IS_QA_MARKER"
	TagEndsTerminator    Tag = "ENDS_WITH_TERMINATOR"
	TagShort             Tag = "IS_SHORT"
	TagHeading           Tag = "IS_HEADING"
	TagIntroductory      Tag = "IS_INTRODUCTORY"
)

// Line is one logical OCR line with page-pixel geometry.
type Line struct {
	Text    string       `json:"text"`
	XStart  float64      `json:"x_start"`
	XEnd    float64      `json:"x_end"`
	YStart  float64      `json:"y_start"`
	YEnd    float64      `json:"y_end"`
	PageNum int          `json:"page_num"`
	Tags    map[Tag]bool `json:"tags,omitempty"`
}

// HasTag reports whether the classifier assigned the given tag.
func (l *Line) HasTag(t Tag) bool {
	return l.Tags[t]
}

// AddTag assigns a tag, allocating the set lazily.
func (l *Line) AddTag(t Tag) {
	if l.Tags == nil {
		l.Tags = make(map[Tag]bool)
	}
	l.Tags[t] = true
}

// PageGeometry describes the printable area of one page, derived from the
// extreme line coordinates the OCR engine returned for it.
type PageGeometry struct {
	LeftMargin  float64
	RightMargin float64
	Width       float64
}
