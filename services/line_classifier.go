package services

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"discourse-search-platform/internal/logger"
	"discourse-search-platform/models"
)

// sentence terminators across Devanagari and Latin scripts
var terminators = []string{"।", "?", "!", "."}

// introductory endings announce a following verse or list
var introductoryEndings = []string{":-", "--", ":"}

// LineClassifier tags OCR lines with the geometric and lexical predicates the
// paragraph generator consumes. Classification is a pure function of the
// line, its page geometry, and the resolved config.
type LineClassifier struct {
	headerPatterns []*regexp.Regexp
	qaMarkers      []string
	minLeftIndent  float64
	minRightIndent float64
	centerThresh   float64
	shortLineChars int
	warnings       int
}

func NewLineClassifier(cfg *models.ResolvedConfig) *LineClassifier {
	patterns := make([]*regexp.Regexp, 0, len(cfg.HeaderRegex))
	for _, expr := range cfg.HeaderRegex {
		re, err := regexp.Compile(expr)
		if err != nil {
			logger.Warn("Skipping invalid header regex", "pattern", expr, "error", err)
			continue
		}
		patterns = append(patterns, re)
	}

	shortChars := cfg.ShortLineChars
	if shortChars <= 0 {
		shortChars = 50
	}

	return &LineClassifier{
		headerPatterns: patterns,
		qaMarkers:      cfg.QAMarkers,
		minLeftIndent:  cfg.MinLeftIndent,
		minRightIndent: cfg.VerseDetection.MinRightIndent,
		centerThresh:   cfg.VerseDetection.CenterThreshold,
		shortLineChars: shortChars,
	}
}

// Classify assigns the tag set for one line. Lines without usable geometry
// degrade to untagged (treated as standard prose downstream) with a warning.
func (lc *LineClassifier) Classify(line *models.Line, geo models.PageGeometry) {
	text := strings.TrimSpace(line.Text)

	if line.XEnd <= line.XStart {
		lc.warnings++
		logger.Warn("Line has no usable geometry, treating as prose", "page", line.PageNum)
		return
	}

	for _, re := range lc.headerPatterns {
		if re.MatchString(text) {
			line.AddTag(models.TagHeaderRegex)
			break
		}
	}

	for _, marker := range lc.qaMarkers {
		if marker != "" && strings.HasPrefix(text, marker) {
			line.AddTag(models.TagQAMarker)
			break
		}
	}

	leftIndent := line.XStart - geo.LeftMargin
	rightIndent := geo.RightMargin - line.XEnd

	if leftIndent > lc.minLeftIndent {
		line.AddTag(models.TagIndented)
	}
	if rightIndent > lc.minRightIndent {
		line.AddTag(models.TagNotRightJustified)
	}
	if line.HasTag(models.TagIndented) && rightIndent > lc.centerThresh {
		line.AddTag(models.TagCentered)
	}

	for _, term := range terminators {
		if strings.HasSuffix(text, term) {
			line.AddTag(models.TagEndsTerminator)
			break
		}
	}

	if utf8.RuneCountInString(text) < lc.shortLineChars {
		line.AddTag(models.TagShort)
	}

	if line.HasTag(models.TagCentered) && line.HasTag(models.TagShort) && !line.HasTag(models.TagEndsTerminator) {
		line.AddTag(models.TagHeading)
	}

	for _, ending := range introductoryEndings {
		if strings.HasSuffix(text, ending) {
			line.AddTag(models.TagIntroductory)
			break
		}
	}
}

// Warnings returns how many lines degraded to untagged prose so far.
func (lc *LineClassifier) Warnings() int {
	return lc.warnings
}

// EndsWithTerminator reports whether trimmed text ends a sentence.
func EndsWithTerminator(text string) bool {
	trimmed := strings.TrimSpace(text)
	for _, term := range terminators {
		if strings.HasSuffix(trimmed, term) {
			return true
		}
	}
	return false
}
