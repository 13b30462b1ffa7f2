package services

import (
	"testing"

	"discourse-search-platform/models"
)

func classifierForTests() (*LineClassifier, models.PageGeometry) {
	cfg := models.DefaultResolvedConfig()
	cfg.HeaderRegex = []string{`^श्री समयसार - \d+$`}
	cfg.QAMarkers = []string{"प्रश्न:-", "उत्तर:-"}
	lc := NewLineClassifier(&cfg)

	geo := models.PageGeometry{LeftMargin: 50, RightMargin: 850, Width: 900}
	return lc, geo
}

func TestClassifyFullWidthProseLine(t *testing.T) {
	lc, geo := classifierForTests()
	line := models.Line{
		Text:    "यह एक लंबी सामान्य गद्य पंक्ति है जो पृष्ठ की पूरी चौड़ाई घेरती है और अंत में पूर्ण विराम से समाप्त होती है।",
		XStart:  50,
		XEnd:    850,
		PageNum: 1,
	}
	lc.Classify(&line, geo)

	if line.HasTag(models.TagIndented) || line.HasTag(models.TagCentered) {
		t.Errorf("full-width line should not be indented or centered, tags: %v", line.Tags)
	}
	if !line.HasTag(models.TagEndsTerminator) {
		t.Error("expected ENDS_WITH_TERMINATOR for danda-terminated line")
	}
	if line.HasTag(models.TagShort) {
		t.Error("long line tagged short")
	}
}

func TestClassifyCenteredVerseLine(t *testing.T) {
	lc, geo := classifierForTests()
	line := models.Line{
		Text:    "जय हो वीतराग वाणी",
		XStart:  300,
		XEnd:    600,
		PageNum: 2,
	}
	lc.Classify(&line, geo)

	if !line.HasTag(models.TagIndented) {
		t.Error("expected IS_INDENTED")
	}
	if !line.HasTag(models.TagCentered) {
		t.Error("expected IS_CENTERED")
	}
	if !line.HasTag(models.TagHeading) {
		t.Error("centered short unterminated line should be IS_HEADING")
	}
}

func TestClassifyCenteredTerminatedLineIsNotHeading(t *testing.T) {
	lc, geo := classifierForTests()
	line := models.Line{
		Text:    "मंगलमय यह धाम।",
		XStart:  300,
		XEnd:    600,
		PageNum: 2,
	}
	lc.Classify(&line, geo)

	if !line.HasTag(models.TagCentered) {
		t.Error("expected IS_CENTERED")
	}
	if line.HasTag(models.TagHeading) {
		t.Error("terminated line must not be a heading")
	}
}

func TestClassifyHeaderRegex(t *testing.T) {
	lc, geo := classifierForTests()
	line := models.Line{Text: "श्री समयसार - 15", XStart: 350, XEnd: 550, PageNum: 3}
	lc.Classify(&line, geo)

	if !line.HasTag(models.TagHeaderRegex) {
		t.Error("expected IS_HEADER_REGEX")
	}
}

func TestClassifyQAMarker(t *testing.T) {
	lc, geo := classifierForTests()
	line := models.Line{Text: "प्रश्न:- आत्मा क्या है?", XStart: 50, XEnd: 400, PageNum: 4}
	lc.Classify(&line, geo)

	if !line.HasTag(models.TagQAMarker) {
		t.Error("expected IS_QA_MARKER")
	}
	if !line.HasTag(models.TagEndsTerminator) {
		t.Error("question mark should terminate")
	}
}

func TestClassifyIntroductoryEndings(t *testing.T) {
	lc, geo := classifierForTests()
	for _, text := range []string{"अब गाथा कहते हैं :-", "यथा --", "जैसे कि:"} {
		line := models.Line{Text: text, XStart: 50, XEnd: 500, PageNum: 1}
		lc.Classify(&line, geo)
		if !line.HasTag(models.TagIntroductory) {
			t.Errorf("expected IS_INTRODUCTORY for %q", text)
		}
	}
}

func TestClassifyLineWithoutGeometry(t *testing.T) {
	lc, geo := classifierForTests()
	line := models.Line{Text: "बिना ज्यामिति की पंक्ति", PageNum: 1}
	lc.Classify(&line, geo)

	if len(line.Tags) != 0 {
		t.Errorf("line without geometry should stay untagged, got %v", line.Tags)
	}
	if lc.Warnings() != 1 {
		t.Errorf("expected 1 degradation warning, got %d", lc.Warnings())
	}

	good := models.Line{Text: "सामान्य पंक्ति", XStart: 50, XEnd: 500, PageNum: 1}
	lc.Classify(&good, geo)
	if lc.Warnings() != 1 {
		t.Errorf("lines with geometry must not count as warnings, got %d", lc.Warnings())
	}
}

func TestClassifyInvalidHeaderRegexIsSkipped(t *testing.T) {
	cfg := models.DefaultResolvedConfig()
	cfg.HeaderRegex = []string{"[unclosed", `^वैध$`}
	lc := NewLineClassifier(&cfg)

	line := models.Line{Text: "वैध", XStart: 400, XEnd: 500, PageNum: 1}
	lc.Classify(&line, models.PageGeometry{LeftMargin: 50, RightMargin: 850, Width: 900})

	if !line.HasTag(models.TagHeaderRegex) {
		t.Error("valid pattern after an invalid one should still match")
	}
}

func TestEndsWithTerminator(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"वाक्य पूरा हुआ।", true},
		{"क्या यह प्रश्न है?", true},
		{"English sentence.", true},
		{"अधूरा वाक्य", false},
		{"  ", false},
	}
	for _, tc := range cases {
		if got := EndsWithTerminator(tc.text); got != tc.want {
			t.Errorf("EndsWithTerminator(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
