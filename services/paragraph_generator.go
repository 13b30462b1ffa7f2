package services

import (
	"strings"

	"discourse-search-platform/models"
)

// ParagraphGenerator reconstructs semantically grouped paragraphs from the
// classified line stream of one document. It runs three phases:
//
//  1. a state machine splits lines into typed fragments,
//  2. consecutive verse/Q&A fragments combine and header fragments are
//     dropped after acting as merge barriers,
//  3. prose continuations are joined across fragment and page breaks.
//
// The generator is deterministic: identical lines and config produce an
// identical paragraph stream.
type ParagraphGenerator struct {
	classifier *LineClassifier
}

func NewParagraphGenerator(cfg *models.ResolvedConfig) *ParagraphGenerator {
	return &ParagraphGenerator{
		classifier: NewLineClassifier(cfg),
	}
}

// fragment is an in-flight paragraph during generation.
type fragment struct {
	typ       models.ParagraphType
	parts     []string
	pageStart int
	pageEnd   int
	noCombine bool
}

func (f *fragment) append(line *models.Line) {
	text := strings.TrimSpace(line.Text)
	if text == "" {
		return
	}
	if len(f.parts) == 0 {
		f.pageStart = line.PageNum
	}
	f.parts = append(f.parts, text)
	f.pageEnd = line.PageNum
}

func (f *fragment) empty() bool {
	return len(f.parts) == 0
}

// separator between lines inside one paragraph: verse, Q&A and header blocks
// keep line structure, prose flows.
func (f *fragment) separator() string {
	if f.typ == models.StandardProse {
		return " "
	}
	return "\n"
}

func (f *fragment) toParagraph() models.Paragraph {
	return models.Paragraph{
		PageNumStart: f.pageStart,
		PageNumEnd:   f.pageEnd,
		Text:         strings.Join(f.parts, f.separator()),
		Type:         f.typ,
		NoCombine:    f.noCombine,
	}
}

// Generate classifies the lines against the page geometry and runs all three
// phases, returning the final ordered paragraph stream with seq numbers.
func (g *ParagraphGenerator) Generate(lines []models.Line, geometry map[int]models.PageGeometry) []models.Paragraph {
	for i := range lines {
		g.classifier.Classify(&lines[i], geometry[lines[i].PageNum])
	}
	return g.GenerateFromClassified(lines)
}

// ClassificationWarnings returns how many lines the classifier degraded to
// untagged prose for missing geometry.
func (g *ParagraphGenerator) ClassificationWarnings() int {
	return g.classifier.Warnings()
}

// GenerateFromClassified runs the three phases over already-tagged lines.
func (g *ParagraphGenerator) GenerateFromClassified(lines []models.Line) []models.Paragraph {
	fragments := phase1(lines)
	combined := phase2(fragments)
	merged := phase3(combined)

	for i := range merged {
		merged[i].SeqNum = i
	}
	return merged
}

// phase1 is the line-level state machine. A transition that consumes no
// input loops once more with the same line ("reprocess").
func phase1(lines []models.Line) []models.Paragraph {
	var out []models.Paragraph
	current := &fragment{typ: models.StandardProse}

	finalize := func() {
		if !current.empty() {
			out = append(out, current.toParagraph())
		}
		current = &fragment{typ: models.StandardProse}
	}

	open := func(typ models.ParagraphType, line *models.Line) {
		finalize()
		current.typ = typ
		current.append(line)
	}

	for i := range lines {
		line := &lines[i]
		if strings.TrimSpace(line.Text) == "" {
			continue
		}

		// Fragments never span pages here. Later phases rejoin verse, Q&A,
		// and unterminated prose that genuinely continues across the break.
		if !current.empty() && line.PageNum != current.pageEnd {
			finalize()
		}

		// Reprocess loop: a state change that rejects the line runs it
		// once more under the new state.
		for pass := 0; pass < 2; pass++ {
			if line.HasTag(models.TagHeaderRegex) {
				if current.typ == models.HeaderBlock {
					current.append(line)
				} else {
					open(models.HeaderBlock, line)
				}
				break
			}

			switch current.typ {
			case models.HeaderBlock:
				// Non-header line ends the header; reprocess as prose.
				finalize()
				continue

			case models.VerseBlock:
				if line.HasTag(models.TagCentered) {
					current.append(line)
					break
				}
				finalize()
				continue

			case models.QABlock:
				if line.HasTag(models.TagCentered) {
					open(models.VerseBlock, line)
					break
				}
				if line.HasTag(models.TagQAMarker) {
					// New turn in the same exchange
					current.append(line)
					break
				}
				if line.HasTag(models.TagIndented) {
					// Continuing answer/question body
					current.append(line)
					break
				}
				finalize()
				continue

			default: // STANDARD_PROSE
				switch {
				case line.HasTag(models.TagQAMarker):
					open(models.QABlock, line)
				case line.HasTag(models.TagHeading):
					// Standalone heading acts as a structural header
					open(models.HeaderBlock, line)
					finalize()
				case line.HasTag(models.TagCentered):
					open(models.VerseBlock, line)
				case line.HasTag(models.TagIntroductory):
					current.append(line)
					current.noCombine = true
					finalize()
				default:
					current.append(line)
				}
			}
			break
		}
	}
	finalize()

	return out
}

// phase2 combines consecutive same-type verse and Q&A fragments, then drops
// header fragments. A header is an absolute barrier: it never merges, and the
// paragraph before it is marked no_combine so phase 3 cannot join across the
// gap the header leaves behind.
func phase2(fragments []models.Paragraph) []models.Paragraph {
	var combined []models.Paragraph
	for _, frag := range fragments {
		if len(combined) > 0 {
			prev := &combined[len(combined)-1]
			sameType := prev.Type == frag.Type
			mergeable := frag.Type == models.VerseBlock || frag.Type == models.QABlock
			if sameType && mergeable {
				prev.Text = prev.Text + "\n" + frag.Text
				prev.PageNumEnd = frag.PageNumEnd
				continue
			}
		}
		combined = append(combined, frag)
	}

	// Drop headers, leaving a no_combine mark on whatever preceded them.
	out := combined[:0]
	for _, p := range combined {
		if p.Type == models.HeaderBlock {
			if len(out) > 0 {
				out[len(out)-1].NoCombine = true
			}
			continue
		}
		out = append(out, p)
	}

	return out
}

// phase3 joins consecutive prose paragraphs when the earlier one was cut
// mid-sentence, typically by a PDF page break. Merging stops at terminated
// sentences, no_combine boundaries, and non-consecutive pages.
func phase3(paragraphs []models.Paragraph) []models.Paragraph {
	var out []models.Paragraph
	for _, p := range paragraphs {
		if len(out) > 0 {
			prev := &out[len(out)-1]
			if prev.Type == models.StandardProse && p.Type == models.StandardProse &&
				!prev.NoCombine &&
				!EndsWithTerminator(prev.Text) &&
				p.PageNumStart-prev.PageNumEnd <= 1 {
				prev.Text = prev.Text + " " + p.Text
				prev.PageNumEnd = p.PageNumEnd
				prev.NoCombine = p.NoCombine
				continue
			}
		}
		out = append(out, p)
	}
	return out
}
