// Package text reconstructs and rewrites DrawingML text bodies.
//
// A p:txBody holds a:p paragraphs, each a sequence of a:r runs (and a:fld
// fields) whose a:t children carry the characters. The same visible line
// is routinely split across several runs, so matching and rewriting work
// on the logical text of the body rather than on single runs.
package text

import (
	"strings"

	"github.com/beevik/etree"
)

// ParagraphSeparator joins paragraphs in the logical text of a body.
const ParagraphSeparator = "\n"

// Run is a styled span of text.
type Run struct {
	Element *etree.Element
	Text    string
}

// Style returns the run's a:rPr.
func (r *Run) Style() *etree.Element {
	return child(r.Element, "rPr")
}

// Paragraph is an ordered list of runs sharing a:pPr.
type Paragraph struct {
	Element *etree.Element
	Runs    []*Run
}

// Body is a parsed text body bound to its live element.
type Body struct {
	Element    *etree.Element
	Paragraphs []*Paragraph
}

// Parse binds a Body to a p:txBody (or a:txBody) element.
func Parse(txBody *etree.Element) *Body {
	b := &Body{Element: txBody}
	if txBody == nil {
		return b
	}
	for _, p := range txBody.ChildElements() {
		if p.Tag != "p" {
			continue
		}
		b.Paragraphs = append(b.Paragraphs, parseParagraph(p))
	}
	return b
}

func parseParagraph(el *etree.Element) *Paragraph {
	p := &Paragraph{Element: el}
	for _, c := range el.ChildElements() {
		if !isRun(c) {
			continue
		}
		r := &Run{Element: c}
		if t := child(c, "t"); t != nil {
			r.Text = t.Text()
		}
		p.Runs = append(p.Runs, r)
	}
	return p
}

// Text concatenates the paragraph's runs, leaving out runs matching any of
// the exclude patterns.
func (p *Paragraph) Text(exclude []string) string {
	var sb strings.Builder
	for _, r := range p.Runs {
		if MatchesPattern(r.Text, exclude) {
			continue
		}
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// RawText is the logical text with nothing excluded.
func (b *Body) RawText() string {
	return ExtractLogicalText(b, nil)
}

// HasText reports whether any run carries characters.
func (b *Body) HasText() bool {
	for _, p := range b.Paragraphs {
		for _, r := range p.Runs {
			if r.Text != "" {
				return true
			}
		}
	}
	return false
}

// ExtractLogicalText concatenates every run across every paragraph,
// separating paragraphs with ParagraphSeparator. Runs matching any marker
// pattern are dropped first so the result reflects authored content only.
func ExtractLogicalText(b *Body, markers []string) string {
	if b == nil {
		return ""
	}
	parts := make([]string, len(b.Paragraphs))
	for i, p := range b.Paragraphs {
		parts[i] = p.Text(markers)
	}
	return strings.Join(parts, ParagraphSeparator)
}

// MatchesPattern reports whether text contains any of the patterns,
// ignoring case. Empty patterns never match.
func MatchesPattern(text string, patterns []string) bool {
	if text == "" || len(patterns) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func isRun(el *etree.Element) bool {
	return el.Tag == "r" || el.Tag == "fld"
}

func child(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}
