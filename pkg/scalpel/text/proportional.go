package text

import (
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"
)

const (
	// DefaultFiller is used when no filler text is configured.
	DefaultFiller = "模板文字"
	// DefaultMinLength is the length generated for bodies whose only
	// content was marker runs.
	DefaultMinLength = 4
)

// Options tunes SubstituteProportional.
type Options struct {
	// Markers are run patterns left out of the length computation.
	Markers []string
	// MinLength applies when every run of the body is a marker.
	MinLength int
}

// SubstituteProportional rewrites every paragraph of b with filler text
// sized to the paragraph's share of the original logical text. Each
// paragraph keeps its a:pPr and ends up with a single run styled like its
// first original run. It reports whether the body was rewritten.
func SubstituteProportional(b *Body, filler string, opts Options) bool {
	if b == nil || len(b.Paragraphs) == 0 || !b.HasText() {
		return false
	}

	targets := TargetLengths(paragraphLengths(b, opts.Markers))
	if sum(targets) == 0 {
		minLen := opts.MinLength
		if minLen <= 0 {
			minLen = DefaultMinLength
		}
		targets[0] = minLen
	}

	for i, p := range b.Paragraphs {
		style := captureStyle(p)
		p.replaceRuns(GenerateFiller(filler, targets[i]), style)
	}
	return true
}

// TargetLengths distributes the paragraph budget over the paragraphs in
// proportion to their original lengths. The logical text is the lengths
// plus one separator between consecutive paragraphs; the budget is that
// total minus the separators, so the result plus the separators always
// adds back up to the original logical length.
func TargetLengths(lengths []int) []int {
	n := len(lengths)
	targets := make([]int, n)
	if n == 0 {
		return targets
	}

	budget := sum(lengths)
	total := budget + n - 1
	if budget == 0 {
		return targets
	}

	remaining := budget
	for i := 0; i < n-1; i++ {
		t := roundDiv(lengths[i]*budget, total)
		if t > remaining {
			t = remaining
		}
		targets[i] = t
		remaining -= t
	}
	targets[n-1] = remaining
	return targets
}

// GenerateFiller returns exactly n characters cut from repetitions of
// filler.
func GenerateFiller(filler string, n int) string {
	if n <= 0 {
		return ""
	}
	if filler == "" {
		filler = DefaultFiller
	}
	src := []rune(filler)
	out := make([]rune, n)
	for i := range out {
		out[i] = src[i%len(src)]
	}
	return string(out)
}

func paragraphLengths(b *Body, markers []string) []int {
	lengths := make([]int, len(b.Paragraphs))
	for i, p := range b.Paragraphs {
		lengths[i] = utf8.RuneCountInString(p.Text(markers))
	}
	return lengths
}

// captureStyle copies the first run's a:rPr, or the paragraph's
// a:endParaRPr when it has no runs.
func captureStyle(p *Paragraph) *etree.Element {
	if len(p.Runs) > 0 {
		if rPr := p.Runs[0].Style(); rPr != nil {
			return rPr.Copy()
		}
	}
	if end := child(p.Element, "endParaRPr"); end != nil {
		style := end.Copy()
		style.Tag = "rPr"
		return style
	}
	return nil
}

func (p *Paragraph) replaceRuns(s string, style *etree.Element) {
	for _, c := range p.Element.ChildElements() {
		if isRun(c) || c.Tag == "br" {
			p.Element.RemoveChild(c)
		}
	}
	p.Runs = nil
	if s == "" {
		return
	}

	space := p.Element.Space
	r := newElement(space, "r")
	if style != nil {
		r.AddChild(style)
	}
	t := newElement(space, "t")
	t.SetText(s)
	if strings.TrimSpace(s) != s {
		t.CreateAttr("xml:space", "preserve")
	}
	r.AddChild(t)

	if end := child(p.Element, "endParaRPr"); end != nil {
		p.Element.InsertChildAt(end.Index(), r)
	} else {
		p.Element.AddChild(r)
	}
	p.Runs = []*Run{{Element: r, Text: s}}
}

func newElement(space, tag string) *etree.Element {
	el := etree.NewElement(tag)
	el.Space = space
	return el
}

func roundDiv(num, den int) int {
	return (2*num + den) / (2 * den)
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}
