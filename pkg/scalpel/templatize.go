package scalpel

import (
	"context"

	"github.com/benjaminschreck/go-scalpel/pkg/scalpel/shape"
	"github.com/benjaminschreck/go-scalpel/pkg/scalpel/text"
)

// TemplatizePass replaces authored text with filler of the same shape:
// every paragraph keeps its style and its share of the body's length.
type TemplatizePass struct {
	Filler string
	// Placeholders flag bodies that are left untouched, such as layout
	// prompts.
	Placeholders []string
	// Markers flag runs ignored when measuring lengths.
	Markers        []string
	MinLength      int
	IncludeLayouts bool
}

func (t *TemplatizePass) Name() string { return "templatize" }

func (t *TemplatizePass) Apply(ctx context.Context, pkg *Package, report *Report) error {
	names := pkg.SlideParts()
	if t.IncludeLayouts {
		names = pkg.DrawingParts()
	}

	opts := text.Options{Markers: t.Markers, MinLength: t.MinLength}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		pkg.editPart(report, name, func(part *Part, pr *PartReport) error {
			rewritten := 0
			for _, el := range shape.Descendants(part.doc.Root(), "txBody") {
				body := text.Parse(el)
				if !body.HasText() {
					continue
				}
				if text.MatchesPattern(body.RawText(), t.Placeholders) {
					pr.Skipped++
					continue
				}
				if text.SubstituteProportional(body, t.Filler, opts) {
					rewritten++
				}
			}
			pr.Touched += rewritten
			if rewritten > 0 {
				part.MarkDirty()
			}
			return nil
		})
	}
	return nil
}
