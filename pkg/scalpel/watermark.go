package scalpel

import (
	"context"
	"errors"

	"github.com/beevik/etree"
	"golang.org/x/sync/errgroup"

	"github.com/benjaminschreck/go-scalpel/pkg/scalpel/shape"
	"github.com/benjaminschreck/go-scalpel/pkg/scalpel/text"
)

// WatermarkPass removes every shape whose text carries a vendor marker
// from slides, layouts and masters. Parts are scanned in parallel.
type WatermarkPass struct {
	Patterns []string
	Workers  int
}

func (w *WatermarkPass) Name() string { return "watermark" }

func (w *WatermarkPass) Apply(ctx context.Context, pkg *Package, report *Report) error {
	patterns := w.patterns()
	workers := w.Workers
	if workers <= 0 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, name := range pkg.DrawingParts() {
		name := name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pkg.editPart(report, name, func(part *Part, pr *PartReport) error {
				stripMarkers(part, patterns, pr)
				return nil
			})
			return nil
		})
	}
	return g.Wait()
}

func (w *WatermarkPass) patterns() []string {
	if len(w.Patterns) == 0 {
		return DefaultWatermarkPatterns
	}
	return w.Patterns
}

// stripMarkers excises the owners of matching text bodies. When no body
// matches as a whole, single a:t nodes are checked instead.
func stripMarkers(part *Part, patterns []string, pr *PartReport) {
	root := part.doc.Root()
	matched, excised := 0, 0

	for _, body := range shape.Descendants(root, "txBody") {
		if !shape.Attached(body) {
			continue
		}
		pr.Touched++
		if !text.MatchesPattern(text.Parse(body).RawText(), patterns) {
			continue
		}
		matched++
		excised += exciseFlagged(body, pr)
	}

	if matched == 0 {
		for _, t := range shape.Descendants(root, "t") {
			if !isRunText(t) || !shape.Attached(t) {
				continue
			}
			if text.MatchesPattern(t.Text(), patterns) {
				excised += exciseFlagged(t, pr)
			}
		}
	}

	if excised > 0 {
		part.MarkDirty()
		GetLogger().Debug("markers stripped", "part", part.Name, "excised", excised)
	}
}

func exciseFlagged(el *etree.Element, pr *PartReport) int {
	removed, err := shape.Excise(el)
	switch {
	case errors.Is(err, shape.ErrFrameContent):
		owner, _ := shape.Owner(el)
		pr.Skipped++
		pr.Warn("marker inside graphic frame %s left in place", shape.NewNode(pr.Part, owner).Label())
	case removed:
		pr.Excised++
		return 1
	}
	return 0
}

func isRunText(t *etree.Element) bool {
	parent := t.Parent()
	return parent != nil && (parent.Tag == "r" || parent.Tag == "fld")
}

// CountMarkers counts the removable text bodies across slides, layouts and
// masters that still match patterns.
func CountMarkers(pkg *Package, patterns []string) int {
	if len(patterns) == 0 {
		patterns = DefaultWatermarkPatterns
	}
	count := 0
	for _, name := range pkg.DrawingParts() {
		part, _ := pkg.Part(name)
		for _, body := range shape.Descendants(part.doc.Root(), "txBody") {
			if _, kind := shape.Owner(body); kind == shape.KindUnknown || kind == shape.KindFrame {
				continue
			}
			if text.MatchesPattern(text.Parse(body).RawText(), patterns) {
				count++
			}
		}
	}
	return count
}
