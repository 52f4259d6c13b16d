package scalpel

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/benjaminschreck/go-scalpel/pkg/scalpel/shape"
	"github.com/benjaminschreck/go-scalpel/pkg/scalpel/text"
)

// offCanvasEMU is how far left of or above the slide a shape may start
// before it counts as parked off canvas.
const offCanvasEMU = -10000

// AllowlistCleanPass keeps only the text shapes an allow-list names on
// the pages it covers. Pages absent from the allow-list are untouched.
type AllowlistCleanPass struct {
	Allowlist map[int][]string
	Markers   []string
}

func (a *AllowlistCleanPass) Name() string { return "allowlist-clean" }

func (a *AllowlistCleanPass) Apply(ctx context.Context, pkg *Package, report *Report) error {
	slides := pkg.SlideParts()
	for page := range a.Allowlist {
		if page < 1 || page > len(slides) {
			report.Part(presentationPart).Warn("allow-list names page %d but the deck has %d slides", page, len(slides))
		}
	}

	for i, name := range slides {
		if err := ctx.Err(); err != nil {
			return err
		}
		keep := make(map[string]bool)
		for _, s := range a.Allowlist[i+1] {
			if s = strings.TrimSpace(s); s != "" {
				keep[s] = false
			}
		}
		// A page without allowed texts is left alone.
		if len(keep) == 0 {
			continue
		}

		pkg.editPart(report, name, func(part *Part, pr *PartReport) error {
			removed := 0
			for _, node := range shape.Walk(name, shape.Tree(part.doc)) {
				if node.Kind == shape.KindGroup || node.IsPlaceholder() || !node.Attached() {
					continue
				}
				body := node.TextBody()
				if body == nil {
					continue
				}
				logical := strings.TrimSpace(text.ExtractLogicalText(text.Parse(body), a.Markers))
				if logical == "" {
					continue
				}
				pr.Touched++
				if _, ok := keep[logical]; ok {
					keep[logical] = true
					continue
				}
				if node.Excise() {
					pr.Excised++
					removed++
				}
			}
			if removed > 0 {
				part.MarkDirty()
			}
			for _, s := range unmatched(keep) {
				pr.Warn("allow-list text %q matched no shape on page %d", s, i+1)
			}
			return nil
		})
	}
	return nil
}

// HiddenShapeCleanPass removes shapes that never render: hidden shapes,
// shapes with a zero extent, shapes parked off canvas and pictures whose
// image is gone.
type HiddenShapeCleanPass struct{}

func (h *HiddenShapeCleanPass) Name() string { return "hidden-clean" }

func (h *HiddenShapeCleanPass) Apply(ctx context.Context, pkg *Package, report *Report) error {
	for _, name := range pkg.SlideParts() {
		if err := ctx.Err(); err != nil {
			return err
		}
		pkg.editPart(report, name, func(part *Part, pr *PartReport) error {
			removed := 0
			for _, node := range shape.Walk(name, shape.Tree(part.doc)) {
				if !node.Attached() {
					continue
				}
				pr.Touched++
				reason := invisibleReason(pkg, node)
				if reason == "" {
					continue
				}
				embeds := embedIDs(node.Element)
				if !node.Excise() {
					continue
				}
				pr.Excised++
				removed++
				GetLogger().Debug("invisible shape removed", "part", name, "shape", node.Label(), "reason", reason)
				for _, id := range embeds {
					if countEmbedRefs(part, id) == 0 {
						pkg.rels.RemoveEntry(name, id)
					}
				}
			}
			if removed > 0 {
				part.MarkDirty()
			}
			return nil
		})
	}
	return nil
}

func unmatched(keep map[string]bool) []string {
	var out []string
	for s, matched := range keep {
		if !matched {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// invisibleReason says why a shape never renders, or "" when it does.
func invisibleReason(pkg *Package, node *shape.Node) string {
	if node.Hidden() {
		return "hidden"
	}
	if local, ok := shape.LocalTransform(node.Element); ok {
		if local.Extent.W == 0 || local.Extent.H == 0 {
			return "zero extent"
		}
		abs, _ := shape.ComputeAbsolute(node)
		if abs.Offset.X < offCanvasEMU || abs.Offset.Y < offCanvasEMU {
			return "off canvas"
		}
	}
	if node.Kind == shape.KindPicture && !pictureResolves(pkg, node) {
		return "missing image"
	}
	return ""
}

func pictureResolves(pkg *Package, node *shape.Node) bool {
	embed := node.EmbedID()
	if embed == "" {
		// Linked-only pictures carry no embed.
		return shape.AttrValue(node.Blip(), "link") != ""
	}
	target, err := pkg.rels.Resolve(node.Part, embed)
	if errors.Is(err, ErrExternalTarget) {
		return true
	}
	return err == nil && pkg.Has(target)
}
