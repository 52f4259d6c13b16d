package shape

import (
	"math"
	"strconv"

	"github.com/beevik/etree"
)

// Unresolved marks an extent axis no transform ever supplied.
const Unresolved int64 = -1

// EMUPerInch is the number of English Metric Units in one inch.
const EMUPerInch = 914400

// Point is an offset in EMU.
type Point struct {
	X, Y int64
}

// Size is an extent in EMU. Axes that are not positive are unresolved.
type Size struct {
	W, H int64
}

// Resolved reports whether both axes carry a usable length.
func (s Size) Resolved() bool {
	return s.W > 0 && s.H > 0
}

// Transform is the placement of a shape in some coordinate frame.
type Transform struct {
	Offset Point
	Extent Size
}

// GroupTransform is a group's placement plus the child frame its members
// are laid out in.
type GroupTransform struct {
	Transform
	ChildOffset Point
	ChildExtent Size
}

// LocalTransform reads the a:xfrm of a shape element. When the element has
// no transform or no extent, the extent is Unresolved and ok is false.
func LocalTransform(el *etree.Element) (t Transform, ok bool) {
	t.Extent = Size{W: Unresolved, H: Unresolved}
	xfrm := xfrmOf(el)
	if xfrm == nil {
		return t, false
	}
	if off := Child(xfrm, "off"); off != nil {
		t.Offset = Point{X: attrInt(off, "x", 0), Y: attrInt(off, "y", 0)}
	}
	ext := Child(xfrm, "ext")
	if ext == nil {
		return t, false
	}
	t.Extent = Size{W: attrInt(ext, "cx", Unresolved), H: attrInt(ext, "cy", Unresolved)}
	return t, true
}

// GroupFrame reads the transform of a p:grpSp. ok is false when the group
// carries no a:xfrm at all.
func GroupFrame(el *etree.Element) (g GroupTransform, ok bool) {
	xfrm := xfrmOf(el)
	if xfrm == nil {
		return g, false
	}
	g.Transform, _ = LocalTransform(el)
	if chOff := Child(xfrm, "chOff"); chOff != nil {
		g.ChildOffset = Point{X: attrInt(chOff, "x", 0), Y: attrInt(chOff, "y", 0)}
	}
	g.ChildExtent = Size{}
	if chExt := Child(xfrm, "chExt"); chExt != nil {
		g.ChildExtent = Size{W: attrInt(chExt, "cx", 0), H: attrInt(chExt, "cy", 0)}
	}
	return g, true
}

// Apply maps t from the group's child frame into the group's parent frame.
func (g GroupTransform) Apply(t Transform) Transform {
	sx := axisScale(g.Extent.W, g.ChildExtent.W, t.Extent.W)
	sy := axisScale(g.Extent.H, g.ChildExtent.H, t.Extent.H)

	out := Transform{
		Offset: Point{
			X: g.Offset.X + roundHalfUp(float64(t.Offset.X-g.ChildOffset.X)*sx),
			Y: g.Offset.Y + roundHalfUp(float64(t.Offset.Y-g.ChildOffset.Y)*sy),
		},
	}
	out.Extent.W = scaleExtent(t.Extent.W, g.Extent.W, sx)
	out.Extent.H = scaleExtent(t.Extent.H, g.Extent.H, sy)
	return out
}

// ComputeAbsolute composes the node's own transform with every enclosing
// group, innermost first. ok is false when the extent stays unresolved.
func ComputeAbsolute(n *Node) (Transform, bool) {
	cur, _ := LocalTransform(n.Element)
	for i := len(n.Ancestors) - 1; i >= 0; i-- {
		g, ok := GroupFrame(n.Ancestors[i])
		if !ok {
			continue
		}
		cur = g.Apply(cur)
	}
	return cur, cur.Extent.Resolved()
}

// EMUToCentimeters converts a length to centimeters.
func EMUToCentimeters(emu int64) float64 {
	return float64(emu) * 2.54 / EMUPerInch
}

// EMUToPixels converts a length to pixels at the given resolution.
func EMUToPixels(emu int64, dpi int) int {
	return int(roundHalfUp(float64(emu) / EMUPerInch * float64(dpi)))
}

func axisScale(groupExt, childExt, currentExt int64) float64 {
	switch {
	case groupExt <= 0:
		return 1
	case childExt > 0:
		return float64(groupExt) / float64(childExt)
	case currentExt > 0:
		return float64(groupExt) / float64(currentExt)
	default:
		return 1
	}
}

func scaleExtent(current, groupExt int64, scale float64) int64 {
	if current > 0 {
		return roundHalfUp(float64(current) * scale)
	}
	if groupExt > 0 {
		return groupExt
	}
	return Unresolved
}

func roundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}

func xfrmOf(el *etree.Element) *etree.Element {
	if el == nil {
		return nil
	}
	switch el.Tag {
	case "grpSp":
		return Child(Child(el, "grpSpPr"), "xfrm")
	case "graphicFrame":
		return Child(el, "xfrm")
	default:
		return Child(Child(el, "spPr"), "xfrm")
	}
}

func attrInt(el *etree.Element, key string, def int64) int64 {
	v := el.SelectAttrValue(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
