package shape

import (
	"errors"

	"github.com/beevik/etree"
)

// ErrFrameContent is returned when a flagged element lives inside a
// graphic frame such as a table. Frames are never removed on behalf of
// their content.
var ErrFrameContent = errors.New("flagged content belongs to a graphic frame")

// Owner returns the nearest shape element at or above el.
func Owner(el *etree.Element) (*etree.Element, Kind) {
	for cur := el; cur != nil; cur = cur.Parent() {
		if k := KindOf(cur); k != KindUnknown {
			return cur, k
		}
	}
	return nil, KindUnknown
}

// Excise removes the shape that owns el through the shape's immediate
// parent, which for group members is the group. It reports whether
// anything was removed; excising an element that is already detached is a
// no-op.
func Excise(el *etree.Element) (bool, error) {
	owner, kind := Owner(el)
	if owner == nil {
		return false, nil
	}
	if kind == KindFrame {
		return false, ErrFrameContent
	}
	if !Attached(owner) {
		return false, nil
	}
	return owner.Parent().RemoveChild(owner) != nil, nil
}
