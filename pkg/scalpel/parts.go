package scalpel

import (
	"path"
	"sort"
	"strconv"
	"strings"
)

// Role tags a part by what it holds.
type Role int

const (
	RoleOther Role = iota
	RoleSlide
	RoleLayout
	RoleMaster
	RoleRelationshipManifest
	RoleMedia
)

func (r Role) String() string {
	switch r {
	case RoleSlide:
		return "slide"
	case RoleLayout:
		return "layout"
	case RoleMaster:
		return "master"
	case RoleRelationshipManifest:
		return "relationships"
	case RoleMedia:
		return "media"
	default:
		return "other"
	}
}

// Classify derives a part's role from its package path.
func Classify(name string) Role {
	dir, base := path.Split(name)
	switch {
	case strings.HasSuffix(dir, "_rels/") && strings.HasSuffix(base, ".rels"):
		return RoleRelationshipManifest
	case strings.HasSuffix(dir, "/slides/") && strings.HasPrefix(base, "slide") && strings.HasSuffix(base, ".xml"):
		return RoleSlide
	case strings.HasSuffix(dir, "/slideLayouts/") && strings.HasSuffix(base, ".xml"):
		return RoleLayout
	case strings.HasSuffix(dir, "/slideMasters/") && strings.HasSuffix(base, ".xml"):
		return RoleMaster
	case strings.HasSuffix(dir, "/media/"):
		return RoleMedia
	default:
		return RoleOther
	}
}

// partNumber extracts the trailing number of names like slide12.xml.
func partNumber(name string) int {
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	i := len(base)
	for i > 0 && base[i-1] >= '0' && base[i-1] <= '9' {
		i--
	}
	n, err := strconv.Atoi(base[i:])
	if err != nil {
		return -1
	}
	return n
}

// sortNumeric orders part names by their numeric suffix, falling back to
// the name for ties and unnumbered parts.
func sortNumeric(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		ni, nj := partNumber(names[i]), partNumber(names[j])
		if ni != nj {
			return ni < nj
		}
		return names[i] < names[j]
	})
}

// PartsByRole returns the names of all parts with the given role, ordered
// numerically.
func (p *Package) PartsByRole(role Role) []string {
	p.mu.Lock()
	var names []string
	for name, part := range p.parts {
		if part.Role == role {
			names = append(names, name)
		}
	}
	p.mu.Unlock()
	sortNumeric(names)
	return names
}

// SlideParts returns slide parts in numeric order: slide2 before slide10.
// Page numbers are 1-based positions in this list.
func (p *Package) SlideParts() []string {
	return p.PartsByRole(RoleSlide)
}

// LayoutParts returns slide layout parts in numeric order.
func (p *Package) LayoutParts() []string {
	return p.PartsByRole(RoleLayout)
}

// MasterParts returns slide master parts in numeric order.
func (p *Package) MasterParts() []string {
	return p.PartsByRole(RoleMaster)
}

// DrawingParts returns slides, then layouts, then masters.
func (p *Package) DrawingParts() []string {
	names := p.SlideParts()
	names = append(names, p.LayoutParts()...)
	return append(names, p.MasterParts()...)
}

func isDrawingRole(role Role) bool {
	return role == RoleSlide || role == RoleLayout || role == RoleMaster
}
