package scalpel

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const (
	// RelationshipsNamespace is the package relationships namespace.
	RelationshipsNamespace = "http://schemas.openxmlformats.org/package/2006/relationships"
	// ImageRelationshipType is the relationship type of embedded pictures.
	ImageRelationshipType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"

	// ReservedIDRangeStart is where allocated relationship ids begin.
	// Authoring tools number their ids from rId1 upwards, so ids handed
	// out here stay clear of the ones they allocate next.
	ReservedIDRangeStart = 1000

	maxAllocationAttempts = 64
)

// Relationship represents a relationship in a manifest
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

// External reports whether the target lives outside the package.
func (r Relationship) External() bool {
	return strings.EqualFold(r.TargetMode, "External")
}

// Relationships represents the collection of relationships
type Relationships struct {
	XMLName      xml.Name       `xml:"Relationships"`
	Namespace    string         `xml:"xmlns,attr"`
	Relationship []Relationship `xml:"Relationship"`
}

// Manifest is the parsed relationships part of one source part.
type Manifest struct {
	// Path is the manifest's own package path.
	Path string
	// Source is the part the manifest belongs to; "" for the package root.
	Source string

	mu    sync.Mutex
	rels  Relationships
	next  int
	dirty bool
}

// RelationshipGraph holds every manifest of a package.
type RelationshipGraph struct {
	mu        sync.Mutex
	manifests map[string]*Manifest
}

func newRelationshipGraph() *RelationshipGraph {
	return &RelationshipGraph{manifests: make(map[string]*Manifest)}
}

// ManifestPath converts a part name to its relationships part name,
// e.g. "ppt/slides/slide1.xml" -> "ppt/slides/_rels/slide1.xml.rels".
func ManifestPath(partName string) string {
	dir, base := path.Split(partName)
	return dir + "_rels/" + base + ".rels"
}

// SourcePath is the inverse of ManifestPath.
func SourcePath(manifestPath string) string {
	dir, base := path.Split(manifestPath)
	dir = strings.TrimSuffix(dir, "_rels/")
	return dir + strings.TrimSuffix(base, ".rels")
}

func parseManifest(name string, data []byte) (*Manifest, error) {
	m := &Manifest{Path: name, Source: SourcePath(name)}
	if err := xml.Unmarshal(data, &m.rels); err != nil {
		return nil, fmt.Errorf("failed to parse relationships: %w", err)
	}
	return m, nil
}

func (m *Manifest) marshal() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rels.Namespace == "" {
		m.rels.Namespace = RelationshipsNamespace
	}
	out, err := xml.Marshal(m.rels)
	if err != nil {
		return nil, err
	}
	return append([]byte(xmlDeclaration), out...), nil
}

func (m *Manifest) find(id string) (int, bool) {
	for i, r := range m.rels.Relationship {
		if r.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (m *Manifest) snapshot() manifestSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return manifestSnapshot{
		rels:  append([]Relationship(nil), m.rels.Relationship...),
		dirty: m.dirty,
	}
}

func (m *Manifest) restore(s manifestSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rels.Relationship = s.rels
	m.dirty = s.dirty
}

type manifestSnapshot struct {
	rels  []Relationship
	dirty bool
}

// maxNumericID returns the highest number among ids of the form rIdN.
func (m *Manifest) maxNumericID() int {
	highest := 0
	for _, r := range m.rels.Relationship {
		if n := extractRelationshipNumber(r.ID); n > highest {
			highest = n
		}
	}
	return highest
}

// allocate returns the next free id. The caller holds m.mu.
func (m *Manifest) allocate() (string, error) {
	if m.next == 0 {
		m.next = ReservedIDRangeStart
		if highest := m.maxNumericID(); highest >= m.next {
			m.next = highest + 1
		}
	}
	for attempt := 0; attempt < maxAllocationAttempts; attempt++ {
		id := "rId" + strconv.Itoa(m.next)
		m.next++
		if _, taken := m.find(id); !taken {
			return id, nil
		}
		GetLogger().Warn("relationship id collision, retrying", "manifest", m.Path, "id", id)
	}
	return "", fmt.Errorf("%w in %s", ErrCollidingRelationshipID, m.Path)
}

func extractRelationshipNumber(id string) int {
	if !strings.HasPrefix(id, "rId") {
		return 0
	}
	n, err := strconv.Atoi(id[3:])
	if err != nil {
		return 0
	}
	return n
}

func (g *RelationshipGraph) manifest(partName string) *Manifest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.manifests[ManifestPath(partName)]
}

func (g *RelationshipGraph) ensureManifest(partName string) (*Manifest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	name := ManifestPath(partName)
	if m, ok := g.manifests[name]; ok {
		return m, false
	}
	m := &Manifest{
		Path:   name,
		Source: partName,
		rels:   Relationships{Namespace: RelationshipsNamespace},
		dirty:  true,
	}
	g.manifests[name] = m
	return m, true
}

func (g *RelationshipGraph) add(m *Manifest) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.manifests[m.Path] = m
}

func (g *RelationshipGraph) drop(manifestPath string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.manifests, manifestPath)
}

func (g *RelationshipGraph) all() []*Manifest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Manifest, 0, len(g.manifests))
	for _, m := range g.manifests {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// LoadManifest returns the relationships of a part keyed by id. A part
// without a manifest has no relationships.
func (g *RelationshipGraph) LoadManifest(partName string) map[string]Relationship {
	out := make(map[string]Relationship)
	m := g.manifest(partName)
	if m == nil {
		return out
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rels.Relationship {
		out[r.ID] = r
	}
	return out
}

// Get returns one relationship of a part.
func (g *RelationshipGraph) Get(partName, id string) (Relationship, error) {
	m := g.manifest(partName)
	if m == nil {
		return Relationship{}, fmt.Errorf("%w: %s has no manifest (id %s)", ErrMissingRelationship, partName, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.find(id)
	if !ok {
		return Relationship{}, fmt.Errorf("%w: %s in %s", ErrMissingRelationship, id, m.Path)
	}
	return m.rels.Relationship[i], nil
}

// Resolve returns the absolute package path a relationship points at.
func (g *RelationshipGraph) Resolve(partName, id string) (string, error) {
	rel, err := g.Get(partName, id)
	if err != nil {
		return "", err
	}
	if rel.External() {
		return rel.Target, fmt.Errorf("%w: %s", ErrExternalTarget, rel.Target)
	}
	return ResolveTarget(partName, rel.Target), nil
}

// ResolveTarget joins a relative target onto the directory of its source
// part, collapsing ".." segments. Targets starting with "/" are rooted at
// the package.
func ResolveTarget(sourcePart, target string) string {
	if unescaped, err := url.PathUnescape(target); err == nil {
		target = unescaped
	}
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return strings.TrimPrefix(path.Clean(path.Join(path.Dir(sourcePart), target)), "/")
}

// RelativeTarget is the inverse of ResolveTarget.
func RelativeTarget(sourcePart, target string) string {
	from := strings.Split(path.Dir(sourcePart), "/")
	if path.Dir(sourcePart) == "." {
		from = nil
	}
	to := strings.Split(target, "/")

	common := 0
	for common < len(from) && common < len(to)-1 && from[common] == to[common] {
		common++
	}
	parts := make([]string, 0, len(from)-common+len(to)-common)
	for range from[common:] {
		parts = append(parts, "..")
	}
	parts = append(parts, to[common:]...)
	return strings.Join(parts, "/")
}

// AddEntry appends a relationship to a part's manifest, creating the
// manifest when needed, and returns the allocated id.
func (g *RelationshipGraph) AddEntry(partName, relType, target string) (string, error) {
	m, _ := g.ensureManifest(partName)
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.allocate()
	if err != nil {
		return "", err
	}
	m.rels.Relationship = append(m.rels.Relationship, Relationship{ID: id, Type: relType, Target: target})
	m.dirty = true
	return id, nil
}

// Retarget points an existing relationship at a new relative target.
func (g *RelationshipGraph) Retarget(partName, id, newTarget string) error {
	m := g.manifest(partName)
	if m == nil {
		return fmt.Errorf("%w: %s has no manifest (id %s)", ErrMissingRelationship, partName, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.find(id)
	if !ok {
		return fmt.Errorf("%w: %s in %s", ErrMissingRelationship, id, m.Path)
	}
	m.rels.Relationship[i].Target = newTarget
	m.dirty = true
	return nil
}

// RemoveEntry deletes a relationship. Removing an unknown id is a no-op.
func (g *RelationshipGraph) RemoveEntry(partName, id string) {
	m := g.manifest(partName)
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.find(id); ok {
		m.rels.Relationship = append(m.rels.Relationship[:i], m.rels.Relationship[i+1:]...)
		m.dirty = true
	}
}

// RefCount counts internal relationships across the package that resolve
// to target.
func (g *RelationshipGraph) RefCount(target string) int {
	count := 0
	for _, m := range g.all() {
		m.mu.Lock()
		for _, r := range m.rels.Relationship {
			if !r.External() && ResolveTarget(m.Source, r.Target) == target {
				count++
			}
		}
		m.mu.Unlock()
	}
	return count
}
