package scalpel

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
)

// Part is one file of the package. Slides, layouts and masters carry a
// parsed tree; everything else stays on disk until read.
type Part struct {
	Name string
	Role Role

	mu    sync.Mutex
	doc   *etree.Document
	dirty bool
}

// Document returns the parsed tree of a slide, layout or master part.
func (pt *Part) Document() *etree.Document {
	return pt.doc
}

// MarkDirty flags the part for re-serialization on save.
func (pt *Part) MarkDirty() {
	pt.dirty = true
}

// Dirty reports whether the part changed since it was opened or saved.
func (pt *Part) Dirty() bool {
	return pt.dirty
}

// Package is an opened presentation package backed by a working tree.
type Package struct {
	dir string

	mu       sync.Mutex
	parts    map[string]*Part
	staged   map[string][]byte
	modTimes map[string]time.Time
	rels     *RelationshipGraph
	types    *ContentTypes
}

// Open unzips the package at path into a fresh working tree.
func Open(path string) (*Package, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, NewPackageError("open", path, ErrIOFailure, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, NewPackageError("open", path, ErrIOFailure, err)
	}

	pkg, err := OpenReader(file, info.Size())
	if err != nil {
		var pe *PackageError
		if errors.As(err, &pe) && pe.Path == "" {
			pe.Path = path
		}
		return nil, err
	}
	return pkg, nil
}

// OpenReader unzips a package held in r.
func OpenReader(r io.ReaderAt, size int64) (*Package, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, NewPackageError("open", "", ErrCorruptPackage, err)
	}

	dir, err := os.MkdirTemp("", "scalpel-")
	if err != nil {
		return nil, NewPackageError("open", "", ErrIOFailure, err)
	}

	pkg := &Package{
		dir:      dir,
		parts:    make(map[string]*Part),
		staged:   make(map[string][]byte),
		modTimes: make(map[string]time.Time),
		rels:     newRelationshipGraph(),
	}
	if err := pkg.extract(zr); err != nil {
		pkg.Close()
		return nil, err
	}
	return pkg, nil
}

func (p *Package) extract(zr *zip.Reader) error {
	for _, file := range zr.File {
		if file.FileInfo().IsDir() {
			continue
		}
		name, err := cleanEntryName(file.Name)
		if err != nil {
			return NewPackageError("extract", file.Name, ErrCorruptPackage, err)
		}

		data, err := readZipFile(file)
		if err != nil {
			return NewPackageError("extract", name, ErrCorruptPackage, err)
		}
		if err := p.writeTree(name, data); err != nil {
			return NewPackageError("extract", name, ErrIOFailure, err)
		}
		p.modTimes[name] = file.Modified

		if err := p.index(name, data); err != nil {
			return NewPackageError("parse", name, ErrCorruptPackage, err)
		}
	}

	if p.types == nil {
		return NewPackageError("open", "", ErrCorruptPackage, fmt.Errorf("missing %s", contentTypesPart))
	}
	for name := range p.parts {
		if strings.HasPrefix(name, "ppt/") {
			return nil
		}
	}
	return NewPackageError("open", "", ErrCorruptPackage, errors.New("not a presentation package: no ppt/ parts"))
}

func (p *Package) index(name string, data []byte) error {
	part := &Part{Name: name, Role: Classify(name)}

	switch {
	case name == contentTypesPart:
		types, err := parseContentTypes(data)
		if err != nil {
			return err
		}
		p.types = types
	case part.Role == RoleRelationshipManifest:
		m, err := parseManifest(name, data)
		if err != nil {
			return err
		}
		p.rels.add(m)
	case isDrawingRole(part.Role):
		doc, err := parseXML(data)
		if err != nil {
			return err
		}
		part.doc = doc
	}

	p.parts[name] = part
	return nil
}

func parseXML(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charset.NewReaderLabel
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, errors.New("no root element")
	}
	return doc, nil
}

// cleanEntryName normalizes a zip entry name and rejects names that would
// escape the working tree.
func cleanEntryName(name string) (string, error) {
	name = strings.TrimPrefix(strings.ReplaceAll(name, "\\", "/"), "/")
	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("entry %q escapes the package root", name)
	}
	return clean, nil
}

func readZipFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", file.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file.Name, err)
	}
	return data, nil
}

func (p *Package) treePath(name string) string {
	return filepath.Join(p.dir, filepath.FromSlash(name))
}

func (p *Package) writeTree(name string, data []byte) error {
	target := p.treePath(name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.WriteFile(target, data, 0o644)
}

// Dir returns the working tree the package was extracted to.
func (p *Package) Dir() string {
	return p.dir
}

// Close removes the working tree.
func (p *Package) Close() error {
	if p.dir == "" {
		return nil
	}
	err := os.RemoveAll(p.dir)
	p.dir = ""
	return err
}

// Part returns a part by package path.
func (p *Package) Part(name string) (*Part, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	part, ok := p.parts[name]
	return part, ok
}

// Has reports whether a part exists, including media staged this session.
func (p *Package) Has(name string) bool {
	p.mu.Lock()
	_, ok := p.parts[name]
	p.mu.Unlock()
	if ok {
		return true
	}
	p.rels.mu.Lock()
	defer p.rels.mu.Unlock()
	_, ok = p.rels.manifests[name]
	return ok
}

// PartNames lists every part in path order.
func (p *Package) PartNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.parts))
	for name := range p.parts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Relationships exposes the package's relationship graph.
func (p *Package) Relationships() *RelationshipGraph {
	return p.rels
}

// ContentTypes exposes the [Content_Types].xml part.
func (p *Package) ContentTypes() *ContentTypes {
	return p.types
}

// ReadPart returns the current bytes of a part.
func (p *Package) ReadPart(name string) ([]byte, error) {
	p.mu.Lock()
	data, staged := p.staged[name]
	part := p.parts[name]
	p.mu.Unlock()

	if staged {
		return append([]byte(nil), data...), nil
	}
	if part != nil && part.doc != nil && part.dirty {
		return part.doc.WriteToBytes()
	}
	data, err := os.ReadFile(p.treePath(name))
	if err != nil {
		return nil, NewPackageError("read", name, ErrIOFailure, err)
	}
	return data, nil
}

// stage records new bytes for a part; they reach the tree on save.
func (p *Package) stage(name string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.staged[name] = data
	if _, ok := p.parts[name]; !ok {
		p.parts[name] = &Part{Name: name, Role: Classify(name)}
	}
}

func (p *Package) unstage(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.staged, name)
	if _, onDisk := p.modTimes[name]; !onDisk {
		delete(p.parts, name)
	}
}

func (p *Package) stagedNames() map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make(map[string]bool, len(p.staged))
	for name := range p.staged {
		names[name] = true
	}
	return names
}

// Validate checks that every internal relationship resolves to a part.
func (p *Package) Validate() []error {
	var problems []error
	for _, m := range p.rels.all() {
		m.mu.Lock()
		rels := append([]Relationship(nil), m.rels.Relationship...)
		m.mu.Unlock()
		for _, r := range rels {
			if r.External() {
				continue
			}
			target := ResolveTarget(m.Source, r.Target)
			if !p.Has(target) {
				problems = append(problems, fmt.Errorf("%w: %s %s -> %s", ErrMissingRelationship, m.Path, r.ID, target))
			}
		}
	}
	return problems
}

// transact runs fn against one editable part. When fn fails or panics the
// part, its manifest, media staged meanwhile and content-type defaults are
// restored, so only that part's changes are lost. Passes that stage media
// run their parts one at a time.
func (p *Package) transact(name string, fn func(part *Part) error) (err error) {
	part, ok := p.Part(name)
	if !ok || part.doc == nil {
		return fmt.Errorf("%s is not an editable part", name)
	}

	part.mu.Lock()
	defer part.mu.Unlock()

	docSnap := part.doc.Copy()
	wasDirty := part.dirty
	manifest := p.rels.manifest(name)
	var relSnap manifestSnapshot
	if manifest != nil {
		relSnap = manifest.snapshot()
	}
	stagedBefore := p.stagedNames()
	typesSnap := p.types.snapshot()

	defer func() {
		if r := recover(); r != nil {
			err = RecoverError(r)
		}
		if err == nil {
			return
		}
		part.doc = docSnap
		part.dirty = wasDirty
		if manifest != nil {
			manifest.restore(relSnap)
		} else {
			p.rels.drop(ManifestPath(name))
		}
		for staged := range p.stagedNames() {
			if !stagedBefore[staged] {
				p.unstage(staged)
			}
		}
		p.types.restore(typesSnap)
	}()

	return fn(part)
}

// Save writes the package to dest. The archive is assembled in a
// temporary file next to dest and renamed over it, so a failed save leaves
// dest untouched.
func (p *Package) Save(dest string) error {
	for _, problem := range p.Validate() {
		GetLogger().Warn("dangling relationship", "err", problem)
	}

	if err := p.flush(); err != nil {
		return NewPackageError("save", dest, ErrIOFailure, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".scalpel-*.tmp")
	if err != nil {
		return NewPackageError("save", dest, ErrIOFailure, err)
	}
	tmpName := tmp.Name()

	if err := p.writeZip(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return NewPackageError("save", dest, ErrIOFailure, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return NewPackageError("save", dest, ErrIOFailure, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return NewPackageError("save", dest, ErrIOFailure, err)
	}
	return nil
}

// flush writes dirty trees, manifests, content types and staged media into
// the working tree.
func (p *Package) flush() error {
	p.mu.Lock()
	parts := make([]*Part, 0, len(p.parts))
	for _, part := range p.parts {
		parts = append(parts, part)
	}
	p.mu.Unlock()

	for _, part := range parts {
		part.mu.Lock()
		if part.doc != nil && part.dirty {
			data, err := part.doc.WriteToBytes()
			if err != nil {
				part.mu.Unlock()
				return fmt.Errorf("failed to serialize %s: %w", part.Name, err)
			}
			if err := p.writeTree(part.Name, data); err != nil {
				part.mu.Unlock()
				return err
			}
			part.dirty = false
		}
		part.mu.Unlock()
	}

	for _, m := range p.rels.all() {
		if !m.dirty {
			continue
		}
		data, err := m.marshal()
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", m.Path, err)
		}
		if err := p.writeTree(m.Path, data); err != nil {
			return err
		}
		m.dirty = false
		p.mu.Lock()
		if _, ok := p.parts[m.Path]; !ok {
			p.parts[m.Path] = &Part{Name: m.Path, Role: RoleRelationshipManifest}
		}
		p.mu.Unlock()
	}

	if p.types.dirty {
		data, err := p.types.marshal()
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", contentTypesPart, err)
		}
		if err := p.writeTree(contentTypesPart, data); err != nil {
			return err
		}
		p.types.dirty = false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for name, data := range p.staged {
		if err := p.writeTree(name, data); err != nil {
			return err
		}
		if _, ok := p.modTimes[name]; !ok {
			p.modTimes[name] = time.Now()
		}
		delete(p.staged, name)
	}
	return nil
}

// writeZip walks the working tree in lexical order and writes one entry
// per file with forward-slash names.
func (p *Package) writeZip(w io.Writer) error {
	zw := zip.NewWriter(w)

	err := filepath.WalkDir(p.dir, func(fp string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(p.dir, fp)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		header := &zip.FileHeader{Name: name, Method: zip.Deflate}
		p.mu.Lock()
		header.Modified = p.modTimes[name]
		p.mu.Unlock()

		fw, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
		data, err := os.ReadFile(fp)
		if err != nil {
			return err
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
