package scalpel

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenReader_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) []byte
	}{
		{
			name: "not a zip archive",
			setup: func(t *testing.T) []byte {
				return []byte("definitely not a zip")
			},
		},
		{
			name: "missing content types",
			setup: func(t *testing.T) []byte {
				return buildZip(t, map[string]string{"ppt/presentation.xml": testPresentation})
			},
		},
		{
			name: "no presentation parts",
			setup: func(t *testing.T) []byte {
				return buildZip(t, map[string]string{"[Content_Types].xml": testContentTypes, "word/document.xml": "<w:document/>"})
			},
		},
		{
			name: "entry escaping the package root",
			setup: func(t *testing.T) []byte {
				files := deckFiles()
				files["../../evil.xml"] = "<x/>"
				return buildZip(t, files)
			},
		},
		{
			name: "malformed slide xml",
			setup: func(t *testing.T) []byte {
				files := deckFiles()
				files["ppt/slides/slide1.xml"] = `<p:sld x=1><p:cSld/></p:sld>`
				return buildZip(t, files)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.setup(t)
			pkg, err := OpenReader(bytes.NewReader(data), int64(len(data)))
			require.Error(t, err)
			assert.Nil(t, pkg)
			assert.True(t, IsCorruptPackage(err), "got %v", err)

			var pe *PackageError
			assert.True(t, errors.As(err, &pe))
		})
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.pptx"))
	require.Error(t, err)
	assert.True(t, IsIOFailure(err))
}

func TestSave_RoundTripKeepsPartsIdentical(t *testing.T) {
	files := deckFiles()
	files["ppt/slides/slide1.xml"] = slideXML(sp(2, "Title", "Quarterly results"))
	files["ppt/slides/_rels/slide1.xml.rels"] = relsXML("rId2", "../media/image1.png")
	files["ppt/media/image1.png"] = string(pngBytes(t, 3, 2))
	files["docProps/app.xml"] = `<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties"/>`
	in := writeDeck(t, files)

	pkg, err := Open(in)
	require.NoError(t, err)
	defer pkg.Close()

	out := filepath.Join(t.TempDir(), "out.pptx")
	require.NoError(t, pkg.Save(out))

	saved := readZip(t, out)
	require.Len(t, saved, len(files))
	for name, want := range files {
		assert.Equal(t, []byte(want), saved[name], "part %s", name)
	}
}

func TestSave_FailureLeavesDestinationAlone(t *testing.T) {
	files := deckFiles()
	files["ppt/slides/slide1.xml"] = slideXML()
	pkg := openDeck(t, files)

	err := pkg.Save(filepath.Join(t.TempDir(), "missing-dir", "out.pptx"))
	require.Error(t, err)
	assert.True(t, IsIOFailure(err))
}

func TestSave_WritesForwardSlashEntries(t *testing.T) {
	files := deckFiles()
	files["ppt/slides/slide1.xml"] = slideXML()
	pkg := openDeck(t, files)

	out := filepath.Join(t.TempDir(), "out.pptx")
	require.NoError(t, pkg.Save(out))

	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer zr.Close()
	for _, f := range zr.File {
		assert.NotContains(t, f.Name, `\`)
	}
}

func TestSlideParts_NumericOrder(t *testing.T) {
	files := deckFiles()
	for _, n := range []int{10, 2, 1, 11} {
		files[fmt.Sprintf("ppt/slides/slide%d.xml", n)] = slideXML()
	}
	files["ppt/slideLayouts/slideLayout1.xml"] = layoutXML()
	pkg := openDeck(t, files)

	assert.Equal(t, []string{
		"ppt/slides/slide1.xml",
		"ppt/slides/slide2.xml",
		"ppt/slides/slide10.xml",
		"ppt/slides/slide11.xml",
	}, pkg.SlideParts())
	assert.Equal(t, []string{"ppt/slideLayouts/slideLayout1.xml"}, pkg.LayoutParts())
	assert.Len(t, pkg.DrawingParts(), 5)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want Role
	}{
		{"ppt/slides/slide3.xml", RoleSlide},
		{"ppt/slideLayouts/slideLayout7.xml", RoleLayout},
		{"ppt/slideMasters/slideMaster1.xml", RoleMaster},
		{"ppt/slides/_rels/slide3.xml.rels", RoleRelationshipManifest},
		{"ppt/media/image4.jpeg", RoleMedia},
		{"ppt/presentation.xml", RoleOther},
		{"ppt/notesSlides/notesSlide1.xml", RoleOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.name))
		})
	}
}

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		name   string
		source string
		target string
		want   string
	}{
		{"parent directory", "ppt/slides/slide1.xml", "../media/image1.png", "ppt/media/image1.png"},
		{"same directory", "ppt/slides/slide1.xml", "slide2.xml", "ppt/slides/slide2.xml"},
		{"package rooted", "ppt/slides/slide1.xml", "/ppt/media/image2.png", "ppt/media/image2.png"},
		{"escaped characters", "ppt/slides/slide1.xml", "../media/my%20image.png", "ppt/media/my image.png"},
		{"root part", "ppt/presentation.xml", "slides/slide1.xml", "ppt/slides/slide1.xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveTarget(tt.source, tt.target))
		})
	}
}

func TestRelativeTarget(t *testing.T) {
	tests := []struct {
		source string
		target string
		want   string
	}{
		{"ppt/slides/slide1.xml", "ppt/media/image1.png", "../media/image1.png"},
		{"ppt/slides/slide1.xml", "ppt/slides/slide2.xml", "slide2.xml"},
		{"ppt/presentation.xml", "ppt/slides/slide1.xml", "slides/slide1.xml"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			got := RelativeTarget(tt.source, tt.target)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.target, ResolveTarget(tt.source, got))
		})
	}
}

func TestRelationshipGraph_Resolve(t *testing.T) {
	files := deckFiles()
	files["ppt/slides/slide1.xml"] = slideXML()
	files["ppt/slides/_rels/slide1.xml.rels"] = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId2" Type="` + ImageRelationshipType + `" Target="../media/image1.png"/><Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="https://example.com" TargetMode="External"/></Relationships>`
	pkg := openDeck(t, files)
	graph := pkg.Relationships()

	target, err := graph.Resolve("ppt/slides/slide1.xml", "rId2")
	require.NoError(t, err)
	assert.Equal(t, "ppt/media/image1.png", target)

	_, err = graph.Resolve("ppt/slides/slide1.xml", "rId3")
	assert.ErrorIs(t, err, ErrExternalTarget)

	_, err = graph.Resolve("ppt/slides/slide1.xml", "rId99")
	assert.True(t, IsMissingRelationship(err))

	_, err = graph.Resolve("ppt/slides/slide2.xml", "rId2")
	assert.True(t, IsMissingRelationship(err))

	assert.Len(t, graph.LoadManifest("ppt/slides/slide1.xml"), 2)
	assert.Empty(t, graph.LoadManifest("ppt/slides/slide9.xml"))
}

func TestRelationshipGraph_AddEntry(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		want     string
	}{
		{"reserved range start", []string{"rId1", "rId2"}, "rId1000"},
		{"above existing high id", []string{"rId1", "rId1500"}, "rId1501"},
		{"no manifest yet", nil, "rId1000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := deckFiles()
			files["ppt/slides/slide1.xml"] = slideXML()
			if tt.existing != nil {
				var pairs []string
				for _, id := range tt.existing {
					pairs = append(pairs, id, "../media/image1.png")
				}
				files["ppt/slides/_rels/slide1.xml.rels"] = relsXML(pairs...)
			}
			pkg := openDeck(t, files)

			id, err := pkg.Relationships().AddEntry("ppt/slides/slide1.xml", ImageRelationshipType, "../media/new.png")
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)

			target, err := pkg.Relationships().Resolve("ppt/slides/slide1.xml", id)
			require.NoError(t, err)
			assert.Equal(t, "ppt/media/new.png", target)
		})
	}
}

func TestRelationshipGraph_ConcurrentAllocationIsUnique(t *testing.T) {
	files := deckFiles()
	files["ppt/slides/slide1.xml"] = slideXML()
	files["ppt/slides/_rels/slide1.xml.rels"] = relsXML("rId1", "../media/image1.png")
	pkg := openDeck(t, files)

	const n = 50
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := pkg.Relationships().AddEntry("ppt/slides/slide1.xml", ImageRelationshipType, fmt.Sprintf("../media/%d.png", i))
			assert.NoError(t, err)
			ids[i] = id
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, pkg.Relationships().LoadManifest("ppt/slides/slide1.xml"), n+1)
}

func TestSave_PersistsNewManifest(t *testing.T) {
	files := deckFiles()
	files["ppt/slides/slide1.xml"] = slideXML()
	pkg := openDeck(t, files)

	_, err := pkg.Relationships().AddEntry("ppt/slides/slide1.xml", ImageRelationshipType, "../media/new.png")
	require.NoError(t, err)
	pkg.stage("ppt/media/new.png", pngBytes(t, 1, 1))

	out := filepath.Join(t.TempDir(), "out.pptx")
	require.NoError(t, pkg.Save(out))

	reopened, err := Open(out)
	require.NoError(t, err)
	defer reopened.Close()

	target, err := reopened.Relationships().Resolve("ppt/slides/slide1.xml", "rId1000")
	require.NoError(t, err)
	assert.True(t, reopened.Has(target))
	assert.Empty(t, reopened.Validate())
}

func TestTransact_RollsBackOnFailure(t *testing.T) {
	tests := []struct {
		name string
		fail func() error
	}{
		{"error", func() error { return errors.New("boom") }},
		{"panic", func() error { panic("boom") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := deckFiles()
			files["ppt/slides/slide1.xml"] = slideXML(sp(2, "Keep", "text"))
			files["ppt/slides/_rels/slide1.xml.rels"] = relsXML("rId2", "../media/image1.png")
			pkg := openDeck(t, files)

			part, _ := pkg.Part("ppt/slides/slide1.xml")
			before, err := part.Document().WriteToString()
			require.NoError(t, err)

			err = pkg.transact("ppt/slides/slide1.xml", func(part *Part) error {
				tree := part.Document().FindElement("//spTree")
				tree.RemoveChild(tree.FindElement("sp"))
				part.MarkDirty()
				if _, err := pkg.Relationships().AddEntry(part.Name, ImageRelationshipType, "../media/x.jpeg"); err != nil {
					return err
				}
				pkg.stage("ppt/media/x.jpeg", []byte("jpeg"))
				pkg.ContentTypes().EnsureDefault("jpeg")
				return tt.fail()
			})
			require.Error(t, err)

			part, _ = pkg.Part("ppt/slides/slide1.xml")
			after, err := part.Document().WriteToString()
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.False(t, part.Dirty())
			assert.Len(t, pkg.Relationships().LoadManifest(part.Name), 1)
			assert.False(t, pkg.Has("ppt/media/x.jpeg"))
			for _, d := range pkg.ContentTypes().Defaults {
				assert.NotEqual(t, "jpeg", d.Extension)
			}
		})
	}
}
