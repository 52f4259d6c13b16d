package scalpel

import (
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/benjaminschreck/go-scalpel/pkg/scalpel/shape"
)

const mediaDir = "ppt/media/"

// SwapResult describes how an image swap was carried out.
type SwapResult struct {
	// RelID is the relationship id the picture points at afterwards.
	RelID string
	// Media is the package path now holding the new bytes.
	Media string
	// Forked is set when a new relationship id was allocated.
	Forked bool
	// Retargeted is set when the existing relationship moved to a new file.
	Retargeted bool
}

// SwapImage replaces the image shown by a picture node.
//
// When the picture's relationship id is shared with other embeds of the
// same part, the picture gets its own relationship and media file and the
// other embeds keep the original. When the media file is referenced from
// elsewhere in the package, or the new bytes are a different format, the
// relationship is retargeted to a new file. Otherwise the media file is
// overwritten in place. page and index name the slide and the picture's
// position on it and feed the generated file name.
func (p *Package) SwapImage(node *shape.Node, page, index int, data []byte) (SwapResult, error) {
	if node == nil || node.Kind != shape.KindPicture {
		return SwapResult{}, fmt.Errorf("swap image: not a picture")
	}
	part, ok := p.Part(node.Part)
	if !ok || part.doc == nil {
		return SwapResult{}, fmt.Errorf("swap image: %s is not an editable part", node.Part)
	}

	embed := node.EmbedID()
	if embed == "" {
		return SwapResult{}, NewShapeError(node.Part, node.Label(), fmt.Errorf("%w: picture has no embed id", ErrMissingRelationship))
	}
	current, err := p.rels.Resolve(node.Part, embed)
	if err != nil {
		return SwapResult{}, NewShapeError(node.Part, node.Label(), err)
	}

	ext := detectImageExtension(data, current)

	if countEmbedRefs(part, embed) > 1 {
		name := p.uniqueMediaName(page, index, embed, ext)
		p.stage(name, data)
		newID, err := p.rels.AddEntry(node.Part, ImageRelationshipType, RelativeTarget(node.Part, name))
		if err != nil {
			p.unstage(name)
			return SwapResult{}, NewShapeError(node.Part, node.Label(), err)
		}
		p.types.EnsureDefault(ext)
		node.SetEmbedID(newID)
		part.MarkDirty()
		return SwapResult{RelID: newID, Media: name, Forked: true}, nil
	}

	if p.rels.RefCount(current) > 1 || !strings.EqualFold(strings.TrimPrefix(path.Ext(current), "."), ext) {
		name := p.uniqueMediaName(page, index, embed, ext)
		p.stage(name, data)
		if err := p.rels.Retarget(node.Part, embed, RelativeTarget(node.Part, name)); err != nil {
			p.unstage(name)
			return SwapResult{}, NewShapeError(node.Part, node.Label(), err)
		}
		p.types.EnsureDefault(ext)
		return SwapResult{RelID: embed, Media: name, Retargeted: true}, nil
	}

	p.stage(current, data)
	return SwapResult{RelID: embed, Media: current}, nil
}

// embedIDs lists the distinct image relationship ids referenced at or
// below el.
func embedIDs(el *etree.Element) []string {
	var ids []string
	seen := make(map[string]bool)
	stack := []*etree.Element{el}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, a := range cur.Attr {
			if (a.Key == "embed" || a.Key == "link") && a.Value != "" && !seen[a.Value] {
				seen[a.Value] = true
				ids = append(ids, a.Value)
			}
		}
		stack = append(stack, cur.ChildElements()...)
	}
	return ids
}

// countEmbedRefs counts elements of the part that reference id through an
// r:embed or r:link attribute.
func countEmbedRefs(part *Part, id string) int {
	count := 0
	stack := []*etree.Element{part.doc.Root()}
	for len(stack) > 0 {
		el := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, a := range el.Attr {
			if (a.Key == "embed" || a.Key == "link") && a.Value == id {
				count++
			}
		}
		stack = append(stack, el.ChildElements()...)
	}
	return count
}

// uniqueMediaName builds image_<page>_<index>_<relID>.<ext> under
// ppt/media, suffixing a counter while the name is taken.
func (p *Package) uniqueMediaName(page, index int, relID, ext string) string {
	base := fmt.Sprintf("image_%d_%d_%s", page, index, sanitizeID(relID))
	name := mediaDir + base + "." + ext
	for n := 1; p.Has(name); n++ {
		name = mediaDir + base + "_" + strconv.Itoa(n) + "." + ext
	}
	return name
}

func sanitizeID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// detectImageExtension sniffs the format of data, falling back to the
// extension of the media being replaced and then to png.
func detectImageExtension(data []byte, current string) string {
	currentExt := strings.ToLower(strings.TrimPrefix(path.Ext(current), "."))
	switch http.DetectContentType(data) {
	case "image/png":
		return "png"
	case "image/jpeg":
		if currentExt == "jpg" {
			return currentExt
		}
		return "jpeg"
	case "image/gif":
		return "gif"
	case "image/bmp":
		return "bmp"
	case "image/webp":
		return "webp"
	}
	if currentExt != "" {
		return currentExt
	}
	return "png"
}
