package scalpel

import (
	"encoding/xml"
	"strings"
	"sync"
)

const (
	contentTypesPart      = "[Content_Types].xml"
	contentTypesNamespace = "http://schemas.openxmlformats.org/package/2006/content-types"

	xmlDeclaration = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"
)

// extensionContentTypes maps media extensions to their MIME types.
var extensionContentTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"tif":  "image/tiff",
	"svg":  "image/svg+xml",
	"webp": "image/webp",
	"emf":  "image/x-emf",
	"wmf":  "image/x-wmf",
}

// ContentTypeDefault maps an extension to a content type.
type ContentTypeDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// ContentTypeOverride maps a single part to a content type.
type ContentTypeOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// ContentTypes is the [Content_Types].xml part.
type ContentTypes struct {
	XMLName   xml.Name              `xml:"Types"`
	Namespace string                `xml:"xmlns,attr"`
	Defaults  []ContentTypeDefault  `xml:"Default"`
	Overrides []ContentTypeOverride `xml:"Override"`

	mu    sync.Mutex
	dirty bool
}

func parseContentTypes(data []byte) (*ContentTypes, error) {
	ct := &ContentTypes{}
	if err := xml.Unmarshal(data, ct); err != nil {
		return nil, err
	}
	return ct, nil
}

// EnsureDefault registers a Default entry for ext when none exists. It
// reports whether the part changed.
func (ct *ContentTypes) EnsureDefault(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return false
	}

	ct.mu.Lock()
	defer ct.mu.Unlock()
	for _, def := range ct.Defaults {
		if strings.EqualFold(def.Extension, ext) {
			return false
		}
	}

	contentType, ok := extensionContentTypes[ext]
	if !ok {
		// Default to generic image type for unknown extensions
		contentType = "image/" + ext
	}
	ct.Defaults = append(ct.Defaults, ContentTypeDefault{Extension: ext, ContentType: contentType})
	ct.dirty = true
	return true
}

// RemoveDefault drops the Default entry for ext.
func (ct *ContentTypes) RemoveDefault(ext string) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	for i, def := range ct.Defaults {
		if strings.EqualFold(def.Extension, ext) {
			ct.Defaults = append(ct.Defaults[:i], ct.Defaults[i+1:]...)
			ct.dirty = true
			return
		}
	}
}

type contentTypesSnapshot struct {
	defaults []ContentTypeDefault
	dirty    bool
}

func (ct *ContentTypes) snapshot() contentTypesSnapshot {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return contentTypesSnapshot{defaults: append([]ContentTypeDefault(nil), ct.Defaults...), dirty: ct.dirty}
}

func (ct *ContentTypes) restore(s contentTypesSnapshot) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.Defaults = s.defaults
	ct.dirty = s.dirty
}

func (ct *ContentTypes) marshal() ([]byte, error) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if ct.Namespace == "" {
		ct.Namespace = contentTypesNamespace
	}
	out, err := xml.Marshal(ct)
	if err != nil {
		return nil, err
	}
	return append([]byte(xmlDeclaration), out...), nil
}
