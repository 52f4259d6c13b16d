package scalpel

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/benjaminschreck/go-scalpel/pkg/scalpel/shape"
)

// DefaultScanDPI is the resolution pixel geometry is reported at.
const DefaultScanDPI = 120

// ImageInfo describes one picture found on a slide.
type ImageInfo struct {
	Slide      string `json:"slide"`
	Page       int    `json:"page"`
	Index      int    `json:"index"`
	Name       string `json:"name"`
	Annotation string `json:"annotation,omitempty"`
	RelID      string `json:"rel_id,omitempty"`
	Media      string `json:"media,omitempty"`

	X      int64 `json:"x_emu"`
	Y      int64 `json:"y_emu"`
	Width  int64 `json:"width_emu"`
	Height int64 `json:"height_emu"`

	XCm      float64 `json:"x_cm"`
	YCm      float64 `json:"y_cm"`
	WidthCm  float64 `json:"width_cm"`
	HeightCm float64 `json:"height_cm"`

	XPx      int `json:"x_px"`
	YPx      int `json:"y_px"`
	WidthPx  int `json:"width_px"`
	HeightPx int `json:"height_px"`

	// PixelWidth and PixelHeight are the dimensions of the media itself.
	PixelWidth  int `json:"pixel_width,omitempty"`
	PixelHeight int `json:"pixel_height,omitempty"`

	Resolved bool   `json:"resolved"`
	Error    string `json:"error,omitempty"`
}

// ScanPass reports the placement of every slide picture. It never edits
// the package.
type ScanPass struct {
	DPI     int
	Workers int

	// Results holds the pictures of the last Apply in slide order.
	Results []ImageInfo
}

func (s *ScanPass) Name() string { return "scan" }

func (s *ScanPass) Apply(ctx context.Context, pkg *Package, report *Report) error {
	dpi := s.DPI
	if dpi <= 0 {
		dpi = DefaultScanDPI
	}
	workers := s.Workers
	if workers <= 0 {
		workers = 1
	}

	slides := pkg.SlideParts()
	perSlide := make([][]ImageInfo, len(slides))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range slides {
		i, name := i, name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			part, ok := pkg.Part(name)
			if !ok || part.doc == nil {
				return nil
			}
			perSlide[i] = scanSlide(pkg, part, i+1, dpi, report.Part(name))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.Results = s.Results[:0]
	for _, infos := range perSlide {
		s.Results = append(s.Results, infos...)
	}
	return nil
}

func scanSlide(pkg *Package, part *Part, page, dpi int, pr *PartReport) []ImageInfo {
	part.mu.Lock()
	defer part.mu.Unlock()

	var out []ImageInfo
	for index, node := range shape.Pictures(shape.Walk(part.Name, shape.Tree(part.doc))) {
		pr.Touched++
		info := ImageInfo{
			Slide:      part.Name,
			Page:       page,
			Index:      index + 1,
			Name:       node.Name(),
			Annotation: node.Annotation(),
			RelID:      node.EmbedID(),
		}

		abs, ok := shape.ComputeAbsolute(node)
		info.Resolved = ok
		info.X, info.Y = abs.Offset.X, abs.Offset.Y
		if ok {
			info.Width, info.Height = abs.Extent.W, abs.Extent.H
			info.WidthCm = shape.EMUToCentimeters(info.Width)
			info.HeightCm = shape.EMUToCentimeters(info.Height)
			info.WidthPx = shape.EMUToPixels(info.Width, dpi)
			info.HeightPx = shape.EMUToPixels(info.Height, dpi)
		}
		info.XCm, info.YCm = shape.EMUToCentimeters(info.X), shape.EMUToCentimeters(info.Y)
		info.XPx, info.YPx = shape.EMUToPixels(info.X, dpi), shape.EMUToPixels(info.Y, dpi)

		if err := describeMedia(pkg, &info); err != nil {
			info.Error = err.Error()
			pr.Skipped++
			pr.Warn("%s: %v", node.Label(), err)
		}
		out = append(out, info)
	}
	return out
}

// describeMedia resolves the picture's media and decodes its pixel size.
// Formats without a registered decoder keep zero dimensions.
func describeMedia(pkg *Package, info *ImageInfo) error {
	if info.RelID == "" {
		return ErrMissingRelationship
	}
	media, err := pkg.rels.Resolve(info.Slide, info.RelID)
	if err != nil {
		return err
	}
	info.Media = media

	data, err := pkg.ReadPart(media)
	if err != nil {
		return err
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		info.PixelWidth, info.PixelHeight = cfg.Width, cfg.Height
	}
	return nil
}
