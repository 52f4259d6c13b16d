package scalpel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/benjaminschreck/go-scalpel/pkg/scalpel/shape"
)

// ImageMapping maps a 1-based page number to picture annotations and the
// images that should replace them.
type ImageMapping map[int]map[string]string

// LoadImageMapping reads a mapping file. TOML files key pages by quoted
// numbers; YAML files may use plain integers.
func LoadImageMapping(path string) (ImageMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image mapping: %w", err)
	}

	raw := make(map[string]map[string]string)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, fmt.Errorf("parse image mapping %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse image mapping %s: %w", path, err)
		}
	}

	mapping := make(ImageMapping, len(raw))
	for key, entries := range raw {
		page, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || page <= 0 {
			return nil, fmt.Errorf("image mapping %s: invalid page %q", path, key)
		}
		mapping[page] = entries
	}
	return mapping, nil
}

// ImageSource loads the bytes behind a mapped image reference.
type ImageSource interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// ImageSourceFunc adapts a function to ImageSource.
type ImageSourceFunc func(ctx context.Context, ref string) ([]byte, error)

func (f ImageSourceFunc) Load(ctx context.Context, ref string) ([]byte, error) {
	return f(ctx, ref)
}

// FileSource reads images from disk, resolving relative references
// against Dir.
type FileSource struct {
	Dir string
}

func (s FileSource) Load(_ context.Context, ref string) ([]byte, error) {
	p := ref
	if s.Dir != "" && !filepath.IsAbs(p) {
		p = filepath.Join(s.Dir, p)
	}
	return os.ReadFile(p)
}

// MatchAnnotation finds the mapping key for a picture annotation. An exact
// key wins; otherwise keys are compared by their sorted pipe-separated
// tokens. Zero or several fuzzy candidates are an ErrAmbiguousMatch.
func MatchAnnotation(annotation string, entries map[string]string) (string, error) {
	annotation = strings.TrimSpace(annotation)
	if _, ok := entries[annotation]; ok {
		return annotation, nil
	}

	want := normalizeAnnotation(annotation)
	var candidates []string
	for key := range entries {
		if normalizeAnnotation(key) == want {
			candidates = append(candidates, key)
		}
	}
	sort.Strings(candidates)

	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		return "", fmt.Errorf("%w: no mapping entry for %q", ErrAmbiguousMatch, annotation)
	default:
		return "", fmt.Errorf("%w: %q matches %s", ErrAmbiguousMatch, annotation, strings.Join(candidates, ", "))
	}
}

func normalizeAnnotation(s string) string {
	var tokens []string
	for _, tok := range strings.Split(s, "|") {
		if tok = strings.TrimSpace(tok); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	sort.Strings(tokens)
	return strings.Join(tokens, "|")
}

// ImageReplacePass swaps slide pictures for the images their annotations
// map to.
type ImageReplacePass struct {
	Mapping ImageMapping
	Source  ImageSource
}

func (ip *ImageReplacePass) Name() string { return "replace-images" }

func (ip *ImageReplacePass) Apply(ctx context.Context, pkg *Package, report *Report) error {
	source := ip.Source
	if source == nil {
		source = FileSource{}
	}

	slides := pkg.SlideParts()
	for page := range ip.Mapping {
		if page > len(slides) {
			report.Part(presentationPart).Warn("image mapping names page %d but the deck has %d slides", page, len(slides))
		}
	}

	for i, name := range slides {
		if err := ctx.Err(); err != nil {
			return err
		}
		page := i + 1
		entries := ip.Mapping[page]
		if len(entries) == 0 {
			continue
		}

		used := make(map[string]bool)
		pkg.editPart(report, name, func(part *Part, pr *PartReport) error {
			pictures := shape.Pictures(shape.Walk(name, shape.Tree(part.doc)))
			for index, node := range pictures {
				annotation := node.Annotation()
				if annotation == "" {
					continue
				}
				key, err := MatchAnnotation(annotation, entries)
				if err != nil {
					pr.Skipped++
					pr.Warn("%s: %v", node.Label(), err)
					continue
				}

				data, err := source.Load(ctx, entries[key])
				if err != nil {
					pr.Skipped++
					pr.Warn("%s: load %s: %v", node.Label(), entries[key], err)
					continue
				}

				res, err := pkg.SwapImage(node, page, index+1, data)
				if err != nil {
					pr.Skipped++
					pr.Warn("%v", err)
					WithFields("part", name, "shape", node.Label()).Warn("image swap skipped", "err", err)
					continue
				}
				used[key] = true
				pr.Touched++
				GetLogger().Debug("image swapped", "part", name, "shape", node.Label(),
					"media", res.Media, "forked", res.Forked, "retargeted", res.Retargeted)
			}
			return nil
		})

		pr := report.Part(name)
		if pr.Error != "" {
			continue
		}
		for _, key := range sortedKeys(entries) {
			if !used[key] {
				pr.Warn("mapping entry %q for page %d was not used", key, page)
			}
		}
	}
	return nil
}

const presentationPart = "ppt/presentation.xml"

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
