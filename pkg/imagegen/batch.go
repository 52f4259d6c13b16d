package imagegen

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Job is one image to generate for a picture on a page.
type Job struct {
	Page       int
	Annotation string
	Prompt     string
}

// Result records what happened to a Job.
type Result struct {
	Job
	File string
	Err  error
}

// Mapping maps a 1-based page to annotation -> image file.
type Mapping map[int]map[string]string

// GenerateAll runs jobs in order and writes every returned image into dir.
// Failed jobs are recorded in their Result and do not stop the batch; the
// returned error is non-nil only when dir cannot be used or ctx ends.
func (c *Client) GenerateAll(ctx context.Context, jobs []Job, dir string) (Mapping, []Result, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}

	mapping := Mapping{}
	results := make([]Result, 0, len(jobs))
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return mapping, results, err
		}
		res := Result{Job: job}
		data, err := c.Generate(ctx, job.Prompt)
		switch {
		case err != nil:
			res.Err = err
			c.logger.Warn("image generation failed", "page", job.Page, "annotation", job.Annotation, "err", err)
		case len(data) == 0:
			c.logger.Info("service returned no image", "page", job.Page, "annotation", job.Annotation)
		default:
			name := fmt.Sprintf("page%d_%d%s", job.Page, i+1, extensionFor(data))
			if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
				return mapping, results, err
			}
			res.File = name
			if mapping[job.Page] == nil {
				mapping[job.Page] = map[string]string{}
			}
			mapping[job.Page][job.Annotation] = name
		}
		results = append(results, res)
	}
	return mapping, results, nil
}

func extensionFor(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ".png"
	}
}

// WriteMapping stores m as YAML at path, in the layout the image
// replacement pass reads. File names in m live in imagesDir and are
// written relative to the directory of path.
func WriteMapping(path, imagesDir string, m Mapping) error {
	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return err
	}
	images, err := filepath.Abs(imagesDir)
	if err != nil {
		return err
	}

	out := make(map[string]map[string]string, len(m))
	for page, entries := range m {
		rebased := make(map[string]string, len(entries))
		for annotation, name := range entries {
			ref, err := filepath.Rel(base, filepath.Join(images, name))
			if err != nil {
				return fmt.Errorf("write mapping: %w", err)
			}
			rebased[annotation] = ref
		}
		out[strconv.Itoa(page)] = rebased
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadPrompts reads a YAML file of page -> annotation -> prompt into jobs
// ordered by page and annotation.
func LoadPrompts(path string) ([]Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}

	var jobs []Job
	for key, entries := range raw {
		page, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || page < 1 {
			return nil, fmt.Errorf("parse prompts: invalid page %q", key)
		}
		for annotation, prompt := range entries {
			if strings.TrimSpace(prompt) == "" {
				prompt = annotation
			}
			jobs = append(jobs, Job{Page: page, Annotation: annotation, Prompt: prompt})
		}
	}
	SortJobs(jobs)
	return jobs, nil
}

// SortJobs orders jobs by page, then annotation.
func SortJobs(jobs []Job) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].Page != jobs[j].Page {
			return jobs[i].Page < jobs[j].Page
		}
		return jobs[i].Annotation < jobs[j].Annotation
	})
}
