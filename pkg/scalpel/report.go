package scalpel

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// PartReport holds the per-part outcome of the passes of one run.
type PartReport struct {
	Part     string   `json:"part"`
	Touched  int      `json:"touched"`
	Excised  int      `json:"excised"`
	Skipped  int      `json:"skipped"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Warn records a warning on the part.
func (pr *PartReport) Warn(format string, args ...interface{}) {
	pr.Warnings = append(pr.Warnings, fmt.Sprintf(format, args...))
}

// Report collects the outcome of a run of passes over one package.
type Report struct {
	RunID  string   `json:"run_id"`
	Passes []string `json:"passes"`

	mu    sync.Mutex
	parts map[string]*PartReport
}

// NewReport starts an empty report with a fresh run id.
func NewReport() *Report {
	return &Report{
		RunID: uuid.NewString(),
		parts: make(map[string]*PartReport),
	}
}

// Part returns the report entry for a part, creating it on first use.
func (r *Report) Part(name string) *PartReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr, ok := r.parts[name]
	if !ok {
		pr = &PartReport{Part: name}
		r.parts[name] = pr
	}
	return pr
}

// Parts returns every part entry in numeric part order.
func (r *Report) Parts() []*PartReport {
	r.mu.Lock()
	names := make([]string, 0, len(r.parts))
	for name := range r.parts {
		names = append(names, name)
	}
	r.mu.Unlock()

	sort.Strings(names)
	sort.SliceStable(names, func(i, j int) bool {
		di, dj := partDir(names[i]), partDir(names[j])
		if di != dj {
			return di < dj
		}
		return partNumber(names[i]) < partNumber(names[j])
	})

	out := make([]*PartReport, len(names))
	for i, name := range names {
		out[i] = r.Part(name)
	}
	return out
}

// Totals sums the counters of every part.
func (r *Report) Totals() PartReport {
	var total PartReport
	for _, pr := range r.Parts() {
		total.Touched += pr.Touched
		total.Excised += pr.Excised
		total.Skipped += pr.Skipped
		total.Warnings = append(total.Warnings, prefixed(pr.Part, pr.Warnings)...)
	}
	return total
}

// Failed returns the parts whose edits were rolled back.
func (r *Report) Failed() []*PartReport {
	var out []*PartReport
	for _, pr := range r.Parts() {
		if pr.Error != "" {
			out = append(out, pr)
		}
	}
	return out
}

// Err joins the failures of every rolled-back part, or returns nil.
func (r *Report) Err() error {
	multi := NewMultiError()
	for _, pr := range r.Failed() {
		multi.Add(NewShapeError(pr.Part, "", errors.New(pr.Error)))
	}
	return multi.Err()
}

// Merge folds the counters and warnings of other into r.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Passes = append(r.Passes, other.Passes...)
	for _, src := range other.Parts() {
		dst := r.Part(src.Part)
		dst.Touched += src.Touched
		dst.Excised += src.Excised
		dst.Skipped += src.Skipped
		dst.Warnings = append(dst.Warnings, src.Warnings...)
		if src.Error != "" {
			dst.Error = src.Error
		}
	}
}

func prefixed(part string, warnings []string) []string {
	out := make([]string, len(warnings))
	for i, w := range warnings {
		out[i] = part + ": " + w
	}
	return out
}

func partDir(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			return name[:i]
		}
	}
	return ""
}
