package scalpel

import (
	"context"
	"fmt"
)

// Pass is one orchestrated edit over a package.
type Pass interface {
	Name() string
	Apply(ctx context.Context, pkg *Package, report *Report) error
}

// Run applies passes in order and returns the combined report. A pass
// error aborts the run; part-level failures only show up in the report.
func (p *Package) Run(ctx context.Context, passes ...Pass) (*Report, error) {
	report := NewReport()
	for _, pass := range passes {
		report.Passes = append(report.Passes, pass.Name())
		logger := WithFields("pass", pass.Name(), "run", report.RunID)
		logger.Debug("pass started")

		if err := pass.Apply(ctx, p, report); err != nil {
			return report, fmt.Errorf("%s pass: %w", pass.Name(), err)
		}
	}

	totals := report.Totals()
	WithFields("run", report.RunID).Info("passes finished",
		"touched", totals.Touched,
		"excised", totals.Excised,
		"skipped", totals.Skipped,
		"warnings", len(totals.Warnings),
		"failed", len(report.Failed()))
	return report, nil
}

// editPart runs fn in a transaction on one part. A failure rolls back the
// part and its counters, records the error and lets the batch continue.
func (p *Package) editPart(report *Report, name string, fn func(part *Part, pr *PartReport) error) {
	pr := report.Part(name)
	before := *pr
	before.Warnings = append([]string(nil), pr.Warnings...)

	err := p.transact(name, func(part *Part) error {
		return fn(part, pr)
	})
	if err == nil {
		return
	}

	*pr = before
	pr.Error = err.Error()
	WithFields("part", name).Error("part edit rolled back", "err", err)
}
