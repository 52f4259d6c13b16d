package scalpel

import (
	"context"
	"fmt"
)

// StripAndVerify strips vendor markers from in, saves the result to out
// and reopens out to confirm nothing is left. A deck that still carries
// markers is stripped again, up to cfg.MaxVerifyAttempts times.
func StripAndVerify(ctx context.Context, in, out string, cfg *Config) (*Report, error) {
	if cfg == nil {
		cfg = GetGlobalConfig()
	}
	attempts := cfg.MaxVerifyAttempts
	if attempts < 1 {
		attempts = 1
	}

	combined := NewReport()
	src := in
	remaining := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		report, err := stripOnce(ctx, src, out, cfg)
		combined.Merge(report)
		if err != nil {
			return combined, err
		}

		remaining, err = countMarkersIn(out, cfg.WatermarkPatterns)
		if err != nil {
			return combined, err
		}
		if remaining == 0 {
			GetLogger().Info("deck verified clean", "output", out, "attempts", attempt)
			return combined, nil
		}
		GetLogger().Warn("markers remain after strip", "output", out, "attempt", attempt, "remaining", remaining)
		src = out
	}
	return combined, fmt.Errorf("%w: %d left in %s after %d attempts", ErrMarkersPersist, remaining, out, attempts)
}

func stripOnce(ctx context.Context, in, out string, cfg *Config) (*Report, error) {
	pkg, err := Open(in)
	if err != nil {
		return nil, err
	}
	defer pkg.Close()

	report, err := pkg.Run(ctx, &WatermarkPass{Patterns: cfg.WatermarkPatterns, Workers: cfg.Workers})
	if err != nil {
		return report, err
	}
	return report, pkg.Save(out)
}

func countMarkersIn(path string, patterns []string) (int, error) {
	pkg, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer pkg.Close()
	return CountMarkers(pkg, patterns), nil
}
