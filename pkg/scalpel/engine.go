package scalpel

import (
	"context"
	"fmt"
)

// Engine builds passes from a configuration and runs them over decks.
// Use New() to create an engine bound to the global configuration.
type Engine struct {
	config *Config
}

// New creates an engine with the global configuration.
func New() *Engine {
	return &Engine{config: GetGlobalConfig()}
}

// NewWithConfig creates an engine with a custom configuration.
func NewWithConfig(config *Config) *Engine {
	return &Engine{config: NewConfigWithDefaults(config)}
}

// Option represents a configuration option for the engine.
type Option func(*Engine)

// WithWorkers sets how many parts parallel passes process at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.config.Workers = n
	}
}

// WithWatermarkPatterns replaces the marker patterns the strip pass looks for.
func WithWatermarkPatterns(patterns ...string) Option {
	return func(e *Engine) {
		e.config.WatermarkPatterns = patterns
	}
}

// WithFiller sets the filler text used by the templatize pass.
func WithFiller(filler string) Option {
	return func(e *Engine) {
		e.config.FillerText = filler
	}
}

// NewWithOptions creates an engine from a copy of the global configuration
// with opts applied.
func NewWithOptions(opts ...Option) *Engine {
	cfg := *GetGlobalConfig()
	engine := &Engine{config: &cfg}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Config returns the engine's configuration.
func (e *Engine) Config() *Config {
	return e.config
}

// WatermarkPass returns a strip pass for the configured patterns.
func (e *Engine) WatermarkPass() *WatermarkPass {
	return &WatermarkPass{Patterns: e.config.WatermarkPatterns, Workers: e.config.Workers}
}

// TemplatizePass returns a filler pass for the configured text settings.
func (e *Engine) TemplatizePass() *TemplatizePass {
	return &TemplatizePass{
		Filler:         e.config.FillerText,
		Placeholders:   e.config.PlaceholderPatterns,
		Markers:        e.config.MarkerPatterns,
		MinLength:      e.config.MinFillerLength,
		IncludeLayouts: e.config.TemplatizeLayouts,
	}
}

// ScanPass returns a picture scan at the configured resolution.
func (e *Engine) ScanPass() *ScanPass {
	return &ScanPass{DPI: e.config.ScanDPI, Workers: e.config.Workers}
}

// CleanPasses returns the hidden-shape cleanup, preceded by the allow-list
// cleanup when the configuration carries an allow-list.
func (e *Engine) CleanPasses() ([]Pass, error) {
	var passes []Pass
	if len(e.config.Allowlist) > 0 {
		pages, err := e.config.AllowlistPages()
		if err != nil {
			return nil, err
		}
		passes = append(passes, &AllowlistCleanPass{Allowlist: pages, Markers: e.config.MarkerPatterns})
	}
	return append(passes, &HiddenShapeCleanPass{}), nil
}

// Process opens in, runs passes and saves the result to out.
func (e *Engine) Process(ctx context.Context, in, out string, passes ...Pass) (*Report, error) {
	pkg, err := Open(in)
	if err != nil {
		return nil, err
	}
	defer pkg.Close()

	report, err := pkg.Run(ctx, passes...)
	if err != nil {
		return report, err
	}
	if out == "" {
		return report, nil
	}
	if err := pkg.Save(out); err != nil {
		return report, fmt.Errorf("save %s: %w", out, err)
	}
	return report, nil
}

// StripAndVerify strips markers with the engine's configuration.
func (e *Engine) StripAndVerify(ctx context.Context, in, out string) (*Report, error) {
	return StripAndVerify(ctx, in, out, e.config)
}
