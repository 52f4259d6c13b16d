package cli

import (
	"github.com/spf13/cobra"

	"github.com/benjaminschreck/go-scalpel/pkg/scalpel"
)

func newStripCmd(a *app) *cobra.Command {
	var patterns []string

	cmd := &cobra.Command{
		Use:   "strip <input.pptx> <output.pptx>",
		Short: "Remove watermark shapes and verify none remain",
		Long: `Strip removes every shape whose text matches a watermark pattern from
slides, layouts and masters, saves the result and re-opens it to confirm no
marker survived. The strip is repeated up to max_verify_attempts times.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			prog := newProgress(loggerFromContext(ctx))

			engine := a.engine(func(cfg *scalpel.Config) {
				if len(patterns) > 0 {
					cfg.WatermarkPatterns = patterns
				}
			})
			report, err := engine.StripAndVerify(ctx, args[0], args[1])
			if report != nil {
				renderReport(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return err
			}
			prog.done("Stripped " + args[0])
			printSuccess(cmd.OutOrStdout(), "wrote %s", args[1])
			return finish(report)
		},
	}

	cmd.Flags().StringSliceVarP(&patterns, "pattern", "p", nil, "watermark pattern, repeatable (replaces configured patterns)")
	return cmd
}

func newTemplatizeCmd(a *app) *cobra.Command {
	var (
		filler  string
		layouts bool
		strip   bool
	)

	cmd := &cobra.Command{
		Use:   "templatize <input.pptx> <output.pptx>",
		Short: "Replace slide text with filler of matching length",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			prog := newProgress(loggerFromContext(ctx))

			engine := a.engine(func(cfg *scalpel.Config) {
				if filler != "" {
					cfg.FillerText = filler
				}
				if cmd.Flags().Changed("layouts") {
					cfg.TemplatizeLayouts = layouts
				}
			})

			var passes []scalpel.Pass
			if strip {
				passes = append(passes, engine.WatermarkPass())
			}
			passes = append(passes, engine.TemplatizePass())

			report, err := engine.Process(ctx, args[0], args[1], passes...)
			if report != nil {
				renderReport(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return err
			}
			prog.done("Templatized " + args[0])
			printSuccess(cmd.OutOrStdout(), "wrote %s", args[1])
			return finish(report)
		},
	}

	cmd.Flags().StringVar(&filler, "filler", "", "filler text (overrides config)")
	cmd.Flags().BoolVar(&layouts, "layouts", false, "also templatize layouts and masters")
	cmd.Flags().BoolVar(&strip, "strip", false, "strip watermarks before templatizing")
	return cmd
}
