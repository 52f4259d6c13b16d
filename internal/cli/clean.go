package cli

import (
	"github.com/spf13/cobra"

	"github.com/benjaminschreck/go-scalpel/pkg/scalpel"
)

func newCleanCmd(a *app) *cobra.Command {
	var hiddenOnly bool

	cmd := &cobra.Command{
		Use:   "clean <input.pptx> <output.pptx>",
		Short: "Apply the page allow-list and drop invisible shapes",
		Long: `Clean first removes text shapes the configured allow-list does not name on
the pages it covers, then removes hidden, zero-sized and off-canvas shapes and
pictures whose image cannot be resolved.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			prog := newProgress(loggerFromContext(ctx))

			engine := a.engine(func(cfg *scalpel.Config) {
				if hiddenOnly {
					cfg.Allowlist = nil
				}
			})
			passes, err := engine.CleanPasses()
			if err != nil {
				return err
			}

			report, err := engine.Process(ctx, args[0], args[1], passes...)
			if report != nil {
				renderReport(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return err
			}
			prog.done("Cleaned " + args[0])
			printSuccess(cmd.OutOrStdout(), "wrote %s", args[1])
			return finish(report)
		},
	}

	cmd.Flags().BoolVar(&hiddenOnly, "hidden-only", false, "skip the allow-list and only drop invisible shapes")
	return cmd
}
