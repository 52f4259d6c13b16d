package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/benjaminschreck/go-scalpel/pkg/pagestore"
	"github.com/benjaminschreck/go-scalpel/pkg/scalpel"
)

func newStorePagesCmd(a *app) *cobra.Command {
	var artifact, dsn, table string

	cmd := &cobra.Command{
		Use:   "store-pages <input.pptx>",
		Short: "Upsert per-page text and picture annotations into PostgreSQL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			prog := newProgress(loggerFromContext(ctx))

			cfg := a.config.PageStore
			if dsn != "" {
				cfg.DSN = dsn
			}
			if table != "" {
				cfg.Table = table
			}
			if artifact == "" {
				artifact = filepath.Base(args[0])
			}

			pkg, err := scalpel.Open(args[0])
			if err != nil {
				return err
			}
			defer pkg.Close()
			records := pagestore.RecordsFromPackage(pkg, artifact, a.config.MarkerPatterns)

			store, err := pagestore.Connect(ctx, cfg.DSN, cfg.Table)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.EnsureSchema(ctx); err != nil {
				return err
			}
			if err := store.UpsertAll(ctx, records); err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Stored %d pages of %s", len(records), artifact))
			printSuccess(cmd.OutOrStdout(), "stored %d pages as %q", len(records), artifact)
			return nil
		},
	}

	cmd.Flags().StringVar(&artifact, "artifact", "", "artifact name rows are keyed by (default input file name)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "PostgreSQL connection string (overrides config)")
	cmd.Flags().StringVar(&table, "table", "", "table name (overrides config)")
	return cmd
}
