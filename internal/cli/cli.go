// Package cli implements the scalpel command-line interface.
//
// # Commands
//
//   - strip: remove watermark shapes and verify the saved deck is clean
//   - templatize: replace slide text with length-matched filler
//   - replace-images: swap pictures by page and alt-text annotation
//   - scan: report picture geometry as a table or JSON
//   - clean: apply the page allow-list and drop invisible shapes
//   - generate-images: call an image service for every annotated picture
//   - store-pages: upsert per-page text and annotations into PostgreSQL
//
// # Configuration
//
// A .env file in the working directory is loaded first, then the file named
// by --config (YAML or TOML) or the SCALPEL_* environment variables.
// --workers and --verbose override the loaded values.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/benjaminschreck/go-scalpel/pkg/scalpel"
)

var (
	version string
	commit  string
	date    string
)

// SetVersion sets the version information displayed by --version.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// app holds the state the root command prepares for its subcommands.
type app struct {
	configPath string
	verbose    bool
	workers    int

	config *scalpel.Config
}

// Execute runs the scalpel CLI.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "scalpel",
		Short:         "Surgical edits on PowerPoint packages",
		Long:          `scalpel opens .pptx packages, strips watermarks, templatizes text, swaps and scans images and cleans up shapes without disturbing the rest of the deck.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("scalpel %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML or TOML configuration file")
	root.PersistentFlags().IntVarP(&a.workers, "workers", "w", 0, "parts processed in parallel (overrides config)")

	root.AddCommand(newStripCmd(a))
	root.AddCommand(newTemplatizeCmd(a))
	root.AddCommand(newReplaceImagesCmd(a))
	root.AddCommand(newScanCmd(a))
	root.AddCommand(newCleanCmd(a))
	root.AddCommand(newGenerateImagesCmd(a))
	root.AddCommand(newStorePagesCmd(a))

	return root
}

// setup loads configuration and installs the logger for one invocation.
func (a *app) setup(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	var cfg *scalpel.Config
	if a.configPath != "" {
		loaded, err := scalpel.LoadConfigFile(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg = scalpel.ConfigFromEnvironment()
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = a.workers
	}
	if a.verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	scalpel.SetGlobalConfig(cfg)
	scalpel.SetLogger(logger.WithPrefix("scalpel"))
	cmd.SetContext(withLogger(cmd.Context(), logger))

	a.config = cfg
	return nil
}

// engine returns an engine over a private copy of the loaded configuration.
func (a *app) engine(mutate func(cfg *scalpel.Config)) *scalpel.Engine {
	cfg := *a.config
	if mutate != nil {
		mutate(&cfg)
	}
	return scalpel.NewWithConfig(&cfg)
}

// finish turns rolled-back parts into a command failure.
func finish(report *scalpel.Report) error {
	if err := report.Err(); err != nil {
		return fmt.Errorf("%d part(s) rolled back: %w", len(report.Failed()), err)
	}
	return nil
}
