package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benjaminschreck/go-scalpel/pkg/imagegen"
	"github.com/benjaminschreck/go-scalpel/pkg/scalpel"
)

func newReplaceImagesCmd(a *app) *cobra.Command {
	var mappingPath, imagesDir string

	cmd := &cobra.Command{
		Use:   "replace-images <input.pptx> <output.pptx>",
		Short: "Swap pictures by page and annotation",
		Long: `Replace-images reads a YAML or TOML mapping of page -> annotation -> file
and swaps the image of every picture whose alt-text annotation matches. Image
files are resolved against --images, defaulting to the mapping's directory.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			prog := newProgress(loggerFromContext(ctx))

			mapping, err := scalpel.LoadImageMapping(mappingPath)
			if err != nil {
				return err
			}
			if imagesDir == "" {
				imagesDir = filepath.Dir(mappingPath)
			}
			pass := &scalpel.ImageReplacePass{Mapping: mapping, Source: scalpel.FileSource{Dir: imagesDir}}

			report, err := a.engine(nil).Process(ctx, args[0], args[1], pass)
			if report != nil {
				renderReport(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return err
			}
			prog.done("Replaced images in " + args[0])
			printSuccess(cmd.OutOrStdout(), "wrote %s", args[1])
			return finish(report)
		},
	}

	cmd.Flags().StringVarP(&mappingPath, "mapping", "m", "", "image mapping file (required)")
	cmd.Flags().StringVar(&imagesDir, "images", "", "directory image files are resolved against")
	_ = cmd.MarkFlagRequired("mapping")
	return cmd
}

func newScanCmd(a *app) *cobra.Command {
	var (
		format string
		dpi    int
	)

	cmd := &cobra.Command{
		Use:   "scan <input.pptx>",
		Short: "Report the position and size of every picture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "table" && format != "json" {
				return fmt.Errorf("unknown format %q (want table or json)", format)
			}

			engine := a.engine(nil)
			pass := engine.ScanPass()
			if dpi > 0 {
				pass.DPI = dpi
			}
			report, err := engine.Process(cmd.Context(), args[0], "", pass)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(pass.Results)
			}
			renderImages(out, pass.Results)
			for _, warning := range report.Totals().Warnings {
				printWarning(out, "%s", warning)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table or json")
	cmd.Flags().IntVar(&dpi, "dpi", 0, "resolution for pixel sizes (overrides config)")
	return cmd
}

func newGenerateImagesCmd(a *app) *cobra.Command {
	var (
		outDir      string
		mappingPath string
		promptsPath string
		endpoint    string
	)

	cmd := &cobra.Command{
		Use:   "generate-images <input.pptx>",
		Short: "Generate replacement images for annotated pictures",
		Long: `Generate-images asks the configured image service for one image per
annotated picture, writes the images to --out and a mapping file that
replace-images accepts. Prompts default to the annotations themselves; pass
--prompts with a page -> annotation -> prompt file to override them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			prog := newProgress(logger)

			var jobs []imagegen.Job
			if promptsPath != "" {
				loaded, err := imagegen.LoadPrompts(promptsPath)
				if err != nil {
					return err
				}
				jobs = loaded
			} else {
				engine := a.engine(nil)
				pass := engine.ScanPass()
				if _, err := engine.Process(ctx, args[0], "", pass); err != nil {
					return err
				}
				jobs = jobsFromScan(pass.Results)
			}
			if len(jobs) == 0 {
				printInfo(cmd.OutOrStdout(), "no annotated pictures to generate")
				return nil
			}

			cfg := a.config.ImageGen
			if endpoint != "" {
				cfg.Endpoint = endpoint
			}
			client := imagegen.New(cfg.Endpoint,
				imagegen.WithAPIKey(cfg.APIKey),
				imagegen.WithRetries(cfg.MaxRetries, cfg.Backoff),
				imagegen.WithTimeout(cfg.Timeout),
				imagegen.WithThrottle(cfg.Throttle),
				imagegen.WithLogger(logger),
				imagegen.WithParameters(map[string]any{
					"main_title": strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0])),
					"type":       "slide",
				}),
			)

			mapping, results, err := client.GenerateAll(ctx, jobs, outDir)
			if err != nil {
				return err
			}
			if mappingPath == "" {
				mappingPath = filepath.Join(outDir, "mapping.yaml")
			}
			if err := imagegen.WriteMapping(mappingPath, outDir, mapping); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			generated := 0
			for _, res := range results {
				switch {
				case res.Err != nil:
					printWarning(out, "page %d %q: %v", res.Page, res.Annotation, res.Err)
				case res.File == "":
					printInfo(out, "page %d %q: no image returned", res.Page, res.Annotation)
				default:
					generated++
				}
			}
			prog.done(fmt.Sprintf("Generated %d of %d images", generated, len(jobs)))
			printSuccess(out, "wrote %s", mappingPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "images", "directory generated images are written to")
	cmd.Flags().StringVarP(&mappingPath, "mapping", "m", "", "mapping file to write (default <out>/mapping.yaml)")
	cmd.Flags().StringVar(&promptsPath, "prompts", "", "YAML file of page -> annotation -> prompt")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "image service endpoint (overrides config)")
	return cmd
}

// jobsFromScan turns each distinct page and annotation pair into a job
// prompting with the annotation.
func jobsFromScan(infos []scalpel.ImageInfo) []imagegen.Job {
	seen := make(map[string]bool)
	var jobs []imagegen.Job
	for _, info := range infos {
		if info.Annotation == "" {
			continue
		}
		key := fmt.Sprintf("%d\x00%s", info.Page, info.Annotation)
		if seen[key] {
			continue
		}
		seen[key] = true
		jobs = append(jobs, imagegen.Job{Page: info.Page, Annotation: info.Annotation, Prompt: info.Annotation})
	}
	imagegen.SortJobs(jobs)
	return jobs
}
