package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"go-scan-sorter/internal/container"
	"go-scan-sorter/internal/observer"
	"go-scan-sorter/internal/pipeline"
	"go-scan-sorter/pkg/models"

	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	var (
		overrideEngine string
		noReport       bool
		quiet          bool
		asJSON         bool
		keepImages     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Copy, classify and recognize one batch",
		Long: `Run one batch over the working image directory.

Images are first copied from the configured source (a local directory, a
file or list of HTTP URLs, or an Azure container/prefix), then classified
by each category's judge script in registry order, then read region by
region with the configured OCR engines. The grouped report is written as
an xlsx workbook to the report directory.`,
		Example: `  sorter run
  sorter run --source-type local --source /mnt/scanner/out --keep-images
  sorter run --source-type http --source urls.txt --json --no-report`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("keep-images") {
				v.Set("clear_image_dir", !keepImages)
			}

			var opts []container.Option
			if !quiet && !asJSON {
				opts = append(opts, container.WithObservers(observer.NewBarObserver(cmd.ErrOrStderr())))
			}
			if overrideEngine != "" {
				opts = append(opts, container.WithOverrideCollector(pipeline.StaticOverrideCollector{
					Settings: models.EngineSettings{OCREngine: overrideEngine},
				}))
			}

			c, err := openContainer(opts...)
			if err != nil {
				return err
			}
			defer c.Close()

			result, err := c.BatchService().RunBatch(cmd.Context(), models.BatchRequest{RenderReport: !noReport})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printSummary(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().String("source-type", "", "copy source type (local, http, azure)")
	cmd.Flags().String("source", "", "copy source location")
	cmd.Flags().String("report-dir", "", "directory for the xlsx report")
	cmd.Flags().String("engine", "", "default OCR engine (tesseract, cloud)")
	cmd.Flags().Int("workers", 0, "parallel copy workers")
	cmd.Flags().BoolVar(&keepImages, "keep-images", false, "leave the image directory as is after a successful batch")
	cmd.Flags().StringVar(&overrideEngine, "override-engine", "", "OCR engine stored for categories with new-type boxes and no override")
	cmd.Flags().BoolVar(&noReport, "no-report", false, "skip writing the xlsx report")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "no progress bars")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the batch result as JSON")

	_ = v.BindPFlag("source_type", cmd.Flags().Lookup("source-type"))
	_ = v.BindPFlag("source_location", cmd.Flags().Lookup("source"))
	_ = v.BindPFlag("report_dir", cmd.Flags().Lookup("report-dir"))
	_ = v.BindPFlag("default_ocr_engine", cmd.Flags().Lookup("engine"))
	_ = v.BindPFlag("copy_workers", cmd.Flags().Lookup("workers"))

	return cmd
}

func printSummary(w io.Writer, result *models.BatchResult) {
	fmt.Fprintf(w, "Batch %s: %d images in %s\n\n", result.ID, result.Total,
		result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tIMAGES")
	for _, g := range result.Report.Groups {
		fmt.Fprintf(tw, "%s\t%d\n", g.Category, len(g.Rows))
	}
	tw.Flush()

	flagged := 0
	for _, r := range result.Results {
		if r.NewTypeDetected {
			flagged++
		}
	}
	if flagged > 0 {
		fmt.Fprintf(w, "\n%d images belong to categories with new-type boxes\n", flagged)
	}
	if result.ReportPath != "" {
		fmt.Fprintf(w, "\nReport: %s\n", result.ReportPath)
	}
}
