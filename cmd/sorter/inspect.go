package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"go-scan-sorter/pkg/models"

	"github.com/spf13/cobra"
)

func inspectCmd() *cobra.Command {
	var (
		mode   string
		blur   float64
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "inspect <image|url>",
		Short: "Check whether an image is sharp and bright enough to sort",
		Long: `Inspect measures one image and lists the quality problems found.
A bare name is read from the image directory; an http(s) URL is downloaded.`,
		Example: `  sorter inspect scan_001.jpg
  sorter inspect https://scans.example.com/a.png --mode ocr --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Close()

			req := models.InspectRequest{Mode: mode}
			if strings.Contains(args[0], "://") {
				req.URL = args[0]
			} else {
				req.Image = args[0]
			}
			if cmd.Flags().Changed("blur") {
				req.Thresholds = &models.InspectThresholds{Blur: &blur}
			}

			resp, err := c.Inspector().Inspect(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			fmt.Fprintf(out, "%s (%dx%d, %s mode)\n", resp.Source, resp.Width, resp.Height, resp.Mode)
			fmt.Fprintf(out, "  sharpness %.1f  brightness %.1f  skew %.1f°\n",
				resp.Metrics.Sharpness, resp.Metrics.Brightness, resp.Metrics.Skew)
			if resp.Passed {
				fmt.Fprintln(out, "  OK")
				return nil
			}
			fmt.Fprintf(out, "  issues: %s\n", strings.Join(resp.Issues, ", "))
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", models.InspectModeDefault, "threshold set: default or ocr")
	cmd.Flags().Float64Var(&blur, "blur", 0, "override the sharpness below which an image is blurry")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}
