package main

import (
	"errors"
	"fmt"
	"os"

	"go-scan-sorter/internal/workflow"
	"go-scan-sorter/pkg/models"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func editCmd() *cobra.Command {
	var (
		width, height  int
		judgeFile      string
		boxesFile      string
		regionsFile    string
		overrideEngine string
		overwrite      bool
	)

	cmd := &cobra.Command{
		Use:   "edit <alias>",
		Short: "Create or replace a category from files",
		Long: `Create or replace a category in the same steps as the annotation editor:
reference size, judge script, named regions and boxes, then the OCR override
when any box is marked as a new type (region_type 5).

The boxes file is a YAML list of {pt1: [x, y], pt2: [x, y], region_type: n}.
The regions file is a YAML mapping from region name to
{coords: [x1, y1, x2, y2], ocr_engine, pre_code, post_code}.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(judgeFile)
			if err != nil {
				return fmt.Errorf("read judge script: %w", err)
			}
			var boxes []models.Box
			if err := readYAML(boxesFile, &boxes); err != nil {
				return err
			}
			var scheme models.Scheme
			if err := readYAML(regionsFile, &scheme); err != nil {
				return err
			}

			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			s := c.NewEditorSession()
			if err := s.SubmitCategory(ctx, args[0], models.Size{width, height}, overwrite); err != nil {
				if errors.Is(err, workflow.ErrAliasExists) {
					return fmt.Errorf("%w; pass --overwrite to replace it", err)
				}
				return err
			}
			if err := s.SubmitScheme(ctx, string(source)); err != nil {
				return err
			}
			if len(scheme) > 0 {
				if err := s.SubmitNamedRegions(ctx, scheme); err != nil {
					return err
				}
			}
			if err := s.SubmitAnnotation(ctx, boxes); err != nil {
				return err
			}
			if s.State() == workflow.AwaitOverride {
				if overrideEngine == "" {
					fmt.Fprintf(cmd.OutOrStdout(),
						"%s has new-type boxes; their OCR settings will be asked for at the next run\n", s.Alias())
					return nil
				}
				if err := s.SubmitOverride(ctx, models.EngineSettings{OCREngine: overrideEngine}); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d boxes, %d named regions)\n", s.Alias(), len(boxes), len(scheme))
			return nil
		},
	}

	cmd.Flags().IntVar(&width, "width", 0, "reference image width")
	cmd.Flags().IntVar(&height, "height", 0, "reference image height")
	cmd.Flags().StringVar(&judgeFile, "judge", "", "file with the classification script defining judge(image)")
	cmd.Flags().StringVar(&boxesFile, "boxes", "", "YAML file with the annotated boxes")
	cmd.Flags().StringVar(&regionsFile, "regions", "", "YAML file with named regions")
	cmd.Flags().StringVar(&overrideEngine, "override-engine", "", "OCR engine for new-type boxes")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing category")
	_ = cmd.MarkFlagRequired("judge")

	return cmd
}

func readYAML(path string, out interface{}) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
