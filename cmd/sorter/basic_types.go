package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"go-scan-sorter/pkg/models"

	"github.com/spf13/cobra"
)

func basicTypesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "basic-types",
		Short: "Show the shared settings of the four basic region types",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Close()

			global := c.BatchService().BasicTypes(cmd.Context())
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tENGINE\tPRE CODE\tPOST CODE")
			for i, s := range global.BasicTypes {
				engine := s.OCREngine
				if engine == "" {
					engine = "(default)"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, engine, oneLine(s.PreCode), oneLine(s.PostCode))
			}
			return tw.Flush()
		},
	}
	cmd.AddCommand(basicTypeSetCmd())
	return cmd
}

func basicTypeSetCmd() *cobra.Command {
	var engine, preFile, postFile string
	cmd := &cobra.Command{
		Use:     "set <n>",
		Short:   "Replace the settings of basic type n (1-4)",
		Args:    cobra.ExactArgs(1),
		Example: `  sorter basic-types set 2 --engine cloud --post post_amount.js`,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("basic type must be a number: %w", err)
			}
			settings := models.EngineSettings{OCREngine: engine}
			if settings.PreCode, err = readOptional(preFile); err != nil {
				return err
			}
			if settings.PostCode, err = readOptional(postFile); err != nil {
				return err
			}

			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.BatchService().SetBasicType(cmd.Context(), n, settings); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Basic type %d saved\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&engine, "engine", "", "OCR engine (empty for the default)")
	cmd.Flags().StringVar(&preFile, "pre", "", "file with the image pre-processing script")
	cmd.Flags().StringVar(&postFile, "post", "", "file with the text post-processing script")
	return cmd
}

func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func oneLine(code string) string {
	r := []rune(strings.Join(strings.Fields(code), " "))
	if len(r) > 40 {
		return string(r[:37]) + "..."
	}
	return string(r)
}
