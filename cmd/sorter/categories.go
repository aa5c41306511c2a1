package main

import (
	"fmt"
	"text/tabwriter"

	"go-scan-sorter/pkg/validation"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"cat"},
		Short:   "List the categories in the registry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Close()

			summaries := c.BatchService().Categories(cmd.Context())
			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No categories defined.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ALIAS\tBOXES\tNAMED\tNEW TYPE\tOVERRIDE\tUPDATED")
			for _, s := range summaries {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\n",
					s.Alias, s.Boxes, s.SchemeRegions, yesNo(s.NewType), yesNo(s.HasOverride), s.Timestamp)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(categoryShowCmd())
	cmd.AddCommand(categoryRemoveCmd())
	cmd.AddCommand(categoryCheckCmd())
	return cmd
}

func categoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <alias>",
		Short: "Print one category record as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Close()

			category, err := c.BatchService().Category(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(map[string]interface{}{args[0]: category})
		},
	}
}

func categoryRemoveCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "remove <alias>",
		Short: "Delete a category and all of its data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("removing %q deletes its script, boxes and regions; pass --yes to confirm", args[0])
			}
			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Close()

			if !c.Store().Exists(cmd.Context(), args[0]) {
				return fmt.Errorf("category %q not found", args[0])
			}
			if !c.Store().Remove(cmd.Context(), args[0]) {
				return fmt.Errorf("category %q could not be removed", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deletion")
	return cmd
}

func categoryCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Compile every judge script and audit boxes, regions and engines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Close()

			issues := c.BatchService().ValidateRegistry(cmd.Context())
			for _, issue := range issues {
				fmt.Fprintln(cmd.OutOrStdout(), issue)
			}
			if validation.HasErrors(issues) {
				return fmt.Errorf("registry has errors")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registry OK (%d notes)\n", len(issues))
			return nil
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
