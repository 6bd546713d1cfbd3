package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewDatasetCmd creates the 'dataset' command for inspecting the emoji dataset.
func NewDatasetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Inspect the emoji dataset",
	}
	cmd.AddCommand(newDatasetInfoCmd())
	return cmd
}

func newDatasetInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print record counts for the configured dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := loadTable(cmd.Context())
			if err != nil {
				return err
			}

			categories := make(map[string]int)
			for _, rec := range table.Records() {
				if !rec.IsVariation() {
					categories[rec.Category]++
				}
			}
			names := make([]string, 0, len(categories))
			for name := range categories {
				names = append(names, name)
			}
			sort.Strings(names)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "source:\t%s\n", AppCfg.Dataset)
			fmt.Fprintf(tw, "base emoji:\t%d\n", table.Bases())
			fmt.Fprintf(tw, "skin variations:\t%d\n", table.Len()-table.Bases())
			fmt.Fprintf(tw, "records:\t%d\n", table.Len())
			for _, name := range names {
				label := name
				if label == "" {
					label = "(none)"
				}
				fmt.Fprintf(tw, "  %s:\t%d\n", label, categories[name])
			}
			return tw.Flush()
		},
	}
}
