package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haytac/emoji-cdn/internal/cdn"
	"github.com/haytac/emoji-cdn/internal/emoji"
)

// NewLookupCmd creates the lookup command, which resolves text offline the
// same way the HTTP endpoint does.
func NewLookupCmd() *cobra.Command {
	var style string

	cmd := &cobra.Command{
		Use:   "lookup <emoji|codepoints|name-slug|:shortcode:>",
		Short: "Resolve an emoji and print its record and CDN URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := resolveStyle(style)
			if err != nil {
				return err
			}
			table, err := loadTable(cmd.Context())
			if err != nil {
				return err
			}

			rec, kind, err := table.Resolve(args[0])
			if errors.Is(err, emoji.ErrNotFound) {
				return fmt.Errorf("emoji not found: %q (key %s)", args[0], emoji.Key(args[0]))
			}
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "unified:\t%s\n", rec.Unified)
			fmt.Fprintf(tw, "name:\t%s\n", rec.Name)
			fmt.Fprintf(tw, "short_name:\t%s\n", rec.ShortName)
			if rec.IsVariation() {
				fmt.Fprintf(tw, "skin_tone:\t%s\n", rec.SkinTone)
			}
			fmt.Fprintf(tw, "image:\t%s\n", rec.Image)
			fmt.Fprintf(tw, "match:\t%s\n", kind)
			fmt.Fprintf(tw, "url:\t%s\n", cdn.NewURLBuilder(AppCfg.CDNBaseURL).URL(st, rec.Image))
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&style, "style", "s", "", "image style: "+cdn.StyleList()+" (default from config)")
	return cmd
}

// NewRandomCmd creates the random command.
func NewRandomCmd() *cobra.Command {
	var style string

	cmd := &cobra.Command{
		Use:   "random",
		Short: "Print the CDN URL of a random emoji",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := resolveStyle(style)
			if err != nil {
				return err
			}
			table, err := loadTable(cmd.Context())
			if err != nil {
				return err
			}
			rec := table.Random()
			fmt.Fprintln(cmd.OutOrStdout(), cdn.NewURLBuilder(AppCfg.CDNBaseURL).URL(st, rec.Image))
			return nil
		},
	}
	cmd.Flags().StringVarP(&style, "style", "s", "", "image style: "+cdn.StyleList()+" (default from config)")
	return cmd
}

func resolveStyle(flagValue string) (cdn.Style, error) {
	if flagValue == "" && AppCfg != nil {
		flagValue = AppCfg.DefaultStyle
	}
	st, err := cdn.ParseStyle(flagValue)
	if err != nil {
		return "", fmt.Errorf("%w. Valid styles are: %s", err, cdn.StyleList())
	}
	return st, nil
}
