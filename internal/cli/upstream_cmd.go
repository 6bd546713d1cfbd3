package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haytac/emoji-cdn/internal/cdn"
	"github.com/haytac/emoji-cdn/internal/proxy"
	"github.com/haytac/emoji-cdn/pkg/interfaces"
)

// NewUpstreamCmd creates the 'upstream' command for checking CDN connectivity.
func NewUpstreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upstream",
		Short: "Check connectivity to the emoji CDN",
	}
	cmd.AddCommand(newUpstreamCheckCmd())
	return cmd
}

func newUpstreamCheckCmd() *cobra.Command {
	var (
		targetURL string
		style     string
	)

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate that a CDN image is reachable through the configured upstream proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if AppCfg == nil {
				return fmt.Errorf("configuration not loaded for upstream check")
			}
			if targetURL == "" {
				st, err := resolveStyle(style)
				if err != nil {
					return err
				}
				targetURL = cdn.NewURLBuilder(AppCfg.CDNBaseURL).URL(st, "1f600.png")
			}

			factory := proxy.NewHTTPClientFactory(AppCfg.UpstreamProxy, AppCfg.UpstreamTimeout())
			var validator interfaces.UpstreamValidator = proxy.NewDefaultUpstreamValidator(factory)

			via := "direct"
			if factory.ProxyURL() != "" {
				via = "via " + factory.ProxyURL()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Checking %s (%s)...\n", targetURL, via)
			if err := validator.Validate(cmd.Context(), targetURL); err != nil {
				return fmt.Errorf("upstream check failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Upstream is reachable.")
			return nil
		},
	}
	checkCmd.Flags().StringVar(&targetURL, "target", "", "URL to probe (default: grinning face image in the chosen style)")
	checkCmd.Flags().StringVarP(&style, "style", "s", "", "style folder to probe")
	return checkCmd
}
