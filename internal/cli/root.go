package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haytac/emoji-cdn/internal/config"
	"github.com/haytac/emoji-cdn/internal/emoji"
	"github.com/haytac/emoji-cdn/internal/logging"
	"github.com/haytac/emoji-cdn/internal/proxy"
)

var (
	cfgFile         string
	datasetOverride string
	AppCfg          *config.AppConfig // populated in PersistentPreRunE
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "emoji-cdn",
		Short:         "Redirects emoji lookups to CDN-hosted emoji images.",
		Long:          `emoji-cdn resolves an emoji, codepoint sequence or name slug against the iamcal emoji dataset and redirects to (or proxies) the matching image in the requested style.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loadedCfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			if datasetOverride != "" {
				loadedCfg.Dataset = datasetOverride
			}
			AppCfg = loadedCfg

			logging.Setup(AppCfg.Log)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml, $HOME/.emoji-cdn/config.yaml)")
	root.PersistentFlags().StringVar(&datasetOverride, "dataset", "", "emoji.json path or URL (overrides the dataset setting)")

	root.AddCommand(NewServeCmd())
	root.AddCommand(NewLookupCmd())
	root.AddCommand(NewRandomCmd())
	root.AddCommand(NewDatasetCmd())
	root.AddCommand(NewUpstreamCmd())
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadTable reads the configured dataset through the configured upstream client.
func loadTable(ctx context.Context) (*emoji.Table, error) {
	if AppCfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	client, err := proxy.NewHTTPClientFactory(AppCfg.UpstreamProxy, AppCfg.UpstreamTimeout()).GetClient()
	if err != nil {
		return nil, fmt.Errorf("building upstream HTTP client: %w", err)
	}
	loader := &emoji.Loader{HTTPClient: client, Logger: logging.NewLeveled("dataset")}
	return loader.Load(ctx, AppCfg.Dataset)
}
