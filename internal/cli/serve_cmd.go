package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/haytac/emoji-cdn/internal/app"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"run"},
		Short:   "Starts the emoji redirect service",
		Long:    `Loads the emoji dataset and serves image redirects until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if AppCfg == nil {
				log.Error().Msg("Configuration (AppCfg) not loaded in 'serve' command.")
				return fmt.Errorf("critical: AppCfg not loaded")
			}

			application, err := app.NewApplication(AppCfg)
			if err != nil {
				log.Error().Err(err).Msg("Failed to initialize application")
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return application.Run(ctx)
		},
	}
	return cmd
}
