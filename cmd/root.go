package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	checkout "github.com/Alturino/hiicart/checkout/cmd"
	"github.com/Alturino/hiicart/internal/constants"
	"github.com/Alturino/hiicart/internal/log"
)

func Start() {
	logger := log.InitLogger("/var/log/hiicart.log").
		With().
		Str(log.KeyAppName, constants.APP_MAIN_HIICART).
		Str(log.KeyTag, "main Start").
		Logger()

	logger.Info().Msg("adding listener for SIGINT and SIGTERM")
	c, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Info().Msg("added listener for SIGINT and SIGTERM")

	c = logger.WithContext(c)

	rootCmd := &cobra.Command{}
	commands := []*cobra.Command{
		{
			Use:   "checkout",
			Short: "Run checkout service",
			Run: func(cmd *cobra.Command, args []string) {
				checkout.RunCheckoutService(cmd.Context())
			},
		},
		{
			Use:   "sweeper",
			Short: "Run recurring billing sweeper",
			Run: func(cmd *cobra.Command, args []string) {
				checkout.RunRecurringSweeper(cmd.Context())
			},
		},
	}
	rootCmd.AddCommand(commands...)
	if err := rootCmd.ExecuteContext(c); err != nil {
		logger.Fatal().Err(err).Msgf("error when executing command=%s", err.Error())
	}
}
