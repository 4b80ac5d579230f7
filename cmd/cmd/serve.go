package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"aifeed/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the update scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		go a.scheduler.Run(ctx)

		errCh := make(chan error, 1)
		go func() { errCh <- a.server.Start() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			logger.Info("Shutdown signal received")
		}

		if err := a.server.Shutdown(context.Background()); err != nil {
			return err
		}
		// Scheduler.Run drains in-flight pipeline runs before returning.
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
