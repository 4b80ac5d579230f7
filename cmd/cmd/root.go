package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"aifeed/internal/config"
	"aifeed/internal/logger"
)

var cfg *config.Config

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "aifeed",
	Short: "aifeed delivers personalized news briefings with podcasts",
	Long: `aifeed fetches news and community discussions per user's preferences,
summarizes them with an LLM, voices a daily podcast episode, and notifies
the user's device when fresh content is ready.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Init()
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
