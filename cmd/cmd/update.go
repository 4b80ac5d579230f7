package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	updatePresenter string
	updateLanguage  string
	updateVoiceID   string
)

var updateCmd = &cobra.Command{
	Use:   "update <user_id>",
	Short: "Run the full update pipeline for one user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		userID := args[0]
		result := a.orchestrator.RunUpdate(ctx, userID, updatePresenter, updateLanguage, updateVoiceID)

		for _, step := range []string{"articles", "report", "podcast", "notification"} {
			outcome := result.Steps[step]
			line := fmt.Sprintf("%-13s %s", step, outcome.Status)
			if outcome.Error != "" {
				line += ": " + outcome.Error
			}
			fmt.Println(line)
		}
		if !result.Success {
			return fmt.Errorf("update pipeline for %s failed", userID)
		}
		fmt.Printf("completed in %s\n", result.Duration)
		return nil
	},
}

func init() {
	updateCmd.Flags().StringVar(&updatePresenter, "presenter", "Alex", "podcast presenter name")
	updateCmd.Flags().StringVar(&updateLanguage, "language", "en", "briefing language")
	updateCmd.Flags().StringVar(&updateVoiceID, "voice", "", "TTS voice id (defaults to provider voice)")
	rootCmd.AddCommand(updateCmd)
}
