package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"aave-hf-watcher/internal/app"
)

var (
	showLimit         int
	showNotifications bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent position samples or notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:         showLimit,
			Notifications: showNotifications,
		}

		return getApp().Show(cmd.Context(), cmd.OutOrStdout(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
	showCmd.Flags().BoolVar(&showNotifications, "notifications", false, "Show dispatched notifications instead of samples")
}
