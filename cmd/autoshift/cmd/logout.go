package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(logoutCmd)
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Invalidates the saved SHiFT session.",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := newShiftClient(config)
		if err != nil {
			return err
		}

		err = client.Logout(cmd.Context())
		if err != nil {
			return err
		}
		slog.InfoContext(cmd.Context(), "logged out")
		return nil
	},
}
