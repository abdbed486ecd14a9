package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var (
	loginUser     string
	loginPassword string
)

func init() {
	loginCmd.Flags().StringVarP(&loginUser, "user", "u", "", "SHiFT account email")
	loginCmd.Flags().StringVar(&loginPassword, "pass", "", "SHiFT account password")
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Logs into your SHiFT account, restoring a saved session when possible.",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := newShiftClient(config)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if loginUser != "" && loginPassword != "" {
			err = client.LoginWithCredentials(ctx, loginUser, loginPassword)
		} else {
			err = client.Login(ctx)
		}
		if err != nil {
			return err
		}

		slog.InfoContext(ctx, "logged in", "user", client.Username())
		return nil
	},
}
