package cmd

import (
	"fmt"

	"github.com/Fabbi/autoshift/lib/keydb"

	"github.com/spf13/cobra"
)

var (
	addPlatform    string
	addGame        string
	addDescription string
)

func init() {
	addCmd.Flags().StringVarP(&addPlatform, "platform", "p", "", "platform the code is valid for")
	addCmd.Flags().StringVarP(&addGame, "game", "g", "", "game the code is valid for")
	addCmd.Flags().StringVarP(&addDescription, "description", "d", "", "what the code unlocks")
	addCmd.MarkFlagRequired("platform")
	addCmd.MarkFlagRequired("game")
	rootCmd.AddCommand(addCmd)
}

var addCmd = &cobra.Command{
	Use:   "add <code>...",
	Short: "Stores SHiFT codes for later redemption.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		platform, err := keydb.ParsePlatform(addPlatform)
		if err != nil {
			return err
		}
		game, err := keydb.ParseGame(addGame)
		if err != nil {
			return err
		}
		store, err := openStore(config)
		if err != nil {
			return err
		}

		for _, arg := range args {
			code := &keydb.Code{
				Code:        arg,
				Platform:    platform,
				Game:        game,
				Description: addDescription,
				Source:      "manual",
			}
			inserted, err := store.Insert(cmd.Context(), code)
			if err != nil {
				return err
			}
			if inserted {
				fmt.Printf("added %s\n", code.Code)
			} else {
				fmt.Printf("%s is already stored\n", code.Code)
			}
		}
		return nil
	},
}
