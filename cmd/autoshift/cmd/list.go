package cmd

import (
	"os"
	"strconv"

	"github.com/Fabbi/autoshift/lib/keydb"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	listPlatform string
	listGame     string
	listAll      bool
)

func init() {
	listCmd.Flags().StringVarP(&listPlatform, "platform", "p", "", "only list codes for this platform")
	listCmd.Flags().StringVarP(&listGame, "game", "g", "", "only list codes for this game")
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "include redeemed codes")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Prints the stored SHiFT codes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(config)
		if err != nil {
			return err
		}

		var platform keydb.Platform
		if listPlatform != "" {
			platform, err = keydb.ParsePlatform(listPlatform)
			if err != nil {
				return err
			}
		}
		var game keydb.Game
		if listGame != "" {
			game, err = keydb.ParseGame(listGame)
			if err != nil {
				return err
			}
		}

		codes, err := store.Query(cmd.Context(), platform, game, listAll)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Game", "Platform", "Code", "Golden", "Redeemed", "Description"})
		for _, code := range codes {
			golden := ""
			if n := code.GoldenKeys(); n > 0 {
				golden = strconv.Itoa(n)
			}
			t.AppendRow(table.Row{
				code.ID, code.Game, code.Platform, code.Code,
				golden, code.Redeemed, code.Description,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
