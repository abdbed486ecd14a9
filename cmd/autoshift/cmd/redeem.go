package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Fabbi/autoshift/lib/keydb"
	"github.com/Fabbi/autoshift/lib/shift"

	"github.com/spf13/cobra"
)

const (
	// the SHiFT site starts rate limiting after a burst of
	// redemptions, so take a break regularly
	redeemBurst   = 15
	redeemBackoff = 60 * time.Second
)

var (
	redeemPlatform  string
	redeemGame      string
	redeemLimit     int
	redeemGolden    bool
	redeemNonGolden bool
	redeemDryRun    bool
)

func init() {
	redeemCmd.Flags().StringVarP(&redeemPlatform, "platform", "p", "", "platform to redeem codes for")
	redeemCmd.Flags().StringVarP(&redeemGame, "game", "g", "", "only redeem codes for this game")
	redeemCmd.Flags().IntVarP(&redeemLimit, "limit", "l", 200, "maximum number of golden keys to redeem")
	redeemCmd.Flags().BoolVar(&redeemGolden, "golden", false, "only redeem golden keys")
	redeemCmd.Flags().BoolVar(&redeemNonGolden, "non-golden", false, "only redeem non-golden keys")
	redeemCmd.Flags().BoolVar(&redeemDryRun, "dry-run", false, "print what would be redeemed without redeeming")
	redeemCmd.MarkFlagRequired("platform")
	rootCmd.AddCommand(redeemCmd)
}

var redeemCmd = &cobra.Command{
	Use:   "redeem",
	Short: "Redeems all stored unredeemed SHiFT codes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}

		platform, err := keydb.ParsePlatform(redeemPlatform)
		if err != nil {
			return err
		}
		var game keydb.Game
		if redeemGame != "" {
			game, err = keydb.ParseGame(redeemGame)
			if err != nil {
				return err
			}
		}

		store, err := openStore(config)
		if err != nil {
			return err
		}
		codes, err := store.Query(cmd.Context(), platform, game, false)
		if err != nil {
			return err
		}
		if len(codes) == 0 {
			fmt.Println("no codes to redeem")
			return nil
		}

		client, err := newShiftClient(config)
		if err != nil {
			return err
		}
		if err := client.Login(cmd.Context()); err != nil {
			return err
		}

		return redeemAll(cmd.Context(), client, store, codes)
	},
}

func redeemAll(ctx context.Context, client *shift.Client, store keydb.Store, codes []*keydb.Code) error {
	limit := redeemLimit
	attempts := 0

	for _, code := range codes {
		golden := code.GoldenKeys()
		if redeemGolden && golden == 0 {
			continue
		}
		if redeemNonGolden && golden > 0 {
			continue
		}
		if golden > 0 && golden > limit {
			slog.DebugContext(ctx, "skipping code, golden key limit reached",
				"code", code.Code, "golden", golden, "limit", limit)
			continue
		}

		fmt.Printf("redeeming %s (%s)\n", code.Code, code.Description)
		if redeemDryRun {
			continue
		}

		if attempts > 0 && attempts%redeemBurst == 0 {
			slog.InfoContext(ctx, "taking a break to avoid rate limiting")
			if err := backoff(ctx); err != nil {
				return err
			}
		}
		attempts++

		result := client.Redeem(ctx, code)
		if result.Status == shift.StatusSlowdown {
			slog.InfoContext(ctx, "rate limited, backing off", "message", result.Message)
			if err := backoff(ctx); err != nil {
				return err
			}
			result = client.Redeem(ctx, code)
		}

		fmt.Printf("  %s", result.Status)
		if result.Message != "" {
			fmt.Printf(": %s", result.Message)
		}
		fmt.Println()

		switch result.Status {
		case shift.StatusSuccess:
			limit -= golden
			fallthrough
		case shift.StatusRedeemed, shift.StatusExpired, shift.StatusInvalid:
			if result.Message != "" {
				code.SetNote(result.Message)
			}
			if result.Status == shift.StatusExpired {
				code.SetExpires(time.Now().UTC().Format(time.RFC3339))
			}
			if err := store.SetRedeemed(ctx, code); err != nil {
				return err
			}
		case shift.StatusTryLater:
			// nothing more will go through this session, a
			// SHiFT-enabled title has to be launched first
			fmt.Println("stopping, try again later")
			return nil
		case shift.StatusSlowdown:
			fmt.Println("still rate limited, stopping")
			return nil
		}
	}
	return nil
}

func backoff(ctx context.Context) error {
	timer := time.NewTimer(redeemBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
