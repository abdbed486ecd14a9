package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Fabbi/autoshift/lib/configdb"
	"github.com/Fabbi/autoshift/lib/configutil"
	"github.com/Fabbi/autoshift/lib/keydb"
	"github.com/Fabbi/autoshift/lib/restyutil"
	"github.com/Fabbi/autoshift/lib/shift"

	"github.com/spf13/cobra"
)

type Config struct {
	Database    configdb.Struct `json:"database"`
	SessionFile string          `json:"session_file"`
	// when set, every exchange with the SHiFT site is dumped into
	// this directory (debug level logging only)
	HttpDumpDir string `json:"http_dump_dir"`
}

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "autoshift",
	Short: "autoshift automatically redeems Gearbox SHiFT codes.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			slog.SetLogLoggerLevel(slog.LevelDebug)
			slog.Debug("debug mode on")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", "autoshift.json5", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable verbose logging")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (Config, error) {
	config, err := configutil.ReadConfig[Config](configPath)
	if os.IsNotExist(err) {
		// first run without a config file
		config = Config{}
		err = nil
	}
	if err != nil {
		return Config{}, err
	}

	if config.Database.File == "" && config.Database.Url == "" {
		config.Database.File = "data/keys.db"
	}
	if config.SessionFile == "" {
		config.SessionFile = "data/.cookie.sav"
	}
	return config, nil
}

func openStore(config Config) (keydb.Store, error) {
	db, err := config.Database.OpenDB(keydb.Schema)
	if err != nil {
		return keydb.Store{}, fmt.Errorf("open key database: %w", err)
	}
	return keydb.NewStore(db), nil
}

func newShiftClient(config Config) (*shift.Client, error) {
	opts := shift.Options{
		SessionFile: config.SessionFile,
		Prompt:      terminalPrompt{},
	}
	if config.HttpDumpDir != "" {
		dump, err := restyutil.NewFilesystemOutput(config.HttpDumpDir)
		if err != nil {
			return nil, err
		}
		opts.HttpDump = dump
	}
	return shift.NewClient(opts)
}
