package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shwanortho/site/internal/app"
	"github.com/shwanortho/site/internal/config"
	"github.com/shwanortho/site/internal/localfile"
	"github.com/shwanortho/site/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cli carries the state shared by every subcommand.
type cli struct {
	configFile string
	envFile    string
	jsonOutput bool
	verbose    bool

	v   *viper.Viper
	cfg config.AppConfig
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   "contentctl",
		Short: "Manage the bilingual site dictionaries",
		Long: `contentctl edits the en/ar locale files, snapshots them, and moves content
between the local files and the configured content store.

Settings come from the environment (and .env), an optional contentctl.yaml,
and flags, in increasing order of precedence.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "config file (default: ./contentctl.yaml when present)")
	flags.StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	flags.BoolVar(&c.jsonOutput, "json", false, "print machine-readable output")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log debug output to stderr")
	flags.String("locales-dir", "", "directory holding en.json and ar.json")
	flags.String("backup-dir", "", "directory for snapshots")
	flags.String("store", "", "content store driver: rest, postgres or sqlite")
	flags.String("database", "", "sqlite path for the sqlite driver")
	flags.String("database-url", "", "postgres connection string")

	for key, flag := range map[string]string{
		keyLocalesDir:  "locales-dir",
		keyBackupDir:   "backup-dir",
		keyStoreDriver: "store",
		keyDatabase:    "database",
		keyDatabaseURL: "database-url",
	} {
		_ = c.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		c.initCmd(),
		c.faqCmd(),
		c.backupCmd(),
		c.pushCmd(),
		c.pullCmd(),
		c.resolveCmd(),
		c.adminCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(c.v, c.configFile, c.envFile)
	if err != nil {
		return err
	}
	c.cfg = cfg

	level := "warn"
	if c.verbose {
		level = "debug"
	}
	c.log = logger.New(logger.Config{Level: level, Output: cmd.ErrOrStderr(), Service: "contentctl"})
	return nil
}

func (c *cli) local() *localfile.Source {
	return localfile.New(c.cfg.LocalesDir)
}

// openApp opens the store and services; callers must Close the result.
func (c *cli) openApp(ctx context.Context) (*app.App, error) {
	a, err := app.New(ctx, c.cfg, c.log)
	if err != nil {
		return nil, fmt.Errorf("open content store: %w", err)
	}
	return a, nil
}

func (c *cli) printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
