// Package commands implements the scholarctl subcommands.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/scholarscout/scraper/app"
	"github.com/scholarscout/scraper/config"
)

var (
	rulesPath string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "scholarctl",
	Short: "scholarctl triages scholarship URLs and text from the command line.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", app.GetEnv("TRIAGE_RULES", ""), "Path to a json5 triage rules file.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log component decisions to stderr.")
}

// ExecuteContext runs the root command
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadRules() (config.Rules, error) {
	rules, err := config.LoadRules(rulesPath)
	if err != nil {
		return config.Rules{}, fmt.Errorf("failed to load rules: %w", err)
	}
	return rules, nil
}

// openApp builds the full service from the environment for commands that
// touch the store
func openApp(ctx context.Context) (*app.App, error) {
	cfg := app.ConfigFromEnv()
	cfg.RulesPath = rulesPath
	cfg.Logger = slog.Default()
	return app.New(ctx, cfg)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
