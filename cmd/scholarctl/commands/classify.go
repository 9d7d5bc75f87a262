package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	scraper "github.com/scholarscout/scraper"
	"github.com/scholarscout/scraper/app"
	"github.com/scholarscout/scraper/llm"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <url>",
	Short: "Fetches a page and prints its classification. Uses the AI path when OPENAI_API_KEY is set.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := loadRules()
		if err != nil {
			return err
		}
		g, err := rules.Gatekeeper()
		if err != nil {
			return err
		}

		var analyzer scraper.Analyzer
		if cfg := app.ConfigFromEnv().LLM; cfg.APIKey != "" {
			analyzer = llm.NewClient(cfg)
		}

		classifierConfig := scraper.DefaultConfig()
		classifierConfig.Heuristics = rules.Heuristics
		classifierConfig.Gatekeeper = g
		classifierConfig.Logger = slog.Default()
		classifier := scraper.New(classifierConfig, analyzer)

		return writeJSON(cmd.OutOrStdout(), classifier.ClassifyURL(cmd.Context(), args[0]))
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
