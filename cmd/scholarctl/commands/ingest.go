package commands

import (
	"github.com/spf13/cobra"
)

var ingestRSSCmd = &cobra.Command{
	Use:   "ingest-rss",
	Short: "Runs one RSS cycle into the configured store.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.IngestRSS(cmd.Context())
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), summary)
	},
}

var enrichLimit int

var enrichCmd = &cobra.Command{
	Use:   "enrich [--limit n]",
	Short: "Re-fetches a sample of records missing an amount and fills what it finds.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.Enrich(cmd.Context(), enrichLimit)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), summary)
	},
}

func init() {
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 0, "Records to sample; 0 uses ENRICH_LIMIT.")
	rootCmd.AddCommand(ingestRSSCmd)
	rootCmd.AddCommand(enrichCmd)
}
