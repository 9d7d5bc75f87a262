package commands

import (
	"github.com/spf13/cobra"

	"github.com/scholarscout/scraper/models"
)

type filterResult struct {
	URL string `json:"url"`
	models.FilterVerdict
}

var filterCmd = &cobra.Command{
	Use:   "filter <url>...",
	Short: "Prints the URL rule verdict for each URL.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := loadRules()
		if err != nil {
			return err
		}
		g, err := rules.Gatekeeper()
		if err != nil {
			return err
		}

		results := make([]filterResult, 0, len(args))
		for _, u := range args {
			results = append(results, filterResult{URL: u, FilterVerdict: g.Filter(u)})
		}
		return writeJSON(cmd.OutOrStdout(), results)
	},
}

var bestCmd = &cobra.Command{
	Use:   "best <url>...",
	Short: "Picks the most direct scholarship link among the URLs.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := loadRules()
		if err != nil {
			return err
		}
		g, err := rules.Gatekeeper()
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), map[string]string{"best_url": g.BestURL(args)})
	},
}

func init() {
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(bestCmd)
}
