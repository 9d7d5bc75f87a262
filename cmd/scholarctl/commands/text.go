package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scholarscout/scraper/extract"
)

var scoreCmd = &cobra.Command{
	Use:   "score <text>...",
	Short: "Prints the relevance score and the keywords that fired.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := loadRules()
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), rules.Scorer().Matches(strings.Join(args, " ")))
	},
}

type extractResult struct {
	Amount   *string `json:"amount"`
	Deadline *string `json:"deadline"`
}

var extractCmd = &cobra.Command{
	Use:   "extract [file|-]",
	Short: "Extracts the award amount and deadline from a text file or stdin.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := loadRules()
		if err != nil {
			return err
		}

		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}

		fields := rules.Extractor().Fields(text)
		result := extractResult{Amount: fields.Amount}
		if fields.Deadline != nil {
			d := extract.FormatDeadline(*fields.Deadline)
			result.Deadline = &d
		}
		return writeJSON(cmd.OutOrStdout(), result)
	},
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return string(data), nil
}

func init() {
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(extractCmd)
}
