package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/submittal-review/internal/adapters/driving/render"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent reviews",
	Long: `Lists reviews recorded in the audit log, newest first. Every review that
reaches a verdict or fails is recorded unless review.audit is false.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of reviews (0 = all)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output records as JSON")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if historyLimit < 0 {
		return errors.New("--limit must not be negative")
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if wiring.History == nil {
		return errors.New("review history not configured")
	}
	svc, err := wiring.History(settings)
	if err != nil {
		return err
	}
	defer svc.close()

	records, err := svc.Review.History(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("list reviews: %w", err)
	}

	if historyJSON {
		return writeJSON(cmd.OutOrStdout(), records)
	}
	render.New(cmd.OutOrStdout()).History(records)
	return nil
}
