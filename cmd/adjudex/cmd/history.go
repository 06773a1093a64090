package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyLimit int

// historyCmd represents the history command.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent scraping runs",
	Long:  `History lists the most recent per-source run records, newest first.`,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of run records to show")
}

func runHistory(cobraCmd *cobra.Command, _ []string) error {
	ctx := cobraCmd.Context()

	store, err := newStore(ctx, appConfig)
	if err != nil {
		return err
	}
	defer store.Close()

	runner, err := newRunner(appConfig, store)
	if err != nil {
		return err
	}

	runs, err := runner.History(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	for _, rec := range runs {
		line := fmt.Sprintf("%s  %-20s %-10s pages %-3d found %-4d skipped %-4d errors %-3d %.1fs",
			rec.StartedAt.Format("2006-01-02 15:04:05"),
			rec.Source, rec.Status, rec.PagesScraped, rec.Found, rec.Skipped, rec.Errors, rec.Duration())
		if rec.Error != "" {
			line += "  (" + rec.Error + ")"
		}
		fmt.Println(line)
	}
	return nil
}
