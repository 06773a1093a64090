package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adjudex/adjudex"
)

var runSources []string

// runCmd represents the run command.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one scraping run",
	Long: `Run scrapes every enabled source, merges duplicate listings across
sources, persists the result, geocodes missing coordinates and records
the outcome in run history.`,
	Example: `  adjudex run
  adjudex run --source licitor --source agorastore`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVar(&runSources, "source", nil, "restrict the run to these sources (repeatable)")
}

func runRun(cobraCmd *cobra.Command, _ []string) error {
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

	var opts []adjudex.RunOption
	if len(runSources) > 0 {
		opts = append(opts, adjudex.RunWithSources(runSources...))
	}

	summary, err := runner.Run(ctx, opts...)
	if err != nil {
		return err
	}

	fmt.Printf("run %s: %s in %.1fs\n", summary.RunID, summary.Status, summary.DurationSeconds)
	fmt.Printf("  found %d, after dedup %d, persisted %d, geocoded %d\n",
		summary.TotalFound, summary.AfterDedup, summary.Persisted, summary.Geocoded)
	for _, rec := range summary.PerSource {
		line := fmt.Sprintf("  %-20s %-10s pages %-3d found %-4d skipped %-4d errors %d",
			rec.Source, rec.Status, rec.PagesScraped, rec.Found, rec.Skipped, rec.Errors)
		if rec.Error != "" {
			line += "  (" + rec.Error + ")"
		}
		fmt.Println(line)
	}
	return nil
}
