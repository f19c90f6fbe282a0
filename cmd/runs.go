package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/tribunal/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect persisted audit runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		subject, _ := cmd.Flags().GetString("subject")
		limit, _ := cmd.Flags().GetInt("limit")

		db, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return err
		}

		runs, err := db.ListRuns(ctx, store.RunFilter{Subject: subject, Limit: limit})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN ID\tSUBJECT\tSCORE\tCREATED")
		for _, run := range runs {
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n",
				run.RunID, run.Subject, run.OverallScore,
				run.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the saved report for a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return err
		}

		rep, err := db.GetReport(ctx, args[0])
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		}

		renderReport(os.Stdout, rep)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("subject", "", "Filter runs by subject")
	runsListCmd.Flags().Int("limit", 50, "Maximum number of runs to list")
	runsShowCmd.Flags().Bool("json", false, "Emit the raw report JSON")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
