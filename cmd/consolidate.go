package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tribunal/internal/meta"
	"github.com/sells-group/tribunal/internal/model"
	"github.com/sells-group/tribunal/internal/rubric"
	"github.com/sells-group/tribunal/internal/store"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Consolidate saved runs into a consensus verdict",
	Long: `Loads several independent audit runs, either from the configured store
(by subject) or from run files, weighs evidence stability across the
runs, and produces consensus scores with a full reasoning trace.`,
	RunE: runConsolidate,
}

func init() {
	consolidateCmd.Flags().String("subject", "", "Consolidate all saved runs for this subject")
	consolidateCmd.Flags().StringSlice("runs", nil, "Run files to consolidate (alternative to --subject)")
	consolidateCmd.Flags().String("format", "table", "Output format: table or json")

	rootCmd.AddCommand(consolidateCmd)
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	subject, _ := cmd.Flags().GetString("subject")
	runPaths, _ := cmd.Flags().GetStringSlice("runs")
	format, _ := cmd.Flags().GetString("format")

	var runs []model.AuditRun

	switch {
	case len(runPaths) > 0:
		for _, path := range runPaths {
			run, err := rubric.LoadRun(path)
			if err != nil {
				return err
			}
			runs = append(runs, run)
		}
	case subject != "":
		db, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return err
		}

		runs, err = db.ListRuns(ctx, store.RunFilter{Subject: subject})
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("either --subject or --runs is required")
	}

	zap.L().Info("consolidate: starting", zap.Int("runs", len(runs)))

	state, err := meta.New(cfg.Policy).Consolidate(runs)
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	}

	fmt.Printf("Consensus for %s across %d runs\n\n", state.Subject, state.Runs)

	ids := make([]string, 0, len(state.MetaScores))
	for id := range state.MetaScores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CRITERION\tCONSENSUS")
	for _, id := range ids {
		fmt.Fprintf(w, "%s\t%.2f\n", id, state.MetaScores[id])
	}
	w.Flush()

	fmt.Println("\nReasoning trace:")
	for _, line := range state.ReasoningTrace {
		fmt.Printf("  %s\n", line)
	}

	return nil
}
