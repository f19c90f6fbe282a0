package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tribunal/internal/model"
	"github.com/sells-group/tribunal/internal/report"
	"github.com/sells-group/tribunal/internal/rubric"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Synthesize persona opinions into a verdict report",
	Long: `Loads a rubric, an evidence manifest, and a set of persona opinions,
runs the synthesis pipeline for every criterion, and renders the
resulting report. With --save the run and report are persisted for
later consolidation.`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().String("rubric", "rubric.yaml", "Path to the rubric YAML file")
	auditCmd.Flags().String("evidence", "evidence.json", "Path to the evidence manifest")
	auditCmd.Flags().String("opinions", "opinions.json", "Path to the persona opinions file")
	auditCmd.Flags().String("subject", "", "Name of the audited artifact (required)")
	auditCmd.Flags().String("format", "table", "Output format: table or json")
	auditCmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
	auditCmd.Flags().Bool("save", false, "Persist the run and report to the configured store")
	_ = auditCmd.MarkFlagRequired("subject")

	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rubricPath, _ := cmd.Flags().GetString("rubric")
	evidencePath, _ := cmd.Flags().GetString("evidence")
	opinionsPath, _ := cmd.Flags().GetString("opinions")
	subject, _ := cmd.Flags().GetString("subject")
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	save, _ := cmd.Flags().GetBool("save")

	rb, err := rubric.LoadRubric(rubricPath)
	if err != nil {
		return err
	}

	store, err := rubric.LoadEvidence(evidencePath)
	if err != nil {
		return err
	}

	opinions, err := rubric.LoadOpinions(opinionsPath)
	if err != nil {
		return err
	}

	zap.L().Info("audit: starting synthesis",
		zap.String("subject", subject),
		zap.Int("criteria", len(rb.Criteria)),
		zap.Int("opinions", len(opinions)),
		zap.Int("evidence", store.Len()))

	builder := report.NewBuilder(cfg.Policy)
	rep, err := builder.Build(ctx, subject, rb, opinions, store)
	if err != nil {
		return err
	}

	if save {
		db, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return err
		}

		run := model.AuditRun{
			RunID:          uuid.New().String(),
			Subject:        subject,
			OverallScore:   rep.OverallScore,
			Opinions:       opinions,
			Evidence:       store.Snapshot(),
			Contradictions: rep.DetectedContradictions,
			CreatedAt:      time.Now().UTC(),
		}
		if err := db.SaveRun(ctx, run); err != nil {
			return err
		}
		if err := db.SaveReport(ctx, run.RunID, rep); err != nil {
			return err
		}

		zap.L().Info("audit: run saved", zap.String("run_id", run.RunID))
		fmt.Printf("Saved run %s\n", run.RunID)
	}

	out := os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	renderReport(out, rep)
	return nil
}

func renderReport(out io.Writer, rep *model.AuditReport) {
	fmt.Fprintf(out, "Audit report: %s\n", rep.Subject)
	fmt.Fprintf(out, "Overall score: %.2f/5\n\n", rep.OverallScore)
	fmt.Fprintln(out, rep.ExecutiveSummary)
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CRITERION\tFINAL\tBASE\tADV\tSYM\tPRAG\tFLAGS")
	for _, cr := range rep.Criteria {
		flags := ""
		if cr.ContradictionFlag {
			flags = "contradiction"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			cr.DimensionName, cr.FinalScore, cr.BaseScore,
			cr.AdversarialScore, cr.SympatheticScore, cr.PragmaticScore, flags)
	}
	w.Flush()

	if len(rep.DetectedContradictions) > 0 {
		fmt.Fprintln(out, "\nDetected contradictions:")
		for _, c := range rep.DetectedContradictions {
			fmt.Fprintf(out, "  - %s\n", c)
		}
	}

	if rep.RemediationPlan != "" {
		fmt.Fprintln(out, "\nRemediation plan:")
		fmt.Fprintf(out, "  %s\n", rep.RemediationPlan)
	}

	for _, cr := range rep.Criteria {
		if cr.DissentSummary == "" && len(cr.ReasoningTrace) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s:\n", cr.DimensionName)
		if cr.DissentSummary != "" {
			fmt.Fprintf(out, "  dissent: %s\n", cr.DissentSummary)
		}
		for _, line := range cr.ReasoningTrace {
			fmt.Fprintf(out, "  %s\n", strings.TrimSpace(line))
		}
	}
}
