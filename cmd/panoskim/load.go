package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/nao1215/panoskim/internal/classification"
	"github.com/nao1215/panoskim/internal/config"
	"github.com/nao1215/panoskim/internal/model"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// NewLoadCmd creates the load command.
func NewLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <export.csv>",
		Short: "Load and summarize the classifications of one workflow",
		Long: `Load parses a line-per-classification export into typed records and
summarizes the classifications of one workflow id and version.

Every row is decoded with the task schema declared for its workflow; a
malformed row or an unsupported workflow aborts the load. Workflows are
declared in the configuration file (see panoskim init).

Examples:
  # Summarize workflow 27, version 9.14
  panoskim load moedal-classifications.csv

  # Another workflow version, per-subject counts as JSON
  panoskim load --workflow 27 -w 9.15 --json moedal-classifications.csv`,
		Args: cobra.ExactArgs(1),
		RunE: runLoadCmd,
	}

	cmd.Flags().Int("workflow", config.DefaultWorkflowID, "Workflow id")
	cmd.Flags().StringP("workflow-version", "w", config.DefaultWorkflowVersion,
		"Workflow version (major.minor)")
	cmd.Flags().Bool("strict", false, "Validate annotation payloads against the payload schema")
	cmd.Flags().Bool("subjects", false, "List the classification count of every subject")
	cmd.Flags().BoolP("json", "j", false, "Output the summary as JSON")

	return cmd
}

// loadSummary is the JSON form of a loaded classification set.
type loadSummary struct {
	Workflow        int            `json:"workflow_id"`
	WorkflowVersion string         `json:"workflow_version"`
	Header          string         `json:"header"`
	Classifications int            `json:"classifications"`
	Skipped         int            `json:"skipped"`
	Subjects        int            `json:"subjects"`
	Features        int            `json:"features"`
	Unusual         map[string]int `json:"unusual"`
	SubjectCounts   map[string]int `json:"subject_counts,omitempty"`
}

// buildLoadConfig creates the load configuration from flags.
func buildLoadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("workflow") {
		cfg.WorkflowID, err = cmd.Flags().GetInt("workflow")
		if err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("workflow-version") {
		cfg.WorkflowVersion, err = cmd.Flags().GetString("workflow-version")
		if err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("strict") {
		cfg.StrictPayloads, err = cmd.Flags().GetBool("strict")
		if err != nil {
			return nil, err
		}
	}
	// load keeps no history
	cfg.SaveToDB = false

	return cfg, nil
}

// runLoadCmd executes the load command.
func runLoadCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildLoadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	spec, err := cfg.WorkflowSpec()
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogger(cmd, cfg, "")
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signalContext(cmd)
	defer stop()

	set, err := classification.LoadSet(ctx, args[0], spec,
		classification.WithSchemas(cfg.Workflows),
		classification.WithStrictPayloads(cfg.StrictPayloads),
		classification.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	listSubjects, err := cmd.Flags().GetBool("subjects")
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	summary := newLoadSummary(set, spec, listSubjects)
	if asJSON {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(summary)
	}
	writeLoadSummary(cmd.OutOrStdout(), set, summary)
	return nil
}

// newLoadSummary summarizes set.
func newLoadSummary(set *classification.Set, spec model.WorkflowSpec, withSubjects bool) loadSummary {
	unusual := make(map[string]int)
	for answer, n := range set.UnusualCounts() {
		unusual[answer.String()] = n
	}

	s := loadSummary{
		Workflow:        spec.ID,
		WorkflowVersion: spec.Version(),
		Header:          set.Header(),
		Classifications: set.Len(),
		Skipped:         set.Skipped(),
		Subjects:        set.NumberOfSubjects(),
		Features:        set.NumberOfFeatures(),
		Unusual:         unusual,
	}
	if withSubjects {
		s.SubjectCounts = set.SubjectCounts()
	}
	return s
}

// writeLoadSummary writes the text form of summary.
func writeLoadSummary(w io.Writer, set *classification.Set, summary loadSummary) {
	p := message.NewPrinter(language.English)

	p.Fprintf(w, "Workflow:        %s\n", set.Target())
	p.Fprintf(w, "Classifications: %d\n", summary.Classifications)
	p.Fprintf(w, "Skipped:         %d (other workflows)\n", summary.Skipped)
	p.Fprintf(w, "Subjects:        %d\n", summary.Subjects)
	p.Fprintf(w, "Features:        %d\n", summary.Features)
	for _, answer := range []model.Unusual{model.UnusualYes, model.UnusualNo, model.UnusualUnknown} {
		if n, ok := summary.Unusual[answer.String()]; ok {
			p.Fprintf(w, "  %-14s %d\n", answer.String()+":", n)
		}
	}

	if summary.SubjectCounts == nil {
		return
	}
	fmt.Fprintln(w)
	for _, id := range set.SubjectIDs() {
		p.Fprintf(w, "  %-24s %d\n", id, summary.SubjectCounts[id])
	}
}
