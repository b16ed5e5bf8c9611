package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/panoskim/internal/config"
	"github.com/nao1215/panoskim/internal/database"
	"github.com/spf13/cobra"
)

// Constants for history output.
const (
	historyTimeFormat = "2006-01-02 15:04:05"
	shortIDLength     = 8
	defaultListLimit  = 20
)

// errTooFewRuns is returned by compare without arguments when the history
// holds fewer than two runs.
var errTooFewRuns = errors.New("at least two skim runs are needed for a comparison")

// NewHistoryCmd creates the history command.
// This command shows and compares skim runs stored in the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List and compare recorded skim runs",
		Long: `History shows the skim runs recorded in the history database.

Every skim run stores its row counts, identity-class counts and per-subject
totals. Runs are identified by an id; any unique prefix of an id is accepted.

Examples:
  # List the most recent runs
  panoskim history

  # Show one run with its subject counts
  panoskim history show 3f2a9c1e

  # Compare the two most recent runs
  panoskim history compare

  # Compare two specific runs
  panoskim history compare 3f2a9c1e 7b0d4e22

  # Remove runs older than 90 days
  panoskim history prune --older-than 2160h`,
		Args: cobra.NoArgs,
		RunE: runHistoryListCmd,
	}

	cmd.PersistentFlags().String("db-dir", "", "History database directory (default: XDG data directory)")
	cmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	cmd.Flags().IntP("limit", "n", defaultListLimit, "Maximum number of runs to list (0 for all)")

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryCompareCmd())
	cmd.AddCommand(newHistoryPruneCmd())

	return cmd
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded skim runs, newest first",
		Args:  cobra.NoArgs,
		RunE:  runHistoryListCmd,
	}
	cmd.Flags().IntP("limit", "n", defaultListLimit, "Maximum number of runs to list (0 for all)")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one skim run with its subject counts",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShowCmd,
	}
}

func newHistoryCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare [previous-run-id current-run-id]",
		Short: "Compare the subject counts of two skim runs",
		Long: `Compare shows how the classification counts changed between two runs.
Without arguments the two most recent runs are compared.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("accepts 0 or 2 run ids, received %d", len(args))
			}
			return nil
		},
		RunE: runHistoryCompareCmd,
	}
}

func newHistoryPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete skim runs older than a given age",
		Args:  cobra.NoArgs,
		RunE:  runHistoryPruneCmd,
	}
	cmd.Flags().Duration("older-than", 0, "Delete runs recorded longer ago than this duration (e.g. 720h)")
	_ = cmd.MarkFlagRequired("older-than") //nolint:errcheck // flag is defined above
	return cmd
}

// openHistory opens the history database selected by the config and --db-dir.
func openHistory(cmd *cobra.Command) (*database.HistoryDB, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := applyDBDirFlag(cmd, cfg); err != nil {
		return nil, err
	}
	if cfg.DBDir == "" {
		return nil, fmt.Errorf("configuration error: %w", config.ErrNoDBDir)
	}

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// getHistoryContext returns the command context or a background context.
func getHistoryContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// runHistoryListCmd lists the most recent runs.
func runHistoryListCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(getHistoryContext(cmd), limit)
	if err != nil {
		return err
	}

	if getBoolFlag(cmd, "json") {
		return writeJSON(cmd.OutOrStdout(), runs)
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No skim runs found in the database.")
		fmt.Fprintln(out, "\nUse 'panoskim skim <export.csv> <outdir>' to record a run.")
		return nil
	}

	fmt.Fprintf(out, "Skim runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-8s  %-19s  %-7s  %8s  %8s  %s\n", "ID", "Date", "Version", "Kept", "Filtered", "Input")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 76))
	for _, run := range runs {
		fmt.Fprintf(out, "  %-8s  %-19s  %-7s  %8d  %8d  %s\n",
			shortID(run.ID),
			run.Timestamp.Local().Format(historyTimeFormat),
			run.WorkflowVersion,
			run.Kept,
			run.Filtered,
			run.InputPath,
		)
	}
	fmt.Fprintln(out, "\nUse 'panoskim history show <id>' to see the subject counts of a run.")
	return nil
}

// runHistoryShowCmd shows one run.
func runHistoryShowCmd(cmd *cobra.Command, args []string) error {
	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := resolveRun(getHistoryContext(cmd), db, args[0])
	if err != nil {
		return err
	}

	if getBoolFlag(cmd, "json") {
		return writeJSON(cmd.OutOrStdout(), run)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s\n", run.ID)
	fmt.Fprintf(out, "  Date:             %s\n", run.Timestamp.Local().Format(historyTimeFormat))
	fmt.Fprintf(out, "  Input:            %s\n", run.InputPath)
	fmt.Fprintf(out, "  Workflow version: %s (layout %s)\n", run.WorkflowVersion, run.Layout)
	fmt.Fprintf(out, "  Rows read:        %d\n", run.Rows)
	fmt.Fprintf(out, "  Kept:             %d\n", run.Kept)
	fmt.Fprintf(out, "  Filtered:         %d\n", run.Filtered)
	fmt.Fprintf(out, "  Logged on:        %d users, %d classifications\n", run.UniqueLoggedOn, run.TotalLoggedOn)
	fmt.Fprintf(out, "  Not logged on:    %d users, %d classifications\n", run.UniqueNonLoggedOn, run.TotalNonLoggedOn)
	fmt.Fprintf(out, "\nSubjects (%d):\n", run.NumberOfSubjects())
	for _, s := range run.Subjects {
		fmt.Fprintf(out, "  %-24s %6d  (logged on %d, not logged on %d)\n",
			s.SubjectID, s.Total, s.LoggedOn, s.NonLoggedOn)
	}
	return nil
}

// runHistoryCompareCmd compares two runs.
func runHistoryCompareCmd(cmd *cobra.Command, args []string) error {
	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := getHistoryContext(cmd)

	var previous, current *database.Run
	if len(args) == 2 {
		if previous, err = resolveRun(ctx, db, args[0]); err != nil {
			return err
		}
		if current, err = resolveRun(ctx, db, args[1]); err != nil {
			return err
		}
	} else {
		runs, err := db.ListRuns(ctx, 2)
		if err != nil {
			return err
		}
		if len(runs) < 2 {
			return errTooFewRuns
		}
		// ListRuns omits subject counts.
		if current, err = resolveRun(ctx, db, runs[0].ID); err != nil {
			return err
		}
		if previous, err = resolveRun(ctx, db, runs[1].ID); err != nil {
			return err
		}
	}

	comparison := database.CompareRuns(previous, current)
	if getBoolFlag(cmd, "json") {
		return writeJSON(cmd.OutOrStdout(), comparisonJSON{
			Comparison:       comparison,
			KeptDelta:        comparison.KeptDelta(),
			UniqueUsersDelta: comparison.UniqueUsersDelta(),
		})
	}
	writeComparison(cmd.OutOrStdout(), comparison)
	return nil
}

// comparisonJSON adds the computed deltas to the JSON form of a comparison.
type comparisonJSON struct {
	*database.Comparison
	KeptDelta        int `json:"kept_delta"`
	UniqueUsersDelta int `json:"unique_users_delta"`
}

// writeComparison writes the text form of c.
func writeComparison(out io.Writer, c *database.Comparison) {
	fmt.Fprintln(out, "Comparing skim runs")
	fmt.Fprintf(out, "  previous: %s  %s  kept %d\n",
		shortID(c.Previous.ID), c.Previous.Timestamp.Local().Format(historyTimeFormat), c.Previous.Kept)
	fmt.Fprintf(out, "  current:  %s  %s  kept %d\n\n",
		shortID(c.Current.ID), c.Current.Timestamp.Local().Format(historyTimeFormat), c.Current.Kept)

	fmt.Fprintf(out, "Kept classifications: %+d\n", c.KeptDelta())
	fmt.Fprintf(out, "Unique users:         %+d\n\n", c.UniqueUsersDelta())

	if !c.HasChanges() {
		fmt.Fprintln(out, "No subject counts changed.")
		return
	}

	if len(c.Added) > 0 {
		fmt.Fprintf(out, "New subjects (%d): %s\n", len(c.Added), strings.Join(c.Added, ", "))
	}
	if len(c.Removed) > 0 {
		fmt.Fprintf(out, "Removed subjects (%d): %s\n", len(c.Removed), strings.Join(c.Removed, ", "))
	}

	fmt.Fprintf(out, "\nChanged subjects (%d):\n", len(c.Changed))
	for _, d := range c.Changed {
		fmt.Fprintf(out, "  %-24s %6d -> %6d  (%+d)\n", d.SubjectID, d.Previous.Total, d.Current.Total, d.Delta())
	}
}

// runHistoryPruneCmd deletes old runs.
func runHistoryPruneCmd(cmd *cobra.Command, _ []string) error {
	olderThan, err := cmd.Flags().GetDuration("older-than")
	if err != nil {
		return err
	}
	if olderThan <= 0 {
		return errors.New("--older-than must be a positive duration")
	}

	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	deleted, err := db.DeleteRunsBefore(getHistoryContext(cmd), time.Now().Add(-olderThan))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d skim run(s)\n", deleted)
	return nil
}

// resolveRun loads the run whose id starts with prefix.
func resolveRun(ctx context.Context, db *database.HistoryDB, prefix string) (*database.Run, error) {
	id, err := db.ResolveRunID(ctx, prefix)
	if err != nil {
		return nil, err
	}
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("%w: %s", database.ErrRunNotFound, id)
	}
	return run, nil
}

// shortID returns the leading characters of a run id.
func shortID(id string) string {
	if len(id) > shortIDLength {
		return id[:shortIDLength]
	}
	return id
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
