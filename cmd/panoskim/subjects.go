package main

import (
	"encoding/json"
	"fmt"

	"github.com/nao1215/panoskim/internal/subject"
	"github.com/spf13/cobra"
)

// NewSubjectsCmd creates the subjects command.
func NewSubjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subjects <datadir>",
		Short: "List the subjects of a data directory",
		Long: `Subjects reads <datadir>/manifest.csv and lists the subject images it
declares with their magnification.

Examples:
  panoskim subjects ./data
  panoskim subjects --json ./data`,
		Args: cobra.ExactArgs(1),
		RunE: runSubjectsCmd,
	}

	cmd.Flags().BoolP("json", "j", false, "Output the subjects as JSON")

	return cmd
}

// runSubjectsCmd executes the subjects command.
func runSubjectsCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := setupLogger(cmd, cfg, "")
	if err != nil {
		return err
	}
	defer closeLog()

	registry, err := subject.LoadRegistry(args[0], logger)
	if err != nil {
		return err
	}

	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	if asJSON {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(registry.Subjects())
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d subject(s) in %s\n\n", registry.Len(), registry.Dir())
	fmt.Fprintf(out, "%-32s %s\n", "Filename", "Magnification")
	for _, s := range registry.Subjects() {
		fmt.Fprintf(out, "%-32s %s\n", s.Filename, s.Magnification)
	}
	return nil
}
