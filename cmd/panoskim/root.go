package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for panoskim.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "panoskim",
		Short: "Skim and process Panoptes classification exports",
		Long: `panoskim reads the classification export of a Panoptes (Zooniverse)
project, keeps the classifications of one workflow version and writes them as
flat per-subject tables for further analysis.

The skimmed classifications can then be processed per subject into feature
tables and feature-count histograms. Skim runs are recorded in a local
history database so that successive exports can be compared.

Classifier identities are masked in log output unless --show-identities is given.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .panoskim in current or home directory)")
	cmd.PersistentFlags().Bool("show-identities", false,
		"Do not mask user names and IP hashes in log output")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	// Add subcommands
	cmd.AddCommand(NewSkimCmd())
	cmd.AddCommand(NewLoadCmd())
	cmd.AddCommand(NewProcessCmd())
	cmd.AddCommand(NewSubjectsCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
