// Package main provides the entry point for the panoskim CLI.
//
// panoskim skims Panoptes classification exports of the MoEDAL NTD scanning
// workflow into per-subject tables, and turns the skimmed classifications of
// each subject into feature tables and histograms.
//
// Usage:
//
//	panoskim skim <export.csv> <outdir>
//	panoskim process <annotations.csv> <outdir> --all
//
// See --help for all available options.
package main

import "github.com/joho/godotenv"

// main is the entry point for panoskim.
func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load() //nolint:errcheck // optional
	Execute()
}
