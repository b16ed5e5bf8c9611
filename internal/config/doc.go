// Package config provides configuration structures and utilities for panoskim.
// It defines the workflow to skim, the task schemas of supported workflows,
// report and metrics destinations, and the run-history database location.
//
// Values come from, in increasing precedence: NewConfig defaults, the
// optional .panoskim YAML file, PANOSKIM_* environment variables and CLI
// flags.
package config
