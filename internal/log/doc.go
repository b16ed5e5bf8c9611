// Package log provides the slog setup of panoskim with automatic masking of
// classifier identities.
//
// Classification exports carry user names and hashed IP addresses. Records
// passed through a MaskingHandler have these values replaced before they
// reach the underlying handler:
//   - attributes keyed user_name, user_ip, identity, user or ip
//   - the identity part of annotation ids ("***:1459504800-00000_00_00")
//   - any string value that looks like an IP hash (32+ hex digits)
//
// Masking can be turned off with Options.ShowIdentities for debugging a
// local export.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, log.Options{Level: slog.LevelInfo})
//	logger.Info("kept classification", "annotation_id", id)
//
// Tee fans one record out to several handlers, which the CLI uses to write
// warnings to stderr and the full run log into the output directory.
package log
