package skim

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/nao1215/panoskim/internal/model"
)

// Run skims the export at path, keeping rows of workflowVersion.
// The whole file is read before the Result is returned; any row error
// aborts the run.
func Run(ctx context.Context, path, workflowVersion string, opts ...Option) (*Result, error) {
	f, err := os.Open(path) //nolint:gosec // path is provided by the user
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", model.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()

	return Read(ctx, f, workflowVersion, opts...)
}

// Read skims an export read from r. The first record is the header.
func Read(ctx context.Context, r io.Reader, workflowVersion string, opts ...Option) (*Result, error) {
	s := newSettings(opts)
	acc := NewAccumulator(workflowVersion, opts...)

	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1
	// Free-text columns carry unescaped quotes.
	reader.LazyQuotes = true

	var header []string
	first := true
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, model.AtLine(model.Malformed("row", "%v", pe.Err), pe.StartLine)
			}
			return nil, fmt.Errorf("failed to read export: %w", err)
		}

		if first {
			header = row
			first = false
			continue
		}

		line, _ := reader.FieldPos(0)
		if _, err := acc.Add(row, line); err != nil {
			return nil, err
		}
	}

	for i, name := range header {
		s.logger.Debug("header", "index", i, "field", name)
	}

	result := acc.Result()
	result.Header = header

	s.logger.Info("skim finished",
		"workflow_version", workflowVersion,
		"rows", result.Rows,
		"kept", len(result.Annotations),
		"filtered", result.Filtered,
		"subjects", result.NumberOfSubjects(),
		"unique_logged_on_users", result.UniqueLoggedOn,
		"unique_non_logged_on_users", result.UniqueNonLoggedOn,
	)
	return result, nil
}
