package subject

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nao1215/panoskim/internal/model"
)

// ManifestFile is the manifest's name inside a data directory.
const ManifestFile = "manifest.csv"

// Manifest column indices.
const (
	magnificationColumn = 3
	filenameColumn      = 4
)

// Subject is one manifest entry.
type Subject struct {
	// Filename is the image file name, relative to the data directory.
	Filename string `json:"filename" yaml:"filename" validate:"required,excludesall=/\\"`

	// Magnification is the microscope magnification the image was taken at.
	Magnification string `json:"magnification" yaml:"magnification" validate:"required"`
}

// Registry is the set of subjects of one data directory, keyed by filename.
type Registry struct {
	dir      string
	subjects []Subject
	index    map[string]int
}

// LoadRegistry reads dataDir/manifest.csv. The header row is skipped.
func LoadRegistry(dataDir string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	path := filepath.Join(dataDir, ManifestFile)
	f, err := os.Open(path) //nolint:gosec // path is built from the user's data directory
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no manifest in %s", model.ErrFileNotFound, dataDir)
		}
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	validate := validator.New()
	r := &Registry{
		dir:   dataDir,
		index: make(map[string]int),
	}

	for first := true; ; first = false {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, model.AtLine(model.Malformed("manifest", "%v", pe.Err), pe.StartLine)
			}
			return nil, fmt.Errorf("failed to read manifest: %w", err)
		}
		if first {
			continue
		}

		line, _ := reader.FieldPos(0)
		if len(row) <= filenameColumn {
			return nil, model.AtLine(model.Malformed("manifest", "%d columns, need %d", len(row), filenameColumn+1), line)
		}

		s := Subject{
			Filename:      strings.TrimSpace(row[filenameColumn]),
			Magnification: strings.TrimSpace(row[magnificationColumn]),
		}
		if err := validate.Struct(s); err != nil {
			return nil, model.AtLine(model.Malformed("manifest", "%v", err), line)
		}
		if _, ok := r.index[s.Filename]; ok {
			return nil, model.AtLine(model.Malformed("filename", "%s listed twice", s.Filename), line)
		}

		if _, err := os.Stat(filepath.Join(dataDir, s.Filename)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: subject %s not found in %s", model.ErrFileNotFound, s.Filename, dataDir)
			}
			return nil, fmt.Errorf("failed to stat subject %s: %w", s.Filename, err)
		}

		logger.Debug("subject loaded", "filename", s.Filename, "magnification", s.Magnification)
		r.index[s.Filename] = len(r.subjects)
		r.subjects = append(r.subjects, s)
	}

	return r, nil
}

// Dir returns the data directory.
func (r *Registry) Dir() string { return r.dir }

// Len returns the number of subjects.
func (r *Registry) Len() int { return len(r.subjects) }

// Subjects returns the subjects in manifest order.
func (r *Registry) Subjects() []Subject {
	return append([]Subject(nil), r.subjects...)
}

// Get returns the subject with the given filename.
func (r *Registry) Get(filename string) (Subject, bool) {
	i, ok := r.index[filename]
	if !ok {
		return Subject{}, false
	}
	return r.subjects[i], true
}

// Path returns the subject image's path.
func (r *Registry) Path(s Subject) string {
	return filepath.Join(r.dir, s.Filename)
}
