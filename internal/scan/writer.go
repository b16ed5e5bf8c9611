package scan

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/nao1215/panoskim/internal/skim"
)

// Output file names inside "<out>/<subject>/data".
const (
	FeaturesFile  = "features.csv"
	HistogramFile = "histogram.csv"
)

// Files holds the paths of the tables written for one subject.
type Files struct {
	Features  string `json:"features" yaml:"features"`
	Histogram string `json:"histogram" yaml:"histogram"`
}

// WriteFeatureDetails writes the feature table sorted by annotation id,
// preceded by a header and a units row.
func (s *Scan) WriteFeatureDetails(w io.Writer) error {
	features := s.Features()
	slices.SortStableFunc(features, func(a, b FeatureRecord) int {
		return cmp.Compare(a.AnnotationID, b.AnnotationID)
	})

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("annotation_id,x,y,r\n,[pixels],[pixels],[pixels]\n"); err != nil {
		return err
	}
	for _, f := range features {
		if _, err := fmt.Fprintf(bw, "%s,%s,%s,%s\n", f.AnnotationID,
			formatPixels(f.X), formatPixels(f.Y), formatPixels(f.R)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteHistogram writes "features,classifications" rows for every bin.
func (s *Scan) WriteHistogram(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("features,classifications\n"); err != nil {
		return err
	}
	for n, count := range s.Histogram() {
		if _, err := bw.WriteString(strconv.Itoa(n) + "," + strconv.Itoa(count) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFiles writes both tables to "<outDir>/<subject>/data".
func (s *Scan) WriteFiles(outDir string) (Files, error) {
	dataDir := filepath.Join(outDir, s.subjectID, "data")
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return Files{}, fmt.Errorf("failed to create data directory: %w", err)
	}

	files := Files{
		Features:  filepath.Join(dataDir, FeaturesFile),
		Histogram: filepath.Join(dataDir, HistogramFile),
	}
	if err := skim.WriteFileAtomic(files.Features, s.WriteFeatureDetails); err != nil {
		return Files{}, err
	}
	if err := skim.WriteFileAtomic(files.Histogram, s.WriteHistogram); err != nil {
		return Files{}, err
	}
	return files, nil
}

func formatPixels(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
