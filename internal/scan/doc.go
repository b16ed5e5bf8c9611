// Package scan reads a skimmed annotations.csv and collects, per subject,
// the features classifiers marked on the scan image.
//
// Entries are selected by the subject suffix of their annotation id and
// decoded with the feature task of the scan workflow. The package produces
// the tables downstream plotting needs: a flat feature list and a
// histogram of features per classification.
package scan
