// Package subject loads the manifest of subject images shipped with a
// Panoptes subject set.
//
// A data directory holds manifest.csv and the image files it lists. Each
// manifest row names a file (column 4) and its magnification (column 3);
// every listed file must exist next to the manifest.
package subject
