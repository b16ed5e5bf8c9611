// Package metrics records Prometheus metrics for skim and process runs and
// writes them in the node_exporter textfile format, so a collector can pick
// up the counts of the last run without panoskim serving HTTP.
package metrics
