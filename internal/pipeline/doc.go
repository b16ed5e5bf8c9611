// Package pipeline runs panoskim's work as a sequence of steps.
//
// A skim job goes through SkimStep, WriteSkimStep, SummaryStep and, when
// enabled, HistoryStep and MetricsStep. A process job goes through DecodeStep,
// WriteScanStep and MetricsStep. Each step reads what earlier steps stored in
// the Job and stops the job on error.
//
// BatchProcessor fans process jobs out over subjects with errgroup and a
// concurrency limit. The skimmed annotations are read once before the batch,
// so the jobs only share read-only data.
package pipeline
