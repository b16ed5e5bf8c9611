package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nao1215/panoskim/internal/scan"
	"github.com/nao1215/panoskim/internal/skim"
)

// Label values of the identity class label.
const (
	ClassLoggedOn    = "logged_on"
	ClassNonLoggedOn = "non_logged_on"
)

// Recorder holds the metrics of one panoskim invocation.
type Recorder struct {
	namespace      string
	constLabels    map[string]string
	featureBuckets []float64
	registry       *prometheus.Registry

	// Skim metrics
	rowsRead        prometheus.Counter
	rowsFiltered    prometheus.Counter
	classifications *prometheus.CounterVec
	uniqueUsers     *prometheus.GaugeVec
	subjects        prometheus.Gauge
	skimDuration    prometheus.Histogram
	lastSkim        prometheus.Gauge

	// Process metrics
	subjectsProcessed  prometheus.Counter
	annotationsDecoded prometheus.Counter
	featuresMarked     prometheus.Counter
	featuresPerClass   prometheus.Histogram
	unusualAnswers     *prometheus.CounterVec
}

// NewRecorder creates a Recorder on a fresh registry unless WithRegistry is given.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		namespace:      "panoskim",
		constLabels:    map[string]string{},
		featureBuckets: prometheus.LinearBuckets(0, 1, 11),
		registry:       prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.initializeMetrics()
	return r
}

// initializeMetrics creates and registers every metric.
func (r *Recorder) initializeMetrics() {
	auto := promauto.With(r.registry)
	labels := prometheus.Labels(r.constLabels)

	r.rowsRead = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   r.namespace,
		Subsystem:   "skim",
		Name:        "rows_read_total",
		Help:        "Data rows read from the export",
		ConstLabels: labels,
	})
	r.rowsFiltered = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   r.namespace,
		Subsystem:   "skim",
		Name:        "rows_filtered_total",
		Help:        "Rows dropped for another workflow version",
		ConstLabels: labels,
	})
	r.classifications = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   r.namespace,
		Subsystem:   "skim",
		Name:        "classifications_total",
		Help:        "Kept classifications by identity class",
		ConstLabels: labels,
	}, []string{"class"})
	r.uniqueUsers = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   r.namespace,
		Subsystem:   "skim",
		Name:        "unique_users",
		Help:        "Distinct identities by identity class in the last run",
		ConstLabels: labels,
	}, []string{"class"})
	r.subjects = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   r.namespace,
		Subsystem:   "skim",
		Name:        "subjects",
		Help:        "Distinct subjects classified in the last run",
		ConstLabels: labels,
	})
	r.skimDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   r.namespace,
		Subsystem:   "skim",
		Name:        "duration_seconds",
		Help:        "Wall time of skim runs",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: labels,
	})
	r.lastSkim = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   r.namespace,
		Subsystem:   "skim",
		Name:        "last_run_timestamp_seconds",
		Help:        "Unix time the last skim run finished",
		ConstLabels: labels,
	})

	r.subjectsProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   r.namespace,
		Subsystem:   "process",
		Name:        "subjects_total",
		Help:        "Subjects whose classifications were processed",
		ConstLabels: labels,
	})
	r.annotationsDecoded = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   r.namespace,
		Subsystem:   "process",
		Name:        "annotations_total",
		Help:        "Annotations decoded",
		ConstLabels: labels,
	})
	r.featuresMarked = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   r.namespace,
		Subsystem:   "process",
		Name:        "features_total",
		Help:        "Features marked across all decoded annotations",
		ConstLabels: labels,
	})
	r.featuresPerClass = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   r.namespace,
		Subsystem:   "process",
		Name:        "features_per_classification",
		Help:        "Number of features marked per classification",
		Buckets:     r.featureBuckets,
		ConstLabels: labels,
	})
	r.unusualAnswers = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   r.namespace,
		Subsystem:   "process",
		Name:        "unusual_answers_total",
		Help:        "Classifications by answer to the unusual question",
		ConstLabels: labels,
	}, []string{"answer"})
}

// Registry returns the registry the metrics are registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveSkim records a finished skim run.
func (r *Recorder) ObserveSkim(result *skim.Result, elapsed time.Duration) {
	r.rowsRead.Add(float64(result.Rows))
	r.rowsFiltered.Add(float64(result.Filtered))
	r.classifications.WithLabelValues(ClassLoggedOn).Add(float64(result.TotalLoggedOn))
	r.classifications.WithLabelValues(ClassNonLoggedOn).Add(float64(result.TotalNonLoggedOn))
	r.uniqueUsers.WithLabelValues(ClassLoggedOn).Set(float64(result.UniqueLoggedOn))
	r.uniqueUsers.WithLabelValues(ClassNonLoggedOn).Set(float64(result.UniqueNonLoggedOn))
	r.subjects.Set(float64(result.NumberOfSubjects()))
	r.skimDuration.Observe(elapsed.Seconds())
	r.lastSkim.SetToCurrentTime()
}

// ObserveScan records the processed classifications of one subject.
// It is safe for concurrent use.
func (r *Recorder) ObserveScan(s *scan.Scan) {
	r.subjectsProcessed.Inc()
	r.annotationsDecoded.Add(float64(s.NumberOfAnnotations()))
	for _, n := range s.FeatureCounts() {
		r.featuresMarked.Add(float64(n))
		r.featuresPerClass.Observe(float64(n))
	}
	for answer, n := range s.UnusualCounts() {
		r.unusualAnswers.WithLabelValues(answer.String()).Add(float64(n))
	}
}

// WriteTextfile writes every metric to path in the text exposition format.
// The file is written to a temporary file and renamed.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
