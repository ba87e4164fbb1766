package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valter-silva-au/lmay/pkg/models"
)

// RunMetrics holds the Prometheus metrics of a single lmay run. Each run
// gets its own registry so the textfile only ever describes that run.
type RunMetrics struct {
	registry *prometheus.Registry

	FindingsTotal      *prometheus.CounterVec
	Documents          prometheus.Gauge
	ValidationDuration prometheus.Gauge
	DriftDocuments     *prometheus.GaugeVec
}

// NewRunMetrics creates and registers the run metrics.
func NewRunMetrics() *RunMetrics {
	m := &RunMetrics{registry: prometheus.NewRegistry()}

	m.FindingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmay_findings_total",
			Help: "Number of validation findings",
		},
		[]string{"validator", "severity"},
	)
	m.Documents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lmay_documents",
			Help: "Number of documentation files validated",
		},
	)
	m.ValidationDuration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lmay_validation_duration_seconds",
			Help: "Wall time of the validation run in seconds",
		},
	)
	m.DriftDocuments = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lmay_drift_documents",
			Help: "Number of documents per drift classification",
		},
		[]string{"status"},
	)

	m.registry.MustRegister(m.FindingsTotal, m.Documents, m.ValidationDuration, m.DriftDocuments)
	return m
}

// Registry returns the registry holding the run metrics.
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveValidation records a validation result. Every validator in the
// summary gets a series, even with zero findings.
func (m *RunMetrics) ObserveValidation(res *models.ValidationResult, duration time.Duration) {
	for validator, c := range res.Summary.PerValidator {
		m.FindingsTotal.WithLabelValues(validator, string(models.SeverityError)).Add(float64(c.Errors))
		m.FindingsTotal.WithLabelValues(validator, string(models.SeverityWarning)).Add(float64(c.Warnings))
	}
	m.Documents.Set(float64(res.Documents))
	m.ValidationDuration.Set(duration.Seconds())
}

// ObserveDrift records an obsolescence report.
func (m *RunMetrics) ObserveDrift(report *models.ObsolescenceReport) {
	m.DriftDocuments.WithLabelValues(string(models.VerdictValid)).Set(float64(len(report.Valid)))
	m.DriftDocuments.WithLabelValues(string(models.VerdictOutdated)).Set(float64(len(report.Outdated)))
	m.DriftDocuments.WithLabelValues(string(models.VerdictObsolete)).Set(float64(len(report.Obsolete)))
}

// WriteTextfile writes the metrics in the text exposition format, for the
// node exporter textfile collector.
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
