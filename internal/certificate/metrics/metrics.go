package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the certificate module: issuance
// volume, finalization volume, and verification verdict breakdowns.
type Metrics struct {
	DraftsCreated        prometheus.Counter
	CertificatesAnchored prometheus.Counter
	VerificationVerdicts *prometheus.CounterVec
	IssuanceDuration     prometheus.Histogram
	VerifyDuration       prometheus.Histogram
}

// New creates a Metrics instance with all certificate metrics
// registered on the default registry.
func New() *Metrics {
	return &Metrics{
		DraftsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certledger_drafts_created_total",
			Help: "Total number of certificate drafts created",
		}),
		CertificatesAnchored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certledger_certificates_anchored_total",
			Help: "Total number of certificates finalized with an anchor reference",
		}),
		VerificationVerdicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_verification_verdicts_total",
			Help: "Verification verdicts by outcome reason",
		}, []string{"reason"}),
		IssuanceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "certledger_issuance_duration_seconds",
			Help:    "Duration of RequestIssuance operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		VerifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "certledger_verify_duration_seconds",
			Help:    "Duration of Verify operations including the anchor lookup",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// IncrementDraftsCreated records a successful draft creation.
func (m *Metrics) IncrementDraftsCreated() {
	m.DraftsCreated.Inc()
}

// IncrementAnchored records a successful finalization.
func (m *Metrics) IncrementAnchored() {
	m.CertificatesAnchored.Inc()
}

// ObserveVerdict records a verification outcome. Pass "valid" for
// positive verdicts, otherwise the verdict reason.
func (m *Metrics) ObserveVerdict(reason string) {
	m.VerificationVerdicts.WithLabelValues(reason).Inc()
}

// ObserveIssuance records the duration of a RequestIssuance operation.
func (m *Metrics) ObserveIssuance(start time.Time) {
	m.IssuanceDuration.Observe(time.Since(start).Seconds())
}

// ObserveVerify records the duration of a Verify operation.
func (m *Metrics) ObserveVerify(start time.Time) {
	m.VerifyDuration.Observe(time.Since(start).Seconds())
}
