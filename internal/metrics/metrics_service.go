package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Service provides Prometheus metrics for the payment gateway client.
// It implements gateway.Metrics.
type Service struct {
	signaturesGeneratedTotal    prometheus.Counter
	signatureVerificationsTotal *prometheus.CounterVec

	apiRequestsTotal   *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec
	apiRetriesTotal    prometheus.Counter

	returnRedirectsTotal *prometheus.CounterVec
}

// NewService creates a new metrics service.
func NewService() *Service {
	return &Service{
		signaturesGeneratedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "paygate_signatures_generated_total",
				Help: "Total number of request signatures generated",
			},
		),
		signatureVerificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paygate_signature_verifications_total",
				Help: "Signature verifications by result (ok, fail)",
			},
			[]string{"result"},
		),
		apiRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paygate_api_requests_total",
				Help: "Gateway API requests by operation and status",
			},
			[]string{"operation", "status"},
		),
		apiRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "paygate_api_request_duration_seconds",
				Help:    "Gateway API request time in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		apiRetriesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "paygate_api_retries_total",
				Help: "Gateway API retry attempts",
			},
		),
		returnRedirectsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paygate_return_redirects_total",
				Help: "Customer return redirects by verification result",
			},
			[]string{"result"},
		),
	}
}

// RecordSignatureGenerated records a request signature generation.
func (s *Service) RecordSignatureGenerated() {
	s.signaturesGeneratedTotal.Inc()
}

// RecordSignatureVerification records a signature verification result.
func (s *Service) RecordSignatureVerification(result string) {
	s.signatureVerificationsTotal.WithLabelValues(result).Inc()
}

// RecordAPIRequest records a gateway API request.
func (s *Service) RecordAPIRequest(operation, status string) {
	s.apiRequestsTotal.WithLabelValues(operation, status).Inc()
}

// RecordAPIRequestDuration records gateway API request duration.
func (s *Service) RecordAPIRequestDuration(operation string, duration time.Duration) {
	s.apiRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRetry records a gateway API retry attempt.
func (s *Service) RecordRetry() {
	s.apiRetriesTotal.Inc()
}

// RecordReturnRedirect records a customer return redirect verification.
func (s *Service) RecordReturnRedirect(result string) {
	s.returnRedirectsTotal.WithLabelValues(result).Inc()
}
