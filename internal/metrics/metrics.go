package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventsbga_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventsbga_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	AvailabilityResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventsbga_availability_resolutions_total",
			Help: "Availability resolutions by answer source",
		},
		[]string{"source"},
	)

	AvailabilityCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventsbga_availability_cache_total",
			Help: "Availability cache lookups by result",
		},
		[]string{"result"},
	)

	DefaultsProvisionedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventsbga_availability_defaults_provisioned_total",
			Help: "Number of times the default weekly baseline was provisioned",
		},
	)

	SlotBlocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventsbga_slot_blocks_total",
			Help: "Block requests by outcome",
		},
		[]string{"outcome"},
	)

	EventTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventsbga_event_transitions_total",
			Help: "Event request status transitions",
		},
		[]string{"status"},
	)

	AttendanceConfirmationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventsbga_attendance_confirmations_total",
			Help: "Total number of attendance confirmations",
		},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventsbga_emails_sent_total",
			Help: "Total number of emails sent",
		},
		[]string{"type", "status"},
	)

	EmailQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventsbga_email_queue_length",
			Help: "Current length of email queue",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordResolution(source string) {
	AvailabilityResolutionsTotal.WithLabelValues(source).Inc()
}

func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	AvailabilityCacheTotal.WithLabelValues(result).Inc()
}

func RecordDefaultsProvisioned() {
	DefaultsProvisionedTotal.Inc()
}

func RecordBlock(alreadyBlocked bool) {
	outcome := "created"
	if alreadyBlocked {
		outcome = "existing"
	}
	SlotBlocksTotal.WithLabelValues(outcome).Inc()
}

func RecordEventTransition(status string) {
	EventTransitionsTotal.WithLabelValues(status).Inc()
}

func RecordAttendance() {
	AttendanceConfirmationsTotal.Inc()
}

func RecordEmail(emailType, status string) {
	EmailsSentTotal.WithLabelValues(emailType, status).Inc()
}

func SetEmailQueueLength(n int64) {
	EmailQueueLength.Set(float64(n))
}
