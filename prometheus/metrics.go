package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Counter metrics
var (
	// LoginCounter counts login attempts by provider and result
	LoginCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_login_total",
			Help: "Total number of login attempts",
		},
		[]string{"provider", "result"}, // provider: credentials, google; result: success, failure, pending
	)

	// AuthErrorCounter counts authentication errors
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // type can be "invalid_token", "forbidden", "db_error" etc.
	)

	// OTPRequestCounter counts calls to the OTP provider
	OTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_otp_requests_total",
			Help: "Total number of OTP provider requests",
		},
		[]string{"op", "result"}, // op: send, verify
	)

	// ImportRowCounter counts bulk import rows by outcome
	ImportRowCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_import_rows_total",
			Help: "Total number of imported rows by outcome",
		},
		[]string{"entity", "outcome"}, // outcome: imported, updated, error
	)

	// EntityOperationCounter counts CRM record mutations
	EntityOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_entity_operations_total",
			Help: "Total number of CRM entity operations",
		},
		[]string{"entity", "operation"},
	)

	// EventPublishCounter counts activity events sent to the broker
	EventPublishCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_events_published_total",
			Help: "Total number of published activity events",
		},
		[]string{"result"},
	)
)

// Histogram metrics
var (
	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)
)

// Gauge metrics
var (
	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crm_info",
			Help: "Information about the CRM service",
		},
		[]string{"version"},
	)
)

func init() {
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(OTPRequestCounter)
	prometheus.MustRegister(ImportRowCounter)
	prometheus.MustRegister(EntityOperationCounter)
	prometheus.MustRegister(EventPublishCounter)

	prometheus.MustRegister(DBOperationDuration)

	prometheus.MustRegister(InfoGauge)

	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// RecordLogin records a login attempt
func RecordLogin(provider, result string) {
	LoginCounter.With(prometheus.Labels{"provider": provider, "result": result}).Inc()
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordOTPRequest records an OTP provider call
func RecordOTPRequest(op, result string) {
	OTPRequestCounter.With(prometheus.Labels{"op": op, "result": result}).Inc()
}

// RecordImportRow records the outcome of a single import row
func RecordImportRow(entity, outcome string) {
	ImportRowCounter.With(prometheus.Labels{"entity": entity, "outcome": outcome}).Inc()
}

// RecordEntityOperation records a create, update or delete of a CRM record
func RecordEntityOperation(entity, operation string) {
	EntityOperationCounter.With(prometheus.Labels{"entity": entity, "operation": operation}).Inc()
}

// RecordEventPublish records an activity event publish result
func RecordEventPublish(result string) {
	EventPublishCounter.With(prometheus.Labels{"result": result}).Inc()
}
