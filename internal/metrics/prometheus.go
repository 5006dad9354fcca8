package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the observation collector
type Metrics struct {
	// UDP datagram metrics
	DatagramsReceived prometheus.Counter
	RecordsApplied    prometheus.Counter
	MalformedRecords  prometheus.Counter
	QueueSize         prometheus.Gauge

	// Session metrics
	OpenSessions     prometheus.Gauge
	SessionsOpened   prometheus.Counter
	SessionsClosed   prometheus.Counter
	SessionsTimedOut prometheus.Counter
	SessionDuration  prometheus.Histogram
	SessionLossRatio prometheus.Histogram

	// Fragment observation metrics
	FragmentsObserved prometheus.Counter
	OrphanFragments   prometheus.Counter
	FragmentRSSI      prometheus.Histogram
	FragmentSNR       prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// UDP datagram metrics
		DatagramsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lora_datagrams_received_total",
			Help: "Total number of UDP datagrams received from receiver nodes",
		}),
		RecordsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lora_records_applied_total",
			Help: "Total number of observation records applied",
		}),
		MalformedRecords: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lora_malformed_records_total",
			Help: "Total number of malformed observation records skipped",
		}),
		QueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lora_record_queue_size",
			Help: "Current number of records in the processing queue",
		}),

		// Session metrics
		OpenSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lora_open_sessions",
			Help: "Current number of sessions started but not yet closed",
		}),
		SessionsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lora_sessions_opened_total",
			Help: "Total number of transfer sessions opened",
		}),
		SessionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lora_sessions_closed_total",
			Help: "Total number of transfer sessions closed",
		}),
		SessionsTimedOut: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lora_sessions_timed_out_total",
			Help: "Total number of transfer sessions that timed out",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lora_session_duration_seconds",
			Help:    "Duration of completed transfer sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),
		SessionLossRatio: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lora_session_loss_ratio",
			Help:    "Fraction of expected fragments lost per session",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0.0 to 1.0
		}),

		// Fragment observation metrics
		FragmentsObserved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lora_fragments_observed_total",
			Help: "Total number of fragment observations received",
		}),
		OrphanFragments: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lora_orphan_fragments_total",
			Help: "Total number of fragments observed for unknown sessions",
		}),
		FragmentRSSI: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lora_fragment_rssi_dbm",
			Help:    "RSSI of observed fragments in dBm",
			Buckets: prometheus.LinearBuckets(-140, 10, 14), // -140 to -10 dBm
		}),
		FragmentSNR: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lora_fragment_snr_db",
			Help:    "SNR of observed fragments in dB",
			Buckets: prometheus.LinearBuckets(-20, 4, 11), // -20 to +20 dB
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lora_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lora_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lora_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordDatagramReceived increments the datagrams received counter
func (m *Metrics) RecordDatagramReceived() {
	m.DatagramsReceived.Inc()
}

// RecordRecordApplied increments the records applied counter
func (m *Metrics) RecordRecordApplied() {
	m.RecordsApplied.Inc()
}

// RecordMalformedRecord increments the malformed records counter
func (m *Metrics) RecordMalformedRecord() {
	m.MalformedRecords.Inc()
}

// SetQueueSize sets the current record queue size
func (m *Metrics) SetQueueSize(size int) {
	m.QueueSize.Set(float64(size))
}

// SetOpenSessions sets the current number of open sessions
func (m *Metrics) SetOpenSessions(count int) {
	m.OpenSessions.Set(float64(count))
}

// RecordSessionOpened increments the sessions opened counter
func (m *Metrics) RecordSessionOpened() {
	m.SessionsOpened.Inc()
}

// RecordSessionClosed records a closed session with its loss ratio and,
// when known, its duration
func (m *Metrics) RecordSessionClosed(timedOut bool, lossRatio float64, durationSeconds *float64) {
	m.SessionsClosed.Inc()
	if timedOut {
		m.SessionsTimedOut.Inc()
	}
	m.SessionLossRatio.Observe(lossRatio)
	if durationSeconds != nil {
		m.SessionDuration.Observe(*durationSeconds)
	}
}

// RecordFragmentObserved records one fragment observation with its link quality
func (m *Metrics) RecordFragmentObserved(rssi, snr float64, orphan bool) {
	m.FragmentsObserved.Inc()
	if orphan {
		m.OrphanFragments.Inc()
	}
	m.FragmentRSSI.Observe(rssi)
	m.FragmentSNR.Observe(snr)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
