// Package metrics collects Prometheus metrics for the server's dispatch
// loop and file-transfer engine. Every method has a nil receiver
// guard so callers can pass a nil *Metrics when no registry was
// configured, without branching at every call site (spec §4.6 AMBIENT
// STACK "metrics").
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks uds_ prefixed Prometheus metrics for one server
// instance.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	NRCTotal        *prometheus.CounterVec
	SecurityUnlocks *prometheus.CounterVec
	TransferBytes   *prometheus.CounterVec
	SessionGauge    prometheus.Gauge
	SecurityGauge   prometheus.Gauge
}

// New creates server metrics and registers them against reg, or against
// prometheus.DefaultRegisterer when reg is nil. Panics if registration
// fails, which is only expected during initialization.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uds_requests_total",
				Help: "Total UDS requests by event and outcome",
			},
			[]string{"event", "outcome"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "uds_request_duration_seconds",
				Help:    "UDS request handling duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"event"},
		),
		NRCTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uds_nrc_total",
				Help: "Total negative responses by NRC",
			},
			[]string{"nrc"},
		),
		SecurityUnlocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uds_security_unlocks_total",
				Help: "Total successful SecurityAccess unlocks by level",
			},
			[]string{"level"},
		),
		TransferBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uds_transfer_bytes_total",
				Help: "Total file transfer bytes by direction",
			},
			[]string{"direction"},
		),
		SessionGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uds_session_type",
			Help: "Current diagnostic session type (1=default, 2=programming, 3=extended)",
		}),
		SecurityGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uds_security_level",
			Help: "Current unlocked security level (0=locked)",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.NRCTotal,
		m.SecurityUnlocks,
		m.TransferBytes,
		m.SessionGauge,
		m.SecurityGauge,
	)
	return m
}

// RecordRequest records one dispatched request's outcome and latency.
func (m *Metrics) RecordRequest(event, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(event, outcome).Inc()
	m.RequestDuration.WithLabelValues(event).Observe(durationSeconds)
}

// RecordNRC records one negative response by NRC name.
func (m *Metrics) RecordNRC(nrc string) {
	if m == nil {
		return
	}
	m.NRCTotal.WithLabelValues(nrc).Inc()
}

// RecordUnlock records a successful SecurityAccess unlock.
func (m *Metrics) RecordUnlock(level string) {
	if m == nil {
		return
	}
	m.SecurityUnlocks.WithLabelValues(level).Inc()
}

// RecordTransferBytes adds n bytes transferred in the given direction
// ("upload" or "download").
func (m *Metrics) RecordTransferBytes(direction string, n int) {
	if m == nil {
		return
	}
	m.TransferBytes.WithLabelValues(direction).Add(float64(n))
}

// SetSession updates the current session-type gauge.
func (m *Metrics) SetSession(session uint8) {
	if m == nil {
		return
	}
	m.SessionGauge.Set(float64(session))
}

// SetSecurityLevel updates the current security-level gauge.
func (m *Metrics) SetSecurityLevel(level uint8) {
	if m == nil {
		return
	}
	m.SecurityGauge.Set(float64(level))
}

// Null returns nil, which acts as a no-op collector: every Metrics
// method tolerates a nil receiver.
func Null() *Metrics { return nil }
