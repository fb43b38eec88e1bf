// Package metrics exposes Prometheus collectors for the relay.
//
// A nil *Metrics is valid and records nothing, so components can run without
// a registry in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pulse_relay"

// Connect outcomes used as the "outcome" label.
const (
	OutcomeOpened     = "opened"
	OutcomeFailed     = "failed"
	OutcomeSimulation = "simulation"
)

type Metrics struct {
	linesRead      prometheus.Counter
	samplesParsed  prometheus.Counter
	noiseDropped   prometheus.Counter
	batchesSent    prometheus.Counter
	framesDropped  prometheus.Counter
	connects       *prometheus.CounterVec
	closeErrors    prometheus.Counter
	deviceErrors   prometheus.Counter
	staleSamples   prometheus.Counter
	subscribers    prometheus.Gauge
	epoch          prometheus.Gauge
	connectionOpen prometheus.Gauge
	reconnectSecs  prometheus.Histogram
}

// New creates the relay collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		linesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_read_total",
			Help:      "Complete lines extracted from the device stream.",
		}),
		samplesParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_parsed_total",
			Help:      "Lines that yielded a pulse width sample.",
		}),
		noiseDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "noise_lines_dropped_total",
			Help:      "Lines that did not match the sample pattern.",
		}),
		batchesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_broadcast_total",
			Help:      "Full batches fanned out to subscribers.",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames not queued because a subscriber buffer was full.",
		}),
		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_requests_total",
			Help:      "Connect requests by outcome.",
		}, []string{"outcome"}),
		closeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "close_errors_total",
			Help:      "Failed closes of a superseded device connection.",
		}),
		deviceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_errors_total",
			Help:      "Asynchronous device faults after open.",
		}),
		staleSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_samples_dropped_total",
			Help:      "Samples discarded because their connection was superseded.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Currently registered subscriber streams.",
		}),
		epoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_epoch",
			Help:      "Current device connection epoch.",
		}),
		connectionOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_open",
			Help:      "1 while a device connection is open.",
		}),
		reconnectSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconnect_duration_seconds",
			Help:      "Time from connect request to open result for real devices.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.linesRead, m.samplesParsed, m.noiseDropped, m.batchesSent, m.framesDropped,
			m.connects, m.closeErrors, m.deviceErrors, m.staleSamples,
			m.subscribers, m.epoch, m.connectionOpen, m.reconnectSecs,
		)
	}
	return m
}

func (m *Metrics) LineRead() {
	if m != nil {
		m.linesRead.Inc()
	}
}

func (m *Metrics) SampleParsed() {
	if m != nil {
		m.samplesParsed.Inc()
	}
}

func (m *Metrics) NoiseDropped() {
	if m != nil {
		m.noiseDropped.Inc()
	}
}

func (m *Metrics) BatchBroadcast() {
	if m != nil {
		m.batchesSent.Inc()
	}
}

func (m *Metrics) FrameDropped() {
	if m != nil {
		m.framesDropped.Inc()
	}
}

func (m *Metrics) Connect(outcome string) {
	if m != nil {
		m.connects.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) CloseError() {
	if m != nil {
		m.closeErrors.Inc()
	}
}

func (m *Metrics) DeviceError() {
	if m != nil {
		m.deviceErrors.Inc()
	}
}

// StaleSamples counts n samples dropped because their connection was replaced.
func (m *Metrics) StaleSamples(n int) {
	if m != nil {
		m.staleSamples.Add(float64(n))
	}
}

func (m *Metrics) SetSubscribers(n int) {
	if m != nil {
		m.subscribers.Set(float64(n))
	}
}

func (m *Metrics) SetEpoch(e uint64) {
	if m != nil {
		m.epoch.Set(float64(e))
	}
}

func (m *Metrics) SetConnectionOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.connectionOpen.Set(1)
	} else {
		m.connectionOpen.Set(0)
	}
}

// ObserveReconnect records how long a real-device connect took, settle delay included.
func (m *Metrics) ObserveReconnect(seconds float64) {
	if m != nil {
		m.reconnectSecs.Observe(seconds)
	}
}
