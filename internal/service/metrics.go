package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the domain counters of the telemetry pipeline.
type Metrics struct {
	messages         *prometheus.CounterVec
	snapshotFailures prometheus.Counter
	archiveDropped   prometheus.Counter
	archiveWrites    *prometheus.CounterVec
}

// NewMetrics registers the telemetry metrics with reg.
// tracked, if not nil, backs the rockets_tracked gauge.
func NewMetrics(reg prometheus.Registerer, tracked func() int) (*Metrics, error) {
	m := &Metrics{
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telemetry_messages_total",
				Help: "Telemetry messages processed, by outcome.",
			},
			[]string{"outcome"},
		),
		snapshotFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_snapshot_failures_total",
			Help: "Rocket snapshots that could not be persisted.",
		}),
		archiveDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_archive_dropped_total",
			Help: "Raw messages not archived because the archive buffer was full.",
		}),
		archiveWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telemetry_archive_writes_total",
				Help: "Archive upload attempts, by result.",
			},
			[]string{"result"},
		),
	}

	collectors := []prometheus.Collector{m.messages, m.snapshotFailures, m.archiveDropped, m.archiveWrites}
	if tracked != nil {
		collectors = append(collectors, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "rockets_tracked",
			Help: "Rocket channels currently tracked.",
		}, func() float64 { return float64(tracked()) }))
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ArchiveResult records the result of one archive upload.
func (m *Metrics) ArchiveResult(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.archiveWrites.WithLabelValues(result).Inc()
}

func (m *Metrics) message(outcome string) {
	if m != nil {
		m.messages.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) snapshotFailed() {
	if m != nil {
		m.snapshotFailures.Inc()
	}
}

func (m *Metrics) archiveDrop() {
	if m != nil {
		m.archiveDropped.Inc()
	}
}
