package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/temoto/linescope/device"
	"github.com/temoto/linescope/protocol"
)

const (
	ResetReboot       = "reboot"
	ResetMonotonicity = "monotonicity"
)

// Metrics nil pointer is valid and records nothing.
type Metrics struct {
	Lines  *prometheus.CounterVec
	Resets *prometheus.CounterVec
	Points prometheus.Gauge
	Rate   prometheus.Gauge
	Mode   prometheus.Gauge
}

// NewMetrics registers collectors in reg, nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Lines: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linescope",
			Name:      "lines_total",
			Help:      "Decoded lines by event kind.",
		}, []string{"kind"}),
		Resets: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linescope",
			Name:      "resets_total",
			Help:      "Series buffer resets by cause.",
		}, []string{"cause"}),
		Points: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "linescope",
			Name:      "buffer_points",
			Help:      "Points currently in series buffer.",
		}),
		Rate: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "linescope",
			Name:      "rate_hz",
			Help:      "Estimated sampling rate, 0 when unavailable.",
		}),
		Mode: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "linescope",
			Name:      "device_mode",
			Help:      "0 normal, 1 deep sleep.",
		}),
	}
}

func (m *Metrics) line(k protocol.Kind) {
	if m == nil {
		return
	}
	m.Lines.WithLabelValues(k.String()).Inc()
}

func (m *Metrics) reset(cause string) {
	if m == nil {
		return
	}
	m.Resets.WithLabelValues(cause).Inc()
}

func (m *Metrics) buffer(points int, rate float64) {
	if m == nil {
		return
	}
	m.Points.Set(float64(points))
	m.Rate.Set(rate)
}

func (m *Metrics) mode(mode device.Mode) {
	if m == nil {
		return
	}
	m.Mode.Set(float64(mode))
}
