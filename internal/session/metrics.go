package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics with bounded cardinality; one set per registry.
type Metrics struct {
	Chunks          prometheus.Counter
	Bytes           prometheus.Counter
	Snapshots       prometheus.Gauge
	ParseErrors     prometheus.Counter
	TransportErrors prometheus.Counter
	Ticks           prometheus.Counter
	PlaybackState   prometheus.Gauge
	TickDuration    prometheus.Histogram
}

// NewMetrics registers the session metrics with reg. A nil reg uses the
// default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		Chunks: f.NewCounter(prometheus.CounterOpts{
			Name: "rcgplay_chunks_total",
			Help: "Log chunks handed to the parser",
		}),
		Bytes: f.NewCounter(prometheus.CounterOpts{
			Name: "rcgplay_bytes_total",
			Help: "Decoded log bytes handed to the parser",
		}),
		Snapshots: f.NewGauge(prometheus.GaugeOpts{
			Name: "rcgplay_snapshots",
			Help: "Snapshots in the current log",
		}),
		ParseErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "rcgplay_parse_errors_total",
			Help: "Fatal parse errors",
		}),
		TransportErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "rcgplay_transport_errors_total",
			Help: "File or network failures while fetching a log",
		}),
		Ticks: f.NewCounter(prometheus.CounterOpts{
			Name: "rcgplay_ticks_total",
			Help: "Playback engine ticks",
		}),
		PlaybackState: f.NewGauge(prometheus.GaugeOpts{
			Name: "rcgplay_playback_state",
			Help: "Playback state (0 Empty, 1 Pause, 2 Play, 3 Waiting, 4 End)",
		}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rcgplay_tick_duration_seconds",
			Help:    "Time spent in one host loop tick",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
	}
}
