// Package metrics exposes sequencer session counters through a private
// Prometheus registry.
package metrics

import (
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

type Metrics struct {
	registry     *prometheus.Registry
	edits        *prometheus.CounterVec
	loads        prometheus.Counter
	loadFailures prometheus.Counter
	saves        prometheus.Counter
	saveBytes    prometheus.Histogram
	undos        prometheus.Counter
	redos        prometheus.Counter
	upgrades     prometheus.Counter
	tracks       prometheus.Gauge
	historyDepth prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		edits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sequencer_edits_total",
			Help: "Undoable edits recorded, by command name",
		}, []string{"command"}),
		loads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sequencer_loads_total",
			Help: "Timelines loaded successfully",
		}),
		loadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sequencer_load_failures_total",
			Help: "Timeline loads rejected",
		}),
		saves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sequencer_saves_total",
			Help: "Timelines saved",
		}),
		saveBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sequencer_save_bytes",
			Help:    "Size of saved timelines",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		}),
		undos: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sequencer_undo_total",
			Help: "Undo steps applied",
		}),
		redos: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sequencer_redo_total",
			Help: "Redo steps applied",
		}),
		upgrades: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sequencer_upgrades_total",
			Help: "Files rewritten in the current format version",
		}),
		tracks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sequencer_tracks",
			Help: "Tracks in the open timeline",
		}),
		historyDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sequencer_history_depth",
			Help: "Entries on the undo stack",
		}),
	}

	registry.MustRegister(
		m.edits,
		m.loads,
		m.loadFailures,
		m.saves,
		m.saveBytes,
		m.undos,
		m.redos,
		m.upgrades,
		m.tracks,
		m.historyDepth,
	)
	return m
}

func (m *Metrics) IncEdit(command string) { m.edits.WithLabelValues(command).Inc() }

func (m *Metrics) IncLoads() { m.loads.Inc() }

func (m *Metrics) IncLoadFailures() { m.loadFailures.Inc() }

// ObserveSave counts a save of n bytes.
func (m *Metrics) ObserveSave(n int) {
	m.saves.Inc()
	m.saveBytes.Observe(float64(n))
}

func (m *Metrics) IncUndo() { m.undos.Inc() }

func (m *Metrics) IncRedo() { m.redos.Inc() }

func (m *Metrics) IncUpgrades() { m.upgrades.Inc() }

func (m *Metrics) SetTracks(n int) { m.tracks.Set(float64(n)) }

func (m *Metrics) SetHistoryDepth(n int) { m.historyDepth.Set(float64(n)) }

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteText dumps every metric family in the Prometheus text format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the metrics over HTTP. updateGauges runs before each
// scrape.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	inner := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		inner.ServeHTTP(w, r)
	})
}
