package dagaz

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	gridLabel = "grid"
	kindLabel = "kind"
	opLabel   = "op"

	queryKindSphere  = "sphere"
	queryKindBox     = "box"
	queryKindFrustum = "frustum"

	mutationRegister = "register"
	mutationRemove   = "remove"
	mutationUpdate   = "update"
	mutationCompact  = "compact"
)

var (
	dagazQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dagaz_query_latency",
		Help:    "The time to run a spatial query.",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10),
	}, []string{
		gridLabel,
		kindLabel,
	})

	dagazQueryObjectsTested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dagaz_query_objects_tested",
		Help: "The number of objects tested by spatial queries.",
	}, []string{
		gridLabel,
		kindLabel,
	})

	dagazQueryObjectsPassed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dagaz_query_objects_passed",
		Help: "The number of objects reported by spatial queries.",
	}, []string{
		gridLabel,
		kindLabel,
	})

	dagazMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dagaz_mutations",
		Help: "The number of index mutations.",
	}, []string{
		gridLabel,
		opLabel,
	})

	dagazCells = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dagaz_cells",
		Help: "The number of cells in the cell table.",
	}, []string{
		gridLabel,
	})
)

// gridMetrics holds the collectors of one grid, bound to its labels once so
// that mutations do not build label maps.
type gridMetrics struct {
	queries   map[string]queryMetrics
	mutations map[string]prometheus.Counter
	cells     prometheus.Gauge
}

type queryMetrics struct {
	latency prometheus.Observer
	tested  prometheus.Counter
	passed  prometheus.Counter
}

func newGridMetrics(grid string) gridMetrics {
	m := gridMetrics{
		queries:   make(map[string]queryMetrics),
		mutations: make(map[string]prometheus.Counter),
		cells:     dagazCells.With(prometheus.Labels{gridLabel: grid}),
	}

	for _, kind := range []string{queryKindSphere, queryKindBox, queryKindFrustum} {
		labels := prometheus.Labels{
			gridLabel: grid,
			kindLabel: kind,
		}

		m.queries[kind] = queryMetrics{
			latency: dagazQueryLatency.With(labels),
			tested:  dagazQueryObjectsTested.With(labels),
			passed:  dagazQueryObjectsPassed.With(labels),
		}
	}

	for _, op := range []string{mutationRegister, mutationRemove, mutationUpdate, mutationCompact} {
		m.mutations[op] = dagazMutations.With(prometheus.Labels{
			gridLabel: grid,
			opLabel:   op,
		})
	}
	return m
}

func (m gridMetrics) instrumentQuery(kind string, start time.Time, stats QueryStats) {
	q := m.queries[kind]
	q.latency.Observe(time.Since(start).Seconds())
	q.tested.Add(float64(stats.ObjectsTested))
	q.passed.Add(float64(stats.ObjectsPassed))
}

func (m gridMetrics) instrumentMutation(op string) {
	m.mutations[op].Inc()
}

func (m gridMetrics) instrumentCellCount(count int) {
	m.cells.Set(float64(count))
}
