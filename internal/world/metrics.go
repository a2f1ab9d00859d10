package world

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics - Prometheus-метрики мира. Нулевой указатель допустим:
// все методы ничего не делают.
type Metrics struct {
	chunksGenerated prometheus.Counter
	chunksLoaded    prometheus.Gauge
	changesQueued   prometheus.Counter
	changesApplied  prometheus.Counter
	borderCopies    *prometheus.CounterVec
	commits         prometheus.Counter
	commitDuration  prometheus.Histogram
	dirtyChunks     prometheus.Gauge
}

// NewMetrics создаёт метрики и регистрирует их в reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		chunksGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "world",
			Name:      "chunks_generated_total",
			Help:      "Число сгенерированных и вставленных в мир чанков.",
		}),
		chunksLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Subsystem: "world",
			Name:      "chunks_loaded",
			Help:      "Число чанков в памяти.",
		}),
		changesQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "world",
			Name:      "voxel_changes_queued_total",
			Help:      "Изменения вокселей, поставленные в очередь.",
		}),
		changesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "world",
			Name:      "voxel_changes_applied_total",
			Help:      "Изменения вокселей, примененные при фиксации.",
		}),
		borderCopies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "world",
			Name:      "border_copies_total",
			Help:      "Копирования гало между соседними чанками.",
		}, []string{"kind"}),
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "world",
			Name:      "commits_total",
			Help:      "Число вызовов фиксации изменений.",
		}),
		commitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voxel",
			Subsystem: "world",
			Name:      "commit_duration_seconds",
			Help:      "Длительность фиксации изменений.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		dirtyChunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Subsystem: "world",
			Name:      "dirty_chunks",
			Help:      "Чанки, ожидающие перестроения меша.",
		}),
	}

	reg.MustRegister(
		m.chunksGenerated,
		m.chunksLoaded,
		m.changesQueued,
		m.changesApplied,
		m.borderCopies,
		m.commits,
		m.commitDuration,
		m.dirtyChunks,
	)
	return m
}

func (m *Metrics) chunkGenerated(loaded int) {
	if m == nil {
		return
	}
	m.chunksGenerated.Inc()
	m.chunksLoaded.Set(float64(loaded))
}

func (m *Metrics) changeQueued() {
	if m == nil {
		return
	}
	m.changesQueued.Inc()
}

func (m *Metrics) commitFinished(stats CommitStats, dirty int, took time.Duration) {
	if m == nil {
		return
	}
	m.commits.Inc()
	m.changesApplied.Add(float64(stats.ChangesApplied))
	m.borderCopies.WithLabelValues("edit").Add(float64(stats.BordersPropagated))
	m.borderCopies.WithLabelValues("sync").Add(float64(stats.BordersSynced))
	m.commitDuration.Observe(took.Seconds())
	m.dirtyChunks.Set(float64(dirty))
}

func (m *Metrics) dirtyCount(dirty int) {
	if m == nil {
		return
	}
	m.dirtyChunks.Set(float64(dirty))
}
