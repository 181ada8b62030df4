package metrics

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tick 指标
	TicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sampler_ticks_total",
			Help: "Total ticks by result (ok, store_error, empty, sampler_error)",
		},
		[]string{"result"},
	)

	TickState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sampler_tick_state",
			Help: "Current tick driver state (1 for the active state)",
		},
		[]string{"state"},
	)

	TickDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sampler_tick_duration_seconds",
			Help:    "Duration of a full tick in seconds",
			Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200},
		},
	)

	// 采样表指标
	TableSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sampler_table_size",
			Help: "Number of channels in the current sampling table",
		},
	)

	TableTotalWeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sampler_table_total_weight",
			Help: "Sum of weights in the current sampling table",
		},
	)

	WeightShiftTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sampler_weight_shift_total",
			Help: "Ticks whose weights were shifted by one because the minimum was zero",
		},
	)

	// 批次指标
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sampler_batches_total",
			Help: "Total batches by result (ok, transport, status, decode)",
		},
		[]string{"result"},
	)

	BatchIdentifiers = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sampler_batch_identifiers",
			Help:    "Identifiers sent per upstream request after optional dedup",
			Buckets: []float64{1, 5, 10, 20, 30, 40, 50},
		},
	)

	UpstreamLatencyMs = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "upstream_request_latency_ms",
			Help:    "Upstream API request latency in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
	)

	// 条目指标
	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sampler_items_total",
			Help: "Total returned items by result (written, unknown_serial, bad_count, row_count, store_error)",
		},
		[]string{"result"},
	)

	StoreWriteLatencyMs = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "store_write_latency_ms",
			Help:    "Metric store insert latency in milliseconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	// Kafka 观测数据流指标
	PublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observations_published_total",
			Help: "Observations published to Kafka by status",
		},
		[]string{"status"},
	)

	KafkaErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_errors_total",
			Help: "Total Kafka errors by error type and topic",
		},
		[]string{"error_type", "topic"},
	)

	KafkaWriteBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_write_bytes_total",
			Help: "Total bytes written to Kafka by topic",
		},
		[]string{"topic"},
	)

	KafkaProducerConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kafka_producer_connected",
			Help: "Kafka producer connection status (1=connected, 0=disconnected)",
		},
	)

	KafkaTopicCreateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_topic_create_total",
			Help: "Total topic creation attempts by status",
		},
		[]string{"status"},
	)

	// 内存监控指标
	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "memory_alloc_bytes",
			Help: "Number of bytes allocated and still in use",
		},
	)

	MemoryHeapInuseBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "memory_heap_inuse_bytes",
			Help: "Number of heap bytes in use",
		},
	)

	MemoryNumGC = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "memory_num_gc_total",
			Help: "Total number of GC cycles",
		},
	)

	NumGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "num_goroutines",
			Help: "Number of goroutines that currently exist",
		},
	)
)

// 所有 tick 状态，用于 SetTickState 清零其他状态
var tickStates = []string{"building", "sampling"}

// SetTickState 设置当前 tick 状态
func SetTickState(state string) {
	for _, s := range tickStates {
		if s == state {
			TickState.WithLabelValues(s).Set(1)
		} else {
			TickState.WithLabelValues(s).Set(0)
		}
	}
}

var (
	lastNumGC   uint32
	lastNumGCMu sync.Mutex
	numGCInit   bool
)

// UpdateMemoryMetrics 更新内存指标（应该定期调用，例如每 10 秒）
// NumGC 是累计值，需要计算增量
func UpdateMemoryMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	MemoryAllocBytes.Set(float64(m.Alloc))
	MemoryHeapInuseBytes.Set(float64(m.HeapInuse))
	NumGoroutines.Set(float64(runtime.NumGoroutine()))

	lastNumGCMu.Lock()
	defer lastNumGCMu.Unlock()
	if numGCInit && m.NumGC > lastNumGC {
		MemoryNumGC.Add(float64(m.NumGC - lastNumGC))
	}
	lastNumGC = m.NumGC
	numGCInit = true
}
