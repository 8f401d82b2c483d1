package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "vitals_"

const (
	SourceUpload = "upload"
	SourceStream = "stream"
)

var (
	registerOnce sync.Once

	readingsIngested *prometheus.CounterVec
	rowsDropped      *prometheus.CounterVec
	ingestFailures   *prometheus.CounterVec
	alertsTotal      *prometheus.CounterVec
	anomaliesTotal   *prometheus.CounterVec
	pipelineLatency  *prometheus.HistogramVec
	notifyTotal      *prometheus.CounterVec
)

// Init 注册指标（重复调用无副作用）
func Init() {
	InitWith(prometheus.DefaultRegisterer)
}

// InitWith 注册到指定 Registerer
func InitWith(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		readingsIngested = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "readings_ingested_total",
				Help: "Total sanitized readings by source",
			},
			[]string{"source"},
		)
		rowsDropped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rows_dropped_total",
				Help: "Rows dropped for an unparseable timestamp by source",
			},
			[]string{"source"},
		)
		ingestFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_failures_total",
				Help: "Failed ingestion attempts by reason",
			},
			[]string{"reason"},
		)
		alertsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_total",
				Help: "Alert records produced by kind",
			},
			[]string{"kind"},
		)
		anomaliesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "anomalies_total",
				Help: "Statistically anomalous heart-rate readings by source",
			},
			[]string{"source"},
		)
		pipelineLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "pipeline_latency_seconds",
				Help:    "Pipeline processing latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		)
		notifyTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Notification hand-offs by result",
			},
			[]string{"result"},
		)

		reg.MustRegister(
			readingsIngested,
			rowsDropped,
			ingestFailures,
			alertsTotal,
			anomaliesTotal,
			pipelineLatency,
			notifyTotal,
		)
	})
}

// ObserveIngest 记录一次清洗结果
func ObserveIngest(source string, readings, dropped int) {
	if readingsIngested == nil {
		return
	}
	readingsIngested.WithLabelValues(source).Add(float64(readings))
	rowsDropped.WithLabelValues(source).Add(float64(dropped))
}

// ObserveIngestFailure reason 如 schema、empty、read
func ObserveIngestFailure(reason string) {
	if ingestFailures == nil {
		return
	}
	ingestFailures.WithLabelValues(reason).Inc()
}

// ObserveAlerts 按报警类型累加
func ObserveAlerts(counts map[string]int) {
	if alertsTotal == nil {
		return
	}
	for kind, n := range counts {
		alertsTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// ObserveAnomalies 异常读数数量
func ObserveAnomalies(source string, n int) {
	if anomaliesTotal == nil {
		return
	}
	anomaliesTotal.WithLabelValues(source).Add(float64(n))
}

// ObservePipeline 处理耗时
func ObservePipeline(source string, start time.Time) {
	if pipelineLatency == nil {
		return
	}
	pipelineLatency.WithLabelValues(source).Observe(time.Since(start).Seconds())
}

// ObserveNotify result 为 success 或 error
func ObserveNotify(err error) {
	if notifyTotal == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	notifyTotal.WithLabelValues(result).Inc()
}
