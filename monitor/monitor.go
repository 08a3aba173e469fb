// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OnlinePlayers      prometheus.Gauge
	ActiveBattles      prometheus.Gauge
	PromptsSubmitted   prometheus.Counter
	GenerationFailures prometheus.Counter
	GenerationLatency  prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of connected players",
		}),
		ActiveBattles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_battles",
			Help:      "Number of live battle rooms",
		}),
		PromptsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompts_submitted_total",
			Help:      "Total number of prompts submitted",
		}),
		GenerationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_failures_total",
			Help:      "Total number of failed image generation calls",
		}),
		GenerationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_latency_seconds",
			Help:      "Image generation round trip latency",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
	}

	prometheus.MustRegister(
		m.OnlinePlayers,
		m.ActiveBattles,
		m.PromptsSubmitted,
		m.GenerationFailures,
		m.GenerationLatency,
	)

	return m
}

type Monitor struct {
	metrics      *Metrics
	startTime    time.Time
	requestCount int64
	mutex        sync.Mutex
}

func NewMonitor(namespace string) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace),
		startTime: time.Now(),
	}
}

func (m *Monitor) StartServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())

	// expvar 补充指标
	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))

	expvar.Publish("requests", expvar.Func(func() interface{} {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		return m.requestCount
	}))

	go http.ListenAndServe(addr, nil)
}

func (m *Monitor) IncOnlinePlayers() {
	m.metrics.OnlinePlayers.Inc()
}

func (m *Monitor) DecOnlinePlayers() {
	m.metrics.OnlinePlayers.Dec()
}

func (m *Monitor) SetActiveBattles(count int) {
	m.metrics.ActiveBattles.Set(float64(count))
}

func (m *Monitor) IncPromptsSubmitted() {
	m.metrics.PromptsSubmitted.Inc()
	m.mutex.Lock()
	m.requestCount++
	m.mutex.Unlock()
}

func (m *Monitor) IncGenerationFailures() {
	m.metrics.GenerationFailures.Inc()
}

func (m *Monitor) ObserveGenerationLatency(duration time.Duration) {
	m.metrics.GenerationLatency.Observe(duration.Seconds())
}
