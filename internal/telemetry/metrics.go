// Package telemetry holds the Prometheus metrics of the chat downloader.
package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	Polls              *prometheus.CounterVec
	ActionsEmitted     *prometheus.CounterVec
	AssetsStarted      prometheus.Counter
	AssetsSucceeded    prometheus.Counter
	AssetsFailed       prometheus.Counter
	AssetsDeduplicated prometheus.Counter
	RelayClients       prometheus.Gauge

	// Histograms (seconds)
	PollDuration    *prometheus.HistogramVec
	RequestDuration *prometheus.HistogramVec
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		Polls = promauto.NewCounterVec(prometheus.CounterOpts{Name: "ytchat_polls_total", Help: "Chat polls by mode and result"}, []string{"mode", "result"})
		ActionsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{Name: "ytchat_actions_emitted_total", Help: "Chat actions delivered to sinks"}, []string{"mode"})
		AssetsStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "ytchat_assets_started_total", Help: "Asset downloads started"})
		AssetsSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "ytchat_assets_succeeded_total", Help: "Asset downloads succeeded"})
		AssetsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "ytchat_assets_failed_total", Help: "Asset downloads failed"})
		AssetsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{Name: "ytchat_assets_deduplicated_total", Help: "Asset references served by an earlier download"})
		RelayClients = promauto.NewGauge(prometheus.GaugeOpts{Name: "ytchat_relay_clients", Help: "Connected websocket relay clients"})
		PollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "ytchat_poll_duration_seconds", Help: "Chat poll request duration seconds", Buckets: prometheus.DefBuckets}, []string{"mode"})
		RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "ytchat_http_request_duration_seconds", Help: "Outgoing request duration by endpoint", Buckets: prometheus.DefBuckets}, []string{"endpoint"})
	})
}

// ObservePoll records one engine poll. Safe to call before Init.
func ObservePoll(mode string, d time.Duration, err error) {
	if Polls == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	Polls.WithLabelValues(mode, result).Inc()
	PollDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// AddActions counts emitted actions.
func AddActions(mode string, n int) {
	if ActionsEmitted != nil && n > 0 {
		ActionsEmitted.WithLabelValues(mode).Add(float64(n))
	}
}

// ObserveRequest records an outgoing HTTP request.
func ObserveRequest(endpoint string, d time.Duration) {
	if RequestDuration != nil {
		RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
	}
}

func AssetStarted()      { inc(AssetsStarted) }
func AssetSucceeded()    { inc(AssetsSucceeded) }
func AssetFailed()       { inc(AssetsFailed) }
func AssetDeduplicated() { inc(AssetsDeduplicated) }

// SetRelayClients records the number of connected relay clients.
func SetRelayClients(n int) {
	if RelayClients != nil {
		RelayClients.Set(float64(n))
	}
}

func inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}
