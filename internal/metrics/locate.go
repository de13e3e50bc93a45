package metrics

import "github.com/prometheus/client_golang/prometheus"

// Localization Prometheus metrics.
var (
	LocateRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "textnavi",
			Name:      "locate_requests_total",
			Help:      "Total number of locate calls by outcome",
		},
		[]string{"outcome"}, // "updated" / "low_confidence" / "fail_closed" / "error"
	)

	LocateConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "textnavi",
			Name:      "locate_confidence",
			Help:      "Final confidence of locate results",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9},
		},
	)

	ChannelEntropy = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "textnavi",
			Name:      "channel_normalized_entropy",
			Help:      "Normalized entropy of each calibrated channel distribution",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95},
		},
		[]string{"channel"}, // "structure" / "detail"
	)

	SceneLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "textnavi",
			Name:      "scene_loads_total",
			Help:      "Scene cache lookups by result",
		},
		[]string{"result"}, // "hit" / "load" / "error"
	)

	DetailRefsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "textnavi",
			Name:      "detail_refs_dropped_total",
			Help:      "Detail entries dropped at load time due to unresolvable node references",
		},
	)
)

var locateMetricsRegistered bool

// RegisterLocateMetrics registers locate metrics. Must be called once from main.
func RegisterLocateMetrics() {
	if locateMetricsRegistered {
		return
	}
	prometheus.MustRegister(LocateRequestsTotal)
	prometheus.MustRegister(LocateConfidence)
	prometheus.MustRegister(ChannelEntropy)
	prometheus.MustRegister(SceneLoadsTotal)
	prometheus.MustRegister(DetailRefsDroppedTotal)
	locateMetricsRegistered = true
}
