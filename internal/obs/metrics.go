package obs

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	AcquireTotal *prometheus.CounterVec // result=acquired|conflict|not_found|error
	ReleaseTotal *prometheus.CounterVec // result=released|not_holder|error

	OpLatencyMS *prometheus.HistogramVec // op=acquire|release|info

	ContentionTotal *prometheus.CounterVec // resource type of the contended row
}

func NewMetrics() *Metrics {
	m := &Metrics{
		AcquireTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tms_claim_acquire_total",
				Help: "Total edit-claim acquire attempts by result",
			},
			[]string{"result"},
		),
		ReleaseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tms_claim_release_total",
				Help: "Total edit-claim release attempts by result",
			},
			[]string{"result"},
		),
		OpLatencyMS: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tms_claim_op_latency_ms",
				Help:    "Latency of edit-claim operations (ms)",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1ms .. ~2048ms
			},
			[]string{"op"},
		),
		ContentionTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tms_claim_contention_total",
				Help: "Total row-lock contention errors that triggered a retry",
			},
			[]string{"resource"},
		),
	}

	prometheus.MustRegister(
		m.AcquireTotal,
		m.ReleaseTotal,
		m.OpLatencyMS,
		m.ContentionTotal,
	)

	return m
}
