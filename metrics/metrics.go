package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChannelConnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lyrical_channel_connects_total",
		Help: "Push channel connections that reached the open state",
	})

	ChannelDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lyrical_channel_drops_total",
		Help: "Push channel connections lost to a transport error or close",
	})

	ChannelReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lyrical_channel_reconnect_attempts_total",
		Help: "Reconnect timers that fired and started a new connection attempt",
	})

	HeartbeatsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lyrical_channel_heartbeats_total",
		Help: "Heartbeat tokens written to the push channel",
	})

	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lyrical_channel_messages_total",
		Help: "Inbound push channel messages by classification",
	}, []string{"kind"})

	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lyrical_upload_requests_total",
		Help: "Upload requests by result",
	}, []string{"result"})

	Comparisons = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lyrical_compare_requests_total",
		Help: "Comparison requests by result",
	}, []string{"result"})

	BackendSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lyrical_backend_subscribers",
		Help: "Push channel subscribers connected to the development backend",
	})

	BackendJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lyrical_backend_jobs_total",
		Help: "Jobs processed by the development backend by outcome",
	}, []string{"outcome"})

	BackendJobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lyrical_backend_job_duration_seconds",
		Help:    "Time from upload to completion payload on the development backend",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})
)
