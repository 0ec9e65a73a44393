package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder owns every metric the tracker exposes. All methods are safe on a
// nil receiver so components can run unmetered in tests.
type Recorder struct {
	storageSize   prometheus.Gauge
	gamesByBucket *prometheus.GaugeVec

	loopUptime    *prometheus.CounterVec
	loopHeartbeat *prometheus.GaugeVec

	jobExecutions  *prometheus.CounterVec
	jobLastSuccess *prometheus.GaugeVec

	clientRequests *prometheus.CounterVec
	clientDuration *prometheus.HistogramVec
}

// NewRecorder registers the tracker's metrics with the given registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		storageSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "argus_state_store_games",
			Help: "Number of games currently held in the in-memory state store",
		}),
		gamesByBucket: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "argus_state_store_games_by_bucket",
			Help: "Number of tracked games classified into each polling bucket",
		}, []string{"bucket"}),
		loopUptime: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_background_loop_uptime_seconds",
			Help: "Accumulated uptime of each background loop",
		}, []string{"loop"}),
		loopHeartbeat: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "argus_background_loop_last_heartbeat",
			Help: "Unix timestamp of the last completed cycle of each background loop",
		}, []string{"loop"}),
		jobExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_job_executions_total",
			Help: "Executions of scheduled jobs by outcome",
		}, []string{"job", "status"}),
		jobLastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "argus_job_last_success",
			Help: "Unix timestamp of the last successful run of each scheduled job",
		}, []string{"job"}),
		clientRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_provider_requests_total",
			Help: "Requests issued to the provider API by endpoint",
		}, []string{"endpoint"}),
		clientDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "argus_provider_request_duration_seconds",
			Help:    "Provider API request latency by endpoint",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

// SetStorageSize records the current number of games in the state store.
func (r *Recorder) SetStorageSize(n int) {
	if r == nil {
		return
	}
	r.storageSize.Set(float64(n))
}

// SetBucketCount records how many games currently classify into a bucket.
func (r *Recorder) SetBucketCount(bucket string, n int) {
	if r == nil {
		return
	}
	r.gamesByBucket.WithLabelValues(bucket).Set(float64(n))
}

// LoopTick marks one completed cycle of a background loop.
func (r *Recorder) LoopTick(loop string, uptime time.Duration) {
	if r == nil {
		return
	}
	r.loopUptime.WithLabelValues(loop).Add(uptime.Seconds())
	r.loopHeartbeat.WithLabelValues(loop).SetToCurrentTime()
}

// JobSucceeded records a successful run of a scheduled job.
func (r *Recorder) JobSucceeded(job string) {
	if r == nil {
		return
	}
	r.jobExecutions.WithLabelValues(job, "success").Inc()
	r.jobLastSuccess.WithLabelValues(job).SetToCurrentTime()
}

// JobFailed records a failed run of a scheduled job.
func (r *Recorder) JobFailed(job string) {
	if r == nil {
		return
	}
	r.jobExecutions.WithLabelValues(job, "failure").Inc()
}

// ObserveClientRequest records one provider API request and its latency.
func (r *Recorder) ObserveClientRequest(endpoint string, duration time.Duration) {
	if r == nil {
		return
	}
	r.clientRequests.WithLabelValues(endpoint).Inc()
	r.clientDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
