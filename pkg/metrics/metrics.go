// Package metrics exposes the runtime's internal counters (mutex/rwlock
// contention, job-queue depth and worker counts, per-Limits
// admission-control counters) as Prometheus gauges behind a /metrics
// handler. No scheduler series is exported.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/naviserver-project/naviserver-sub002/pkg/jobqueue"
	"github.com/naviserver-project/naviserver-sub002/pkg/limits"
	"github.com/naviserver-project/naviserver-sub002/pkg/nsthread"
)

// Registry wraps a prometheus.Registerer and the runtime collaborators
// its collectors read from on every scrape.
type Registry struct {
	reg   *prometheus.Registry
	pool  *jobqueue.Pool
	lims  *limits.Registry

	mutexBusy   *prometheus.Desc
	mutexWait   *prometheus.Desc
	rwlockBusy  *prometheus.Desc
	jobQueueLen *prometheus.Desc
	jobThreads  *prometheus.Desc
	limitRun    *prometheus.Desc
	limitDrop   *prometheus.Desc
}

// New creates a Registry that scrapes pool and lims (either may be nil
// to omit that collector) plus the process-wide nsthread mutex/rwlock
// lists.
func New(pool *jobqueue.Pool, lims *limits.Registry) *Registry {
	r := &Registry{
		reg:  prometheus.NewRegistry(),
		pool: pool,
		lims: lims,
		mutexBusy: prometheus.NewDesc(
			"nsappd_mutex_busy_total", "Cumulative times a named mutex was found already locked.",
			[]string{"name"}, nil),
		mutexWait: prometheus.NewDesc(
			"nsappd_mutex_wait_seconds_total", "Cumulative time spent waiting for a named mutex.",
			[]string{"name"}, nil),
		rwlockBusy: prometheus.NewDesc(
			"nsappd_rwlock_busy_total", "Cumulative times a named rwlock was found already locked.",
			[]string{"name"}, nil),
		jobQueueLen: prometheus.NewDesc(
			"nsappd_jobqueue_jobs", "Current jobs known to a named queue.",
			[]string{"queue"}, nil),
		jobThreads: prometheus.NewDesc(
			"nsappd_jobqueue_threads", "Job queue worker thread counts.",
			[]string{"state"}, nil),
		limitRun: prometheus.NewDesc(
			"nsappd_limits_running", "Current in-flight requests admitted under a named Limits record.",
			[]string{"name"}, nil),
		limitDrop: prometheus.NewDesc(
			"nsappd_limits_dropped_total", "Cumulative requests rejected by a named Limits record.",
			[]string{"name"}, nil),
	}
	r.reg.MustRegister(r)
	r.reg.MustRegister(prometheus.NewGoCollector())
	return r
}

// Describe implements prometheus.Collector.
func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	ch <- r.mutexBusy
	ch <- r.mutexWait
	ch <- r.rwlockBusy
	ch <- r.jobQueueLen
	ch <- r.jobThreads
	ch <- r.limitRun
	ch <- r.limitDrop
}

// Collect implements prometheus.Collector, reading every collaborator
// fresh on each scrape rather than caching between calls.
func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	nsthread.WalkMutexes(func(s nsthread.MutexStats) {
		ch <- prometheus.MustNewConstMetric(r.mutexBusy, prometheus.CounterValue, float64(s.NBusy), s.Name)
		ch <- prometheus.MustNewConstMetric(r.mutexWait, prometheus.CounterValue, s.TotalWaitingTime.Duration().Seconds(), s.Name)
	})
	nsthread.WalkRWLocks(func(s nsthread.RWLockStats) {
		ch <- prometheus.MustNewConstMetric(r.rwlockBusy, prometheus.CounterValue, float64(s.NBusy), s.Name)
	})

	if r.pool != nil {
		for _, q := range r.pool.QueueList() {
			jobs, err := r.pool.JobList(q.Name)
			if err == nil {
				ch <- prometheus.MustNewConstMetric(r.jobQueueLen, prometheus.GaugeValue, float64(len(jobs)), q.Name)
			}
		}
		nThreads, nIdle := r.pool.ThreadList()
		ch <- prometheus.MustNewConstMetric(r.jobThreads, prometheus.GaugeValue, float64(nThreads), "running")
		ch <- prometheus.MustNewConstMetric(r.jobThreads, prometheus.GaugeValue, float64(nIdle), "idle")
	}

	if r.lims != nil {
		for _, l := range r.lims.List("") {
			state := l.State()
			stats := l.Stats()
			ch <- prometheus.MustNewConstMetric(r.limitRun, prometheus.GaugeValue, float64(state.NRunning), l.Name)
			ch <- prometheus.MustNewConstMetric(r.limitDrop, prometheus.CounterValue, float64(stats.NDropped+stats.NOverflow), l.Name)
		}
	}
}

// Handler returns the http.Handler to mount at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
