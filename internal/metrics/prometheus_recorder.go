package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder is the Recorder the daemon and serve commands install;
// everything lands in the fieldsite namespace.
type PrometheusRecorder struct {
	once            sync.Once
	buildDuration   prom.Histogram
	buildOutcome    *prom.CounterVec
	pagesRendered   prom.Gauge
	rebuilds        *prom.CounterVec
	collectDuration prom.Histogram
	collectOutcome  *prom.CounterVec
	postsArchived   prom.Counter
	quotaRemaining  prom.Gauge
	deployDuration  *prom.HistogramVec
	deployResults   *prom.CounterVec
}

// NewPrometheusRecorder builds the metric set and registers it with reg,
// or with a fresh registry when reg is nil.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "fieldsite",
			Name:      "build_duration_seconds",
			Help:      "Total site build duration",
			Buckets:   prom.DefBuckets,
		})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "fieldsite",
			Name:      "build_outcomes_total",
			Help:      "Finished builds by outcome",
		}, []string{"outcome"})
		pr.pagesRendered = prom.NewGauge(prom.GaugeOpts{
			Namespace: "fieldsite",
			Name:      "pages_rendered",
			Help:      "Pages rendered by the most recent build",
		})
		pr.rebuilds = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "fieldsite",
			Name:      "rebuilds_total",
			Help:      "Rebuilds by trigger",
		}, []string{"trigger"})
		pr.collectDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "fieldsite",
			Name:      "collect_duration_seconds",
			Help:      "Duration of post collection runs",
			Buckets:   prom.DefBuckets,
		})
		pr.collectOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "fieldsite",
			Name:      "collect_outcomes_total",
			Help:      "Collection outcomes by final status",
		}, []string{"outcome"})
		pr.postsArchived = prom.NewCounter(prom.CounterOpts{
			Namespace: "fieldsite",
			Name:      "posts_archived_total",
			Help:      "Newly archived posts across collection runs",
		})
		pr.quotaRemaining = prom.NewGauge(prom.GaugeOpts{
			Namespace: "fieldsite",
			Name:      "quota_remaining",
			Help:      "Posts remaining in the monthly retrieval quota",
		})
		pr.deployDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "fieldsite",
			Name:      "deploy_duration_seconds",
			Help:      "Duration of publish operations",
			Buckets:   prom.DefBuckets,
		}, []string{"target", "result"})
		pr.deployResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "fieldsite",
			Name:      "deploy_results_total",
			Help:      "Publish results by target and outcome",
		}, []string{"target", "result"})
		reg.MustRegister(pr.buildDuration, pr.buildOutcome, pr.pagesRendered, pr.rebuilds,
			pr.collectDuration, pr.collectOutcome, pr.postsArchived, pr.quotaRemaining,
			pr.deployDuration, pr.deployResults)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome ResultLabel) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetPagesRendered(n int) {
	if p == nil || p.pagesRendered == nil {
		return
	}
	p.pagesRendered.Set(float64(n))
}

func (p *PrometheusRecorder) IncRebuild(trigger string) {
	if p == nil || p.rebuilds == nil {
		return
	}
	p.rebuilds.WithLabelValues(trigger).Inc()
}

func (p *PrometheusRecorder) ObserveCollectDuration(d time.Duration) {
	if p == nil || p.collectDuration == nil {
		return
	}
	p.collectDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCollectOutcome(outcome ResultLabel) {
	if p == nil || p.collectOutcome == nil {
		return
	}
	p.collectOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddPostsArchived(n int) {
	if p == nil || p.postsArchived == nil || n <= 0 {
		return
	}
	p.postsArchived.Add(float64(n))
}

func (p *PrometheusRecorder) SetQuotaRemaining(n int) {
	if p == nil || p.quotaRemaining == nil {
		return
	}
	p.quotaRemaining.Set(float64(n))
}

func (p *PrometheusRecorder) ObserveDeployDuration(target string, d time.Duration, success bool) {
	if p == nil || p.deployDuration == nil {
		return
	}
	p.deployDuration.WithLabelValues(target, resultLabel(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncDeployResult(target string, success bool) {
	if p == nil || p.deployResults == nil {
		return
	}
	p.deployResults.WithLabelValues(target, resultLabel(success)).Inc()
}

func resultLabel(success bool) string {
	if success {
		return string(ResultSuccess)
	}
	return string(ResultFailed)
}
