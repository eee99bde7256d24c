package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder_RegistersAndRecords(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewPrometheusRecorder(reg)

	r.ObserveBuildDuration(1200 * time.Millisecond)
	r.IncBuildOutcome(ResultSuccess)
	r.SetPagesRendered(12)
	r.IncRebuild("watch")
	r.ObserveCollectDuration(300 * time.Millisecond)
	r.IncCollectOutcome(ResultSkipped)
	r.AddPostsArchived(42)
	r.SetQuotaRemaining(1458)
	r.ObserveDeployDuration("ghpages", time.Second, true)
	r.IncDeployResult("ghpages", false)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	got := map[string]bool{}
	for _, mf := range families {
		got[mf.GetName()] = true
	}

	for _, want := range []string{
		"fieldsite_build_duration_seconds",
		"fieldsite_build_outcomes_total",
		"fieldsite_pages_rendered",
		"fieldsite_rebuilds_total",
		"fieldsite_collect_duration_seconds",
		"fieldsite_collect_outcomes_total",
		"fieldsite_posts_archived_total",
		"fieldsite_quota_remaining",
		"fieldsite_deploy_duration_seconds",
		"fieldsite_deploy_results_total",
	} {
		if !got[want] {
			t.Errorf("metric family %s not gathered", want)
		}
	}
}

func TestPrometheusRecorder_NilSafe(t *testing.T) {
	var r *PrometheusRecorder
	// None of these may panic on a nil receiver.
	r.ObserveBuildDuration(time.Second)
	r.IncBuildOutcome(ResultFailed)
	r.SetPagesRendered(1)
	r.IncRebuild("manual")
	r.ObserveCollectDuration(time.Second)
	r.IncCollectOutcome(ResultFailed)
	r.AddPostsArchived(1)
	r.SetQuotaRemaining(1)
	r.ObserveDeployDuration("s3", time.Second, false)
	r.IncDeployResult("s3", true)
}

func TestRecorderImplementations(t *testing.T) {
	var _ Recorder = NoopRecorder{}
	var _ Recorder = &PrometheusRecorder{}
}
