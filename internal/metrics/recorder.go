package metrics

import "time"

// ResultLabel enumerates operation result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultSkipped  ResultLabel = "skipped"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for build, collect, and deploy
// operations. Implementations may forward to Prometheus, OpenTelemetry,
// etc. All methods must be safe on the zero value so injection stays
// optional.
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome ResultLabel)
	SetPagesRendered(n int)
	IncRebuild(trigger string) // trigger: watch|schedule|manual

	ObserveCollectDuration(d time.Duration)
	IncCollectOutcome(outcome ResultLabel)
	AddPostsArchived(n int)
	SetQuotaRemaining(n int)

	ObserveDeployDuration(target string, d time.Duration, success bool)
	IncDeployResult(target string, success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are
// not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration)                  {}
func (NoopRecorder) IncBuildOutcome(ResultLabel)                         {}
func (NoopRecorder) SetPagesRendered(int)                                {}
func (NoopRecorder) IncRebuild(string)                                   {}
func (NoopRecorder) ObserveCollectDuration(time.Duration)                {}
func (NoopRecorder) IncCollectOutcome(ResultLabel)                       {}
func (NoopRecorder) AddPostsArchived(int)                                {}
func (NoopRecorder) SetQuotaRemaining(int)                               {}
func (NoopRecorder) ObserveDeployDuration(string, time.Duration, bool)   {}
func (NoopRecorder) IncDeployResult(string, bool)                        {}
