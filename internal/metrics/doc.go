// Package metrics defines the Recorder interface the build, collect, and
// deploy paths report through, plus the implementations behind it.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so callers never nil-check before recording:
//
//	b := build.New(cfg)            // records into NoopRecorder
//	b.SetRecorder(metrics.NewPrometheusRecorder(reg))
//
// NewPrometheusRecorder registers the fieldsite metric families on a
// prometheus registry; HTTPHandler exposes that registry for the serve and
// daemon HTTP surfaces. Tests inject a Recorder fake to assert what a run
// reported.
package metrics
