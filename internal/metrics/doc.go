// Package metrics provides build and stage observability hooks.
//
// All components take a Recorder. NoopRecorder is the default so callers
// never nil-check; PrometheusRecorder registers collectors on a private
// registry which can be exported to a node-exporter textfile after a run
// (one-shot CI jobs have no scrape endpoint).
package metrics
