// Package observability provides logging, event recording, metrics and
// alerting for lmay. Validation and drift runs are appended to a JSON Lines
// (JSONL) event log; metrics and alerts are derived from it on demand, and
// per-run Prometheus metrics can be written to a textfile.
package observability
