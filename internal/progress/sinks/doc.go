// Package sinks implements concrete progress consumers: structured logging,
// Prometheus collectors and an in-memory snapshot for the status API. Each
// sink satisfies progress.Sink.
package sinks
