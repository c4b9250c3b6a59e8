// Package progress carries the event stream a crawl run emits. The controller
// calls Emit on a non-blocking Hub, which batches events on a background
// goroutine and fans them out to sinks such as structured logs, Prometheus
// collectors or the snapshot polled by the status API.
package progress
