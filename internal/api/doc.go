// Package api hosts the optional status server that runs beside a crawl.
// Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for the latest progress Snapshot.
//   - GET /v1/archives for the archive ledger.
//   - POST /v1/stop to end the current run after the page in flight.
package api
