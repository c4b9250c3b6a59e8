// Package crawler implements the breadth-first crawl controller that drives a
// site archive run: it owns the frontier, the visited set and the run report,
// and delegates fetching, cleaning, exporting and link discovery to the
// collaborators declared in interfaces.go.
package crawler
