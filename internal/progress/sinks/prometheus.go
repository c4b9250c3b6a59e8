package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/site-archiver/internal/progress"
)

// PrometheusSink exports run, page and archive metrics.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsActive    prometheus.Gauge
	runDuration   prometheus.Histogram

	pages        *prometheus.CounterVec
	pageBytes    prometheus.Counter
	pageDuration *prometheus.HistogramVec

	archives     prometheus.Counter
	archiveBytes prometheus.Counter
	deliveries   prometheus.Counter
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archiver_runs_started_total",
			Help: "Crawl runs started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_runs_completed_total",
			Help: "Crawl runs finished, partitioned by result.",
		}, []string{"result"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "archiver_runs_active",
			Help: "Crawl runs currently in progress.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "archiver_run_duration_seconds",
			Help:    "Wall time per finished run.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_pages_total",
			Help: "Processed pages partitioned by result.",
		}, []string{"result"}),
		pageBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archiver_page_bytes_total",
			Help: "Bytes downloaded for saved pages.",
		}),
		pageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "archiver_page_duration_seconds",
			Help:    "Fetch and export time per page.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 15, 30},
		}, []string{"result"}),
		archives: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archiver_archives_total",
			Help: "Archives written.",
		}),
		archiveBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archiver_archive_bytes_total",
			Help: "Bytes written to archives.",
		}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archiver_deliveries_total",
			Help: "Archives handed to a delivery channel.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsActive,
		s.runDuration,
		s.pages,
		s.pageBytes,
		s.pageDuration,
		s.archives,
		s.archiveBytes,
		s.deliveries,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		s.runsActive.Inc()
	case progress.StageRunDone:
		result := "success"
		if evt.Counters.Scraped == 0 {
			result = "empty"
		}
		s.runsCompleted.WithLabelValues(result).Inc()
		s.runsActive.Dec()
		if evt.Dur > 0 {
			s.runDuration.Observe(evt.Dur.Seconds())
		}
	case progress.StagePageSaved:
		s.observePage("saved", evt)
		if evt.Bytes > 0 {
			s.pageBytes.Add(float64(evt.Bytes))
		}
	case progress.StagePageFailed:
		s.observePage("failed", evt)
	case progress.StageArchived:
		s.archives.Inc()
		if evt.Bytes > 0 {
			s.archiveBytes.Add(float64(evt.Bytes))
		}
	case progress.StageDelivered:
		s.deliveries.Inc()
	}
}

func (s *PrometheusSink) observePage(result string, evt progress.Event) {
	s.pages.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.pageDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
