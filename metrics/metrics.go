// Package metrics exposes Prometheus instrumentation for calculator runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes used as the status label
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusPartial = "partial"
)

// Registry holds the collectors for calculator runs
type Registry struct {
	reg *prometheus.Registry

	RunsTotal            *prometheus.CounterVec
	RunDuration          *prometheus.HistogramVec
	RowsWritten          *prometheus.CounterVec
	UpsertFailures       *prometheus.CounterVec
	LastSuccess          *prometheus.GaugeVec
	DistributionDayCount *prometheus.GaugeVec
	CrossSectionSize     *prometheus.GaugeVec
}

// New creates a registry with every collector registered
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runs_total",
				Help: "Calculator runs by job and outcome",
			},
			[]string{"job", "status"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "run_duration_seconds",
				Help:    "Wall time of calculator runs",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 900},
			},
			[]string{"job"},
		),
		RowsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rows_written_total",
				Help: "Rows upserted per table",
			},
			[]string{"table"},
		),
		UpsertFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upsert_failures_total",
				Help: "Individual row or unit write failures",
			},
			[]string{"job"},
		),
		LastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "last_success_timestamp_seconds",
				Help: "Unix time of the last successful run",
			},
			[]string{"job"},
		),
		DistributionDayCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "distribution_day_count",
				Help: "Active distribution days in the lookback window",
			},
			[]string{"symbol"},
		),
		CrossSectionSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cross_section_size",
				Help: "Instruments or groups ranked in the last run",
			},
			[]string{"job"},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.RunsTotal,
		r.RunDuration,
		r.RowsWritten,
		r.UpsertFailures,
		r.LastSuccess,
		r.DistributionDayCount,
		r.CrossSectionSize,
	)
	return r
}

// ObserveRun records one finished run
func (r *Registry) ObserveRun(job, status string, started time.Time) {
	r.RunsTotal.WithLabelValues(job, status).Inc()
	r.RunDuration.WithLabelValues(job).Observe(time.Since(started).Seconds())
	if status == StatusSuccess {
		r.LastSuccess.WithLabelValues(job).Set(float64(time.Now().Unix()))
	}
}

// AddRows counts rows written to a table
func (r *Registry) AddRows(table string, n int) {
	if n > 0 {
		r.RowsWritten.WithLabelValues(table).Add(float64(n))
	}
}

func (r *Registry) AddFailures(job string, n int) {
	if n > 0 {
		r.UpsertFailures.WithLabelValues(job).Add(float64(n))
	}
}

func (r *Registry) SetCrossSection(job string, n int) {
	r.CrossSectionSize.WithLabelValues(job).Set(float64(n))
}

func (r *Registry) SetDistributionCount(symbol string, n int) {
	r.DistributionDayCount.WithLabelValues(symbol).Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
