// Package monitoring exposes Prometheus metrics for import previews and
// executions.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/leadimport/internal/model"
)

var (
	jobLabels = []string{"source", "strategy", "status"}

	ImportJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadimport_jobs_total",
			Help: "Import executions by source, strategy and final status.",
		},
		jobLabels,
	)

	ImportRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadimport_rows_total",
			Help: "Imported rows by terminal action.",
		},
		[]string{"action"},
	)

	CompaniesResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadimport_companies_resolved_total",
			Help: "Companies created or linked while importing.",
		},
		[]string{"action"},
	)

	PreviewRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadimport_preview_rows_total",
			Help: "Previewed rows by contact status.",
		},
		[]string{"contact_status"},
	)

	ImportDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadimport_duration_seconds",
			Help:    "Duration of preview and execute calls.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"operation"},
	)
)

// ObserveImport records the outcome of one execution. A nil result counts
// only the job.
func ObserveImport(source string, strategy model.Strategy, status model.JobStatus, res *model.ImportResult, d time.Duration) {
	ImportJobsTotal.WithLabelValues(labelOr(source), labelOr(string(strategy)), string(status)).Inc()
	ImportDurationSeconds.WithLabelValues("execute").Observe(d.Seconds())
	if res == nil {
		return
	}
	ImportRowsTotal.WithLabelValues(string(model.ActionCreated)).Add(float64(res.ContactsCreated))
	ImportRowsTotal.WithLabelValues(string(model.ActionUpdated)).Add(float64(res.ContactsUpdated))
	ImportRowsTotal.WithLabelValues(string(model.ActionSkipped)).Add(float64(res.ContactsSkipped))
	ImportRowsTotal.WithLabelValues(string(model.ActionError)).Add(float64(res.ContactsErrored))
	CompaniesResolvedTotal.WithLabelValues(string(model.CompanyActionCreated)).Add(float64(res.CompaniesCreated))
	CompaniesResolvedTotal.WithLabelValues(string(model.CompanyActionLinked)).Add(float64(res.CompaniesLinked))
}

// ObservePreview records the contact classification of each previewed row.
func ObservePreview(decisions []model.DedupDecision, d time.Duration) {
	ImportDurationSeconds.WithLabelValues("preview").Observe(d.Seconds())
	for _, dec := range decisions {
		status := string(dec.ContactStatus)
		if dec.Reason != "" {
			status = dec.Reason
		}
		PreviewRowsTotal.WithLabelValues(status).Inc()
	}
}

func labelOr(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
