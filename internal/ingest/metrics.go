package ingest

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the per-process counters exposed on -metrics-addr.
type Metrics struct {
	RecordsRead   prometheus.Counter
	RecordsPassed prometheus.Counter
	RecordErrors  prometheus.Counter
	FilesErrored  prometheus.Counter
}

// NewMetrics constructs and registers the ingest counters against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bgpgrep_records_read_total",
			Help: "MRT records read across all input files.",
		}),
		RecordsPassed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bgpgrep_records_passed_total",
			Help: "Records that passed the compiled filter and were printed.",
		}),
		RecordErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bgpgrep_record_errors_total",
			Help: "Records that failed to decode and were skipped.",
		}),
		FilesErrored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bgpgrep_files_errored_total",
			Help: "Input files abandoned after a fatal decode error.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.RecordsRead, m.RecordsPassed, m.RecordErrors, m.FilesErrored)
	}
	return m
}
