package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Upload and commit outcomes used as metric labels.
const (
	outcomeOK       = "ok"
	outcomeNoRows   = "no_valid_transactions"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// Metrics counts session activity. A nil *Metrics records nothing.
type Metrics struct {
	uploads   *prometheus.CounterVec
	staged    prometheus.Counter
	skipped   *prometheus.CounterVec
	commits   *prometheus.CounterVec
	committed prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statement_import",
			Name:      "uploads_total",
			Help:      "Uploaded statement files by outcome.",
		}, []string{"outcome"}),
		staged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statement_import",
			Name:      "staged_rows_total",
			Help:      "Rows staged for review.",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statement_import",
			Name:      "skipped_rows_total",
			Help:      "Data rows left out of the staged list, by reason.",
		}, []string{"reason"}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statement_import",
			Name:      "commits_total",
			Help:      "Commit attempts by outcome.",
		}, []string{"outcome"}),
		committed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statement_import",
			Name:      "committed_rows_total",
			Help:      "Rows handed to the committer successfully.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.uploads, m.staged, m.skipped, m.commits, m.committed)
	}
	return m
}

func (m *Metrics) observeUpload(outcome string, preview *Preview) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
	if preview == nil {
		return
	}
	m.staged.Add(float64(len(preview.Rows)))
	for reason, n := range preview.Skipped {
		m.skipped.WithLabelValues(string(reason)).Add(float64(n))
	}
}

func (m *Metrics) observeCommit(outcome string, rows int) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(outcome).Inc()
	if outcome == outcomeOK {
		m.committed.Add(float64(rows))
	}
}
