// Package metrics exposes Prometheus counters for engine outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's outcome counters.
type Metrics struct {
	DenialsTotal              *prometheus.CounterVec
	LockAcquisitionsTotal     prometheus.Counter
	LockConflictsTotal        prometheus.Counter
	LocksSweptTotal           prometheus.Counter
	PreconditionFailuresTotal prometheus.Counter
	NoopUpdatesTotal          prometheus.Counter
	RevisionsWrittenTotal     prometheus.Counter
	RevisionRollbacksTotal    prometheus.Counter
	VersionsPublishedTotal    prometheus.Counter
}

// New creates and registers the engine metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DenialsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "velta_denials_total",
				Help: "Requests denied by the permission resolver",
			},
			[]string{"resource", "method"},
		),
		LockAcquisitionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "velta_lock_acquisitions_total",
			Help: "Successful lock acquisitions and renewals",
		}),
		LockConflictsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "velta_lock_conflicts_total",
			Help: "Lock acquisitions rejected because another holder was active",
		}),
		LocksSweptTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "velta_locks_swept_total",
			Help: "Expired lock rows removed by the hygiene sweeper",
		}),
		PreconditionFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "velta_precondition_failures_total",
			Help: "Updates rejected by the expected-revision check",
		}),
		NoopUpdatesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "velta_noop_updates_total",
			Help: "Updates short-circuited because the body was unchanged",
		}),
		RevisionsWrittenTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "velta_revisions_written_total",
			Help: "Revision snapshots inserted",
		}),
		RevisionRollbacksTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "velta_revision_rollbacks_total",
			Help: "Compensating revision deletes after a failed replace",
		}),
		VersionsPublishedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "velta_versions_published_total",
			Help: "Revisions promoted to published versions",
		}),
	}
}
