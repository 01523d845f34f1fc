// Package metrics registers the engine's Prometheus collectors.
//
// Counters cover the paths where silent drift would otherwise hide:
// fan-out writes, reminder appends, version-conflict retries, and push
// publishes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FanoutDelivered counts notifications appended by content fan-out,
	// labeled by content kind (event, news, report).
	FanoutDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hearth",
		Subsystem: "fanout",
		Name:      "delivered_total",
		Help:      "Notifications appended to recipient inboxes by content fan-out.",
	}, []string{"kind"})

	// FanoutFailed counts recipient writes that failed during fan-out.
	FanoutFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hearth",
		Subsystem: "fanout",
		Name:      "failed_total",
		Help:      "Recipient inbox writes that failed during content fan-out.",
	}, []string{"kind"})

	// RemindersAppended counts reminder notifications created by the sweep.
	RemindersAppended = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hearth",
		Subsystem: "reminder",
		Name:      "appended_total",
		Help:      "Event reminders appended by the daily sweep.",
	})

	// RemindersSkipped counts sweep skips due to an existing reminder.
	RemindersSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hearth",
		Subsystem: "reminder",
		Name:      "skipped_total",
		Help:      "Sweep visits skipped because the reminder already existed.",
	})

	// VersionConflicts counts optimistic-concurrency retries, labeled by
	// collection.
	VersionConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hearth",
		Subsystem: "store",
		Name:      "version_conflicts_total",
		Help:      "Guarded writes that lost a version race and were retried.",
	}, []string{"collection"})

	// PushPublished counts push payloads handed to the delivery channel.
	PushPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hearth",
		Subsystem: "delivery",
		Name:      "push_published_total",
		Help:      "Push payloads published to the delivery channel.",
	})

	// PushFailed counts push deliveries that failed after retries.
	PushFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hearth",
		Subsystem: "delivery",
		Name:      "push_failed_total",
		Help:      "Push deliveries abandoned after exhausting retries.",
	})

	// ReconcileRepairs counts divergent membership records repaired by the
	// consistency sweep.
	ReconcileRepairs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hearth",
		Subsystem: "membership",
		Name:      "reconcile_repairs_total",
		Help:      "Roster/pointer divergences repaired by the consistency sweep.",
	})
)
