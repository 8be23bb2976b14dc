// Package metrics holds the Prometheus collectors shared by the view session
// components. Everything registers on the default registry via promauto.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pastee"

var (
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "notifications_total",
			Help:      "Push notifications received, by channel.",
		},
		[]string{"channel"},
	)

	NotificationDecodeFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "decode_failures_total",
			Help:      "Push notifications dropped because the payload did not decode.",
		},
		[]string{"channel"},
	)

	ReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "reconnects_total",
			Help:      "Push connections re-established after a drop.",
		},
	)

	StaleResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "stale_responses_total",
			Help:      "Responses discarded because a newer request of the same kind was issued.",
		},
		[]string{"kind"},
	)

	RemoteFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "remote_failures_total",
			Help:      "Backend calls that failed, by operation.",
		},
		[]string{"op"},
	)

	ThumbnailHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "thumbcache",
			Name:      "hits_total",
			Help:      "Thumbnail resolutions served from the cache.",
		},
	)

	ThumbnailMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "thumbcache",
			Name:      "misses_total",
			Help:      "Thumbnail resolutions that required a backend fetch.",
		},
	)

	ThumbnailEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "thumbcache",
			Name:      "evictions_total",
			Help:      "Thumbnails evicted by the LRU bound.",
		},
	)

	ThumbnailFetchFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "thumbcache",
			Name:      "fetch_failures_total",
			Help:      "Thumbnail fetches that failed.",
		},
	)
)

// Dispatch executor metrics. queueDepth is only updated in the worker
// goroutine, so it has a single writer.
var (
	DispatchSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "submissions_total",
			Help:      "Jobs successfully accepted for execution.",
		},
		[]string{"shard"},
	)

	DispatchQueueFullTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "queue_full_total",
			Help:      "Enqueue attempts that timed out (per-shard queue full).",
		},
		[]string{"shard"},
	)

	DispatchRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "run_duration_seconds",
			Help:      "Job execution latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"shard"},
	)

	DispatchQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "queue_depth",
			Help:      "Current depth of each shard queue.",
		},
		[]string{"shard"},
	)
)

// ShardLabel renders a shard index as a label value.
func ShardLabel(i int) string { return strconv.Itoa(i) }
