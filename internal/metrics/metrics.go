package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BeatsHitTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campaign_beats_hit_total",
		Help: "Total number of beats recorded as hit.",
	})

	BeatsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campaign_beats_expired_total",
		Help: "Total number of beats recorded as expired at episode close.",
	})

	EpisodesClosedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campaign_episodes_closed_total",
		Help: "Total number of episodes closed.",
	})

	ThreatAdvancesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campaign_threat_advances_total",
		Help: "Total number of threat stage advances.",
	})

	CampaignsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_completions_total",
			Help: "Total number of mutations that left a campaign complete, by reason.",
		},
		[]string{"reason"},
	)

	JournalErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campaign_journal_errors_total",
		Help: "Total number of journal writes that failed.",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campaign_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Route collapses ids in a request path so metric labels stay bounded, e.g.
// /v1/campaigns/abc/hit-beat becomes /v1/campaigns/{id}/hit-beat.
func Route(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "v1" {
		return path
	}
	switch parts[1] {
	case "campaigns":
		parts[2] = "{id}"
		if len(parts) >= 5 && parts[3] == "npcs" {
			parts[4] = "{name}"
		}
	case "templates":
		parts[2] = "{id}"
	case "events":
		if len(parts) >= 4 {
			parts[3] = "{id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}
