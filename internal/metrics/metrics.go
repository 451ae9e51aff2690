package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "connectaid_voice_turns_total",
		Help: "Voice turns started.",
	})

	CaptureFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connectaid_capture_failures_total",
		Help: "Speech captures that failed, by kind.",
	}, []string{"kind"})

	AlertsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connectaid_alerts_submitted_total",
		Help: "Alerts submitted, by intake channel and category.",
	}, []string{"channel", "category"})

	NLUFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "connectaid_nlu_fallbacks_total",
		Help: "Collaborator calls that fell back to a canned result.",
	})

	ResponderLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connectaid_responder_lookups_total",
		Help: "Responder lookups, by outcome.",
	}, []string{"outcome"})
)
