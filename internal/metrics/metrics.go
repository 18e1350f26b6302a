// Package metrics holds the Prometheus collectors for the support pipeline.
//
// All methods are nil-safe so components can run without a registry in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reply tiers, used as the "tier" label.
const (
	TierWelcome    = "welcome"
	TierKnowledge  = "knowledge"
	TierCompletion = "completion"
	TierFallback   = "fallback"
	TierGratitude  = "gratitude"
	TierHandover   = "handover"
)

// Metrics groups every collector the bot exports.
type Metrics struct {
	replies            *prometheus.CounterVec
	escalations        prometheus.Counter
	notifyFailures     prometheus.Counter
	sendFailures       prometheus.Counter
	completionFailures prometheus.Counter
	silenced           prometheus.Counter
	pacerWait          prometheus.Histogram
	sessions           prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		replies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "supportdesk_replies_total",
			Help: "Replies sent to users by tier",
		}, []string{"tier"}),
		escalations: f.NewCounter(prometheus.CounterOpts{
			Name: "supportdesk_escalations_total",
			Help: "Conversations handed over to an operator",
		}),
		notifyFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "supportdesk_notify_failures_total",
			Help: "Operator alerts that could not be delivered",
		}),
		sendFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "supportdesk_send_failures_total",
			Help: "Replies that failed to reach the user",
		}),
		completionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "supportdesk_completion_failures_total",
			Help: "Completion requests that failed and fell back to the fixed text",
		}),
		silenced: f.NewCounter(prometheus.CounterOpts{
			Name: "supportdesk_silenced_messages_total",
			Help: "Messages ignored because the conversation is with an operator",
		}),
		pacerWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "supportdesk_pacer_wait_seconds",
			Help:    "Time spent in the global send pacer, including the jitter sleep",
			Buckets: []float64{0.5, 1, 2.5, 5, 7.5, 10, 20, 40, 80},
		}),
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "supportdesk_sessions",
			Help: "Sessions held in memory",
		}),
	}
}

func (m *Metrics) Reply(tier string) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(tier).Inc()
}

func (m *Metrics) Escalation() {
	if m == nil {
		return
	}
	m.escalations.Inc()
}

func (m *Metrics) NotifyFailure() {
	if m == nil {
		return
	}
	m.notifyFailures.Inc()
}

func (m *Metrics) SendFailure() {
	if m == nil {
		return
	}
	m.sendFailures.Inc()
}

func (m *Metrics) CompletionFailure() {
	if m == nil {
		return
	}
	m.completionFailures.Inc()
}

func (m *Metrics) Silenced() {
	if m == nil {
		return
	}
	m.silenced.Inc()
}

func (m *Metrics) PacerWait(d time.Duration) {
	if m == nil {
		return
	}
	m.pacerWait.Observe(d.Seconds())
}

// SetSessions records the current number of stored sessions.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}
