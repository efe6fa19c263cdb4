// Package metrics exposes Prometheus counters for an import run.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chatgpt_notion"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	conversations *prometheus.CounterVec
	blocks        *prometheus.CounterVec
	requests      *prometheus.CounterVec
	duration      prometheus.Histogram
}

// MustNewMetrics registers the import collectors on reg and panics if any
// of them is already registered.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		conversations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_total",
			Help:      "Conversations handled, by outcome.",
		}, []string{"outcome"}),
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_total",
			Help:      "Content blocks appended or dropped.",
		}, []string{"result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_requests_total",
			Help:      "Notion API responses, by operation and status code.",
		}, []string{"op", "status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversation_duration_seconds",
			Help:      "Time spent delivering one conversation.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
	}
	reg.MustRegister(m.conversations, m.blocks, m.requests, m.duration)
	return m
}

func (m *Metrics) RecordConversation(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.conversations.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) RecordBlocks(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.blocks.WithLabelValues(result).Add(float64(n))
}

// RecordRequest counts a remote response. Status 0 is a transport failure.
func (m *Metrics) RecordRequest(op string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, strconv.Itoa(status)).Inc()
}
