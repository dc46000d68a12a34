// Package metrics exposes Prometheus metrics derived from the
// orchestrator's event stream. This package is internal and should not
// be imported by external projects.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/parley-ai/parley/orchestrator"
)

// Collector consumes orchestrator events and maintains Prometheus
// metrics.
type Collector struct {
	messagesTotal      *prometheus.CounterVec
	pipelineDuration   prometheus.Histogram
	skillExecutions    *prometheus.CounterVec
	breakerTransitions *prometheus.CounterVec
	streamsTotal       *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector registers the metric families on reg (nil selects the
// default registerer).
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	return &Collector{
		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Processed messages by outcome.",
		}, []string{"outcome"}),
		pipelineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "End-to-end pipeline latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		skillExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skill_executions_total",
			Help:      "Skill executions by skill and result.",
		}, []string{"skill_id", "success"}),
		breakerTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker transitions by dependency and target state.",
		}, []string{"dependency", "to"}),
		streamsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Streaming responses by outcome.",
		}, []string{"outcome"}),
		logger: logger.With(zap.String("component", "metrics")),
	}
}

// Consume processes events until the channel closes. Run it in its own
// goroutine.
func (c *Collector) Consume(events <-chan orchestrator.Event) {
	for ev := range events {
		c.observe(ev)
	}
}

func (c *Collector) observe(ev orchestrator.Event) {
	switch ev.Type {
	case orchestrator.EventMessageProcessed:
		outcome := "ok"
		if ev.Degraded {
			outcome = "degraded"
		}
		if !ev.Success {
			outcome = "failed"
		}
		c.messagesTotal.WithLabelValues(outcome).Inc()
		c.pipelineDuration.Observe(ev.Duration.Seconds())
	case orchestrator.EventSkillExecuted:
		c.skillExecutions.WithLabelValues(ev.SkillID, boolLabel(ev.Success)).Inc()
	case orchestrator.EventBreakerChanged:
		c.breakerTransitions.WithLabelValues(ev.Dependency, ev.ToState).Inc()
	case orchestrator.EventStreamFinished:
		outcome := "completed"
		if ev.Cancelled {
			outcome = "cancelled"
		} else if !ev.Success {
			outcome = "failed"
		}
		c.streamsTotal.WithLabelValues(outcome).Inc()
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
