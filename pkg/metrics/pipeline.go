package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics counts notification pipeline outcomes. Drops are deliberate
// (duplicates, rate limits) and never surface as errors, so counters are the
// only place they remain visible.
type PipelineMetrics struct {
	delivered    prometheus.Counter
	consolidated prometheus.Counter
	dropped      *prometheus.CounterVec
	pushFailures prometheus.Counter
}

// NewPipelineMetrics registers the pipeline counters on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	delivered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_delivered_total",
		Help: "Notifications persisted by the pipeline.",
	})
	consolidated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_consolidated_total",
		Help: "Consolidated summary notifications created.",
	})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_dropped_total",
		Help: "Candidates dropped before persistence.",
	}, []string{"reason"})
	pushFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_push_failures_total",
		Help: "Push dispatch attempts that failed.",
	})
	reg.MustRegister(delivered, consolidated, dropped, pushFailures)
	return &PipelineMetrics{
		delivered:    delivered,
		consolidated: consolidated,
		dropped:      dropped,
		pushFailures: pushFailures,
	}
}

// IncDelivered counts one persisted notification.
func (p *PipelineMetrics) IncDelivered() {
	if p == nil || p.delivered == nil {
		return
	}
	p.delivered.Inc()
}

// IncConsolidated counts one consolidated summary.
func (p *PipelineMetrics) IncConsolidated() {
	if p == nil || p.consolidated == nil {
		return
	}
	p.consolidated.Inc()
}

// IncDropped counts one dropped candidate by reason.
func (p *PipelineMetrics) IncDropped(reason string) {
	if p == nil || p.dropped == nil {
		return
	}
	p.dropped.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncPushFailure counts one failed push dispatch.
func (p *PipelineMetrics) IncPushFailure() {
	if p == nil || p.pushFailures == nil {
		return
	}
	p.pushFailures.Inc()
}
