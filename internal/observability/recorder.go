// Package observability exports session metrics to Prometheus.
package observability

import (
	"context"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JaimeStill/intake/internal/ingest"
)

const namespace = "intake"

// Recorder turns session events into Prometheus metrics.
type Recorder struct {
	transitions  *prom.CounterVec
	sessions     *prom.CounterVec
	pollAttempts *prom.HistogramVec
	softErrors   *prom.CounterVec
	triggers     *prom.CounterVec
	active       prom.Gauge
}

// NewRecorder registers the session metrics with reg. A nil registry gets a
// fresh one with Go and process collectors.
func NewRecorder(reg *prom.Registry) (*Recorder, *prom.Registry) {
	if reg == nil {
		reg = prom.NewRegistry()
		reg.MustRegister(
			promcollect.NewGoCollector(),
			promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}),
		)
	}

	r := &Recorder{
		transitions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session status transitions by target status",
		}, []string{"status"}),
		sessions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Sessions reaching a terminal status",
		}, []string{"status", "message"}),
		pollAttempts: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_attempts",
			Help:      "Status fetches performed before a terminal polling outcome",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 45, 90},
		}, []string{"status"}),
		softErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "soft_errors_total",
			Help:      "Recorded soft failures by code",
		}, []string{"code"}),
		triggers: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "trigger_results_total",
			Help:      "Downstream trigger attempts by result",
		}, []string{"result"}),
		active: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions that left idle and have not reached a terminal status",
		}),
	}

	reg.MustRegister(r.transitions, r.sessions, r.pollAttempts, r.softErrors, r.triggers, r.active)
	return r, reg
}

// Observe implements ingest.Observer.
func (r *Recorder) Observe(_ context.Context, ev ingest.Event) {
	snap := ev.Snapshot

	switch ev.Kind {
	case ingest.EventTransition:
		r.transitions.WithLabelValues(string(snap.Status)).Inc()

		switch {
		case ev.From == ingest.StatusIdle:
			r.active.Inc()
		case snap.Status.Terminal():
			r.active.Dec()
			class, _ := snap.Message()
			r.sessions.WithLabelValues(string(snap.Status), string(class)).Inc()
			if snap.Status != ingest.StatusTransferFailed {
				r.pollAttempts.WithLabelValues(string(snap.Status)).Observe(float64(snap.Attempts))
			}
			for _, e := range snap.SoftErrors {
				r.softErrors.WithLabelValues(e.Code).Inc()
			}
		}

	case ingest.EventTrigger:
		r.triggers.WithLabelValues(string(ev.Trigger)).Inc()
		if ev.Trigger == ingest.TriggerFailed {
			r.softErrors.WithLabelValues(ingest.CodeTriggerFailed).Inc()
		}

	case ingest.EventAbandon:
		if snap.Status != ingest.StatusIdle {
			r.active.Dec()
		}
	}
}
