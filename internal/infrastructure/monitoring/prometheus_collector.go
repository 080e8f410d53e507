package monitoring

import (
	"time"

	"a2dpmgr/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector is C8's concrete Metrics implementation, rewritten
// from the teacher's WebRTC/CDN gauge set to the A2DP counters §4 calls out:
// unhandled-event tracking (§4.2), admission denials (§4.4), active-peer
// swap outcomes (§4.4), and per-event dispatch latency (§4.5).
type PrometheusCollector struct {
	stateTransitionsTotal *prometheus.CounterVec
	admissionDeniedTotal  *prometheus.CounterVec
	activePeerSwapsTotal  *prometheus.CounterVec
	unhandledEventsTotal  *prometheus.CounterVec
	gatewayBreakerState   *prometheus.GaugeVec
	dispatchLatency       *prometheus.HistogramVec
	admittedPeers         *prometheus.GaugeVec
	mediaEventsTotal      *prometheus.CounterVec
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		stateTransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "a2dp_state_transitions_total",
			Help: "Total PeerStateMachine transitions by role, from-state, and to-state",
		}, []string{"role", "from", "to"}),

		admissionDeniedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "a2dp_admission_denied_total",
			Help: "Total connection requests denied admission because a role is at max_peers",
		}, []string{"role"}),

		activePeerSwapsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "a2dp_active_peer_swaps_total",
			Help: "Total active-peer swap attempts by role and result",
		}, []string{"role", "result"}),

		unhandledEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "a2dp_unhandled_events_total",
			Help: "Total events a PeerStateMachine state declared unhandled, by role, state, and opcode",
		}, []string{"role", "state", "opcode"}),

		gatewayBreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "a2dp_gateway_breaker_state",
			Help: "AudioSessionGateway circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"role"}),

		dispatchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "a2dp_dispatch_latency_seconds",
			Help:    "Time spent inside StateMachine.Process for one event",
			Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"role", "opcode"}),

		admittedPeers: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "a2dp_admitted_peers",
			Help: "Peers currently occupying an admission slot (Opening/Opened/Started), by role",
		}, []string{"role"}),

		mediaEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "a2dp_media_events_total",
			Help: "Media-thread events by role and outcome (accepted for the active stream-ready peer, or dropped)",
		}, []string{"role", "outcome"}),
	}
}

// ObserveDispatchLatency implements services.Metrics.
func (p *PrometheusCollector) ObserveDispatchLatency(role domain.RoleKind, opcode string, d time.Duration) {
	p.dispatchLatency.WithLabelValues(role.String(), opcode).Observe(d.Seconds())
}

// IncUnhandledEvent implements services.Metrics.
func (p *PrometheusCollector) IncUnhandledEvent(role domain.RoleKind, state, opcode string) {
	p.unhandledEventsTotal.WithLabelValues(role.String(), state, opcode).Inc()
}

// IncAdmissionDenied implements services.Metrics.
func (p *PrometheusCollector) IncAdmissionDenied(role domain.RoleKind) {
	p.admissionDeniedTotal.WithLabelValues(role.String()).Inc()
}

// IncStateTransition implements services.Metrics.
func (p *PrometheusCollector) IncStateTransition(role domain.RoleKind, from, to string) {
	p.stateTransitionsTotal.WithLabelValues(role.String(), from, to).Inc()
}

// IncMediaEvent implements services.Metrics.
func (p *PrometheusCollector) IncMediaEvent(role domain.RoleKind, accepted bool) {
	outcome := "dropped"
	if accepted {
		outcome = "accepted"
	}
	p.mediaEventsTotal.WithLabelValues(role.String(), outcome).Inc()
}

// RecordActivePeerSwap records a §4.4 active-peer swap outcome.
func (p *PrometheusCollector) RecordActivePeerSwap(role domain.RoleKind, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	p.activePeerSwapsTotal.WithLabelValues(role.String(), result).Inc()
}

// SetGatewayBreakerState records the AudioSessionGateway's global circuit
// breaker state for a role. The gateway's circuitbreaker.OnStateChange hooks
// only log state changes and do not call it.
func (p *PrometheusCollector) SetGatewayBreakerState(role domain.RoleKind, state int) {
	p.gatewayBreakerState.WithLabelValues(role.String()).Set(float64(state))
}

// SetAdmittedPeers records a role's current admission-slot occupancy, for
// the §8 sum-never-exceeds-max invariant to be visible as a dashboard panel.
func (p *PrometheusCollector) SetAdmittedPeers(role domain.RoleKind, count int) {
	p.admittedPeers.WithLabelValues(role.String()).Set(float64(count))
}
