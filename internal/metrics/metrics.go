// Package metrics exposes engine counters for Prometheus.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Transition sources.
const (
	SourceOverride  = "override"
	SourceAggregate = "aggregate"
	SourceAssign    = "assign"
)

// Recorder holds the engine collectors. A nil *Recorder records nothing.
type Recorder struct {
	transitions *prometheus.CounterVec
	denials     *prometheus.CounterVec
	invites     *prometheus.CounterVec
}

// New builds a Recorder and registers its collectors with reg. Collectors
// already registered by an earlier Recorder are reused.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskflow",
			Subsystem: "engine",
			Name:      "task_transitions_total",
			Help:      "Count of applied task global state changes",
		}, []string{"source", "from", "to"}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskflow",
			Subsystem: "engine",
			Name:      "policy_denials_total",
			Help:      "Count of operations rejected by the permission policy",
		}, []string{"operation", "rule"}),
		invites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskflow",
			Subsystem: "engine",
			Name:      "invite_validations_total",
			Help:      "Invite validation outcomes",
		}, []string{"outcome"}),
	}
	if reg == nil {
		return r
	}
	r.transitions = register(reg, r.transitions)
	r.denials = register(reg, r.denials)
	r.invites = register(reg, r.invites)
	return r
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}

// Transition counts an applied global state change.
func (r *Recorder) Transition(source, from, to string) {
	if r == nil {
		return
	}
	r.transitions.With(prometheus.Labels{"source": source, "from": from, "to": to}).Inc()
}

// Denied counts a policy denial.
func (r *Recorder) Denied(operation, rule string) {
	if r == nil {
		return
	}
	r.denials.With(prometheus.Labels{"operation": operation, "rule": rule}).Inc()
}

// InviteValidated counts an invite validation outcome.
func (r *Recorder) InviteValidated(outcome string) {
	if r == nil {
		return
	}
	r.invites.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// TransitionCounter exposes the transition collector for inspection.
func (r *Recorder) TransitionCounter() *prometheus.CounterVec { return r.transitions }

// DenialCounter exposes the denial collector for inspection.
func (r *Recorder) DenialCounter() *prometheus.CounterVec { return r.denials }

// InviteCounter exposes the invite collector for inspection.
func (r *Recorder) InviteCounter() *prometheus.CounterVec { return r.invites }
