package flow

import (
	"math"
	"time"
)

// State is derived state: it can always be recomputed from the signal
// log, and the reducer returns a fresh value on every fold.
type State struct {
	Standings map[string]float64
	Roles     map[string]string
}

// NewState returns an empty state.
func NewState() State {
	return State{
		Standings: make(map[string]float64),
		Roles:     make(map[string]string),
	}
}

// Reducer folds signals into standings under a versioned policy.
// Same signals + same policy → same state, always.
type Reducer struct {
	policy Policy
}

// NewReducer creates a reducer bound to a policy.
func NewReducer(policy Policy) *Reducer {
	return &Reducer{policy: policy}
}

// Policy returns the bound policy.
func (r *Reducer) Policy() Policy {
	return r.policy
}

// Reduce folds the full signal log, in (time, signal_id) order, into a
// fresh state.
func (r *Reducer) Reduce(signals []Signal) State {
	state := NewState()
	for _, signal := range SortSignals(signals) {
		r.apply(&state, signal)
	}
	return state
}

// ReduceAt folds only signals with time <= t. The replay law holds by
// construction: ReduceAt(S, t) equals Reduce applied to the prefix of S
// at or before t, starting from genesis.
func (r *Reducer) ReduceAt(signals []Signal, t time.Time) State {
	prefix := make([]Signal, 0, len(signals))
	for _, s := range signals {
		if !s.Time.After(t) {
			prefix = append(prefix, s)
		}
	}
	return r.Reduce(prefix)
}

// StandingFor reduces the log and returns one agent's standing, falling
// back to the observer bootstrap value for unknown agents.
func (r *Reducer) StandingFor(signals []Signal, agentID string) float64 {
	state := r.Reduce(signals)
	if s, ok := state.Standings[agentID]; ok {
		return s
	}
	return r.policy.InitialStanding("observer")
}

func (r *Reducer) apply(state *State, signal Signal) {
	switch signal.SignalType {
	case SignalAgentRegistered:
		r.applyAgentRegistered(state, signal)
	case SignalPolicyRegistered:
		r.applyPolicyRegistered(state, signal)
	case SignalTruthStateEmitted:
		r.applyTruthStateEmitted(state, signal)
	case SignalPenaltyApplied:
		r.applyPenalty(state, signal)
	case SignalEndorsement:
		r.applyEndorsement(state, signal)
	}
}

func (r *Reducer) applyAgentRegistered(state *State, signal Signal) {
	agentID := signal.ObjectID
	role := payloadString(signal.Payload, "role", "observer")
	if _, exists := state.Standings[agentID]; !exists {
		state.Standings[agentID] = r.policy.InitialStanding(role)
		state.Roles[agentID] = role
	}
}

func (r *Reducer) applyPolicyRegistered(state *State, signal Signal) {
	policyID := signal.ObjectID
	if _, exists := state.Standings[policyID]; !exists {
		state.Standings[policyID] = r.policy.InitialStanding("policy")
		state.Roles[policyID] = "policy"
	}
}

// applyTruthStateEmitted moves contributor standings per outcome.
// Gains follow ΔS = a·log(1+q); penalties ΔS = −b·λ·log(1+q) with λ > 1.
// The policy agent moves too, on smaller gain and larger penalty
// coefficients, so policies earn standing from the truth they govern.
func (r *Reducer) applyTruthStateEmitted(state *State, signal Signal) {
	outcome := payloadString(signal.Payload, "outcome", "unknown")
	quality := payloadFloat(signal.Payload, "quality_score", 50.0)

	for _, contributor := range payloadStrings(signal.Payload, "contributors") {
		if _, exists := state.Standings[contributor]; !exists {
			state.Standings[contributor] = r.policy.InitialStanding("observer")
		}
		var delta float64
		switch outcome {
		case "correct":
			delta = r.policy.StandingGain.Coefficient * math.Log(1+quality)
		case "incorrect":
			delta = -r.policy.Penalty.Coefficient * r.policy.Penalty.Amplifier * math.Log(1+quality)
		}
		state.Standings[contributor] = r.policy.Clamp(state.Standings[contributor] + delta)
	}

	policyID := payloadString(signal.Payload, "policy_agent_id", "")
	if policyID == "" {
		return
	}
	if _, exists := state.Standings[policyID]; !exists {
		return
	}
	var delta float64
	switch outcome {
	case "correct":
		delta = 0.5 * math.Log(1+quality)
	case "incorrect":
		delta = -1.0 * math.Log(1+quality)
	}
	state.Standings[policyID] = r.policy.Clamp(state.Standings[policyID] + delta)
}

func (r *Reducer) applyPenalty(state *State, signal Signal) {
	agentID := signal.ObjectID
	amount := payloadFloat(signal.Payload, "amount", 10.0)
	if _, exists := state.Standings[agentID]; !exists {
		state.Standings[agentID] = r.policy.InitialStanding("observer")
	}
	state.Standings[agentID] = r.policy.Clamp(state.Standings[agentID] - amount)
}

// applyEndorsement ensures both endpoints exist. The VOUCH edge itself is
// implicit: effective-trust computation reads endorsement signals at
// query time.
func (r *Reducer) applyEndorsement(state *State, signal Signal) {
	for _, agentID := range []string{signal.AgentID, signal.ObjectID} {
		if _, exists := state.Standings[agentID]; !exists {
			state.Standings[agentID] = r.policy.InitialStanding("observer")
		}
	}
}

func payloadString(payload map[string]interface{}, key, fallback string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return fallback
}

func payloadFloat(payload map[string]interface{}, key string, fallback float64) float64 {
	switch v := payload[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

func payloadStrings(payload map[string]interface{}, key string) []string {
	var out []string
	switch v := payload[key].(type) {
	case []string:
		out = append(out, v...)
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}
