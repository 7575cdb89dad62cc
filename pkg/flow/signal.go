// Package flow implements the event-sourced trust engine: signals,
// policy, the standings reducer, and effective-trust snapshots.
//
// The engine is pure. It consumes a slice of signals and a policy value
// and returns new state values; replaying the same signals under the same
// policy always yields identical output.
package flow

import (
	"sort"
	"time"

	"github.com/kaori-protocol/kaori/pkg/canonical"
)

// Signal types. The reducer handles AGENT_REGISTERED, POLICY_REGISTERED,
// TRUTHSTATE_EMITTED, PENALTY_APPLIED and ENDORSEMENT; the other types are
// carried in the log but do not directly affect standing.
const (
	SignalAgentRegistered      = "AGENT_REGISTERED"
	SignalRoleGranted          = "ROLE_GRANTED"
	SignalMissionCreated       = "MISSION_CREATED"
	SignalProbeCreated         = "PROBE_CREATED"
	SignalObserverAssigned     = "OBSERVER_ASSIGNED"
	SignalObservationSubmitted = "OBSERVATION_SUBMITTED"
	SignalValidationVote       = "VALIDATION_VOTE"
	SignalTruthStateEmitted    = "TRUTHSTATE_EMITTED"
	SignalEndorsement          = "ENDORSEMENT"
	SignalDisputeRaised        = "DISPUTE_RAISED"
	SignalPenaltyApplied       = "PENALTY_APPLIED"
	SignalPolicyRegistered     = "POLICY_REGISTERED"
)

// SignalContext is optional context attached to a signal.
type SignalContext struct {
	MissionID   string `json:"mission_id,omitempty" yaml:"mission_id,omitempty"`
	ProbeID     string `json:"probe_id,omitempty" yaml:"probe_id,omitempty"`
	ClaimTypeID string `json:"claimtype_id,omitempty" yaml:"claimtype_id,omitempty"`
}

// Signal is an immutable event envelope. Signals are the only source of
// truth: all standing and trust is derived by replaying them through a
// versioned policy. Identity is a content hash over the canonical form,
// excluding SignalID and Signature themselves.
type Signal struct {
	SignalID      string                 `json:"signal_id"`
	SignalType    string                 `json:"signal_type"`
	Time          time.Time              `json:"time"`
	AgentID       string                 `json:"agent_id"`
	ObjectID      string                 `json:"object_id"`
	Context       *SignalContext         `json:"context,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	PolicyVersion string                 `json:"policy_version"`
	Signature     string                 `json:"signature,omitempty"`
}

// NewSignal builds a signal and stamps its content-derived id.
func NewSignal(signalType string, at time.Time, agentID, objectID string, payload map[string]interface{}) (Signal, error) {
	s := Signal{
		SignalType:    signalType,
		Time:          at.UTC(),
		AgentID:       agentID,
		ObjectID:      objectID,
		Payload:       payload,
		PolicyVersion: "1.0.0",
	}
	id, err := s.ComputeID()
	if err != nil {
		return Signal{}, err
	}
	s.SignalID = id
	return s, nil
}

// Canonical returns the hashable representation, excluding signal_id and
// signature.
func (s Signal) Canonical() map[string]interface{} {
	c := map[string]interface{}{
		"signal_type":    s.SignalType,
		"time":           canonical.Datetime(s.Time),
		"agent_id":       s.AgentID,
		"object_id":      s.ObjectID,
		"policy_version": s.PolicyVersion,
	}
	if s.Context != nil {
		ctx := map[string]interface{}{}
		if s.Context.MissionID != "" {
			ctx["mission_id"] = s.Context.MissionID
		}
		if s.Context.ProbeID != "" {
			ctx["probe_id"] = s.Context.ProbeID
		}
		if s.Context.ClaimTypeID != "" {
			ctx["claimtype_id"] = s.Context.ClaimTypeID
		}
		c["context"] = ctx
	}
	if len(s.Payload) > 0 {
		c["payload"] = canonical.Dict(s.Payload)
	}
	return c
}

// ComputeID computes the deterministic content hash identity.
func (s Signal) ComputeID() (string, error) {
	return canonical.Hash(s.Canonical())
}

// SortSignals orders signals by (time, signal_id), the total order every
// reducer fold uses.
func SortSignals(signals []Signal) []Signal {
	out := make([]Signal, len(signals))
	copy(out, signals)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Time.Equal(out[j].Time) {
			return out[i].Time.Before(out[j].Time)
		}
		return out[i].SignalID < out[j].SignalID
	})
	return out
}
