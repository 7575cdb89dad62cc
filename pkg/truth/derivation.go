package truth

import (
	"sort"
	"strconv"
	"strings"

	"github.com/kaori-protocol/kaori/pkg/canonical"
	"github.com/kaori-protocol/kaori/pkg/flow"
)

// DeriveClaimPayload computes TruthState.claim deterministically from the
// observations. The payload is never taken from outside: the truth state
// stays a pure function of bronze-layer inputs.
//
// Derivation dispatches on domain. Unknown domains fall back to the
// minimal aggregate.
func DeriveClaimPayload(
	observations []Observation,
	snapshot flow.Snapshot,
	claimType ClaimType,
	truthKey string,
	aggregate Aggregate,
) (map[string]interface{}, error) {
	if len(observations) == 0 {
		return nil, compileErr(ErrClaimDerivation, "cannot derive claim from empty observations")
	}

	switch strings.ToLower(claimType.Domain) {
	case DomainEarth, DomainOcean:
		return deriveSurfaceClaim(observations, snapshot), nil
	case DomainSpace:
		return deriveSpaceClaim(observations, snapshot), nil
	case DomainMeta:
		return deriveMetaClaim(observations, snapshot), nil
	default:
		return deriveGenericClaim(observations, snapshot), nil
	}
}

// deriveSurfaceClaim handles earth and ocean: weighted mode of severity,
// weighted mean of water level, plus the aggregate echo. Weights are
// effective trust from the snapshot.
func deriveSurfaceClaim(observations []Observation, snapshot flow.Snapshot) map[string]interface{} {
	totalPower := 0.0
	severityWeights := make(map[string]float64)
	waterSum := 0.0
	waterPower := 0.0

	for _, obs := range observations {
		power := snapshot.EffectiveTrustFor(obs.ReporterID)
		totalPower += power

		severity := "unknown"
		if s, ok := obs.Payload["severity"].(string); ok {
			severity = s
		}
		severityWeights[severity] += power

		if raw, ok := obs.Payload["water_level"]; ok {
			if level, ok := toFloat(raw); ok {
				waterSum += level * power
				waterPower += power
			}
		}
	}

	claim := map[string]interface{}{
		"severity":          weightedMode(severityWeights),
		"observation_count": len(observations),
		"network_trust":     canonical.Round2(totalPower),
	}
	if waterPower > 0 {
		claim["water_level_meters"] = canonical.Round2(waterSum / waterPower)
	}
	return canonical.Dict(claim)
}

// deriveSpaceClaim: simple scalar and string fields aggregate
// first-observation-wins, in the caller-provided observation order. A
// different merge rule is a policy decision, not a compiler one.
func deriveSpaceClaim(observations []Observation, snapshot flow.Snapshot) map[string]interface{} {
	totalPower := 0.0
	for _, obs := range observations {
		totalPower += snapshot.EffectiveTrustFor(obs.ReporterID)
	}

	claim := map[string]interface{}{
		"observation_count": len(observations),
		"network_trust":     canonical.Round2(totalPower),
	}
	for _, obs := range observations {
		keys := make([]string, 0, len(obs.Payload))
		for k := range obs.Payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if _, taken := claim[key]; taken {
				continue
			}
			switch obs.Payload[key].(type) {
			case string, bool, int, int64, float64:
				claim[key] = obs.Payload[key]
			}
		}
	}
	return canonical.Dict(claim)
}

// deriveMetaClaim: consensus on the boolean `valid` field, weighted by
// effective trust. validity_confidence is the winning share to four
// decimals.
func deriveMetaClaim(observations []Observation, snapshot flow.Snapshot) map[string]interface{} {
	totalPower := 0.0
	validPower := 0.0
	invalidPower := 0.0

	for _, obs := range observations {
		power := snapshot.EffectiveTrustFor(obs.ReporterID)
		totalPower += power

		verdict, present := obs.Payload["valid"]
		if !present {
			verdict, present = obs.Payload["is_valid"]
		}
		if b, ok := verdict.(bool); present && ok {
			if b {
				validPower += power
			} else {
				invalidPower += power
			}
		}
	}

	claim := map[string]interface{}{
		"observation_count": len(observations),
		"network_trust":     canonical.Round2(totalPower),
	}
	if decided := validPower + invalidPower; decided > 0 {
		claim["valid"] = validPower > invalidPower
		winning := validPower
		if invalidPower > winning {
			winning = invalidPower
		}
		claim["validity_confidence"] = canonical.RoundN(winning/decided, 4)
	}
	return canonical.Dict(claim)
}

func deriveGenericClaim(observations []Observation, snapshot flow.Snapshot) map[string]interface{} {
	totalPower := 0.0
	for _, obs := range observations {
		totalPower += snapshot.EffectiveTrustFor(obs.ReporterID)
	}
	return canonical.Dict(map[string]interface{}{
		"observation_count": len(observations),
		"network_trust":     canonical.Round2(totalPower),
	})
}

// weightedMode picks the highest-weight value; on equal weights the
// lexicographically smaller value wins, so the result is stable under
// observation reordering.
func weightedMode(weights map[string]float64) string {
	best := ""
	bestWeight := -1.0
	keys := make([]string, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if weights[k] > bestWeight {
			best = k
			bestWeight = weights[k]
		}
	}
	if best == "" {
		return "unknown"
	}
	return best
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
