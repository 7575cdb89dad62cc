package truth

import "github.com/kaori-protocol/kaori/pkg/canonical"

// ComputeConfidence assembles the composite score: a weighted sum of
// components plus signed additive modifiers, clamped to [0, 1].
//
// With no configured component weights the score is the bare
// ai_confidence component, which keeps minimal claim types working.
func ComputeConfidence(
	components map[string]float64,
	modifiers map[string]float64,
	model ConfidenceModel,
) ConfidenceBreakdown {
	componentScores := make(map[string]float64)
	rawScore := 0.0

	if len(model.Components) > 0 {
		for name, weight := range model.Components {
			contribution := weight * components[name]
			componentScores[name] = canonical.Round6(contribution)
			rawScore += contribution
		}
	} else if ai, ok := components["ai_confidence"]; ok {
		componentScores["ai_confidence"] = canonical.Round6(ai)
		rawScore = ai
	}

	modifierScores := make(map[string]float64)
	for name, value := range modifiers {
		modifierScores[name] = value
		rawScore += value
	}

	finalScore := rawScore
	if finalScore < 0 {
		finalScore = 0
	}
	if finalScore > 1 {
		finalScore = 1
	}

	return ConfidenceBreakdown{
		Components: componentScores,
		Modifiers:  modifierScores,
		RawScore:   canonical.Round6(rawScore),
		FinalScore: canonical.Round6(finalScore),
	}
}

// ConfidenceLevel maps a score to high/medium/low using the claim type's
// thresholds (0.80 and 0.50 when unset).
func ConfidenceLevel(score float64, model ConfidenceModel) string {
	high := model.Thresholds.High
	if high == 0 {
		high = 0.80
	}
	medium := model.Thresholds.Medium
	if medium == 0 {
		medium = 0.50
	}
	switch {
	case score >= high:
		return "high"
	case score >= medium:
		return "medium"
	default:
		return "low"
	}
}
