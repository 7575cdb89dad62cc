package truth

import (
	"fmt"
	"math"

	"github.com/kaori-protocol/kaori/pkg/canonical"
)

// Vote types.
const (
	VoteRatify   = "RATIFY"
	VoteReject   = "REJECT"
	VoteOverride = "OVERRIDE"
)

// ComputeConsensus folds votes under the weighted threshold model:
//
//	score = Σ weight(standing) · value(vote),  weight(s) = 1 + log₂(1 + s/10)
//
// An OVERRIDE by an agent at or above the override threshold finalizes
// immediately as true, regardless of the running score's sign.
func ComputeConsensus(votes []Vote, model ConsensusModel) ConsensusRecord {
	score := 0.0
	ratifyCount := 0
	rejectCount := 0

	for _, vote := range votes {
		weight := 1.0 + math.Log2(1+vote.VoterStanding/10.0)

		switch vote.VoteType {
		case VoteRatify:
			score += weight
			ratifyCount++
		case VoteReject:
			score -= weight
			rejectCount++
		case VoteOverride:
			if vote.VoterStanding >= model.OverrideThreshold {
				return ConsensusRecord{
					Votes:          votes,
					Score:          int(score),
					Finalized:      true,
					FinalizeReason: fmt.Sprintf("AUTHORITY_OVERRIDE by %s", vote.VoterID),
					PositiveRatio:  1.0,
				}
			}
		}
	}

	positiveRatio := 0.5
	if total := ratifyCount + rejectCount; total > 0 {
		positiveRatio = (float64(ratifyCount-rejectCount)/float64(total) + 1) / 2
	}

	record := ConsensusRecord{
		Votes:         votes,
		Score:         int(score),
		PositiveRatio: canonical.Round6(positiveRatio),
	}
	switch {
	case score >= model.FinalizeThreshold:
		record.Finalized = true
		record.FinalizeReason = fmt.Sprintf("THRESHOLD_REACHED (score=%.1f)", score)
	case score <= model.RejectThreshold:
		record.Finalized = true
		record.FinalizeReason = fmt.Sprintf("REJECT_THRESHOLD (score=%.1f)", score)
	}
	return record
}
