package claimtypes

import "fmt"

// Template renders a starter claim-type document for a new contract.
// The claimtype-gen tool writes this to disk; the loader reads it back.
func Template(namespace, name string) string {
	return fmt.Sprintf(`id: %[1]s.%[2]s.v1
version: 1
domain: %[1]s
topic: %[2]s
risk_profile: monitor

truthkey:
  spatial_system: h3
  resolution: 8
  z_index: surface
  time_bucket: PT1H

consensus_model:
  type: weighted_threshold
  finalize_threshold: 15
  reject_threshold: -10
  override_threshold: 500

autovalidation:
  ai_verified_true_threshold: 0.82
  ai_verified_false_threshold: 0.20

temporal_decay:
  half_life: PT6H
  max_validity: P3D

output_schema:
  type: object
  required: [observation_count]
  properties:
    observation_count:
      type: integer
      minimum: 1
    network_trust:
      type: number
  additionalProperties: true
`, namespace, name)
}
