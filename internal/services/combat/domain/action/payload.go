package action

import "github.com/louisbranch/turnorder/internal/services/combat/domain/combat"

// AddParticipantsPayload captures the payload for combat.add_participants.
type AddParticipantsPayload struct {
	Participants []combat.Participant `json:"participants"`
}

// UpdateParticipantsPayload captures the payload for combat.update_participants.
type UpdateParticipantsPayload struct {
	Updates []Patch `json:"updates"`
}

// RemoveParticipantsPayload captures the payload for combat.remove_participants.
type RemoveParticipantsPayload struct {
	IDs []string `json:"ids"`
}

// UpdateRoundPayload captures the payload for combat.update_round.
type UpdateRoundPayload struct {
	Round          int  `json:"round"`
	Turn           int  `json:"turn"`
	GoingBackwards bool `json:"goingBackwards"`
}

// ApplyInterruptPayload captures the payload for combat.apply_interrupt.
type ApplyInterruptPayload struct {
	TargetID      string `json:"targetId"`
	InterrupterID string `json:"interrupterId"`
}

// UpdateSettingsPayload captures the payload for combat.update_settings.
type UpdateSettingsPayload struct {
	SkipDefeated    *bool `json:"skipDefeated,omitempty"`
	LinkToWorldTime *bool `json:"linkToWorldTime,omitempty"`
}
