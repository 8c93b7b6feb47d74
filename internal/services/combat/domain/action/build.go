package action

import (
	"strings"

	"github.com/louisbranch/turnorder/internal/platform/id"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/combat"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/command"
)

// IDGenerator returns a new unique participant id.
type IDGenerator func() (string, error)

// NewAddParticipants builds an add_participants command, assigning ids to
// participants that do not carry one yet.
func NewAddParticipants(participants []combat.Participant, newID IDGenerator) (command.Command, error) {
	if newID == nil {
		newID = id.NewID
	}
	out := make([]combat.Participant, len(participants))
	for i, p := range participants {
		p = p.Clone()
		if strings.TrimSpace(p.ID) == "" {
			generated, err := newID()
			if err != nil {
				return command.Command{}, err
			}
			p.ID = generated
		}
		out[i] = p
	}
	return command.New(CommandTypeAddParticipants, AddParticipantsPayload{Participants: out})
}

// NewUpdateParticipants builds an update_participants command.
func NewUpdateParticipants(patches ...Patch) (command.Command, error) {
	return command.New(CommandTypeUpdateParticipants, UpdateParticipantsPayload{Updates: patches})
}

// NewRemoveParticipants builds a remove_participants command.
func NewRemoveParticipants(ids ...string) (command.Command, error) {
	return command.New(CommandTypeRemoveParticipants, RemoveParticipantsPayload{IDs: ids})
}

// NewUpdateRound builds an update_round command.
func NewUpdateRound(round, turn int, goingBackwards bool) (command.Command, error) {
	return command.New(CommandTypeUpdateRound, UpdateRoundPayload{Round: round, Turn: turn, GoingBackwards: goingBackwards})
}

// NewApplyInterrupt builds an apply_interrupt command.
func NewApplyInterrupt(targetID, interrupterID string) (command.Command, error) {
	return command.New(CommandTypeApplyInterrupt, ApplyInterruptPayload{TargetID: targetID, InterrupterID: interrupterID})
}

// NewReset builds a reset command.
func NewReset() command.Command {
	return command.Command{Type: CommandTypeReset, Payload: []byte("{}")}
}

// NewUpdateSettings builds an update_settings command.
func NewUpdateSettings(payload UpdateSettingsPayload) (command.Command, error) {
	return command.New(CommandTypeUpdateSettings, payload)
}
