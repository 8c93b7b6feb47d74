package action

import (
	"slices"

	"github.com/louisbranch/turnorder/internal/services/combat/domain/combat"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/command"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/initiative"
)

// Reduce returns the document that results from applying cmd to state.
// The input is never modified.
func Reduce(state combat.State, cmd command.Command) combat.State {
	next := state.Clone()
	switch cmd.Type {
	case CommandTypeAddParticipants:
		var payload AddParticipantsPayload
		if cmd.Decode(&payload) != nil {
			return next
		}
		for _, p := range payload.Participants {
			if p.ID == "" || next.Index(p.ID) >= 0 {
				continue
			}
			next.Participants = append(next.Participants, p.Clone())
		}
	case CommandTypeUpdateParticipants:
		var payload UpdateParticipantsPayload
		if cmd.Decode(&payload) != nil {
			return next
		}
		for _, patch := range payload.Updates {
			i := next.Index(patch.ID)
			if i < 0 {
				continue
			}
			merged, err := patch.apply(next.Participants[i])
			if err != nil {
				continue
			}
			next.Participants[i] = merged
		}
	case CommandTypeRemoveParticipants:
		var payload RemoveParticipantsPayload
		if cmd.Decode(&payload) != nil {
			return next
		}
		next.Participants = slices.DeleteFunc(next.Participants, func(p combat.Participant) bool {
			return slices.Contains(payload.IDs, p.ID)
		})
	case CommandTypeUpdateRound:
		var payload UpdateRoundPayload
		if cmd.Decode(&payload) != nil {
			return next
		}
		next.Round = payload.Round
		next.Turn = payload.Turn
		next.GoingBackwards = payload.GoingBackwards
	case CommandTypeApplyInterrupt:
		var payload ApplyInterruptPayload
		if cmd.Decode(&payload) != nil {
			return next
		}
		res := initiative.Interrupt(next.Participants, payload.TargetID, payload.InterrupterID)
		if !res.Applied {
			return next
		}
		next.Participants = res.Participants
		if res.DecreaseTurn {
			next.Turn--
		}
	case CommandTypeReset:
		return combat.Reset()
	case CommandTypeUpdateSettings:
		var payload UpdateSettingsPayload
		if cmd.Decode(&payload) != nil {
			return next
		}
		if payload.SkipDefeated != nil {
			next.SkipDefeated = *payload.SkipDefeated
		}
		if payload.LinkToWorldTime != nil {
			next.LinkToWorldTime = *payload.LinkToWorldTime
		}
	}
	return next
}
