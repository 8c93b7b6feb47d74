package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/turnorder/internal/services/combat/domain/command"
)

const (
	// CommandTypeAddParticipants appends participants.
	CommandTypeAddParticipants command.Type = "combat.add_participants"
	// CommandTypeUpdateParticipants merges partial participants by id.
	CommandTypeUpdateParticipants command.Type = "combat.update_participants"
	// CommandTypeRemoveParticipants removes participants by id.
	CommandTypeRemoveParticipants command.Type = "combat.remove_participants"
	// CommandTypeUpdateRound replaces round, turn and direction.
	CommandTypeUpdateRound command.Type = "combat.update_round"
	// CommandTypeApplyInterrupt splices a participant ahead of another.
	CommandTypeApplyInterrupt command.Type = "combat.apply_interrupt"
	// CommandTypeReset replaces the whole document.
	CommandTypeReset command.Type = "combat.reset"
	// CommandTypeUpdateSettings toggles document-level settings.
	CommandTypeUpdateSettings command.Type = "combat.update_settings"
)

// RegisterCommands registers combat commands with the shared registry.
func RegisterCommands(registry *command.Registry) error {
	if registry == nil {
		return errors.New("command registry is required")
	}
	definitions := []command.Definition{
		{Type: CommandTypeAddParticipants, ValidatePayload: validateAddParticipantsPayload},
		{Type: CommandTypeUpdateParticipants, ValidatePayload: validateUpdateParticipantsPayload},
		{Type: CommandTypeRemoveParticipants, ValidatePayload: validateRemoveParticipantsPayload},
		{Type: CommandTypeUpdateRound, ValidatePayload: validateUpdateRoundPayload},
		{Type: CommandTypeApplyInterrupt, ValidatePayload: validateApplyInterruptPayload},
		{Type: CommandTypeReset},
		{Type: CommandTypeUpdateSettings, ValidatePayload: validateUpdateSettingsPayload},
	}
	for _, def := range definitions {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry with every combat command registered.
func NewRegistry() (*command.Registry, error) {
	registry := command.NewRegistry()
	if err := RegisterCommands(registry); err != nil {
		return nil, err
	}
	return registry, nil
}

func validateAddParticipantsPayload(raw json.RawMessage) error {
	var payload AddParticipantsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(payload.Participants))
	for _, p := range payload.Participants {
		if err := p.Validate(); err != nil {
			return err
		}
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("participant %s: name is required", p.ID)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("participant id %s is duplicated", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

func validateUpdateParticipantsPayload(raw json.RawMessage) error {
	var payload UpdateParticipantsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	for _, patch := range payload.Updates {
		if err := patch.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func validateRemoveParticipantsPayload(raw json.RawMessage) error {
	var payload RemoveParticipantsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	for _, id := range payload.IDs {
		if strings.TrimSpace(id) == "" {
			return errors.New("participant id is required")
		}
	}
	return nil
}

func validateUpdateRoundPayload(raw json.RawMessage) error {
	var payload UpdateRoundPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if payload.Round < 0 {
		return fmt.Errorf("round %d must not be negative", payload.Round)
	}
	if payload.Turn < 0 {
		return fmt.Errorf("turn %d must not be negative", payload.Turn)
	}
	return nil
}

func validateApplyInterruptPayload(raw json.RawMessage) error {
	var payload ApplyInterruptPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if strings.TrimSpace(payload.TargetID) == "" || strings.TrimSpace(payload.InterrupterID) == "" {
		return errors.New("target and interrupter ids are required")
	}
	return nil
}

func validateUpdateSettingsPayload(raw json.RawMessage) error {
	var payload UpdateSettingsPayload
	return json.Unmarshal(raw, &payload)
}
