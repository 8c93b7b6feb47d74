// Package relay carries combat commands from proposing peers to the peer
// holding authority.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/command"
)

var (
	// ErrUnreachable indicates the target peer could not be reached.
	ErrUnreachable = errors.New("relay target is unreachable")
	// ErrEnvelopeInvalid indicates an envelope without a combat mutation.
	ErrEnvelopeInvalid = errors.New("relay envelope must carry mutateCombat.action")
)

// MutateCombat wraps the relayed command.
type MutateCombat struct {
	Action command.Command `json:"action"`
}

// Envelope is the wire message published on the relay bus.
type Envelope struct {
	// ID deduplicates at-least-once deliveries.
	ID           string        `json:"id,omitempty"`
	From         string        `json:"from,omitempty"`
	MutateCombat *MutateCombat `json:"mutateCombat"`
}

// NewEnvelope wraps cmd for publication by peer from.
func NewEnvelope(from string, cmd command.Command) Envelope {
	return Envelope{
		ID:           uuid.NewString(),
		From:         from,
		MutateCombat: &MutateCombat{Action: cmd},
	}
}

// Command returns the relayed command.
func (e Envelope) Command() (command.Command, error) {
	if e.MutateCombat == nil || e.MutateCombat.Action.Type == "" {
		return command.Command{}, ErrEnvelopeInvalid
	}
	cmd := e.MutateCombat.Action
	cmd.ActorID = e.From
	return cmd, nil
}

// Marshal encodes the envelope as JSON.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal decodes an envelope and checks it carries a command.
func Unmarshal(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode relay envelope: %w", err)
	}
	if _, err := env.Command(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
