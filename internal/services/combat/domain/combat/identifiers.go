package combat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// IdentifierKind discriminates the entity back-reference union.
type IdentifierKind string

const (
	// IdentifierActor references an actor document.
	IdentifierActor IdentifierKind = "actor"
	// IdentifierToken references a token placed on a scene.
	IdentifierToken IdentifierKind = "token"
	// IdentifierTime references a timed effect on the world clock.
	IdentifierTime IdentifierKind = "time"
)

// Identifiers is a back-reference to the entity a participant stands for.
// It never implies ownership; resolving it only decorates display.
type Identifiers struct {
	Kind      IdentifierKind `json:"kind"`
	ActorID   string         `json:"actorId,omitempty"`
	TokenID   string         `json:"tokenId,omitempty"`
	SceneID   string         `json:"sceneId,omitempty"`
	StartTime int64          `json:"startTime,omitempty"`
	Duration  int64          `json:"duration,omitempty"`
}

// MarshalJSON writes only the fields of the active kind. A time reference
// always carries startTime and duration, zero values included.
func (i Identifiers) MarshalJSON() ([]byte, error) {
	switch i.Kind {
	case IdentifierActor:
		return json.Marshal(struct {
			Kind    IdentifierKind `json:"kind"`
			ActorID string         `json:"actorId"`
		}{i.Kind, i.ActorID})
	case IdentifierToken:
		return json.Marshal(struct {
			Kind    IdentifierKind `json:"kind"`
			TokenID string         `json:"tokenId"`
			SceneID string         `json:"sceneId"`
		}{i.Kind, i.TokenID, i.SceneID})
	case IdentifierTime:
		return json.Marshal(struct {
			Kind      IdentifierKind `json:"kind"`
			StartTime int64          `json:"startTime"`
			Duration  int64          `json:"duration"`
		}{i.Kind, i.StartTime, i.Duration})
	default:
		type plain Identifiers
		return json.Marshal(plain(i))
	}
}

// ActorRef builds an actor back-reference.
func ActorRef(actorID string) *Identifiers {
	return &Identifiers{Kind: IdentifierActor, ActorID: actorID}
}

// TokenRef builds a token back-reference.
func TokenRef(tokenID, sceneID string) *Identifiers {
	return &Identifiers{Kind: IdentifierToken, TokenID: tokenID, SceneID: sceneID}
}

// TimeRef builds a world-time back-reference.
func TimeRef(startTime, duration int64) *Identifiers {
	return &Identifiers{Kind: IdentifierTime, StartTime: startTime, Duration: duration}
}

// Validate ensures the variant carries the fields its kind requires.
func (i Identifiers) Validate() error {
	switch i.Kind {
	case IdentifierActor:
		if strings.TrimSpace(i.ActorID) == "" {
			return errors.New("actor identifier requires actorId")
		}
	case IdentifierToken:
		if strings.TrimSpace(i.TokenID) == "" || strings.TrimSpace(i.SceneID) == "" {
			return errors.New("token identifier requires tokenId and sceneId")
		}
	case IdentifierTime:
		if i.Duration < 0 {
			return errors.New("time identifier duration must not be negative")
		}
	default:
		return fmt.Errorf("unknown identifier kind %q", i.Kind)
	}
	return nil
}
