package action

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/louisbranch/turnorder/internal/services/combat/domain/combat"
)

// patchableFields lists the participant fields an update may touch. The id is
// the merge key and never changes.
var patchableFields = map[string]struct{}{
	"name":              {},
	"img":               {},
	"initiative":        {},
	"entityIdentifiers": {},
	"hidden":            {},
	"defeated":          {},
	"delaying":          {},
	"userId":            {},
	"modifiedTurn":      {},
}

var jsonNull = json.RawMessage("null")

// Patch is a partial participant keyed by id. Present fields replace the
// participant's value; a null field clears it.
type Patch struct {
	ID     string
	Fields map[string]json.RawMessage
}

// PatchOf starts a patch for the participant with id.
func PatchOf(id string) Patch {
	return Patch{ID: id, Fields: map[string]json.RawMessage{}}
}

// With returns a copy of p setting field to value.
func (p Patch) With(field string, value any) (Patch, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return p, fmt.Errorf("marshal %s: %w", field, err)
	}
	return p.withRaw(field, data), nil
}

// Clear returns a copy of p that removes field from the participant.
func (p Patch) Clear(field string) Patch {
	return p.withRaw(field, jsonNull)
}

func (p Patch) withRaw(field string, raw json.RawMessage) Patch {
	fields := maps.Clone(p.Fields)
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	fields[field] = raw
	return Patch{ID: p.ID, Fields: fields}
}

// MarshalJSON flattens the patch into a single object carrying the id.
func (p Patch) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(p.Fields)+1)
	for k, v := range p.Fields {
		out[k] = v
	}
	id, err := json.Marshal(p.ID)
	if err != nil {
		return nil, err
	}
	out["id"] = id
	return json.Marshal(out)
}

// UnmarshalJSON splits a flat object into the id and the patched fields.
func (p *Patch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var id string
	if value, ok := raw["id"]; ok {
		if err := json.Unmarshal(value, &id); err != nil {
			return fmt.Errorf("patch id: %w", err)
		}
		delete(raw, "id")
	}
	p.ID = id
	p.Fields = raw
	return nil
}

// Validate checks the patch against the participant shape.
func (p Patch) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("update id is required")
	}
	for _, field := range slices.Sorted(maps.Keys(p.Fields)) {
		if _, ok := patchableFields[field]; !ok {
			return fmt.Errorf("update %s: field %q cannot be patched", p.ID, field)
		}
	}
	merged, err := p.apply(combat.Participant{ID: p.ID})
	if err != nil {
		return err
	}
	return merged.Validate()
}

// apply merges the patch onto participant.
func (p Patch) apply(participant combat.Participant) (combat.Participant, error) {
	data, err := json.Marshal(participant)
	if err != nil {
		return participant, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return participant, err
	}
	for field, value := range p.Fields {
		if _, ok := patchableFields[field]; !ok {
			continue
		}
		if bytes.Equal(bytes.TrimSpace(value), jsonNull) {
			delete(doc, field)
			continue
		}
		doc[field] = value
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return participant, err
	}
	var out combat.Participant
	if err := json.Unmarshal(merged, &out); err != nil {
		return participant, fmt.Errorf("update %s: %w", p.ID, err)
	}
	out.ID = participant.ID
	return out, nil
}
