package combat

import (
	"encoding/json"
	"testing"
)

func TestIdentifiersJSON_WritesActiveVariant(t *testing.T) {
	tests := []struct {
		name string
		ids  Identifiers
		want string
	}{
		{name: "time at epoch", ids: *TimeRef(0, 0), want: `{"kind":"time","startTime":0,"duration":0}`},
		{name: "time", ids: *TimeRef(3600, 60), want: `{"kind":"time","startTime":3600,"duration":60}`},
		{name: "actor", ids: *ActorRef("actor-1"), want: `{"kind":"actor","actorId":"actor-1"}`},
		{name: "token", ids: *TokenRef("t-1", "s-1"), want: `{"kind":"token","tokenId":"t-1","sceneId":"s-1"}`},
		{name: "actor drops stray fields", ids: Identifiers{Kind: IdentifierActor, ActorID: "a", SceneID: "s", Duration: 5}, want: `{"kind":"actor","actorId":"a"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.ids)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != tc.want {
				t.Fatalf("json = %s, want %s", data, tc.want)
			}
		})
	}
}

func TestIdentifiersJSON_TimeAtEpochRoundTrips(t *testing.T) {
	src := Participant{ID: "effect", Name: "Bless", EntityIdentifiers: TimeRef(0, 60)}
	data, err := json.Marshal(src)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw struct {
		EntityIdentifiers map[string]any `json:"entityIdentifiers"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode raw: %v", err)
	}
	if _, ok := raw.EntityIdentifiers["startTime"]; !ok {
		t.Fatalf("entityIdentifiers = %v, want startTime present", raw.EntityIdentifiers)
	}

	var got Participant
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.EntityIdentifiers == nil || *got.EntityIdentifiers != *src.EntityIdentifiers {
		t.Fatalf("identifiers = %+v, want %+v", got.EntityIdentifiers, src.EntityIdentifiers)
	}
}
