package id

import (
	"encoding/base32"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func decode(t *testing.T, value string) uuid.UUID {
	t.Helper()
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(value))
	if err != nil {
		t.Fatalf("decode %q: %v", value, err)
	}
	parsed, err := uuid.FromBytes(raw)
	if err != nil {
		t.Fatalf("uuid from %q: %v", value, err)
	}
	return parsed
}

func TestNewIDIsLowercaseBase32RandomUUID(t *testing.T) {
	value, err := NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	if len(value) != 26 {
		t.Fatalf("len = %d, want 26", len(value))
	}
	if strings.ToLower(value) != value || strings.Contains(value, "=") {
		t.Fatalf("id %q should be lowercase and unpadded", value)
	}
	parsed := decode(t, value)
	if parsed.Version() != 4 || parsed.Variant() != uuid.RFC4122 {
		t.Fatalf("uuid %s: version %d variant %s, want v4 RFC4122", parsed, parsed.Version(), parsed.Variant())
	}
}

func TestNewIDDoesNotRepeat(t *testing.T) {
	seen := make(map[string]bool, 256)
	for range 256 {
		value, err := NewID()
		if err != nil {
			t.Fatalf("new id: %v", err)
		}
		if seen[value] {
			t.Fatalf("duplicate id %q", value)
		}
		seen[value] = true
	}
}
