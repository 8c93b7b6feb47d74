package relay

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc/metadata"

	apperrors "github.com/louisbranch/turnorder/internal/platform/errors"
)

func TestNewPeerAuthRequiresSecret(t *testing.T) {
	if _, err := NewPeerAuth("  ", 0, nil); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestPeerTokenRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auth, err := NewPeerAuth(testSecret, time.Minute, func() time.Time { return now })
	if err != nil {
		t.Fatalf("new peer auth: %v", err)
	}
	token, err := auth.IssueToken("gm-1", true)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := auth.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.PeerID != "gm-1" || !claims.GM {
		t.Fatalf("claims = %+v, want gm-1 as GM", claims)
	}
	if !claims.ExpiresAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("expires = %v, want %v", claims.ExpiresAt, now.Add(time.Minute))
	}
}

func TestPeerTokenExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auth, _ := NewPeerAuth(testSecret, time.Minute, func() time.Time { return now })
	token, err := auth.IssueToken("player-1", false)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	now = now.Add(2 * time.Minute)
	_, err = auth.Verify(token)
	if got := apperrors.GetCode(err); got != apperrors.CodeCombatPeerUnauthenticated {
		t.Fatalf("code = %q, want %q", got, apperrors.CodeCombatPeerUnauthenticated)
	}
}

func TestPeerTokenRejectsOtherSecret(t *testing.T) {
	issuer, _ := NewPeerAuth("other-secret", time.Minute, nil)
	token, err := issuer.IssueToken("player-1", false)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	verifier := testAuth(t)
	if _, err := verifier.Verify(token); err == nil {
		t.Fatal("expected error for token signed with another secret")
	}
}

func TestCredentialsProduceBearerHeader(t *testing.T) {
	auth := testAuth(t)
	md, err := auth.Credentials("player-1", false).GetRequestMetadata(context.Background())
	if err != nil {
		t.Fatalf("request metadata: %v", err)
	}
	token, ok := bearerToken(metadata.New(md))
	if !ok {
		t.Fatalf("metadata = %v, want bearer token", md)
	}
	claims, err := auth.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.PeerID != "player-1" {
		t.Fatalf("peer id = %q, want player-1", claims.PeerID)
	}
}

func TestBearerTokenIgnoresOtherSchemes(t *testing.T) {
	if _, ok := bearerToken(metadata.Pairs("authorization", "Basic abc")); ok {
		t.Fatal("expected basic auth to be ignored")
	}
	if _, ok := bearerToken(nil); ok {
		t.Fatal("expected no token from empty metadata")
	}
}
