package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCodeGRPCCode(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeCombatNoAuthority, codes.Unavailable},
		{CodeCombatNotAuthority, codes.FailedPrecondition},
		{CodeCombatCommandInvalid, codes.InvalidArgument},
		{CodeCombatParticipantNotFound, codes.NotFound},
		{CodeCombatPeerUnauthenticated, codes.Unauthenticated},
		{CodeUnknown, codes.Internal},
	}
	for _, tt := range tests {
		if got := tt.code.GRPCCode(); got != tt.want {
			t.Fatalf("%s.GRPCCode() = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestErrorIsMatchesCode(t *testing.T) {
	err := fmt.Errorf("dispatch: %w", New(CodeCombatNoAuthority, "no authority"))
	if !stderrors.Is(err, New(CodeCombatNoAuthority, "")) {
		t.Fatal("expected errors.Is to match by code")
	}
	if stderrors.Is(err, New(CodeCombatNotAuthority, "")) {
		t.Fatal("expected different codes not to match")
	}
	if got := GetCode(err); got != CodeCombatNoAuthority {
		t.Fatalf("code = %s, want %s", got, CodeCombatNoAuthority)
	}
	if got := GetCode(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("code = %s, want %s", got, CodeUnknown)
	}
}

func TestWrapUnwrapsCause(t *testing.T) {
	cause := stderrors.New("bad json")
	err := Wrap(CodeCombatCommandInvalid, "invalid", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
}

func TestGRPCStatusRoundTrip(t *testing.T) {
	domainErr := WithMetadata(CodeCombatNotAuthority, "not authority", map[string]string{"PeerID": "gm-2"})
	err := domainErr.ToGRPCStatus("en-US", "this peer does not hold combat authority")

	if got := status.Code(err); got != codes.FailedPrecondition {
		t.Fatalf("status code = %v, want %v", got, codes.FailedPrecondition)
	}
	back := FromGRPCStatus(err)
	if back == nil {
		t.Fatal("expected domain error from status")
	}
	if back.Code != CodeCombatNotAuthority {
		t.Fatalf("code = %s, want %s", back.Code, CodeCombatNotAuthority)
	}
	if back.Metadata["PeerID"] != "gm-2" {
		t.Fatalf("metadata = %v", back.Metadata)
	}
	if FromGRPCStatus(status.Error(codes.Internal, "boom")) != nil {
		t.Fatal("expected nil for status without details")
	}
}
