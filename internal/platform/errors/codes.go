// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Combat authority errors
	CodeCombatNoAuthority  Code = "COMBAT_NO_AUTHORITY"
	CodeCombatNotAuthority Code = "COMBAT_NOT_AUTHORITY"

	// Combat command errors
	CodeCombatCommandInvalid      Code = "COMBAT_COMMAND_INVALID"
	CodeCombatParticipantNotFound Code = "COMBAT_PARTICIPANT_NOT_FOUND"

	// Relay peer errors
	CodeCombatPeerUnauthenticated Code = "COMBAT_PEER_UNAUTHENTICATED"

	// Dice errors
	CodeDiceMissing     Code = "DICE_MISSING"
	CodeDiceInvalidSpec Code = "DICE_INVALID_SPEC"
)

// GRPCCode maps domain error codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeCombatCommandInvalid,
		CodeDiceMissing,
		CodeDiceInvalidSpec:
		return codes.InvalidArgument

	case CodeCombatNotAuthority:
		return codes.FailedPrecondition

	case CodeCombatNoAuthority:
		return codes.Unavailable

	case CodeCombatParticipantNotFound:
		return codes.NotFound

	case CodeCombatPeerUnauthenticated:
		return codes.Unauthenticated

	default:
		return codes.Internal
	}
}
