package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeCombatNoAuthority         = "COMBAT_NO_AUTHORITY"
	CodeCombatNotAuthority        = "COMBAT_NOT_AUTHORITY"
	CodeCombatCommandInvalid      = "COMBAT_COMMAND_INVALID"
	CodeCombatParticipantNotFound = "COMBAT_PARTICIPANT_NOT_FOUND"
	CodeCombatPeerUnauthenticated = "COMBAT_PEER_UNAUTHENTICATED"
	CodeDiceMissing               = "DICE_MISSING"
	CodeDiceInvalidSpec           = "DICE_INVALID_SPEC"
)

var enUSMessages = map[Code]string{
	CodeCombatNoAuthority:         "cannot update combat without an authority present",
	CodeCombatNotAuthority:        "this peer does not hold combat authority",
	CodeCombatCommandInvalid:      "combat command {{.Type}} is invalid",
	CodeCombatParticipantNotFound: "participant {{.ParticipantID}} is not in combat",
	CodeCombatPeerUnauthenticated: "peer credentials are missing or invalid",
	CodeDiceMissing:               "at least one die is required",
	CodeDiceInvalidSpec:           "dice must have a positive count and side",
}
