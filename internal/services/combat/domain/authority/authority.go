package authority

import (
	"context"

	apperrors "github.com/louisbranch/turnorder/internal/platform/errors"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/command"
)

// ErrNoAuthority indicates no authority-eligible peer is reachable.
var ErrNoAuthority = apperrors.New(apperrors.CodeCombatNoAuthority, "no combat authority is reachable")

// Authority decides whether the local peer may apply commands and relays
// them otherwise.
type Authority interface {
	IsAuthority() bool
	// Relay forwards cmd to the authority. It returns ErrNoAuthority when no
	// authority is reachable.
	Relay(ctx context.Context, cmd command.Command) error
}

// Static is an Authority with a fixed role and no relay target.
type Static bool

// IsAuthority reports the fixed role.
func (s Static) IsAuthority() bool {
	return bool(s)
}

// Relay always fails with ErrNoAuthority.
func (Static) Relay(context.Context, command.Command) error {
	return ErrNoAuthority
}
