package authority

import (
	"context"

	apperrors "github.com/louisbranch/turnorder/internal/platform/errors"
	"github.com/louisbranch/turnorder/internal/platform/errors/i18n"
	"github.com/rs/zerolog"
)

// Notice is a local, informational message for the user of this peer.
type Notice struct {
	Code    apperrors.Code `json:"code"`
	Message string         `json:"message"`
}

// NewNotice renders the base-locale message for code.
func NewNotice(code apperrors.Code, metadata map[string]string) Notice {
	return Notice{
		Code:    code,
		Message: i18n.GetCatalog(i18n.BaseLocale).Format(string(code), metadata),
	}
}

// Notifier surfaces notices without blocking the caller.
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

// LogNotifier writes notices to a structured log.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify logs notice at warn level.
func (n LogNotifier) Notify(_ context.Context, notice Notice) {
	n.Logger.Warn().Str("code", string(notice.Code)).Msg(notice.Message)
}

// Notifiers fans a notice out to several notifiers.
type Notifiers []Notifier

// Notify calls every notifier in order.
func (ns Notifiers) Notify(ctx context.Context, notice Notice) {
	for _, n := range ns {
		if n != nil {
			n.Notify(ctx, notice)
		}
	}
}
