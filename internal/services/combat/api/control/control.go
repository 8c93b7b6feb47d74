// Package control exposes the combat operations over HTTP so a client of
// any peer can drive the encounter. Commands issued on a proposer are relayed
// to the authority like any other local intent.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"

	apperrors "github.com/louisbranch/turnorder/internal/platform/errors"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/authority"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/combat"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/command"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/tracker"
)

const maxRequestBytes = 1 << 20

// Tracker is the set of combat operations the routes call.
// *tracker.Tracker satisfies it.
type Tracker interface {
	StartCombat(ctx context.Context) (authority.Outcome, error)
	NextTurn(ctx context.Context) (authority.Outcome, error)
	PreviousTurn(ctx context.Context) (authority.Outcome, error)
	NextRound(ctx context.Context) (authority.Outcome, error)
	PreviousRound(ctx context.Context) (authority.Outcome, error)
	AddParticipants(ctx context.Context, participants ...combat.Participant) (authority.Outcome, error)
	RemoveParticipants(ctx context.Context, ids ...string) (authority.Outcome, error)
	TakeInitiative(ctx context.Context, id string, pool combat.Pool) (authority.Outcome, error)
	AddExtraAction(ctx context.Context, id string, extra combat.ExtraAction) (authority.Outcome, error)
	RemoveExtraAction(ctx context.Context, id string) (authority.Outcome, error)
	SetDelaying(ctx context.Context, id string, delaying bool) (authority.Outcome, error)
	SetDefeated(ctx context.Context, id string, defeated bool) (authority.Outcome, error)
	Interrupt(ctx context.Context, targetID, interrupterID string) (authority.Outcome, error)
	RollInitiative(ctx context.Context, id string, bonus int) (authority.Outcome, error)
	SetSkipDefeated(ctx context.Context, skip bool) (authority.Outcome, error)
	SetLinkToWorldTime(ctx context.Context, link bool) (authority.Outcome, error)
	EndCombat(ctx context.Context) (authority.Outcome, error)
}

// Catalog lists the command types the peer accepts on the relay.
// *command.Registry satisfies it.
type Catalog interface {
	ListDefinitions() []command.Definition
}

// Request is the body of an operation. Each operation reads only the fields
// it needs.
type Request struct {
	ID            string               `json:"id,omitempty"`
	IDs           []string             `json:"ids,omitempty"`
	Participants  []combat.Participant `json:"participants,omitempty"`
	Pool          combat.Pool          `json:"pool,omitempty"`
	Flag          bool                 `json:"flag,omitempty"`
	Value         bool                 `json:"value,omitempty"`
	Bonus         int                  `json:"bonus,omitempty"`
	TargetID      string               `json:"targetId,omitempty"`
	InterrupterID string               `json:"interrupterId,omitempty"`
}

// Response reports what happened to an operation. Version is set only when
// the command was committed on this peer.
type Response struct {
	Operation string           `json:"operation"`
	Status    authority.Status `json:"status"`
	Version   int64            `json:"version,omitempty"`
}

// CommandsResponse lists the available operations and relay command types.
type CommandsResponse struct {
	Operations []string `json:"operations"`
	Commands   []string `json:"commands"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type operation func(ctx context.Context, t Tracker, req Request) (authority.Outcome, error)

var operations = map[string]operation{
	"start": func(ctx context.Context, t Tracker, _ Request) (authority.Outcome, error) {
		return t.StartCombat(ctx)
	},
	"next-turn": func(ctx context.Context, t Tracker, _ Request) (authority.Outcome, error) {
		return t.NextTurn(ctx)
	},
	"previous-turn": func(ctx context.Context, t Tracker, _ Request) (authority.Outcome, error) {
		return t.PreviousTurn(ctx)
	},
	"next-round": func(ctx context.Context, t Tracker, _ Request) (authority.Outcome, error) {
		return t.NextRound(ctx)
	},
	"previous-round": func(ctx context.Context, t Tracker, _ Request) (authority.Outcome, error) {
		return t.PreviousRound(ctx)
	},
	"add-participants": func(ctx context.Context, t Tracker, req Request) (authority.Outcome, error) {
		return t.AddParticipants(ctx, req.Participants...)
	},
	"remove-participants": func(ctx context.Context, t Tracker, req Request) (authority.Outcome, error) {
		return t.RemoveParticipants(ctx, req.IDs...)
	},
	"take-initiative": func(ctx context.Context, t Tracker, req Request) (authority.Outcome, error) {
		return t.TakeInitiative(ctx, req.ID, req.Pool)
	},
	"add-extra-action": func(ctx context.Context, t Tracker, req Request) (authority.Outcome, error) {
		return t.AddExtraAction(ctx, req.ID, combat.ExtraAction{Pool: req.Pool, Flag: req.Flag})
	},
	"remove-extra-action": func(ctx context.Context, t Tracker, req Request) (authority.Outcome, error) {
		return t.RemoveExtraAction(ctx, req.ID)
	},
	"set-delaying": func(ctx context.Context, t Tracker, req Request) (authority.Outcome, error) {
		return t.SetDelaying(ctx, req.ID, req.Value)
	},
	"set-defeated": func(ctx context.Context, t Tracker, req Request) (authority.Outcome, error) {
		return t.SetDefeated(ctx, req.ID, req.Value)
	},
	"interrupt": func(ctx context.Context, t Tracker, req Request) (authority.Outcome, error) {
		return t.Interrupt(ctx, req.TargetID, req.InterrupterID)
	},
	"roll-initiative": func(ctx context.Context, t Tracker, req Request) (authority.Outcome, error) {
		return t.RollInitiative(ctx, req.ID, req.Bonus)
	},
	"set-skip-defeated": func(ctx context.Context, t Tracker, req Request) (authority.Outcome, error) {
		return t.SetSkipDefeated(ctx, req.Value)
	},
	"set-link-to-world-time": func(ctx context.Context, t Tracker, req Request) (authority.Outcome, error) {
		return t.SetLinkToWorldTime(ctx, req.Value)
	},
	"end": func(ctx context.Context, t Tracker, _ Request) (authority.Outcome, error) {
		return t.EndCombat(ctx)
	},
}

// Operations returns the operation names in sorted order.
func Operations() []string {
	names := make([]string, 0, len(operations))
	for name := range operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handler serves the command routes.
type Handler struct {
	tracker Tracker
	catalog Catalog
	logger  zerolog.Logger
}

// NewHandler returns command routes backed by t. catalog may be nil.
func NewHandler(t Tracker, catalog Catalog, logger zerolog.Logger) (*Handler, error) {
	if t == nil {
		return nil, errors.New("combat tracker is required")
	}
	return &Handler{
		tracker: t,
		catalog: catalog,
		logger:  logger.With().Str("component", "combat_control").Logger(),
	}, nil
}

// Register mounts the command routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /combat/commands", h.handleCommands)
	mux.HandleFunc("POST /combat/{operation}", h.handleOperation)
}

func (h *Handler) handleCommands(w http.ResponseWriter, _ *http.Request) {
	resp := CommandsResponse{Operations: Operations(), Commands: []string{}}
	if h.catalog != nil {
		for _, def := range h.catalog.ListDefinitions() {
			resp.Commands = append(resp.Commands, string(def.Type))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleOperation(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("operation")
	op, ok := operations[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Code:    "UNKNOWN_OPERATION",
			Message: fmt.Sprintf("unknown combat operation %q", name),
		})
		return
	}
	var req Request
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    string(apperrors.CodeCombatCommandInvalid),
			Message: fmt.Sprintf("decode %s request: %v", name, err),
		})
		return
	}

	outcome, err := op(r.Context(), h.tracker, req)
	if err != nil {
		status := httpStatus(err)
		event := h.logger.Warn()
		if status >= http.StatusInternalServerError {
			event = h.logger.Error()
		}
		event.Err(err).Str("operation", name).Int("status", status).Msg("combat operation failed")
		writeJSON(w, status, errorResponse{Code: string(errorCode(err)), Message: err.Error()})
		return
	}
	resp := Response{Operation: name, Status: outcome.Status}
	if outcome.Status == authority.StatusApplied {
		resp.Version = outcome.Snapshot.Version
	}
	h.logger.Debug().Str("operation", name).Str("status", string(outcome.Status)).Msg("combat operation")
	writeJSON(w, http.StatusOK, resp)
}

func errorCode(err error) apperrors.Code {
	if errors.Is(err, tracker.ErrTooManyExtraActions) {
		return apperrors.CodeCombatCommandInvalid
	}
	return apperrors.GetCode(err)
}

// httpStatus maps an operation error to an HTTP status code.
func httpStatus(err error) int {
	if errors.Is(err, tracker.ErrTooManyExtraActions) {
		return http.StatusConflict
	}
	code := apperrors.GetCode(err)
	if code == apperrors.CodeUnknown {
		return http.StatusInternalServerError
	}
	switch code.GRPCCode() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.NotFound:
		return http.StatusNotFound
	case codes.FailedPrecondition:
		return http.StatusConflict
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
