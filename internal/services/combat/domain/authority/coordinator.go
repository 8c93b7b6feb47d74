package authority

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "github.com/louisbranch/turnorder/internal/platform/errors"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/action"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/command"
	"github.com/louisbranch/turnorder/internal/services/combat/relay"
	"github.com/louisbranch/turnorder/internal/services/combat/storage"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTurnInterval is the world time one round represents.
const DefaultTurnInterval = 6 * time.Second

const recentEnvelopeLimit = 256

// Status describes what happened to a dispatched command.
type Status string

const (
	// StatusApplied means the command was committed locally.
	StatusApplied Status = "applied"
	// StatusRelayed means the command was forwarded to the authority.
	StatusRelayed Status = "relayed"
	// StatusDropped means the command was discarded.
	StatusDropped Status = "dropped"
)

// Outcome is the result of a dispatch. Snapshot is set only when applied.
type Outcome struct {
	Status   Status
	Snapshot storage.Snapshot
}

// Config tunes the coordinator.
type Config struct {
	// Scope keys the document in the store.
	Scope string
	// TurnInterval is the world time added or removed per round change.
	TurnInterval time.Duration
	// AlwaysAdvanceClock moves the clock on round changes even when the
	// document does not link combat to world time.
	AlwaysAdvanceClock bool
}

// Deps are the collaborators of a coordinator.
type Deps struct {
	Store     storage.Store
	Registry  *command.Registry
	Authority Authority
	Notifier  Notifier
	Logger    zerolog.Logger
	Tracer    trace.Tracer
}

// Coordinator applies or relays combat commands.
type Coordinator struct {
	cfg       Config
	store     storage.Store
	registry  *command.Registry
	authority Authority
	notifier  Notifier
	logger    zerolog.Logger
	tracer    trace.Tracer

	mu     sync.Mutex
	recent []string
	seen   map[string]struct{}
}

// NewCoordinator builds a coordinator.
func NewCoordinator(cfg Config, deps Deps) (*Coordinator, error) {
	if deps.Store == nil {
		return nil, errors.New("store is required")
	}
	if deps.Registry == nil {
		return nil, errors.New("command registry is required")
	}
	if deps.Authority == nil {
		return nil, errors.New("authority is required")
	}
	cfg.Scope = strings.TrimSpace(cfg.Scope)
	if cfg.Scope == "" {
		cfg.Scope = storage.DefaultScope
	}
	if cfg.TurnInterval <= 0 {
		cfg.TurnInterval = DefaultTurnInterval
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = LogNotifier{Logger: deps.Logger}
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/louisbranch/turnorder/internal/services/combat/domain/authority")
	}
	return &Coordinator{
		cfg:       cfg,
		store:     deps.Store,
		registry:  deps.Registry,
		authority: deps.Authority,
		notifier:  notifier,
		logger:    deps.Logger.With().Str("component", "coordinator").Logger(),
		tracer:    tracer,
		seen:      make(map[string]struct{}),
	}, nil
}

// Scope returns the document scope the coordinator writes to.
func (c *Coordinator) Scope() string {
	return c.cfg.Scope
}

// Load returns the current snapshot of the document.
func (c *Coordinator) Load(ctx context.Context) (storage.Snapshot, error) {
	return c.store.Load(ctx, c.cfg.Scope)
}

// Dispatch applies cmd when the local peer holds authority and relays it
// otherwise. When no authority is reachable a notice is raised and the command
// is dropped without an error.
func (c *Coordinator) Dispatch(ctx context.Context, cmd command.Command) (Outcome, error) {
	ctx, span := c.tracer.Start(ctx, "combat.dispatch", trace.WithAttributes(
		attribute.String("combat.command", string(cmd.Type)),
	))
	defer span.End()

	validated, err := c.validate(cmd)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Outcome{Status: StatusDropped}, err
	}

	if c.authority.IsAuthority() {
		outcome, err := c.apply(ctx, validated)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		return outcome, err
	}

	if err := c.authority.Relay(ctx, validated); err != nil {
		if errors.Is(err, ErrNoAuthority) {
			c.logger.Warn().Str("command", string(validated.Type)).Msg("dropping command without authority")
			c.notifier.Notify(ctx, NewNotice(apperrors.CodeCombatNoAuthority, nil))
			span.SetAttributes(attribute.String("combat.outcome", string(StatusDropped)))
			return Outcome{Status: StatusDropped}, nil
		}
		span.SetStatus(codes.Error, err.Error())
		return Outcome{Status: StatusDropped}, fmt.Errorf("relay %s: %w", validated.Type, err)
	}
	span.SetAttributes(attribute.String("combat.outcome", string(StatusRelayed)))
	return Outcome{Status: StatusRelayed}, nil
}

// DispatchAll dispatches cmds in order and stops at the first error.
func (c *Coordinator) DispatchAll(ctx context.Context, cmds ...command.Command) (Outcome, error) {
	var last Outcome
	for _, cmd := range cmds {
		outcome, err := c.Dispatch(ctx, cmd)
		if err != nil {
			return outcome, err
		}
		if outcome.Status == StatusDropped {
			return outcome, nil
		}
		last = outcome
	}
	return last, nil
}

// HandleRelayed applies a command received from a proposer. The authority
// role is re-checked at apply time and duplicate deliveries are ignored.
func (c *Coordinator) HandleRelayed(ctx context.Context, env relay.Envelope) error {
	ctx, span := c.tracer.Start(ctx, "combat.handle_relayed", trace.WithAttributes(
		attribute.String("combat.relay.from", env.From),
	))
	defer span.End()

	cmd, err := env.Command()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return apperrors.Wrap(apperrors.CodeCombatCommandInvalid, "relayed envelope is invalid", err)
	}
	span.SetAttributes(attribute.String("combat.command", string(cmd.Type)))

	if !c.authority.IsAuthority() {
		c.logger.Warn().Str("from", env.From).Str("command", string(cmd.Type)).Msg("rejecting relayed command without authority")
		return apperrors.WithMetadata(apperrors.CodeCombatNotAuthority, "peer does not hold combat authority", map[string]string{
			"From": env.From,
		})
	}
	validated, err := c.validate(cmd)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if _, err := c.applyOnce(ctx, validated, env.ID); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (c *Coordinator) validate(cmd command.Command) (command.Command, error) {
	validated, err := c.registry.Validate(cmd)
	if err != nil {
		return command.Command{}, apperrors.WrapWithMetadata(
			apperrors.CodeCombatCommandInvalid,
			fmt.Sprintf("combat command %s is invalid: %v", cmd.Type, err),
			map[string]string{"Type": string(cmd.Type)},
			err,
		)
	}
	return validated, nil
}

func (c *Coordinator) apply(ctx context.Context, cmd command.Command) (Outcome, error) {
	return c.applyOnce(ctx, cmd, "")
}

// applyOnce commits cmd unless envelopeID was already committed.
func (c *Coordinator) applyOnce(ctx context.Context, cmd command.Command, envelopeID string) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[envelopeID]; ok && envelopeID != "" {
		c.logger.Debug().Str("envelope_id", envelopeID).Msg("ignoring duplicate relayed command")
		return Outcome{Status: StatusDropped}, nil
	}

	snap, err := c.store.Update(ctx, c.cfg.Scope, func(doc storage.Document) error {
		prev := doc.State()
		next := action.Reduce(prev, cmd)
		doc.Replace(next)
		if !next.LinkToWorldTime && !c.cfg.AlwaysAdvanceClock {
			return nil
		}
		switch {
		case next.Round > prev.Round:
			doc.Advance(c.cfg.TurnInterval)
		case next.Round < prev.Round:
			doc.Rewind(c.cfg.TurnInterval)
		}
		return nil
	})
	if err != nil {
		return Outcome{Status: StatusDropped}, fmt.Errorf("apply %s: %w", cmd.Type, err)
	}
	c.logger.Debug().
		Str("command", string(cmd.Type)).
		Str("actor", cmd.ActorID).
		Int64("version", snap.Version).
		Int("round", snap.State.Round).
		Int("turn", snap.State.Turn).
		Msg("combat command applied")
	c.rememberLocked(envelopeID)
	return Outcome{Status: StatusApplied, Snapshot: snap}, nil
}

func (c *Coordinator) rememberLocked(id string) {
	if id == "" {
		return
	}
	c.seen[id] = struct{}{}
	c.recent = append(c.recent, id)
	if len(c.recent) > recentEnvelopeLimit {
		delete(c.seen, c.recent[0])
		c.recent = c.recent[1:]
	}
}
