package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Handler receives relayed envelopes on the authority side.
type Handler interface {
	HandleRelayed(ctx context.Context, env Envelope) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env Envelope) error

// HandleRelayed calls f.
func (f HandlerFunc) HandleRelayed(ctx context.Context, env Envelope) error {
	return f(ctx, env)
}

// Bus publishes envelopes to a peer by id.
type Bus interface {
	Publish(ctx context.Context, peerID string, env Envelope) error
}

// LocalBus delivers envelopes to handlers registered in the same process.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewLocalBus returns an empty in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[string]Handler)}
}

// Register attaches handler for peerID, replacing any previous one.
func (b *LocalBus) Register(peerID string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[strings.TrimSpace(peerID)] = handler
}

// Unregister detaches peerID.
func (b *LocalBus) Unregister(peerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, strings.TrimSpace(peerID))
}

// Publish delivers env to the handler registered for peerID.
func (b *LocalBus) Publish(ctx context.Context, peerID string, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	handler, ok := b.handlers[strings.TrimSpace(peerID)]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnreachable, peerID)
	}
	return handler.HandleRelayed(ctx, env)
}
