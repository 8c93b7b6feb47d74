package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/louisbranch/turnorder/internal/platform/timeouts"
	"github.com/louisbranch/turnorder/internal/services/combat/storage"
)

// Mirror follows another peer's feed and replicates each snapshot into a
// local store, so a proposer reads the same document the authority writes.
type Mirror struct {
	url    string
	store  storage.Store
	scope  string
	retry  time.Duration
	dialer *websocket.Dialer
	logger zerolog.Logger
}

// NewMirror returns a mirror of the feed at url (ws://host/combat/ws).
func NewMirror(url string, store storage.Store, scope string, logger zerolog.Logger) (*Mirror, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("feed url is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	scope, err := storage.NormalizeScope(scope)
	if err != nil {
		return nil, err
	}
	return &Mirror{
		url:    url,
		store:  store,
		scope:  scope,
		retry:  timeouts.HealthPoll,
		dialer: websocket.DefaultDialer,
		logger: logger.With().Str("component", "combat_mirror").Str("feed", url).Logger(),
	}, nil
}

// Run follows the feed until ctx ends, redialing after failures.
func (m *Mirror) Run(ctx context.Context) error {
	for {
		err := m.follow(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.logger.Warn().Err(err).Dur("retry", m.retry).Msg("feed lost")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.retry):
		}
	}
}

func (m *Mirror) follow(ctx context.Context) error {
	conn, resp, err := m.dialer.DialContext(ctx, m.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var frame struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(payload, &frame); err != nil {
			m.logger.Warn().Err(err).Msg("discarding malformed feed frame")
			continue
		}
		if frame.Type != TypeSnapshot {
			continue
		}
		var view View
		if err := json.Unmarshal(payload, &view); err != nil {
			m.logger.Warn().Err(err).Msg("discarding malformed snapshot")
			continue
		}
		if err := m.Apply(ctx, view); err != nil {
			return err
		}
	}
}

// Apply replaces the local document and world clock with view.
func (m *Mirror) Apply(ctx context.Context, view View) error {
	if view.Scope != "" && view.Scope != m.scope {
		return nil
	}
	worldTime := time.Duration(view.WorldTimeMS) * time.Millisecond
	_, err := m.store.Update(ctx, m.scope, func(doc storage.Document) error {
		doc.Replace(view.State)
		if delta := worldTime - doc.WorldTime(); delta > 0 {
			doc.Advance(delta)
		} else if delta < 0 {
			doc.Rewind(-delta)
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.logger.Debug().Int64("remote_version", view.Version).Msg("mirrored snapshot")
	return nil
}
