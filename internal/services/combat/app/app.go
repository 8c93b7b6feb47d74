// Package app assembles a combat peer: store, authority election, relay
// transport, the viewer feed and the command routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	platformgrpc "github.com/louisbranch/turnorder/internal/platform/grpc"
	"github.com/louisbranch/turnorder/internal/platform/timeouts"
	"github.com/louisbranch/turnorder/internal/services/combat/api/control"
	"github.com/louisbranch/turnorder/internal/services/combat/api/ws"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/action"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/authority"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/roll"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/tracker"
	"github.com/louisbranch/turnorder/internal/services/combat/relay"
	"github.com/louisbranch/turnorder/internal/services/combat/storage"
	storagebbolt "github.com/louisbranch/turnorder/internal/services/combat/storage/bbolt"
	storagesqlite "github.com/louisbranch/turnorder/internal/services/combat/storage/sqlite"
)

// App is a running combat peer.
type App struct {
	cfg    Config
	logger zerolog.Logger

	feed        *storage.Feed
	roster      *authority.Roster
	coordinator *authority.Coordinator
	tracker     *tracker.Tracker
	hub         *ws.Hub
	control     *control.Handler
	mirror      *ws.Mirror
	bus         *relay.GRPCBus
	grpcServer  *gogrpc.Server
	health      *health.Server

	relayListener net.Listener
	httpListener  net.Listener

	closeOnce sync.Once
}

// New opens the store, binds both listeners and wires the peer.
func New(cfg Config, logger zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a := &App{
		cfg:    cfg,
		logger: logger.With().Str("peer_id", cfg.PeerID).Logger(),
		feed:   storage.NewFeed(store),
	}
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire() error {
	var dialOpts []gogrpc.DialOption
	var serverOpts []gogrpc.ServerOption
	if a.cfg.PeerSecret != "" {
		auth, err := relay.NewPeerAuth(a.cfg.PeerSecret, relay.DefaultTokenTTL, nil)
		if err != nil {
			return err
		}
		dialOpts = append(dialOpts, gogrpc.WithPerRPCCredentials(auth.Credentials(a.cfg.PeerID, a.cfg.GM)))
		serverOpts = append(serverOpts, gogrpc.ChainUnaryInterceptor(auth.UnaryServerInterceptor()))
	} else {
		a.logger.Warn().Msg("relay authentication disabled: no peer secret configured")
	}

	a.bus = relay.NewGRPCBus(dialOpts...)
	roster, err := authority.NewRoster(authority.Peer{ID: a.cfg.PeerID, GM: a.cfg.GM}, a.bus, a.logger)
	if err != nil {
		return err
	}
	if a.cfg.AuthorityID != "" {
		a.bus.SetAddress(a.cfg.AuthorityID, a.cfg.AuthorityAddr)
		roster.Upsert(authority.Peer{ID: a.cfg.AuthorityID, GM: true})
	}
	a.roster = roster

	hub, err := ws.NewHub(a.feed, a.cfg.Scope, nil, a.logger)
	if err != nil {
		return err
	}
	a.hub = hub
	if a.cfg.AuthorityFeed != "" {
		mirror, err := ws.NewMirror(a.cfg.AuthorityFeed, a.feed, a.cfg.Scope, a.logger)
		if err != nil {
			return err
		}
		a.mirror = mirror
	}

	registry, err := action.NewRegistry()
	if err != nil {
		return err
	}
	coordinator, err := authority.NewCoordinator(authority.Config{
		Scope:              a.cfg.Scope,
		TurnInterval:       a.cfg.TurnInterval,
		AlwaysAdvanceClock: a.cfg.AlwaysAdvanceClock,
	}, authority.Deps{
		Store:     a.feed,
		Registry:  registry,
		Authority: roster,
		Notifier:  authority.Notifiers{authority.LogNotifier{Logger: a.logger}, hub},
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}
	a.coordinator = coordinator

	a.tracker, err = tracker.New(coordinator, tracker.WithPoster(roll.Posters{roll.LogPoster{Logger: a.logger}, hub}))
	if err != nil {
		return err
	}

	a.control, err = control.NewHandler(a.tracker, registry, a.logger)
	if err != nil {
		return err
	}

	relayServer, err := relay.NewServer(coordinator, a.logger)
	if err != nil {
		return err
	}
	a.grpcServer, a.health = platformgrpc.NewServer(serverOpts...)
	relayServer.Register(a.grpcServer)
	a.health.SetServingStatus(relay.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	a.relayListener, err = net.Listen("tcp", a.cfg.RelayAddr)
	if err != nil {
		return fmt.Errorf("listen relay on %s: %w", a.cfg.RelayAddr, err)
	}
	a.httpListener, err = net.Listen("tcp", a.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen feed on %s: %w", a.cfg.HTTPAddr, err)
	}
	return nil
}

// Tracker returns the combat operations of this peer.
func (a *App) Tracker() *tracker.Tracker {
	return a.tracker
}

// Coordinator returns the command coordinator of this peer.
func (a *App) Coordinator() *authority.Coordinator {
	return a.coordinator
}

// Roster returns the peer roster used for authority election.
func (a *App) Roster() *authority.Roster {
	return a.roster
}

// RelayAddr returns the bound relay address.
func (a *App) RelayAddr() string {
	if a.relayListener == nil {
		return ""
	}
	return a.relayListener.Addr().String()
}

// HTTPAddr returns the bound feed and command address.
func (a *App) HTTPAddr() string {
	if a.httpListener == nil {
		return ""
	}
	return a.httpListener.Addr().String()
}

// Run creates a peer and serves it until ctx ends.
func Run(ctx context.Context, cfg Config, logger zerolog.Logger) error {
	a, err := New(cfg, logger)
	if err != nil {
		return err
	}
	return a.Serve(ctx)
}

// Serve runs the relay server, the viewer feed and the authority watcher
// until ctx ends or a server fails.
func (a *App) Serve(ctx context.Context) error {
	defer a.Close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	feedErr := make(chan error, 1)
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := ws.Serve(ctx, a.httpListener, a.cfg.MaxViewers, a.routes()); err != nil {
			feedErr <- fmt.Errorf("serve feed: %w", err)
		}
	}()
	if a.cfg.AuthorityID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.watchAuthority(ctx)
		}()
	}
	if a.mirror != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = a.mirror.Run(ctx)
		}()
	}

	grpcErr := make(chan error, 1)
	go func() {
		grpcErr <- a.grpcServer.Serve(a.relayListener)
	}()
	a.logger.Info().
		Str("relay_addr", a.RelayAddr()).
		Str("http_addr", a.HTTPAddr()).
		Bool("gm", a.cfg.GM).
		Msg("combat peer listening")

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-feedErr:
		runErr = err
	case err := <-grpcErr:
		runErr = grpcServeErr(err)
		grpcErr = nil
	}

	cancel()
	a.health.Shutdown()
	a.grpcServer.GracefulStop()
	if grpcErr != nil {
		if err := grpcServeErr(<-grpcErr); err != nil && runErr == nil {
			runErr = err
		}
	}
	wg.Wait()
	return runErr
}

// routes serves the viewer feed and the command routes on one mux.
func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	a.hub.Register(mux)
	a.control.Register(mux)
	return mux
}

func grpcServeErr(err error) error {
	if err == nil || errors.Is(err, gogrpc.ErrServerStopped) {
		return nil
	}
	return fmt.Errorf("serve relay: %w", err)
}

// watchAuthority mirrors the remote authority's relay health into the roster.
func (a *App) watchAuthority(ctx context.Context) {
	conn, err := a.bus.Conn(a.cfg.AuthorityID)
	if err != nil {
		a.logger.Error().Err(err).Str("authority", a.cfg.AuthorityID).Msg("authority connection")
		return
	}
	err = platformgrpc.WatchHealth(ctx, conn, relay.ServiceName, timeouts.HealthPoll, func(serving bool) {
		a.roster.SetConnected(a.cfg.AuthorityID, serving)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn().Err(err).Msg("authority health watch stopped")
	}
}

// Close releases listeners, peer connections and the store.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.relayListener != nil {
			_ = a.relayListener.Close()
		}
		if a.httpListener != nil {
			_ = a.httpListener.Close()
		}
		if a.bus != nil {
			if err := a.bus.Close(); err != nil {
				a.logger.Warn().Err(err).Msg("close relay connections")
			}
		}
		if err := a.feed.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close combat store")
		}
	})
}

func openStore(cfg Config) (storage.Store, error) {
	switch cfg.Store {
	case StoreMemory:
		return storage.NewMemoryStore(), nil
	case StoreBBolt:
		path, err := storePath(cfg.DBPath, "combat.bolt")
		if err != nil {
			return nil, err
		}
		store, err := storagebbolt.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open bbolt store: %w", err)
		}
		return store, nil
	default:
		path, err := storePath(cfg.DBPath, "combat.db")
		if err != nil {
			return nil, err
		}
		store, err := storagesqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	}
}

func storePath(path, name string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", name)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create storage dir: %w", err)
		}
	}
	return path, nil
}
