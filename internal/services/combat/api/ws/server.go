package ws

import (
	"context"
	"errors"
	"net"
	"net/http"

	"golang.org/x/net/netutil"

	"github.com/louisbranch/turnorder/internal/platform/timeouts"
)

// DefaultMaxViewers caps concurrent feed connections when none is configured.
const DefaultMaxViewers = 64

// Serve runs handler on listener until ctx ends, accepting at most
// maxConns connections at a time.
func Serve(ctx context.Context, listener net.Listener, maxConns int, handler http.Handler) error {
	if listener == nil {
		return errors.New("listener is required")
	}
	if handler == nil {
		return errors.New("handler is required")
	}
	if maxConns <= 0 {
		maxConns = DefaultMaxViewers
	}
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(netutil.LimitListener(listener, maxConns))
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-serveErr
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
