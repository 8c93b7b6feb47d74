// Package grpc holds the gRPC client and server plumbing shared by combat
// peers.
package grpc

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DialStage describes where a dial attempt failed.
type DialStage string

const (
	// DialStageConnect indicates the client could not be created.
	DialStageConnect DialStage = "connect"
	// DialStageHealth indicates the peer did not report SERVING.
	DialStageHealth DialStage = "health"
)

// DialError wraps a peer connection failure with the stage it failed at.
type DialError struct {
	Addr  string
	Stage DialStage
	Err   error
}

// Error implements the error interface.
func (e *DialError) Error() string {
	if e == nil {
		return "gRPC dial error"
	}
	if e.Addr == "" {
		return fmt.Sprintf("gRPC %s error: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("gRPC %s error for %s: %v", e.Stage, e.Addr, e.Err)
}

// Unwrap returns the underlying error.
func (e *DialError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DefaultClientDialOptions returns the dial options every peer client uses.
// The OTel stats handler propagates trace context on each outbound call.
func DefaultClientDialOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// NewClient creates a lazily connecting client for addr. Calls fail fast with
// codes.Unavailable while the peer is down.
func NewClient(addr string, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
	if addr == "" {
		return nil, &DialError{Stage: DialStageConnect, Err: errors.New("address is required")}
	}
	conn, err := gogrpc.NewClient(addr, append(DefaultClientDialOptions(), opts...)...)
	if err != nil {
		return nil, &DialError{Addr: addr, Stage: DialStageConnect, Err: err}
	}
	return conn, nil
}
