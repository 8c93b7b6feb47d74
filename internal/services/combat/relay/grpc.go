package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/louisbranch/turnorder/internal/platform/errors"
	"github.com/louisbranch/turnorder/internal/platform/errors/i18n"
	platformgrpc "github.com/louisbranch/turnorder/internal/platform/grpc"
	"github.com/louisbranch/turnorder/internal/platform/timeouts"
)

// ServiceName is the fully qualified relay service name.
const ServiceName = "turnorder.relay.v1.Relay"

const publishMethod = "/" + ServiceName + "/Publish"

// relayServer is the handler type the service descriptor dispatches to.
type relayServer interface {
	Publish(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

var relayServiceDesc = gogrpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*relayServer)(nil),
	Methods: []gogrpc.MethodDesc{
		{MethodName: "Publish", Handler: publishHandler},
	},
	Streams:  []gogrpc.StreamDesc{},
	Metadata: "turnorder/relay/v1/relay.proto",
}

func publishHandler(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(relayServer).Publish(ctx, in)
	}
	info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: publishMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(relayServer).Publish(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Server exposes a Handler over gRPC.
type Server struct {
	handler Handler
	logger  zerolog.Logger
}

// NewServer wraps handler for registration on a gRPC server.
func NewServer(handler Handler, logger zerolog.Logger) (*Server, error) {
	if handler == nil {
		return nil, errors.New("relay handler is required")
	}
	return &Server{
		handler: handler,
		logger:  logger.With().Str("component", "relay_server").Logger(),
	}, nil
}

// Register attaches the relay service to registrar.
func (s *Server) Register(registrar gogrpc.ServiceRegistrar) {
	registrar.RegisterService(&relayServiceDesc, s)
}

// Publish decodes an envelope and hands it to the handler. When the call was
// authenticated, the sender is taken from the token rather than the payload.
func (s *Server) Publish(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	env, err := envelopeFromStruct(in)
	if err != nil {
		return nil, statusError(apperrors.WrapWithMetadata(
			apperrors.CodeCombatCommandInvalid,
			"relay envelope is invalid",
			map[string]string{"Type": "envelope"},
			err,
		))
	}
	if claims, ok := PeerFromContext(ctx); ok {
		env.From = claims.PeerID
	}
	if err := s.handler.HandleRelayed(ctx, env); err != nil {
		s.logger.Warn().Err(err).Str("envelope_id", env.ID).Str("from", env.From).Msg("relayed command rejected")
		return nil, statusError(err)
	}
	return &emptypb.Empty{}, nil
}

// GRPCBus publishes envelopes to remote peers over gRPC.
type GRPCBus struct {
	opts []gogrpc.DialOption

	mu    sync.Mutex
	addrs map[string]string
	conns map[string]*gogrpc.ClientConn
}

// NewGRPCBus returns a bus that dials peers with opts appended to the
// platform defaults.
func NewGRPCBus(opts ...gogrpc.DialOption) *GRPCBus {
	return &GRPCBus{
		opts:  opts,
		addrs: make(map[string]string),
		conns: make(map[string]*gogrpc.ClientConn),
	}
}

// SetAddress records where peerID listens. A changed address drops the
// existing connection.
func (b *GRPCBus) SetAddress(peerID, addr string) {
	peerID = strings.TrimSpace(peerID)
	addr = strings.TrimSpace(addr)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.addrs[peerID] == addr {
		return
	}
	if conn, ok := b.conns[peerID]; ok {
		_ = conn.Close()
		delete(b.conns, peerID)
	}
	if addr == "" {
		delete(b.addrs, peerID)
		return
	}
	b.addrs[peerID] = addr
}

// Conn returns the client connection for peerID, creating it lazily.
func (b *GRPCBus) Conn(peerID string) (*gogrpc.ClientConn, error) {
	peerID = strings.TrimSpace(peerID)
	b.mu.Lock()
	defer b.mu.Unlock()
	if conn, ok := b.conns[peerID]; ok {
		return conn, nil
	}
	addr, ok := b.addrs[peerID]
	if !ok {
		return nil, fmt.Errorf("%w: no address for %s", ErrUnreachable, peerID)
	}
	conn, err := platformgrpc.NewClient(addr, b.opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreachable, peerID, err)
	}
	b.conns[peerID] = conn
	return conn, nil
}

// Publish sends env to peerID. Transport failures wrap ErrUnreachable;
// rejections by the remote peer come back as domain errors.
func (b *GRPCBus) Publish(ctx context.Context, peerID string, env Envelope) error {
	conn, err := b.Conn(peerID)
	if err != nil {
		return err
	}
	in, err := envelopeToStruct(env)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.RelayPublish)
	defer cancel()
	err = conn.Invoke(ctx, publishMethod, in, new(emptypb.Empty))
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s: %v", ErrUnreachable, peerID, err)
	}
	if domainErr := apperrors.FromGRPCStatus(err); domainErr != nil {
		return domainErr
	}
	return err
}

// Close closes every peer connection.
func (b *GRPCBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	for id, conn := range b.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
		delete(b.conns, id)
	}
	return errors.Join(errs...)
}

func envelopeToStruct(env Envelope) (*structpb.Struct, error) {
	data, err := env.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode relay envelope: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("convert relay envelope: %w", err)
	}
	return out, nil
}

func envelopeFromStruct(in *structpb.Struct) (Envelope, error) {
	if in == nil {
		return Envelope{}, ErrEnvelopeInvalid
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return Envelope{}, fmt.Errorf("convert relay envelope: %w", err)
	}
	return Unmarshal(data)
}

// statusError converts err to a gRPC status carrying the localized message.
func statusError(err error) error {
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		message := i18n.GetCatalog(i18n.BaseLocale).Format(string(domainErr.Code), domainErr.Metadata)
		return domainErr.ToGRPCStatus(i18n.BaseLocale, message)
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
