package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"

	apperrors "github.com/louisbranch/turnorder/internal/platform/errors"
)

// DefaultTokenTTL bounds how long an issued peer token stays valid.
const DefaultTokenTTL = time.Minute

const (
	authorizationHeader = "authorization"
	bearerPrefix        = "Bearer "
	healthMethodPrefix  = "/grpc.health.v1.Health/"
)

// PeerClaims identifies an authenticated relay peer.
type PeerClaims struct {
	PeerID    string
	GM        bool
	ExpiresAt time.Time
}

// peerClaims is the internal claims type used for JWT parsing.
type peerClaims struct {
	jwt.RegisteredClaims
	PeerID string `json:"peer_id"`
	GM     bool   `json:"gm"`
}

// PeerAuth issues and verifies HS256 peer tokens from a shared table secret.
type PeerAuth struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewPeerAuth returns a token authority for secret. A zero ttl uses
// DefaultTokenTTL.
func NewPeerAuth(secret string, ttl time.Duration, now func() time.Time) (*PeerAuth, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("peer secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &PeerAuth{secret: []byte(secret), ttl: ttl, now: now}, nil
}

// IssueToken signs a token for peerID.
func (a *PeerAuth) IssueToken(peerID string, gm bool) (string, error) {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return "", errors.New("peer id is required")
	}
	issuedAt := a.now().UTC()
	claims := peerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   peerID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(a.ttl)),
		},
		PeerID: peerID,
		GM:     gm,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign peer token: %w", err)
	}
	return token, nil
}

// Verify checks token and returns its claims.
func (a *PeerAuth) Verify(token string) (PeerClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return PeerClaims{}, apperrors.New(apperrors.CodeCombatPeerUnauthenticated, "peer token is required")
	}
	var parsed peerClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return PeerClaims{}, apperrors.Wrap(apperrors.CodeCombatPeerUnauthenticated, "peer token is invalid", err)
	}
	if strings.TrimSpace(parsed.PeerID) == "" {
		return PeerClaims{}, apperrors.New(apperrors.CodeCombatPeerUnauthenticated, "peer token has no peer id")
	}
	return PeerClaims{
		PeerID:    parsed.PeerID,
		GM:        parsed.GM,
		ExpiresAt: parsed.ExpiresAt.Time.UTC(),
	}, nil
}

type peerContextKey struct{}

// ContextWithPeer attaches verified peer claims to ctx.
func ContextWithPeer(ctx context.Context, claims PeerClaims) context.Context {
	return context.WithValue(ctx, peerContextKey{}, claims)
}

// PeerFromContext returns the verified peer attached by the interceptor.
func PeerFromContext(ctx context.Context) (PeerClaims, bool) {
	claims, ok := ctx.Value(peerContextKey{}).(PeerClaims)
	return claims, ok
}

// UnaryServerInterceptor rejects calls without a valid bearer token. Health
// checks pass through so peers can check liveness before authenticating.
func (a *PeerAuth) UnaryServerInterceptor() gogrpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, healthMethodPrefix) {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		token, ok := bearerToken(md)
		if !ok {
			return nil, statusError(apperrors.New(apperrors.CodeCombatPeerUnauthenticated, "authorization header is required"))
		}
		claims, err := a.Verify(token)
		if err != nil {
			return nil, statusError(err)
		}
		return handler(ContextWithPeer(ctx, claims), req)
	}
}

func bearerToken(md metadata.MD) (string, bool) {
	for _, value := range md.Get(authorizationHeader) {
		if len(value) > len(bearerPrefix) && strings.EqualFold(value[:len(bearerPrefix)], bearerPrefix) {
			return strings.TrimSpace(value[len(bearerPrefix):]), true
		}
	}
	return "", false
}

// Credentials returns per-call credentials that sign a fresh token for peerID.
func (a *PeerAuth) Credentials(peerID string, gm bool) credentials.PerRPCCredentials {
	return peerCredentials{auth: a, peerID: peerID, gm: gm}
}

type peerCredentials struct {
	auth   *PeerAuth
	peerID string
	gm     bool
}

func (c peerCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	token, err := c.auth.IssueToken(c.peerID, c.gm)
	if err != nil {
		return nil, err
	}
	return map[string]string{authorizationHeader: bearerPrefix + token}, nil
}

// RequireTransportSecurity allows plaintext peer connections.
func (peerCredentials) RequireTransportSecurity() bool {
	return false
}
