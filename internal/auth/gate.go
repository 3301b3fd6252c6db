// Package auth verifies bearer credentials and carries the signed-in
// account through request contexts.
package auth

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/ocxers/domain"
	"github.com/fastygo/ocxers/pkg/token"
)

// Authentication failures. Both map to an unauthorized response.
var (
	ErrUnauthenticated = domain.NewError(domain.ErrCodeUnauthorized, "You must be signed in.")
	ErrInvalidToken    = domain.NewError(domain.ErrCodeUnauthorized, "Invalid Authorization!")
)

type (
	ctxKey        struct{}
	credentialKey struct{}
)

// SessionParser resolves a session token into its account.
type SessionParser interface {
	ParseSession(raw string) (*domain.Account, error)
}

var _ SessionParser = (*token.Manager)(nil)

// Gate validates Authorization headers.
type Gate struct {
	sessions SessionParser
	logger   *zap.Logger
}

// NewGate builds a gate over the session parser.
func NewGate(sessions SessionParser, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{sessions: sessions, logger: logger}
}

// Authenticate resolves the account behind an Authorization header value.
// The token is the second space-separated part ("Bearer <token>"); a bare
// token is accepted too.
func (g *Gate) Authenticate(header string) (*domain.Account, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, ErrUnauthenticated
	}
	raw := header
	if scheme, rest, found := strings.Cut(header, " "); found && strings.EqualFold(scheme, "Bearer") {
		raw = strings.TrimSpace(rest)
	}
	account, err := g.sessions.ParseSession(raw)
	if err != nil {
		g.logger.Debug("session token rejected", zap.Error(err))
		return nil, ErrInvalidToken
	}
	return account, nil
}

// WithAccount stores the signed-in account in ctx.
func WithAccount(ctx context.Context, account *domain.Account) context.Context {
	return context.WithValue(ctx, ctxKey{}, account)
}

// AccountFrom returns the account stored by WithAccount.
func AccountFrom(ctx context.Context) (*domain.Account, bool) {
	if ctx == nil {
		return nil, false
	}
	account, ok := ctx.Value(ctxKey{}).(*domain.Account)
	return account, ok && account != nil
}

// Require returns the signed-in account or ErrUnauthenticated.
func Require(ctx context.Context) (*domain.Account, error) {
	account, ok := AccountFrom(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return account, nil
}

// WithCredential stores the raw Authorization header so protected resolvers
// can authenticate on demand.
func WithCredential(ctx context.Context, header string) context.Context {
	return context.WithValue(ctx, credentialKey{}, header)
}

// Resolve returns the account already in ctx, or authenticates the
// credential stored by WithCredential.
func (g *Gate) Resolve(ctx context.Context) (*domain.Account, error) {
	if account, ok := AccountFrom(ctx); ok {
		return account, nil
	}
	header, _ := ctx.Value(credentialKey{}).(string)
	return g.Authenticate(header)
}
