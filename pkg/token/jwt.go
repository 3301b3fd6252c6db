// Package token issues and verifies the HMAC-signed credentials used for
// sessions, invitation links and password reset links.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/fastygo/ocxers/domain"
)

// Kind separates the purposes a token can be issued for.
type Kind string

const (
	KindSession Kind = "session"
	KindInvite  Kind = "invite"
	KindReset   Kind = "reset"
)

// ErrKindMismatch is returned when a valid token is presented for the wrong purpose.
var ErrKindMismatch = errors.New("token kind mismatch")

// SessionClaims embed the signed-in account.
type SessionClaims struct {
	jwt.RegisteredClaims
	Kind Kind           `json:"typ"`
	User domain.Account `json:"user"`
}

// EmailClaims carry the email an invitation or reset link was issued for.
type EmailClaims struct {
	jwt.RegisteredClaims
	Kind  Kind   `json:"typ"`
	Email string `json:"email"`
}

// Manager signs and parses tokens with a shared secret.
type Manager struct {
	secret []byte
	now    func() time.Time
}

// NewManager creates a token manager with the provided secret key.
func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret), now: time.Now}
}

// IssueSession signs a session token for the account. Credential material is never embedded.
func (m *Manager) IssueSession(account domain.Account, ttl time.Duration) (string, error) {
	now := m.now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind: KindSession,
		User: account.Public(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// ParseSession validates a session token and returns the embedded account.
func (m *Manager) ParseSession(raw string) (*domain.Account, error) {
	claims := &SessionClaims{}
	if err := m.parse(raw, claims); err != nil {
		return nil, err
	}
	if claims.Kind != KindSession {
		return nil, fmt.Errorf("%w: %s", ErrKindMismatch, claims.Kind)
	}
	account := claims.User
	return &account, nil
}

// IssueEmail signs an invitation or reset token for email.
func (m *Manager) IssueEmail(kind Kind, email string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := EmailClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind:  kind,
		Email: email,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	return signed, nil
}

// ParseEmail validates an invitation or reset token and returns its email.
func (m *Manager) ParseEmail(kind Kind, raw string) (string, error) {
	claims := &EmailClaims{}
	if err := m.parse(raw, claims); err != nil {
		return "", err
	}
	if claims.Kind != kind {
		return "", fmt.Errorf("%w: %s", ErrKindMismatch, claims.Kind)
	}
	return claims.Email, nil
}

func (m *Manager) parse(raw string, claims jwt.Claims) error {
	parser := jwt.Parser{}
	token, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return errors.New("token is invalid")
	}
	return nil
}
