// Package invalidation tracks accounts that must sign in again and pushes
// the news to their open realtime connections.
package invalidation

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fastygo/ocxers/domain"
	"github.com/fastygo/ocxers/repository/docstore"
)

// roleFanOutSize bounds how many accounts a role-wide invalidation touches.
const roleFanOutSize = 10000

// Pusher delivers a login-required event to every open connection of an email.
type Pusher interface {
	PushLoginRequired(email string) int
}

// Registry owns the persisted invalidation records.
type Registry struct {
	store  docstore.Gateway
	pusher Pusher
	logger *zap.Logger
}

// NewRegistry builds a registry. pusher may be nil when no realtime channel runs.
func NewRegistry(store docstore.Gateway, pusher Pusher, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{store: store, pusher: pusher, logger: logger}
}

// MarkRequired records an invalidation for each email, keeping an existing
// record untouched, then notifies connected clients. Notification is best effort.
func (r *Registry) MarkRequired(ctx context.Context, emails []string, reason domain.InvalidationReason) error {
	ids := normalize(emails)
	if len(ids) == 0 {
		return nil
	}
	res := r.store.BulkUpsertIfAbsent(ctx, domain.IndexInvalidations, ids, string(reason))
	if !res.OK() {
		return domain.WrapError(domain.ErrCodeInternal, res.Message, res.Error())
	}
	r.logger.Info("login required",
		zap.Strings("emails", ids),
		zap.String("reason", string(reason)),
	)
	if r.pusher == nil {
		return nil
	}
	for _, email := range ids {
		if n := r.pusher.PushLoginRequired(email); n > 0 {
			r.logger.Debug("login required pushed", zap.String("email", email), zap.Int("connections", n))
		}
	}
	return nil
}

// MarkRequiredForRole invalidates every account holding role.
func (r *Registry) MarkRequiredForRole(ctx context.Context, role string) error {
	res := r.store.Query(ctx, domain.IndexAccounts, docstore.Query{
		Should: []docstore.Clause{docstore.Term{Field: "role", Value: role}},
		Size:   roleFanOutSize,
	})
	if !res.OK() {
		return domain.WrapError(domain.ErrCodeInternal, res.Message, res.Error())
	}
	emails := make([]string, 0, len(res.Data))
	for _, doc := range res.Data {
		if email := doc.String("email"); email != "" {
			emails = append(emails, email)
		}
	}
	return r.MarkRequired(ctx, emails, domain.ReasonRoleChanged)
}

// IsRequired reports whether the account must sign in again. With hasPrefix
// the argument is a connection key and the email is recovered from it.
func (r *Registry) IsRequired(ctx context.Context, key string, hasPrefix bool) (bool, error) {
	email := domain.NormalizeEmail(key)
	if hasPrefix {
		email = domain.EmailFromConnectionKey(key)
	}
	if email == "" {
		return false, nil
	}
	res := r.store.Query(ctx, domain.IndexInvalidations, docstore.Query{
		Must: []docstore.Clause{docstore.Term{Field: docstore.IDField, Value: email}},
		Size: 1,
	})
	if !res.OK() {
		return false, domain.WrapError(domain.ErrCodeInternal, res.Message, res.Error())
	}
	return res.Total > 0, nil
}

// Clear drops the invalidation record of email. Missing records are not an error.
func (r *Registry) Clear(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil
	}
	res := r.store.DeleteByID(ctx, domain.IndexInvalidations, email)
	if res.OK() || errors.Is(res.Err, docstore.ErrNotFound) {
		return nil
	}
	return domain.WrapError(domain.ErrCodeInternal, res.Message, res.Error())
}

func normalize(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, email := range emails {
		email = domain.NormalizeEmail(email)
		if email == "" {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	return out
}
