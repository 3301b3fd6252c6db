package domain

import "strings"

// Index names used in the document store.
const (
	IndexAccounts      = "user"
	IndexInvalidations = "login_required"
)

// InvalidationReason tags why an account must sign in again.
type InvalidationReason string

const (
	ReasonRoleChanged InvalidationReason = "USER_ROLE_CHANGED"
	ReasonUserDeleted InvalidationReason = "DELETE_USER"
)

// Invalidation marks an account that must re-authenticate. The email is the
// record identifier, so at most one record exists per account.
type Invalidation struct {
	Email     string             `json:"id"`
	Type      InvalidationReason `json:"type"`
	CreatedAt int64              `json:"createdAt"`
}

// EmailFromConnectionKey recovers the email embedded in a realtime connection
// key of the form "<tab-id>_<email>". Everything up to and including the first
// underscore is dropped; a key without an underscore yields an empty string.
func EmailFromConnectionKey(key string) string {
	_, email, found := strings.Cut(key, "_")
	if !found {
		return ""
	}
	return NormalizeEmail(email)
}
