package directory

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fastygo/ocxers/domain"
	"github.com/fastygo/ocxers/repository/bolt"
	"github.com/fastygo/ocxers/repository/docstore"
)

type invalidation struct {
	email  string
	reason domain.InvalidationReason
}

type recordingInvalidator struct {
	mu    sync.Mutex
	calls []invalidation
}

func (r *recordingInvalidator) MarkRequired(_ context.Context, emails []string, reason domain.InvalidationReason) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, email := range emails {
		r.calls = append(r.calls, invalidation{email: email, reason: reason})
	}
	return nil
}

func openStore(t *testing.T) *bolt.Gateway {
	t.Helper()
	store, err := bolt.Open(filepath.Join(t.TempDir(), "store.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	store.EnsureIndex(context.Background(), domain.IndexAccounts, nil)
	return store
}

func newDirectory(t *testing.T) (*Directory, *recordingInvalidator) {
	t.Helper()
	inv := &recordingInvalidator{}
	return New(openStore(t), inv, zaptest.NewLogger(t)), inv
}

var admin = &domain.Account{ID: "admin-1", FirstName: "Ada", LastName: "Admin"}

func TestDirectory_CreateRejectsDuplicateEmail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir, _ := newDirectory(t)

	created, err := dir.Create(ctx, admin, domain.Account{Email: " Ana@Example.com ", Role: "user", Status: domain.StatusPending})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "ana@example.com", created.Email)
	require.NotNil(t, created.Created)
	assert.Equal(t, "admin-1", created.Created.CreatedBy.UID)
	assert.Equal(t, "Ada Admin", created.Created.CreatedBy.DisplayName)

	_, err = dir.Create(ctx, admin, domain.Account{Email: "ana@example.com"})
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeConflict))
	assert.Equal(t, `Email "ana@example.com" already exists in our system.`, domain.Message(err))

	all, err := dir.Search(ctx, Filters{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDirectory_UpdateEmailUniqueness(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir, _ := newDirectory(t)

	ana, err := dir.Create(ctx, admin, domain.Account{Email: "ana@example.com"})
	require.NoError(t, err)
	bob, err := dir.Create(ctx, admin, domain.Account{Email: "bob@example.com"})
	require.NoError(t, err)

	updated, err := dir.Update(ctx, admin, domain.AccountPatch{ID: ana.ID, Email: domain.Ptr("ana@example.com"), FirstName: domain.Ptr("Ana")})
	require.NoError(t, err)
	assert.Equal(t, "Ana", updated.FirstName)
	require.NotNil(t, updated.Updated)
	assert.Equal(t, "admin-1", updated.Updated.UpdatedBy.UID)

	_, err = dir.Update(ctx, admin, domain.AccountPatch{ID: bob.ID, Email: domain.Ptr("ana@example.com")})
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeConflict))

	stored, err := dir.FindByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", stored.Email)

	for _, blank := range []string{"", "   "} {
		_, err = dir.Update(ctx, admin, domain.AccountPatch{ID: ana.ID, Email: domain.Ptr(blank)})
		require.Error(t, err)
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
	}
	found, err := dir.FindByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, ana.ID, found.ID)

	_, err = dir.Update(ctx, admin, domain.AccountPatch{ID: "missing"})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	_, err = dir.Update(ctx, admin, domain.AccountPatch{})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}

func TestDirectory_RoleChangeInvalidatesPreviousEmail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir, inv := newDirectory(t)

	ana, err := dir.Create(ctx, admin, domain.Account{Email: "ana@example.com", Role: "user"})
	require.NoError(t, err)

	_, err = dir.Update(ctx, admin, domain.AccountPatch{ID: ana.ID, Role: domain.Ptr("user"), FirstName: domain.Ptr("Ana")})
	require.NoError(t, err)
	assert.Empty(t, inv.calls)

	_, err = dir.Update(ctx, admin, domain.AccountPatch{ID: ana.ID, Email: domain.Ptr("ana.new@example.com"), Role: domain.Ptr("admin")})
	require.NoError(t, err)
	assert.Equal(t, []invalidation{{email: "ana@example.com", reason: domain.ReasonRoleChanged}}, inv.calls)
}

type racingStore struct {
	docstore.Gateway
	once sync.Once
}

func (r *racingStore) Update(ctx context.Context, index string, actor *docstore.Actor, doc docstore.Document) docstore.Result {
	r.once.Do(func() {
		r.Gateway.Update(ctx, index, nil, docstore.Document{ID: doc.ID, Fields: map[string]any{"lastName": "Racer"}})
	})
	return r.Gateway.Update(ctx, index, actor, doc)
}

func TestDirectory_UpdateIsConditional(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := &racingStore{Gateway: openStore(t)}
	inv := &recordingInvalidator{}
	dir := New(store, inv, zaptest.NewLogger(t))

	ana, err := dir.Create(ctx, admin, domain.Account{Email: "ana@example.com", Role: "user"})
	require.NoError(t, err)

	_, err = dir.Update(ctx, admin, domain.AccountPatch{ID: ana.ID, Role: domain.Ptr("admin")})
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
	assert.Empty(t, inv.calls)

	stored, err := dir.FindByID(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, "user", stored.Role)
	assert.Equal(t, "Racer", stored.LastName)
}

func TestDirectory_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir, inv := newDirectory(t)

	ana, err := dir.Create(ctx, admin, domain.Account{Email: "ana@example.com"})
	require.NoError(t, err)

	require.NoError(t, dir.Delete(ctx, ana.ID))
	assert.Equal(t, []invalidation{{email: "ana@example.com", reason: domain.ReasonUserDeleted}}, inv.calls)

	_, err = dir.FindByID(ctx, ana.ID)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	require.NoError(t, dir.Delete(ctx, ana.ID))
	assert.Len(t, inv.calls, 1)
}

func TestDirectory_Activate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir, _ := newDirectory(t)

	_, err := dir.Create(ctx, admin, domain.Account{Email: "ana@example.com", Role: "user", Status: domain.StatusPending, InviteLink: "https://app/activate-account?code=x"})
	require.NoError(t, err)

	active, err := dir.Activate(ctx, nil, domain.AccountPatch{
		Email:     domain.Ptr("ana@example.com"),
		Password:  domain.Ptr("hash"),
		FirstName: domain.Ptr("Ana"),
		Role:      domain.Ptr("admin"),
	})
	require.NoError(t, err)
	assert.True(t, active.IsActive)
	assert.Equal(t, domain.StatusActive, active.Status)
	assert.Empty(t, active.InviteLink)
	assert.Equal(t, "hash", active.Password)
	assert.Equal(t, "user", active.Role)

	_, err = dir.Activate(ctx, nil, domain.AccountPatch{Email: domain.Ptr("nobody@example.com")})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestDirectory_Search(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir, _ := newDirectory(t)

	seed := []domain.Account{
		{Email: "ana@example.com", Username: "AnaBanana", Role: "admin", Organization: "acme", Status: domain.StatusActive},
		{Email: "bob@example.com", Username: "bob", Role: "user", Organization: "acme", Status: domain.StatusPending},
		{Email: "cy@example.com", Username: "cyan", Role: "user", Organization: "globex", Status: domain.StatusActive},
	}
	for _, a := range seed {
		_, err := dir.Create(ctx, admin, a)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter Filters
		want   []string
	}{
		{name: "all", filter: Filters{}, want: []string{"ana@example.com", "bob@example.com", "cy@example.com"}},
		{name: "organization", filter: Filters{Organization: []string{"acme"}}, want: []string{"ana@example.com", "bob@example.com"}},
		{name: "role and status", filter: Filters{Role: []string{"user"}, Status: []string{"Active"}}, want: []string{"cy@example.com"}},
		{name: "username substring", filter: Filters{Username: "AN"}, want: []string{"ana@example.com", "cy@example.com"}},
		{name: "no match", filter: Filters{Role: []string{"owner"}}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dir.Search(ctx, tt.filter)
			require.NoError(t, err)
			emails := make([]string, 0, len(got))
			for _, a := range got {
				emails = append(emails, a.Email)
			}
			assert.ElementsMatch(t, tt.want, emails)
		})
	}
}

func TestDirectory_SearchUsernameIsLiteral(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir, _ := newDirectory(t)

	for _, a := range []domain.Account{
		{Email: "star@example.com", Username: "a*b"},
		{Email: "glob@example.com", Username: "axxb"},
		{Email: "mark@example.com", Username: "a?b"},
	} {
		_, err := dir.Create(ctx, admin, a)
		require.NoError(t, err)
	}

	got, err := dir.Search(ctx, Filters{Username: "A*B"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "star@example.com", got[0].Email)

	got, err = dir.Search(ctx, Filters{Username: "?"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "mark@example.com", got[0].Email)
}

func TestDirectory_UpdateOrderAndRole(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir, _ := newDirectory(t)

	ana, err := dir.Create(ctx, admin, domain.Account{Email: "ana@example.com", Role: "editor"})
	require.NoError(t, err)

	require.NoError(t, dir.UpdateOrder(ctx, []OrderItem{{ID: ana.ID, Order: 3}}))
	require.NoError(t, dir.UpdateOrder(ctx, nil))
	stored, err := dir.FindByID(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(3), stored.Order)

	role, err := dir.RoleForConnectionKey(ctx, "jjpvbsp4zhs_Ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "editor", role)

	role, err = dir.RoleForConnectionKey(ctx, "tab_nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, role)

	role, err = dir.RoleForConnectionKey(ctx, "no-underscore")
	require.NoError(t, err)
	assert.Empty(t, role)
}

func TestDirectory_StoreFailureSurfaces(t *testing.T) {
	t.Parallel()
	store, err := bolt.Open(filepath.Join(t.TempDir(), "store.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	dir := New(store, nil, nil)

	_, err = dir.FindByEmail(context.Background(), "ana@example.com")
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInternal))
}
