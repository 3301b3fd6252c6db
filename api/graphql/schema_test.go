package graphql

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fastygo/ocxers/domain"
	iauth "github.com/fastygo/ocxers/internal/auth"
	"github.com/fastygo/ocxers/internal/metrics"
	"github.com/fastygo/ocxers/usecase/auth"
	"github.com/fastygo/ocxers/usecase/directory"
)

type fakeGate struct{ account *domain.Account }

func (g fakeGate) Resolve(context.Context) (*domain.Account, error) {
	if g.account == nil {
		return nil, iauth.ErrUnauthenticated
	}
	return g.account, nil
}

type fakeAccounts struct {
	updated  auth.UserInput
	invited  []auth.Invitee
	filters  directory.Filters
	actor    *domain.Account
	ordered  []auth.OrderInput
	resetErr error
}

func (f *fakeAccounts) SignIn(_ context.Context, email, password string) auth.SignInResult {
	if password != "right" {
		return auth.SignInResult{Errors: []auth.FieldError{{Path: "password", Message: "Invalid password"}}}
	}
	return auth.SignInResult{Token: "tok", User: &domain.Account{ID: "u1", Email: email, Status: domain.StatusActive}}
}

func (f *fakeAccounts) InviteUsers(_ context.Context, actor *domain.Account, invitees []auth.Invitee) []auth.InviteOutcome {
	f.actor, f.invited = actor, invitees
	return []auth.InviteOutcome{
		{Status: auth.StatusFulfilled, Value: "ok"},
		{Status: auth.StatusRejected, Reason: &auth.Reason{Code: 400, Data: "taken"}},
	}
}

func (f *fakeAccounts) UpdateUser(_ context.Context, actor *domain.Account, in auth.UserInput) (bool, error) {
	f.actor, f.updated = actor, in
	return true, nil
}

func (f *fakeAccounts) UpdateUserOrder(_ context.Context, items []auth.OrderInput) (bool, error) {
	f.ordered = items
	return true, nil
}

func (f *fakeAccounts) GetEmailByActivateCode(context.Context, string) (string, error) {
	return "", auth.ErrInvalidInvitation
}

func (f *fakeAccounts) ActivateAccount(context.Context, auth.ActivationInput) (bool, error) {
	return true, nil
}

func (f *fakeAccounts) SendResetPasswordLink(context.Context, string) (bool, error) {
	return false, f.resetErr
}

func (f *fakeAccounts) CopyResetPasswordLink(_ context.Context, _ *domain.Account, email, host string) (string, error) {
	return host + "/reset-password?code=" + email, nil
}

func (f *fakeAccounts) ChangePassword(context.Context, *domain.Account, string, string, string) (bool, error) {
	return true, nil
}

func (f *fakeAccounts) ResetPassword(context.Context, string, string) (bool, error) {
	return false, nil
}

func (f *fakeAccounts) DeleteUser(context.Context, string) (bool, error) {
	return true, nil
}

func (f *fakeAccounts) GetUsers(_ context.Context, filters directory.Filters) ([]domain.Account, error) {
	f.filters = filters
	return []domain.Account{{
		ID:      "u1",
		Email:   "ana@example.com",
		Status:  domain.StatusActive,
		Created: &domain.Created{CreatedBy: domain.ActionBy{UID: "admin"}, CreatedAt: 1700000000000},
	}}, nil
}

func (f *fakeAccounts) GetUserByID(context.Context, string) (*domain.Account, error) {
	return nil, nil
}

func run(t *testing.T, accounts Accounts, account *domain.Account, query string, vars map[string]interface{}) map[string]interface{} {
	t.Helper()
	schema, err := NewSchema(accounts, fakeGate{account: account}, metrics.New(), zaptest.NewLogger(t))
	require.NoError(t, err)
	res := Execute(context.Background(), schema, query, "", vars)
	raw, err := json.Marshal(res)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

var admin = &domain.Account{ID: "admin", Email: "admin@example.com"}

func TestSignIn(t *testing.T) {
	t.Parallel()
	out := run(t, &fakeAccounts{}, nil, `mutation { signIn(email: "ana@example.com", password: "right") { token user { email status password } errors { path } } }`, nil)
	assert.Nil(t, out["errors"])
	data := out["data"].(map[string]interface{})["signIn"].(map[string]interface{})
	assert.Equal(t, "tok", data["token"])
	assert.Equal(t, map[string]interface{}{"email": "ana@example.com", "status": "Active", "password": nil}, data["user"])
	assert.Nil(t, data["errors"])

	out = run(t, &fakeAccounts{}, nil, `mutation { signIn(email: "ana@example.com", password: "wrong") { token errors { path message } } }`, nil)
	data = out["data"].(map[string]interface{})["signIn"].(map[string]interface{})
	assert.Nil(t, data["token"])
	assert.Equal(t, []interface{}{map[string]interface{}{"path": "password", "message": "Invalid password"}}, data["errors"])
}

func TestProtectedFieldsRequireSession(t *testing.T) {
	t.Parallel()
	queries := []string{
		`query { getUsers { id } }`,
		`query { getUserById(id: "u1") { id } }`,
		`mutation { updateUser(user: {id: "u1"}) }`,
		`mutation { inviteUsers(users: [{email: "a@example.com"}]) { status } }`,
		`mutation { deleteUser(id: "u1") }`,
		`mutation { copyResetPasswordLink(email: "a@example.com") }`,
		`mutation { changePassword(email: "a", oldPassword: "b", password: "c") }`,
		`mutation { updateUserOrder(items: [{id: "u1", order: 1}]) }`,
	}
	for _, q := range queries {
		out := run(t, &fakeAccounts{}, nil, q, nil)
		errs, ok := out["errors"].([]interface{})
		require.True(t, ok, q)
		first := errs[0].(map[string]interface{})
		assert.Equal(t, "You must be signed in.", first["message"], q)
		assert.Equal(t, map[string]interface{}{"code": CodeUnauthenticated}, first["extensions"], q)
	}
}

func TestWhoAmI(t *testing.T) {
	t.Parallel()
	out := run(t, &fakeAccounts{}, nil, `{ whoAmI }`, nil)
	assert.Equal(t, Version, out["data"].(map[string]interface{})["whoAmI"])

	out = run(t, &fakeAccounts{}, admin, `{ whoAmI }`, nil)
	assert.Equal(t, "admin@example.com", out["data"].(map[string]interface{})["whoAmI"])
}

func TestUpdateUserMapsInput(t *testing.T) {
	t.Parallel()
	accounts := &fakeAccounts{}
	out := run(t, accounts, admin, `mutation($u: UserInput) { updateUser(user: $u) }`, map[string]interface{}{
		"u": map[string]interface{}{
			"id":       "u1",
			"role":     "admin",
			"status":   "Disabled",
			"isActive": false,
			"order":    2.5,
		},
	})
	assert.Nil(t, out["errors"])
	assert.Equal(t, true, out["data"].(map[string]interface{})["updateUser"])

	assert.Same(t, admin, accounts.actor)
	assert.Equal(t, "u1", accounts.updated.ID)
	assert.Equal(t, "admin", *accounts.updated.Role)
	assert.Equal(t, domain.StatusDisabled, *accounts.updated.Status)
	assert.False(t, *accounts.updated.IsActive)
	assert.Equal(t, 2.5, *accounts.updated.Order)
	assert.Nil(t, accounts.updated.FirstName)
}

func TestInviteUsersAndGetUsers(t *testing.T) {
	t.Parallel()
	accounts := &fakeAccounts{}
	out := run(t, accounts, admin, `mutation { inviteUsers(users: [{email: "a@example.com", sendEmail: true}, {email: "b@example.com"}]) { status value reason { code data } } }`, nil)
	assert.Nil(t, out["errors"])
	list := out["data"].(map[string]interface{})["inviteUsers"].([]interface{})
	require.Len(t, list, 2)
	assert.Equal(t, map[string]interface{}{"status": "rejected", "value": nil, "reason": map[string]interface{}{"code": float64(400), "data": "taken"}}, list[1])
	require.Len(t, accounts.invited, 2)
	assert.True(t, accounts.invited[0].SendEmail)
	assert.False(t, accounts.invited[1].SendEmail)

	out = run(t, accounts, admin, `{ getUsers(username: "an", role: ["admin", "user"]) { id created { createdAt createdBy { uid } } } }`, nil)
	assert.Nil(t, out["errors"])
	assert.Equal(t, directory.Filters{Username: "an", Role: []string{"admin", "user"}, Organization: []string{}, Status: []string{}}, accounts.filters)
	users := out["data"].(map[string]interface{})["getUsers"].([]interface{})
	require.Len(t, users, 1)
	assert.Equal(t, map[string]interface{}{
		"id": "u1",
		"created": map[string]interface{}{
			"createdAt": "1700000000000",
			"createdBy": map[string]interface{}{"uid": "admin"},
		},
	}, users[0])
}

func TestDomainErrorsCarryCodes(t *testing.T) {
	t.Parallel()
	out := run(t, &fakeAccounts{}, nil, `mutation { getEmailByActivateCode(code: "x") }`, nil)
	errs := out["errors"].([]interface{})
	first := errs[0].(map[string]interface{})
	assert.Equal(t, "Invalid invitation link or invitation link expired.", first["message"])
	assert.Equal(t, map[string]interface{}{"code": CodeBadUserInput}, first["extensions"])

	out = run(t, &fakeAccounts{resetErr: auth.ErrUnknownEmail}, nil, `mutation { sendResetPasswordLink(email: "x@example.com") }`, nil)
	first = out["errors"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"code": CodeNotFound}, first["extensions"])
}

func TestUpdateUserOrder(t *testing.T) {
	t.Parallel()
	accounts := &fakeAccounts{}
	out := run(t, accounts, admin, `mutation { updateUserOrder(items: [{id: "a", order: 2}, {id: "b", order: 1}]) }`, nil)
	assert.Nil(t, out["errors"])
	assert.Equal(t, []auth.OrderInput{{ID: "a", Order: 2}, {ID: "b", Order: 1}}, accounts.ordered)
}
