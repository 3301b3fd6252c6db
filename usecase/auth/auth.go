// Package auth implements the account flows behind the GraphQL API: sign-in,
// invitations, activation, password changes and resets, and administration.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"

	"github.com/fastygo/ocxers/domain"
	"github.com/fastygo/ocxers/pkg/password"
	"github.com/fastygo/ocxers/pkg/token"
	"github.com/fastygo/ocxers/usecase/directory"
)

// User-facing failures.
var (
	ErrCurrentPassword   = domain.NewError(domain.ErrCodeInvalid, "Current password is incorrect.")
	ErrInvalidInvitation = domain.NewError(domain.ErrCodeInvalid, "Invalid invitation link or invitation link expired.")
	ErrInvalidEmail      = domain.NewError(domain.ErrCodeInvalid, "Invalid email.")
	ErrUnknownEmail      = domain.NewError(domain.ErrCodeNotFound, "Invalid email or user does not exist in our system.")
	ErrWrongEmail        = domain.NewError(domain.ErrCodeForbidden, "Wrong email address.")
	ErrOldPassword       = domain.NewError(domain.ErrCodeInvalid, "Old password is incorrect.")
	ErrInvalidResetLink  = domain.NewError(domain.ErrCodeInvalid, "Invalid reset password link or reset password link expired.")
	ErrPasswordRequired  = domain.NewError(domain.ErrCodeInvalid, "Password is required")
)

// Accounts is the directory surface the flows need.
type Accounts interface {
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	Search(ctx context.Context, f directory.Filters) ([]domain.Account, error)
	Create(ctx context.Context, actor *domain.Account, candidate domain.Account) (*domain.Account, error)
	Update(ctx context.Context, actor *domain.Account, patch domain.AccountPatch) (*domain.Account, error)
	Activate(ctx context.Context, actor *domain.Account, patch domain.AccountPatch) (*domain.Account, error)
	Delete(ctx context.Context, id string) error
	UpdateOrder(ctx context.Context, items []directory.OrderItem) error
}

// Logins clears pending re-authentication markers.
type Logins interface {
	Clear(ctx context.Context, email string) error
}

// Mailer sends the invitation and reset emails.
type Mailer interface {
	SendInvitation(ctx context.Context, email, link string) error
	SendResetPassword(ctx context.Context, email, link string) error
}

// Tokens issues and parses the signed credentials.
type Tokens interface {
	IssueSession(account domain.Account, ttl time.Duration) (string, error)
	IssueEmail(kind token.Kind, email string, ttl time.Duration) (string, error)
	ParseEmail(kind token.Kind, raw string) (string, error)
}

// Config holds link hosts and credential lifetimes.
type Config struct {
	LinkHost   string
	APIHost    string
	SessionTTL time.Duration
	InviteTTL  time.Duration
	ResetTTL   time.Duration
}

type UseCase struct {
	accounts Accounts
	logins   Logins
	mailer   Mailer
	tokens   Tokens
	hasher   password.Hasher
	cfg      Config
	logger   *zap.Logger
}

func New(accounts Accounts, logins Logins, mailer Mailer, tokens Tokens, hasher password.Hasher, cfg Config, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 14 * 24 * time.Hour
	}
	if cfg.InviteTTL <= 0 {
		cfg.InviteTTL = 14 * 24 * time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = 2 * time.Hour
	}
	return &UseCase{
		accounts: accounts,
		logins:   logins,
		mailer:   mailer,
		tokens:   tokens,
		hasher:   hasher,
		cfg:      cfg,
		logger:   logger,
	}
}

// FieldError reports a rejected input field.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// SignInResult carries either a session or field errors.
type SignInResult struct {
	Token  string          `json:"token,omitempty"`
	User   *domain.Account `json:"user,omitempty"`
	Errors []FieldError    `json:"errors,omitempty"`
}

func failed(path, message string) SignInResult {
	return SignInResult{Errors: []FieldError{{Path: path, Message: message}}}
}

// SignIn verifies the credentials and issues a session token. A successful
// sign-in clears any pending login-required marker.
func (uc *UseCase) SignIn(ctx context.Context, email, plain string) SignInResult {
	email, ok := ValidEmail(email)
	if !ok {
		return failed("email", "Email is invalid")
	}
	if plain == "" {
		return failed("password", "Password is required")
	}

	account, err := uc.accounts.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return failed("account", "Account does not exist")
	}
	if err != nil {
		return failed("unknown", domain.Message(err))
	}
	if !uc.hasher.Verify(plain, account.Password) {
		return failed("password", "Invalid password")
	}

	public := account.Public()
	signed, err := uc.tokens.IssueSession(public, uc.cfg.SessionTTL)
	if err != nil {
		uc.logger.Error("issue session token", zap.Error(err))
		return failed("unknown", "Could not sign in, please try again.")
	}
	if err := uc.logins.Clear(ctx, account.Email); err != nil {
		uc.logger.Warn("clear login required", zap.String("email", account.Email), zap.Error(err))
	}
	return SignInResult{Token: signed, User: &public}
}

// Invitee is one entry of an invitation batch. An ID different from the
// email re-invites an existing account.
type Invitee struct {
	ID           string
	Email        string
	Username     string
	FirstName    string
	LastName     string
	Role         string
	Organization string
	SendEmail    bool
}

// Outcome statuses.
const (
	StatusFulfilled = "fulfilled"
	StatusRejected  = "rejected"
)

// Reason explains a rejected invitation.
type Reason struct {
	Code int    `json:"code"`
	Data string `json:"data"`
}

// InviteOutcome is the settled result of one invitation.
type InviteOutcome struct {
	Status string  `json:"status"`
	Value  string  `json:"value,omitempty"`
	Reason *Reason `json:"reason,omitempty"`
}

// InviteUsers processes every invitee independently and concurrently; one
// failure never affects the others. Outcomes keep the input order.
func (uc *UseCase) InviteUsers(ctx context.Context, actor *domain.Account, invitees []Invitee) []InviteOutcome {
	return iter.Map(invitees, func(inv *Invitee) InviteOutcome {
		return uc.invite(ctx, actor, *inv)
	})
}

func (uc *UseCase) invite(ctx context.Context, actor *domain.Account, inv Invitee) InviteOutcome {
	email, ok := ValidEmail(inv.Email)
	if !ok {
		return rejected(ErrInvalidEmail)
	}

	var link string
	if inv.SendEmail {
		code, err := uc.tokens.IssueEmail(token.KindInvite, email, uc.cfg.InviteTTL)
		if err != nil {
			return rejected(err)
		}
		link = fmt.Sprintf("%s/activate-account?code=%s", uc.cfg.LinkHost, code)
	}

	var err error
	if inv.ID != "" && inv.ID != email {
		patch := domain.AccountPatch{
			ID:         inv.ID,
			Email:      domain.Ptr(email),
			Status:     domain.Ptr(domain.StatusPending),
			IsActive:   domain.Ptr(false),
			InviteLink: domain.Ptr(link),
		}
		setIfNotEmpty(&patch.Username, inv.Username)
		setIfNotEmpty(&patch.FirstName, inv.FirstName)
		setIfNotEmpty(&patch.LastName, inv.LastName)
		setIfNotEmpty(&patch.Role, inv.Role)
		setIfNotEmpty(&patch.Organization, inv.Organization)
		_, err = uc.accounts.Update(ctx, actor, patch)
	} else {
		username := inv.Username
		if username == "" {
			username, _, _ = strings.Cut(email, "@")
		}
		_, err = uc.accounts.Create(ctx, actor, domain.Account{
			Email:        email,
			Username:     username,
			FirstName:    inv.FirstName,
			LastName:     inv.LastName,
			Role:         inv.Role,
			Organization: inv.Organization,
			Status:       domain.StatusPending,
			IsActive:     false,
			InviteLink:   link,
		})
	}
	if err != nil {
		return rejected(err)
	}

	if inv.SendEmail {
		if err := uc.mailer.SendInvitation(ctx, email, link); err != nil {
			uc.logger.Warn("invitation email failed", zap.String("email", email), zap.Error(err))
		}
	}
	return InviteOutcome{
		Status: StatusFulfilled,
		Value:  fmt.Sprintf("Your invitation has been sent to %q successfully.", email),
	}
}

func rejected(err error) InviteOutcome {
	return InviteOutcome{Status: StatusRejected, Reason: &Reason{Code: 400, Data: domain.Message(err)}}
}

// UserInput is a partial account edit. Nil fields are left untouched.
type UserInput struct {
	ID              string
	Email           *string
	FirstName       *string
	LastName        *string
	Username        *string
	Password        *string
	IsActive        *bool
	IsCanary        *bool
	Status          *domain.AccountStatus
	Order           *float64
	Role            *string
	Organization    *string
	CurrentPassword string
	NewPassword     string
}

func (in UserInput) patch() domain.AccountPatch {
	return domain.AccountPatch{
		ID:           in.ID,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Username:     in.Username,
		IsActive:     in.IsActive,
		IsCanary:     in.IsCanary,
		Status:       in.Status,
		Order:        in.Order,
		Role:         in.Role,
		Organization: in.Organization,
	}
}

// UpdateUser edits an account. A password change requires the current
// password. Input without an id is ignored.
func (uc *UseCase) UpdateUser(ctx context.Context, actor *domain.Account, in UserInput) (bool, error) {
	if in.ID == "" {
		return false, nil
	}
	if in.Status != nil && !in.Status.Valid() {
		return false, domain.NewError(domain.ErrCodeInvalid, fmt.Sprintf("unknown status %q", *in.Status))
	}
	patch := in.patch()
	if in.Email != nil {
		email, ok := ValidEmail(*in.Email)
		if !ok {
			return false, ErrInvalidEmail
		}
		patch.Email = domain.Ptr(email)
	}

	if in.CurrentPassword != "" && in.NewPassword != "" {
		account, err := uc.accounts.FindByID(ctx, in.ID)
		if err != nil {
			return false, err
		}
		if account.Password == "" || !uc.hasher.Verify(in.CurrentPassword, account.Password) {
			return false, ErrCurrentPassword
		}
		hash, err := uc.hasher.Hash(in.NewPassword)
		if err != nil {
			return false, err
		}
		patch.Password = domain.Ptr(hash)
	}

	if _, err := uc.accounts.Update(ctx, actor, patch); err != nil {
		return false, err
	}
	return true, nil
}

// OrderInput places an account in the listing order.
type OrderInput struct {
	ID    string
	Order float64
}

// UpdateUserOrder stores the listing order of several accounts.
func (uc *UseCase) UpdateUserOrder(ctx context.Context, items []OrderInput) (bool, error) {
	order := make([]directory.OrderItem, 0, len(items))
	for _, item := range items {
		order = append(order, directory.OrderItem{ID: item.ID, Order: item.Order})
	}
	if err := uc.accounts.UpdateOrder(ctx, order); err != nil {
		return false, err
	}
	return true, nil
}

// GetEmailByActivateCode resolves an invitation code to its email. The
// invitation must still be pending.
func (uc *UseCase) GetEmailByActivateCode(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", nil
	}
	email, err := uc.tokens.ParseEmail(token.KindInvite, code)
	if err != nil {
		return "", ErrInvalidInvitation
	}
	account, err := uc.accounts.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return "", ErrInvalidInvitation
	}
	if err != nil {
		return "", err
	}
	if account.InviteLink == "" {
		return "", ErrInvalidInvitation
	}
	return account.Email, nil
}

// ActivationInput completes an invitation.
type ActivationInput struct {
	Email     string
	Password  string
	FirstName *string
	LastName  *string
	Username  *string
}

// ActivateAccount sets the password of a pending invitation and marks the
// account active. Accounts without a pending invitation cannot be activated.
func (uc *UseCase) ActivateAccount(ctx context.Context, in ActivationInput) (bool, error) {
	if in.Password == "" {
		return false, nil
	}
	email, ok := ValidEmail(in.Email)
	if !ok {
		return false, ErrInvalidEmail
	}
	account, err := uc.accounts.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return false, ErrInvalidInvitation
	}
	if err != nil {
		return false, err
	}
	if account.InviteLink == "" {
		return false, ErrInvalidInvitation
	}
	hash, err := uc.hasher.Hash(in.Password)
	if err != nil {
		return false, err
	}
	_, err = uc.accounts.Activate(ctx, account, domain.AccountPatch{
		Email:     domain.Ptr(email),
		Password:  domain.Ptr(hash),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Username:  in.Username,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (uc *UseCase) resetLink(host, email string) (string, error) {
	code, err := uc.tokens.IssueEmail(token.KindReset, email, uc.cfg.ResetTTL)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/reset-password?code=%s", host, code), nil
}

// prepareReset stores a fresh reset link on the account and marks it pending.
func (uc *UseCase) prepareReset(ctx context.Context, actor *domain.Account, host, email string, notFound error) (string, *domain.Account, error) {
	email, ok := ValidEmail(email)
	if !ok {
		return "", nil, ErrInvalidEmail
	}
	account, err := uc.accounts.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return "", nil, notFound
	}
	if err != nil {
		return "", nil, err
	}
	link, err := uc.resetLink(host, account.Email)
	if err != nil {
		return "", nil, err
	}
	_, err = uc.accounts.Update(ctx, actor, domain.AccountPatch{
		ID:                account.ID,
		Status:            domain.Ptr(domain.StatusPending),
		IsActive:          domain.Ptr(false),
		ResetPasswordLink: domain.Ptr(link),
	})
	if err != nil {
		return "", nil, err
	}
	return link, account, nil
}

// SendResetPasswordLink emails a reset link to the account holder.
func (uc *UseCase) SendResetPasswordLink(ctx context.Context, email string) (bool, error) {
	if strings.TrimSpace(email) == "" {
		return false, ErrInvalidEmail
	}
	link, account, err := uc.prepareReset(ctx, nil, uc.cfg.LinkHost, email, ErrUnknownEmail)
	if err != nil {
		return false, err
	}
	if err := uc.mailer.SendResetPassword(ctx, account.Email, link); err != nil {
		uc.logger.Warn("reset password email failed", zap.String("email", account.Email), zap.Error(err))
	}
	return true, nil
}

// CopyResetPasswordLink returns a reset link instead of emailing it. host
// defaults to the API host.
func (uc *UseCase) CopyResetPasswordLink(ctx context.Context, actor *domain.Account, email, host string) (string, error) {
	if host == "" {
		host = uc.cfg.APIHost
	}
	link, _, err := uc.prepareReset(ctx, actor, host, email, ErrInvalidEmail)
	return link, err
}

// ChangePassword replaces the signed-in account's password.
func (uc *UseCase) ChangePassword(ctx context.Context, actor *domain.Account, email, oldPassword, newPassword string) (bool, error) {
	if actor == nil || domain.NormalizeEmail(actor.Email) != domain.NormalizeEmail(email) {
		return false, ErrWrongEmail
	}
	if email == "" {
		return false, nil
	}
	account, err := uc.accounts.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !uc.hasher.Verify(oldPassword, account.Password) {
		return false, ErrOldPassword
	}
	if newPassword == "" {
		return false, ErrPasswordRequired
	}
	hash, err := uc.hasher.Hash(newPassword)
	if err != nil {
		return false, err
	}
	if _, err := uc.accounts.Update(ctx, actor, domain.AccountPatch{ID: account.ID, Password: domain.Ptr(hash)}); err != nil {
		return false, err
	}
	return true, nil
}

// ResetPassword sets a new password using a reset code. The stored link is
// consumed and the account becomes active again.
func (uc *UseCase) ResetPassword(ctx context.Context, code, newPassword string) (bool, error) {
	if code == "" {
		return false, nil
	}
	email, err := uc.tokens.ParseEmail(token.KindReset, code)
	if err != nil {
		uc.logger.Debug("reset code rejected", zap.Error(err))
		return false, nil
	}
	account, err := uc.accounts.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if account.ResetPasswordLink == "" {
		return false, ErrInvalidResetLink
	}
	if newPassword == "" {
		return false, ErrPasswordRequired
	}
	hash, err := uc.hasher.Hash(newPassword)
	if err != nil {
		return false, err
	}
	_, err = uc.accounts.Update(ctx, nil, domain.AccountPatch{
		ID:                account.ID,
		Password:          domain.Ptr(hash),
		ResetPasswordLink: domain.Ptr(""),
		IsActive:          domain.Ptr(true),
		Status:            domain.Ptr(domain.StatusActive),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteUser removes an account.
func (uc *UseCase) DeleteUser(ctx context.Context, id string) (bool, error) {
	if err := uc.accounts.Delete(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

// GetUsers lists accounts without credential material.
func (uc *UseCase) GetUsers(ctx context.Context, f directory.Filters) ([]domain.Account, error) {
	accounts, err := uc.accounts.Search(ctx, f)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		accounts[i] = accounts[i].Public()
	}
	return accounts, nil
}

// GetUserByID returns an account without credential material, or nil.
func (uc *UseCase) GetUserByID(ctx context.Context, id string) (*domain.Account, error) {
	account, err := uc.accounts.FindByID(ctx, id)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	public := account.Public()
	return &public, nil
}

// ValidEmail trims and lower-cases email and checks it is a plain address
// of 8 to 254 characters.
func ValidEmail(email string) (string, bool) {
	email = domain.NormalizeEmail(email)
	if len(email) < 8 || len(email) > 254 {
		return email, false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return email, false
	}
	local, domainPart, found := strings.Cut(email, "@")
	if !found || local == "" || !strings.Contains(domainPart, ".") {
		return email, false
	}
	return email, true
}

func setIfNotEmpty(dst **string, v string) {
	if v != "" {
		*dst = domain.Ptr(v)
	}
}
