package domain

import "strings"

// AccountStatus is the lifecycle status of an account.
type AccountStatus string

const (
	StatusActive   AccountStatus = "Active"
	StatusPending  AccountStatus = "Pending"
	StatusDisabled AccountStatus = "Disabled"
)

// Valid reports whether s is one of the known statuses.
func (s AccountStatus) Valid() bool {
	switch s {
	case StatusActive, StatusPending, StatusDisabled:
		return true
	}
	return false
}

// ActionBy identifies who performed an audited change.
type ActionBy struct {
	UID         string `json:"uid,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Created is the creation audit stamp. CreatedAt is unix milliseconds.
type Created struct {
	CreatedBy ActionBy `json:"createdBy"`
	CreatedAt int64    `json:"createdAt"`
}

// Updated is the last-update audit stamp. UpdatedAt is unix milliseconds.
type Updated struct {
	UpdatedBy ActionBy `json:"updatedBy"`
	UpdatedAt int64    `json:"updatedAt"`
}

// Account represents a user identity stored in the directory.
type Account struct {
	ID                string        `json:"id"`
	Email             string        `json:"email"`
	FirstName         string        `json:"firstName,omitempty"`
	LastName          string        `json:"lastName,omitempty"`
	Username          string        `json:"username,omitempty"`
	Password          string        `json:"password,omitempty"`
	IsActive          bool          `json:"isActive"`
	IsCanary          bool          `json:"isCanary,omitempty"`
	Status            AccountStatus `json:"status,omitempty"`
	Role              string        `json:"role,omitempty"`
	Organization      string        `json:"organization,omitempty"`
	Order             float64       `json:"order,omitempty"`
	InviteLink        string        `json:"inviteLink,omitempty"`
	ResetPasswordLink string        `json:"resetPasswordLink,omitempty"`
	Created           *Created      `json:"created,omitempty"`
	Updated           *Updated      `json:"updated,omitempty"`
}

// DisplayName joins the name parts, falling back to the username and email.
func (a *Account) DisplayName() string {
	if a == nil {
		return ""
	}
	if name := strings.TrimSpace(a.FirstName + " " + a.LastName); name != "" {
		return name
	}
	if a.Username != "" {
		return a.Username
	}
	return a.Email
}

// Public returns a copy without credential material.
func (a Account) Public() Account {
	a.Password = ""
	return a
}

// Actor returns the audit identity of the account.
func (a *Account) Actor() ActionBy {
	if a == nil {
		return ActionBy{}
	}
	return ActionBy{UID: a.ID, DisplayName: a.DisplayName()}
}

// AccountPatch is a partial update. Nil fields are left untouched.
type AccountPatch struct {
	ID                string
	Email             *string
	FirstName         *string
	LastName          *string
	Username          *string
	Password          *string
	IsActive          *bool
	IsCanary          *bool
	Status            *AccountStatus
	Role              *string
	Organization      *string
	Order             *float64
	InviteLink        *string
	ResetPasswordLink *string
}

// Fields renders the patch as a stored document fragment.
func (p AccountPatch) Fields() map[string]any {
	fields := make(map[string]any)
	setString := func(key string, v *string) {
		if v != nil {
			fields[key] = *v
		}
	}
	setString("email", p.Email)
	setString("firstName", p.FirstName)
	setString("lastName", p.LastName)
	setString("username", p.Username)
	setString("password", p.Password)
	setString("role", p.Role)
	setString("organization", p.Organization)
	setString("inviteLink", p.InviteLink)
	setString("resetPasswordLink", p.ResetPasswordLink)
	if p.IsActive != nil {
		fields["isActive"] = *p.IsActive
	}
	if p.IsCanary != nil {
		fields["isCanary"] = *p.IsCanary
	}
	if p.Status != nil {
		fields["status"] = string(*p.Status)
	}
	if p.Order != nil {
		fields["order"] = *p.Order
	}
	return fields
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}
