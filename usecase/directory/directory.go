// Package directory manages account documents on top of the document store.
package directory

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/fastygo/ocxers/domain"
	"github.com/fastygo/ocxers/repository/docstore"
)

const searchSize = 100

// ErrConcurrentUpdate is returned when the account changed between read and write.
var ErrConcurrentUpdate = domain.NewError(domain.ErrCodeConflict, "Account was modified by another request, please retry.")

// Invalidator forces accounts to sign in again.
type Invalidator interface {
	MarkRequired(ctx context.Context, emails []string, reason domain.InvalidationReason) error
}

// Filters narrow Search. Empty filters are ignored.
type Filters struct {
	Username     string
	Organization []string
	Role         []string
	Status       []string
}

// OrderItem assigns a display order to one account.
type OrderItem struct {
	ID    string
	Order float64
}

// Directory is the account store.
type Directory struct {
	store       docstore.Gateway
	invalidator Invalidator
	logger      *zap.Logger
	newID       func() string
}

// New builds a directory. invalidator may be nil, in which case role changes
// and deletions are not propagated.
func New(store docstore.Gateway, invalidator Invalidator, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{
		store:       store,
		invalidator: invalidator,
		logger:      logger,
		newID:       func() string { return ulid.Make().String() },
	}
}

// FindByEmail returns the account holding email.
func (d *Directory) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	docs, err := d.byEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.ErrAccountNotFound
	}
	return decode(docs[0])
}

// FindByID returns the account with the given identifier.
func (d *Directory) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	doc, err := d.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	return decode(doc)
}

// Search lists accounts matching all non-empty filters. The username filter
// is a case-insensitive substring match.
func (d *Directory) Search(ctx context.Context, f Filters) ([]domain.Account, error) {
	q := docstore.Query{Size: searchSize}
	if len(f.Organization) > 0 {
		q.Must = append(q.Must, docstore.Terms{Field: "organization", Values: f.Organization})
	}
	if len(f.Role) > 0 {
		q.Must = append(q.Must, docstore.Terms{Field: "role", Values: f.Role})
	}
	if len(f.Status) > 0 {
		q.Must = append(q.Must, docstore.Terms{Field: "status.keyword", Values: f.Status})
	}
	if f.Username != "" {
		q.Must = append(q.Must, docstore.Wildcard{Field: "username", Pattern: "*" + docstore.EscapeWildcard(f.Username) + "*", CaseInsensitive: true})
	}
	res := d.store.Query(ctx, domain.IndexAccounts, q)
	if !res.OK() {
		return nil, storeError("search accounts", res)
	}
	accounts := make([]domain.Account, 0, len(res.Data))
	for _, doc := range res.Data {
		account, err := decode(doc)
		if err != nil {
			d.logger.Warn("skipping undecodable account", zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		accounts = append(accounts, *account)
	}
	return accounts, nil
}

// Create stores a new account. It fails when another account already holds
// the email. The identifier is generated unless candidate carries one.
func (d *Directory) Create(ctx context.Context, actor *domain.Account, candidate domain.Account) (*domain.Account, error) {
	candidate.Email = domain.NormalizeEmail(candidate.Email)
	if candidate.Email == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "Invalid email.")
	}
	existing, err := d.byEmail(ctx, candidate.Email)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, domain.EmailTaken(candidate.Email)
	}
	if candidate.ID == "" {
		candidate.ID = d.newID()
	}
	fields, err := encode(candidate)
	if err != nil {
		return nil, err
	}
	res := d.store.Insert(ctx, domain.IndexAccounts, toActor(actor), docstore.Document{ID: candidate.ID, Fields: fields})
	if !res.OK() {
		if errors.Is(res.Err, docstore.ErrVersionConflict) {
			return nil, domain.EmailTaken(candidate.Email)
		}
		return nil, storeError("create account", res)
	}
	doc, _ := res.First()
	return decode(doc)
}

// Update applies patch to the account identified by patch.ID. The write is
// conditional on the version read beforehand. When the patch changes the
// role, the previous email is marked for re-authentication.
func (d *Directory) Update(ctx context.Context, actor *domain.Account, patch domain.AccountPatch) (*domain.Account, error) {
	if patch.ID == "" {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "Account id is required.", docstore.ErrMissingID)
	}
	if patch.Email != nil {
		email := domain.NormalizeEmail(*patch.Email)
		if email == "" {
			return nil, domain.NewError(domain.ErrCodeInvalid, "Invalid email.")
		}
		patch.Email = domain.Ptr(email)
	}
	prevDoc, err := d.byID(ctx, patch.ID)
	if err != nil {
		return nil, err
	}
	prev, err := decode(prevDoc)
	if err != nil {
		return nil, err
	}
	email := prev.Email
	if patch.Email != nil {
		email = *patch.Email
	}
	if err := d.ensureEmailOwner(ctx, email, patch.ID); err != nil {
		return nil, err
	}

	updated, err := d.write(ctx, actor, prevDoc, patch.Fields())
	if err != nil {
		return nil, err
	}

	if patch.Role != nil && *patch.Role != prev.Role {
		d.invalidate(ctx, prev.Email, domain.ReasonRoleChanged)
	}
	return updated, nil
}

// Activate completes a pending invitation: it stores the password hash,
// clears the invitation link and marks the account active. Role changes are
// not accepted through activation.
func (d *Directory) Activate(ctx context.Context, actor *domain.Account, patch domain.AccountPatch) (*domain.Account, error) {
	if patch.Email == nil {
		return nil, domain.NewError(domain.ErrCodeInvalid, "Invalid email.")
	}
	email := domain.NormalizeEmail(*patch.Email)
	docs, err := d.byEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(docs) > 1 {
		return nil, domain.EmailTaken(email)
	}
	if len(docs) == 0 {
		return nil, domain.ErrAccountNotFound
	}

	patch.ID = docs[0].ID
	patch.Email = domain.Ptr(email)
	patch.Role = nil
	patch.IsActive = domain.Ptr(true)
	patch.Status = domain.Ptr(domain.StatusActive)
	patch.InviteLink = domain.Ptr("")
	return d.write(ctx, actor, docs[0], patch.Fields())
}

// Delete removes the account and marks its email for re-authentication.
func (d *Directory) Delete(ctx context.Context, id string) error {
	doc, lookupErr := d.byID(ctx, id)
	if lookupErr != nil && !errors.Is(lookupErr, domain.ErrAccountNotFound) {
		return lookupErr
	}
	res := d.store.DeleteByQuery(ctx, domain.IndexAccounts, docstore.Query{
		Must: []docstore.Clause{docstore.Terms{Field: docstore.IDField, Values: []string{id}}},
	})
	if !res.OK() {
		return storeError("delete account", res)
	}
	if lookupErr == nil {
		if email := doc.String("email"); email != "" {
			d.invalidate(ctx, email, domain.ReasonUserDeleted)
		}
	}
	return nil
}

// UpdateOrder stores the display order of several accounts in one batch.
func (d *Directory) UpdateOrder(ctx context.Context, items []OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	docs := make([]docstore.Document, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		docs = append(docs, docstore.Document{ID: item.ID, Fields: map[string]any{"order": item.Order}})
	}
	res := d.store.BulkUpdate(ctx, domain.IndexAccounts, docs)
	if !res.OK() {
		return storeError("update account order", res)
	}
	return nil
}

// RoleForConnectionKey returns the current role of the account whose email is
// embedded in a realtime connection key. Unknown accounts have no role.
func (d *Directory) RoleForConnectionKey(ctx context.Context, key string) (string, error) {
	email := domain.EmailFromConnectionKey(key)
	if email == "" {
		return "", nil
	}
	account, err := d.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return account.Role, nil
}

// ensureEmailOwner fails when email is held by an account other than id, or
// by more than one account.
func (d *Directory) ensureEmailOwner(ctx context.Context, email, id string) error {
	docs, err := d.byEmail(ctx, email)
	if err != nil {
		return err
	}
	if len(docs) > 1 {
		return domain.EmailTaken(email)
	}
	for _, doc := range docs {
		if doc.String("email") == email && doc.ID != id {
			return domain.EmailTaken(email)
		}
	}
	return nil
}

func (d *Directory) write(ctx context.Context, actor *domain.Account, prev docstore.Document, fields map[string]any) (*domain.Account, error) {
	res := d.store.Update(ctx, domain.IndexAccounts, toActor(actor), docstore.Document{
		ID:      prev.ID,
		Version: prev.Version,
		Fields:  fields,
	})
	if !res.OK() {
		if errors.Is(res.Err, docstore.ErrVersionConflict) {
			return nil, ErrConcurrentUpdate
		}
		return nil, storeError("update account", res)
	}
	merged := docstore.Merge(prev.Fields, fields)
	if doc, ok := res.First(); ok {
		merged = docstore.Merge(merged, doc.Fields)
	}
	return decode(docstore.Document{ID: prev.ID, Fields: merged})
}

func (d *Directory) invalidate(ctx context.Context, email string, reason domain.InvalidationReason) {
	if d.invalidator == nil {
		return
	}
	if err := d.invalidator.MarkRequired(ctx, []string{email}, reason); err != nil {
		d.logger.Error("mark login required failed",
			zap.String("email", email),
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
	}
}

func (d *Directory) byEmail(ctx context.Context, email string) ([]docstore.Document, error) {
	res := d.store.Query(ctx, domain.IndexAccounts, docstore.Query{
		Must: []docstore.Clause{docstore.Term{Field: "email", Value: domain.NormalizeEmail(email)}},
	})
	if !res.OK() {
		return nil, storeError("find account by email", res)
	}
	return res.Data, nil
}

func (d *Directory) byID(ctx context.Context, id string) (docstore.Document, error) {
	if id == "" {
		return docstore.Document{}, domain.ErrAccountNotFound
	}
	res := d.store.Query(ctx, domain.IndexAccounts, docstore.ByID(id))
	if !res.OK() {
		return docstore.Document{}, storeError("find account by id", res)
	}
	doc, ok := res.First()
	if !ok {
		return docstore.Document{}, domain.ErrAccountNotFound
	}
	return doc, nil
}

func storeError(op string, res docstore.Result) error {
	return domain.WrapError(domain.ErrCodeInternal, res.Message, errors.Join(errors.New(op), res.Error()))
}

func toActor(account *domain.Account) *docstore.Actor {
	if account == nil {
		return nil
	}
	by := account.Actor()
	return &docstore.Actor{ID: by.UID, DisplayName: by.DisplayName}
}

// decode maps a stored document onto an account.
func decode(doc docstore.Document) (*domain.Account, error) {
	raw, err := json.Marshal(doc.Fields)
	if err != nil {
		return nil, err
	}
	var account domain.Account
	if err := json.Unmarshal(raw, &account); err != nil {
		return nil, err
	}
	if doc.ID != "" {
		account.ID = doc.ID
	}
	return &account, nil
}

// encode renders an account as stored fields, without its identifier.
func encode(account domain.Account) (map[string]any, error) {
	raw, err := json.Marshal(account)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	delete(fields, "id")
	return fields, nil
}
