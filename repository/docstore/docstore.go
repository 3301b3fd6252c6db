// Package docstore defines the gateway contract over the document store used
// as the primary database. Every operation reports failures as values: callers
// check Result.Code instead of relying on returned errors.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Code is the outcome classification of a gateway call.
type Code int

const (
	CodeOK     Code = 0
	CodeFailed Code = 400
)

var (
	// ErrVersionConflict is reported when a conditional write lost a race.
	ErrVersionConflict = errors.New("document version conflict")
	// ErrNotFound is reported when the addressed document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrMissingID is reported when an operation needs an identifier and none was supplied.
	ErrMissingID = errors.New("document id is required")
	// ErrUnsupportedAggregation is reported when a store cannot evaluate a requested aggregation.
	ErrUnsupportedAggregation = errors.New("unsupported aggregation")
)

// Version identifies a document revision for optimistic concurrency.
type Version struct {
	SeqNo       int64
	PrimaryTerm int64
}

// IsZero reports whether no version was captured.
func (v Version) IsZero() bool {
	return v.SeqNo == 0 && v.PrimaryTerm == 0
}

// Document is a stored document. Fields holds the stored source merged with
// the identifier under "id".
type Document struct {
	ID      string
	Version Version
	Fields  map[string]any
}

// String returns a string field or "".
func (d Document) String(key string) string {
	if v, ok := d.Fields[key].(string); ok {
		return v
	}
	return ""
}

// Result is the normalized outcome of a gateway call. Aggregations is set
// only when the query asked for them.
type Result struct {
	Code         Code
	Data         []Document
	Total        int
	Aggregations json.RawMessage
	Message      string
	Err          error
}

// OK reports success.
func (r Result) OK() bool {
	return r.Code == CodeOK
}

// First returns the first document, if any.
func (r Result) First() (Document, bool) {
	if len(r.Data) == 0 {
		return Document{}, false
	}
	return r.Data[0], true
}

// Error returns nil on success and the underlying failure otherwise.
func (r Result) Error() error {
	if r.OK() {
		return nil
	}
	if r.Err != nil {
		return r.Err
	}
	return errors.New(r.Message)
}

// Succeeded builds a success result.
func Succeeded(data []Document, total int) Result {
	if data == nil {
		data = []Document{}
	}
	return Result{Code: CodeOK, Data: data, Total: total}
}

// Failed converts err into a failure result.
func Failed(err error) Result {
	if err == nil {
		err = errors.New("unknown store failure")
	}
	return Result{Code: CodeFailed, Message: err.Error(), Err: err}
}

// Failedf formats a failure result.
func Failedf(format string, args ...any) Result {
	return Failed(fmt.Errorf(format, args...))
}

// Actor is the identity stamped into audit fields.
type Actor struct {
	ID          string
	DisplayName string
}

// Gateway is the narrow interface over the document store.
type Gateway interface {
	// EnsureIndex creates the index from its mapping template when absent.
	// Failures are logged, never returned.
	EnsureIndex(ctx context.Context, name string, template []byte)
	// Query returns the matching documents and the total hit count. When
	// q.Aggs is set the aggregation results are returned alongside.
	Query(ctx context.Context, index string, q Query) Result
	// Insert creates a document and stamps created.createdAt/createdBy.
	Insert(ctx context.Context, index string, actor *Actor, doc Document) Result
	// InsertDirect creates a document exactly as given.
	InsertDirect(ctx context.Context, index string, doc Document) Result
	// Update applies a partial update and stamps updated.updatedAt/updatedBy.
	// The id comes from doc.ID, or the "_id" or "id" field, and is stripped
	// from the body. A non-zero doc.Version makes the write conditional.
	Update(ctx context.Context, index string, actor *Actor, doc Document) Result
	// BulkUpsertIfAbsent writes {type: tag, createdAt} for each id that does not exist yet.
	BulkUpsertIfAbsent(ctx context.Context, index string, ids []string, tag string) Result
	// BulkUpdate upserts each document keyed by its id.
	BulkUpdate(ctx context.Context, index string, docs []Document) Result
	DeleteByID(ctx context.Context, index, id string) Result
	DeleteByQuery(ctx context.Context, index string, q Query) Result
	Ping(ctx context.Context) error
	Close() error
}
