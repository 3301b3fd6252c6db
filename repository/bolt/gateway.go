// Package bolt implements the document store gateway on an embedded BoltDB
// file, one bucket per index. It serves single-node deployments and tests.
package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/fastygo/ocxers/repository/docstore"
)

const (
	defaultSize = 10
	primaryTerm = 1
)

var errIndexNotFound = errors.New("index not found")

type record struct {
	SeqNo  int64          `json:"seq_no"`
	Fields map[string]any `json:"fields"`
}

// Gateway stores documents in BoltDB.
type Gateway struct {
	db     *bolt.DB
	logger *zap.Logger
}

var _ docstore.Gateway = (*Gateway)(nil)

// Open initializes the BoltDB file at path.
func Open(path string, logger *zap.Logger) (*Gateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	return &Gateway{db: db, logger: logger}, nil
}

func (g *Gateway) EnsureIndex(_ context.Context, name string, _ []byte) {
	err := g.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(name)) != nil {
			g.logger.Info("index already exists", zap.String("index", name))
			return nil
		}
		_, err := tx.CreateBucket([]byte(name))
		return err
	})
	if err != nil {
		g.logger.Error("index creation failed", zap.String("index", name), zap.Error(err))
	}
}

func (g *Gateway) Query(_ context.Context, index string, q docstore.Query) docstore.Result {
	size := q.Size
	if size <= 0 {
		size = defaultSize
	}
	aggs, err := parseAggs(q.Aggs)
	if err != nil {
		return docstore.Failed(err)
	}
	var (
		docs  []docstore.Document
		total int
	)
	err = g.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(index))
		if b == nil {
			return fmt.Errorf("%w: %s", errIndexNotFound, index)
		}
		return b.ForEach(func(k, v []byte) error {
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				g.logger.Warn("skipping undecodable document", zap.String("index", index), zap.ByteString("id", k))
				return nil
			}
			id := string(k)
			if !q.Matches(id, rec.Fields) {
				return nil
			}
			total++
			for _, a := range aggs {
				a.add(id, rec.Fields)
			}
			if len(docs) < size {
				docs = append(docs, toDocument(id, rec))
			}
			return nil
		})
	})
	if err != nil {
		return docstore.Failed(err)
	}
	out := docstore.Succeeded(docs, total)
	if len(aggs) > 0 {
		if out.Aggregations, err = renderAggs(aggs); err != nil {
			return docstore.Failed(err)
		}
	}
	return out
}

func (g *Gateway) Insert(ctx context.Context, index string, actor *docstore.Actor, doc docstore.Document) docstore.Result {
	body := docstore.StampCreated(docstore.Body(doc), actor)
	return g.create(index, docstore.ResolveID(doc), body)
}

func (g *Gateway) InsertDirect(_ context.Context, index string, doc docstore.Document) docstore.Result {
	return g.create(index, docstore.ResolveID(doc), docstore.Body(doc))
}

func (g *Gateway) Update(_ context.Context, index string, actor *docstore.Actor, doc docstore.Document) docstore.Result {
	id := docstore.ResolveID(doc)
	if id == "" {
		return docstore.Failed(docstore.ErrMissingID)
	}
	patch := docstore.StampUpdated(docstore.Body(doc), actor)

	var out docstore.Document
	err := g.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(index))
		if b == nil {
			return fmt.Errorf("%w: %s", errIndexNotFound, index)
		}
		raw := b.Get([]byte(id))
		if raw == nil {
			return fmt.Errorf("%w: %s in %s", docstore.ErrNotFound, id, index)
		}
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		if !doc.Version.IsZero() && (doc.Version.SeqNo != rec.SeqNo || doc.Version.PrimaryTerm != primaryTerm) {
			return docstore.ErrVersionConflict
		}
		rec.SeqNo++
		rec.Fields = docstore.Merge(rec.Fields, patch)
		out = toDocument(id, rec)
		return put(b, id, rec)
	})
	if err != nil {
		return docstore.Failed(err)
	}
	return docstore.Succeeded([]docstore.Document{out}, 1)
}

func (g *Gateway) BulkUpsertIfAbsent(_ context.Context, index string, ids []string, tag string) docstore.Result {
	if len(ids) == 0 {
		return docstore.Succeeded(nil, 0)
	}
	var docs []docstore.Document
	err := g.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(index))
		if err != nil {
			return err
		}
		for _, id := range ids {
			if id == "" || b.Get([]byte(id)) != nil {
				continue
			}
			rec := record{SeqNo: 1, Fields: map[string]any{"type": tag, "createdAt": docstore.Now().UnixMilli()}}
			if err := put(b, id, rec); err != nil {
				return err
			}
			docs = append(docs, toDocument(id, rec))
		}
		return nil
	})
	if err != nil {
		return docstore.Failed(err)
	}
	return docstore.Succeeded(docs, len(docs))
}

func (g *Gateway) BulkUpdate(_ context.Context, index string, docs []docstore.Document) docstore.Result {
	if len(docs) == 0 {
		return docstore.Succeeded(nil, 0)
	}
	var out []docstore.Document
	err := g.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(index))
		if err != nil {
			return err
		}
		for _, doc := range docs {
			id := docstore.ResolveID(doc)
			if id == "" {
				return docstore.ErrMissingID
			}
			var rec record
			if raw := b.Get([]byte(id)); raw != nil {
				if err := json.Unmarshal(raw, &rec); err != nil {
					return err
				}
			}
			rec.SeqNo++
			rec.Fields = docstore.Merge(rec.Fields, docstore.Body(doc))
			if err := put(b, id, rec); err != nil {
				return err
			}
			out = append(out, toDocument(id, rec))
		}
		return nil
	})
	if err != nil {
		return docstore.Failed(err)
	}
	return docstore.Succeeded(out, len(out))
}

func (g *Gateway) DeleteByID(_ context.Context, index, id string) docstore.Result {
	if id == "" {
		return docstore.Failed(docstore.ErrMissingID)
	}
	err := g.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(index))
		if b == nil {
			return fmt.Errorf("%w: %s", errIndexNotFound, index)
		}
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s in %s", docstore.ErrNotFound, id, index)
		}
		return b.Delete([]byte(id))
	})
	if err != nil {
		return docstore.Failed(err)
	}
	return docstore.Succeeded(nil, 1)
}

func (g *Gateway) DeleteByQuery(_ context.Context, index string, q docstore.Query) docstore.Result {
	var deleted int
	err := g.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(index))
		if b == nil {
			return fmt.Errorf("%w: %s", errIndexNotFound, index)
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; {
			var rec record
			if err := json.Unmarshal(v, &rec); err == nil && q.Matches(string(k), rec.Fields) {
				if err := c.Delete(); err != nil {
					return err
				}
				deleted++
				// Delete moves the cursor to the next item.
				k, v = c.Seek(k)
				continue
			}
			k, v = c.Next()
		}
		return nil
	})
	if err != nil {
		return docstore.Failed(err)
	}
	return docstore.Succeeded(nil, deleted)
}

func (g *Gateway) Ping(context.Context) error {
	if g == nil || g.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return g.db.View(func(*bolt.Tx) error { return nil })
}

// Close closes the Bolt database.
func (g *Gateway) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	return g.db.Close()
}

// Stats exposes Bolt statistics for monitoring endpoints.
func (g *Gateway) Stats() bolt.Stats {
	if g == nil || g.db == nil {
		return bolt.Stats{}
	}
	return g.db.Stats()
}

func (g *Gateway) create(index, id string, body map[string]any) docstore.Result {
	if id == "" {
		id = uuid.NewString()
	}
	rec := record{SeqNo: 1, Fields: body}
	err := g.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(index))
		if err != nil {
			return err
		}
		if b.Get([]byte(id)) != nil {
			return fmt.Errorf("%w: document %s already exists", docstore.ErrVersionConflict, id)
		}
		return put(b, id, rec)
	})
	if err != nil {
		return docstore.Failed(err)
	}
	return docstore.Succeeded([]docstore.Document{toDocument(id, rec)}, 1)
}

func put(b *bolt.Bucket, id string, rec record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return b.Put([]byte(id), payload)
}

func toDocument(id string, rec record) docstore.Document {
	fields := make(map[string]any, len(rec.Fields)+1)
	for k, v := range rec.Fields {
		fields[k] = v
	}
	fields["id"] = id
	return docstore.Document{
		ID:      id,
		Version: docstore.Version{SeqNo: rec.SeqNo, PrimaryTerm: primaryTerm},
		Fields:  fields,
	}
}
