// Package elastic implements the document store gateway on Elasticsearch.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/fastygo/ocxers/repository/docstore"
)

const refreshWaitFor = "wait_for"

// Gateway talks to an Elasticsearch cluster.
type Gateway struct {
	es     *elasticsearch.Client
	logger *zap.Logger
}

var _ docstore.Gateway = (*Gateway)(nil)

// NewGateway wraps an Elasticsearch client.
func NewGateway(es *elasticsearch.Client, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{es: es, logger: logger}
}

func (g *Gateway) EnsureIndex(ctx context.Context, name string, template []byte) {
	log := g.logger.With(zap.String("index", name))

	res, err := g.es.Indices.Exists([]string{name}, g.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		log.Error("index lookup failed", zap.Error(err))
		return
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Info("index already exists")
		return
	}

	opts := []func(*esapi.IndicesCreateRequest){g.es.Indices.Create.WithContext(ctx)}
	if len(template) > 0 {
		opts = append(opts, g.es.Indices.Create.WithBody(bytes.NewReader(template)))
	}
	res, err = g.es.Indices.Create(name, opts...)
	if err != nil {
		log.Error("index creation failed", zap.Error(err))
		return
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Error("index creation failed", zap.Error(responseError(res)))
		return
	}
	log.Info("index created")
}

func (g *Gateway) Query(ctx context.Context, index string, q docstore.Query) docstore.Result {
	body, err := encode(searchSource(q))
	if err != nil {
		return docstore.Failed(err)
	}
	res, err := g.es.Search(
		g.es.Search.WithContext(ctx),
		g.es.Search.WithIndex(index),
		g.es.Search.WithBody(body),
	)
	if err != nil {
		return docstore.Failed(err)
	}
	raw, err := readBody(res)
	if err != nil {
		return docstore.Failed(err)
	}

	hits := gjson.GetBytes(raw, "hits.hits").Array()
	docs := make([]docstore.Document, 0, len(hits))
	for _, hit := range hits {
		fields := map[string]any{}
		if src := hit.Get("_source"); src.Exists() {
			if err := json.Unmarshal([]byte(src.Raw), &fields); err != nil {
				return docstore.Failed(fmt.Errorf("decode hit %s: %w", hit.Get("_id").String(), err))
			}
		}
		id := hit.Get("_id").String()
		fields["id"] = id
		docs = append(docs, docstore.Document{
			ID: id,
			Version: docstore.Version{
				SeqNo:       hit.Get("_seq_no").Int(),
				PrimaryTerm: hit.Get("_primary_term").Int(),
			},
			Fields: fields,
		})
	}
	out := docstore.Succeeded(docs, int(gjson.GetBytes(raw, "hits.total.value").Int()))
	if aggs := gjson.GetBytes(raw, "aggregations"); aggs.Exists() {
		out.Aggregations = json.RawMessage(aggs.Raw)
	}
	return out
}

func (g *Gateway) Insert(ctx context.Context, index string, actor *docstore.Actor, doc docstore.Document) docstore.Result {
	body := docstore.StampCreated(docstore.Body(doc), actor)
	return g.create(ctx, index, docstore.ResolveID(doc), body)
}

func (g *Gateway) InsertDirect(ctx context.Context, index string, doc docstore.Document) docstore.Result {
	return g.create(ctx, index, docstore.ResolveID(doc), docstore.Body(doc))
}

func (g *Gateway) Update(ctx context.Context, index string, actor *docstore.Actor, doc docstore.Document) docstore.Result {
	id := docstore.ResolveID(doc)
	if id == "" {
		return docstore.Failed(docstore.ErrMissingID)
	}
	patch := docstore.StampUpdated(docstore.Body(doc), actor)
	body, err := encode(map[string]any{"doc": patch})
	if err != nil {
		return docstore.Failed(err)
	}

	opts := []func(*esapi.UpdateRequest){
		g.es.Update.WithContext(ctx),
		g.es.Update.WithRefresh(refreshWaitFor),
	}
	if !doc.Version.IsZero() {
		opts = append(opts,
			g.es.Update.WithIfSeqNo(int(doc.Version.SeqNo)),
			g.es.Update.WithIfPrimaryTerm(int(doc.Version.PrimaryTerm)),
		)
	}
	res, err := g.es.Update(index, id, body, opts...)
	if err != nil {
		return docstore.Failed(err)
	}
	raw, err := readBody(res)
	if err != nil {
		return docstore.Failed(err)
	}
	patch["id"] = id
	return docstore.Succeeded([]docstore.Document{{ID: id, Version: versionOf(raw), Fields: patch}}, 1)
}

func (g *Gateway) BulkUpsertIfAbsent(ctx context.Context, index string, ids []string, tag string) docstore.Result {
	if len(ids) == 0 {
		return docstore.Succeeded(nil, 0)
	}
	var buf bytes.Buffer
	createdAt := docstore.Now().UnixMilli()
	for _, id := range ids {
		if err := writeLines(&buf,
			map[string]any{"create": map[string]any{"_index": index, "_id": id}},
			map[string]any{"type": tag, "createdAt": createdAt},
		); err != nil {
			return docstore.Failed(err)
		}
	}
	return g.bulk(ctx, index, &buf, "create")
}

func (g *Gateway) BulkUpdate(ctx context.Context, index string, docs []docstore.Document) docstore.Result {
	if len(docs) == 0 {
		return docstore.Succeeded(nil, 0)
	}
	var buf bytes.Buffer
	for _, doc := range docs {
		id := docstore.ResolveID(doc)
		if id == "" {
			return docstore.Failed(docstore.ErrMissingID)
		}
		if err := writeLines(&buf,
			map[string]any{"update": map[string]any{"_index": index, "_id": id}},
			map[string]any{"doc": docstore.Body(doc), "doc_as_upsert": true},
		); err != nil {
			return docstore.Failed(err)
		}
	}
	return g.bulk(ctx, index, &buf, "update")
}

func (g *Gateway) DeleteByID(ctx context.Context, index, id string) docstore.Result {
	if id == "" {
		return docstore.Failed(docstore.ErrMissingID)
	}
	res, err := g.es.Delete(index, id,
		g.es.Delete.WithContext(ctx),
		g.es.Delete.WithRefresh("true"),
	)
	if err != nil {
		return docstore.Failed(err)
	}
	if _, err := readBody(res); err != nil {
		return docstore.Failed(err)
	}
	return docstore.Succeeded(nil, 1)
}

func (g *Gateway) DeleteByQuery(ctx context.Context, index string, q docstore.Query) docstore.Result {
	body, err := encode(map[string]any{"query": querySource(q)})
	if err != nil {
		return docstore.Failed(err)
	}
	res, err := g.es.DeleteByQuery([]string{index}, body,
		g.es.DeleteByQuery.WithContext(ctx),
		g.es.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return docstore.Failed(err)
	}
	raw, err := readBody(res)
	if err != nil {
		return docstore.Failed(err)
	}
	return docstore.Succeeded(nil, int(gjson.GetBytes(raw, "deleted").Int()))
}

func (g *Gateway) Ping(ctx context.Context) error {
	res, err := g.es.Ping(g.es.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: %s", res.Status())
	}
	return nil
}

// Close is a no-op; the HTTP transport is shared with the client.
func (g *Gateway) Close() error {
	return nil
}

func (g *Gateway) create(ctx context.Context, index, id string, body map[string]any) docstore.Result {
	payload, err := encode(body)
	if err != nil {
		return docstore.Failed(err)
	}

	var res *esapi.Response
	if id != "" {
		res, err = g.es.Create(index, id, payload,
			g.es.Create.WithContext(ctx),
			g.es.Create.WithRefresh(refreshWaitFor),
		)
	} else {
		res, err = g.es.Index(index, payload,
			g.es.Index.WithContext(ctx),
			g.es.Index.WithRefresh(refreshWaitFor),
		)
	}
	if err != nil {
		return docstore.Failed(err)
	}
	raw, err := readBody(res)
	if err != nil {
		return docstore.Failed(err)
	}

	id = gjson.GetBytes(raw, "_id").String()
	body["id"] = id
	return docstore.Succeeded([]docstore.Document{{ID: id, Version: versionOf(raw), Fields: body}}, 1)
}

// bulk sends an NDJSON payload. Items rejected with 409 by a create action
// already exist and are skipped; any other item failure fails the call.
func (g *Gateway) bulk(ctx context.Context, index string, payload io.Reader, action string) docstore.Result {
	res, err := g.es.Bulk(payload,
		g.es.Bulk.WithContext(ctx),
		g.es.Bulk.WithIndex(index),
		g.es.Bulk.WithRefresh(refreshWaitFor),
	)
	if err != nil {
		return docstore.Failed(err)
	}
	raw, err := readBody(res)
	if err != nil {
		return docstore.Failed(err)
	}

	var docs []docstore.Document
	for _, item := range gjson.GetBytes(raw, "items").Array() {
		result := item.Get(action)
		status := int(result.Get("status").Int())
		switch {
		case status == http.StatusConflict && action == "create":
			continue
		case status >= http.StatusBadRequest:
			return docstore.Failedf("bulk %s %s: %s: %s", action, result.Get("_id").String(),
				result.Get("error.type").String(), result.Get("error.reason").String())
		}
		id := result.Get("_id").String()
		docs = append(docs, docstore.Document{
			ID:      id,
			Version: docstore.Version{SeqNo: result.Get("_seq_no").Int(), PrimaryTerm: result.Get("_primary_term").Int()},
			Fields:  map[string]any{"id": id},
		})
	}
	return docstore.Succeeded(docs, len(docs))
}

func readBody(res *esapi.Response) ([]byte, error) {
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError(res)
	}
	return io.ReadAll(res.Body)
}

func responseError(res *esapi.Response) error {
	raw, _ := io.ReadAll(res.Body)
	reason := gjson.GetBytes(raw, "error.reason").String()
	if reason == "" {
		reason = gjson.GetBytes(raw, "error").String()
	}
	if res.StatusCode == http.StatusConflict {
		return fmt.Errorf("%w: %s", docstore.ErrVersionConflict, reason)
	}
	if res.StatusCode == http.StatusNotFound && gjson.GetBytes(raw, "result").String() == "not_found" {
		return fmt.Errorf("%w: %s", docstore.ErrNotFound, gjson.GetBytes(raw, "_id").String())
	}
	return fmt.Errorf("elasticsearch %s: %s: %s", res.Status(), gjson.GetBytes(raw, "error.type").String(), reason)
}

func versionOf(raw []byte) docstore.Version {
	return docstore.Version{
		SeqNo:       gjson.GetBytes(raw, "_seq_no").Int(),
		PrimaryTerm: gjson.GetBytes(raw, "_primary_term").Int(),
	}
}

func encode(v any) (io.Reader, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(payload), nil
}

func writeLines(buf *bytes.Buffer, lines ...any) error {
	for _, line := range lines {
		payload, err := json.Marshal(line)
		if err != nil {
			return err
		}
		buf.Write(payload)
		buf.WriteByte('\n')
	}
	return nil
}
