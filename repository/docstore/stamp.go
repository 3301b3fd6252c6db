package docstore

import "time"

// Now is the clock used for audit stamps.
var Now = time.Now

// ResolveID returns the document identifier taken from doc.ID, the "_id"
// field or the "id" field, in that order.
func ResolveID(doc Document) string {
	if doc.ID != "" {
		return doc.ID
	}
	for _, key := range []string{"_id", "id"} {
		if v, ok := doc.Fields[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Body copies the document fields without identifier keys.
func Body(doc Document) map[string]any {
	body := make(map[string]any, len(doc.Fields))
	for k, v := range doc.Fields {
		if k == "_id" || k == "id" {
			continue
		}
		body[k] = v
	}
	return body
}

// StampCreated adds created.createdAt and, when known, created.createdBy.
func StampCreated(body map[string]any, actor *Actor) map[string]any {
	created := map[string]any{"createdAt": Now().UnixMilli()}
	if actor != nil {
		created["createdBy"] = map[string]any{"uid": actor.ID, "displayName": actor.DisplayName}
	}
	body["created"] = created
	return body
}

// StampUpdated adds updated.updatedAt and, when known, updated.updatedBy.
func StampUpdated(body map[string]any, actor *Actor) map[string]any {
	updated := map[string]any{"updatedAt": Now().UnixMilli()}
	if actor != nil {
		updated["updatedBy"] = map[string]any{"uid": actor.ID, "displayName": actor.DisplayName}
	}
	body["updated"] = updated
	return body
}

// Merge shallow-merges patch into base, the way a partial update does.
func Merge(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
