// Package docstore is the per-user document store the sync engine writes
// to. Documents are addressed by user id, optionally qualified by a
// sub-collection and document id, and support partial merge writes with
// sentinel values for field deletion, server timestamps and array union.
package docstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/moody-app/moody/internal/pkg/apperr"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UsersCollection holds the root per-user documents.
const UsersCollection = "users"

// Document is a decoded document. Nested documents are Document-compatible
// maps, arrays are []interface{} and timestamps are time.Time in UTC.
type Document = map[string]interface{}

// Key addresses one document. An empty Collection means the user's root
// document.
type Key struct {
	UserID     string
	Collection string
	ID         string
}

// UserKey addresses the user's root document.
func UserKey(uid string) Key { return Key{UserID: uid} }

// SubKey addresses a document in a per-user sub-collection.
func SubKey(uid, collection, id string) Key {
	return Key{UserID: uid, Collection: collection, ID: id}
}

// IsRoot reports whether k names the user's root document.
func (k Key) IsRoot() bool { return k.Collection == "" || k.Collection == UsersCollection }

func (k Key) String() string {
	if k.IsRoot() {
		return UsersCollection + "/" + k.UserID
	}
	return UsersCollection + "/" + k.UserID + "/" + k.Collection + "/" + k.ID
}

func (k Key) validate(op string) error {
	if strings.TrimSpace(k.UserID) == "" {
		return apperr.Unauthenticated(op)
	}
	if !k.IsRoot() && strings.TrimSpace(k.ID) == "" {
		return apperr.Invalid(op, "document id is required")
	}
	return nil
}

type deleteField struct{}

type serverTimestamp struct{}

type arrayUnion struct{ items []interface{} }

var (
	// Delete removes the field at its path on merge.
	Delete interface{} = deleteField{}
	// ServerTimestamp sets the field to the store's current time on merge.
	ServerTimestamp interface{} = serverTimestamp{}
)

// ArrayUnion appends items that are not already present in the array at
// the field's path.
func ArrayUnion(items ...interface{}) interface{} {
	return arrayUnion{items: items}
}

// Patch maps dotted field paths ("2025.4.15") to values or sentinels.
type Patch map[string]interface{}

// Path joins path segments with dots.
func Path(segments ...interface{}) string {
	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[i] = fmt.Sprint(s)
	}
	return strings.Join(parts, ".")
}

func (p Patch) validate(op string) error {
	for path := range p {
		if path == "" || strings.HasPrefix(path, "$") || path == "_id" {
			return apperr.Invalid(op, fmt.Sprintf("invalid field path %q", path))
		}
		for _, seg := range strings.Split(path, ".") {
			if seg == "" || strings.HasPrefix(seg, "$") {
				return apperr.Invalid(op, fmt.Sprintf("invalid field path %q", path))
			}
		}
	}
	return nil
}

// Store is the document store collaborator.
type Store interface {
	// Get returns the document, or an apperr NotFound error.
	Get(ctx context.Context, key Key) (Document, error)
	// Merge applies patch, creating the document if needed, without
	// touching fields the patch does not name.
	Merge(ctx context.Context, key Key, patch Patch) error
	// Replace overwrites the whole document.
	Replace(ctx context.Context, key Key, doc Document) error
	// Remove deletes the document. Removing a missing document succeeds.
	Remove(ctx context.Context, key Key) error
}

// Normalize converts driver-specific containers into plain maps, slices
// and time values.
func Normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case primitive.M:
		return normalizeMap(x)
	case map[string]interface{}:
		return normalizeMap(x)
	case primitive.D:
		m := make(map[string]interface{}, len(x))
		for _, e := range x {
			m[e.Key] = Normalize(e.Value)
		}
		return m
	case primitive.A:
		return normalizeSlice(x)
	case []interface{}:
		return normalizeSlice(x)
	case primitive.DateTime:
		return x.Time().UTC()
	case time.Time:
		return x.UTC()
	default:
		return v
	}
}

func normalizeMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = Normalize(v)
	}
	return out
}

func normalizeSlice(in []interface{}) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = Normalize(v)
	}
	return out
}

// toPlain runs v through the BSON codec so struct tags apply and the
// result has the same shape a Mongo read would produce.
func toPlain(v interface{}) (interface{}, error) {
	raw, err := bson.Marshal(bson.M{"v": v})
	if err != nil {
		return nil, err
	}
	var out bson.M
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return Normalize(out["v"]), nil
}

// Decode converts a document value into out using BSON struct tags.
func Decode(v interface{}, out interface{}) error {
	raw, err := bson.Marshal(bson.M{"v": v})
	if err != nil {
		return err
	}
	var wrapper struct {
		V bson.RawValue `bson:"v"`
	}
	if err := bson.Unmarshal(raw, &wrapper); err != nil {
		return err
	}
	return wrapper.V.Unmarshal(out)
}

// Int reads a numeric field of any encoded width.
func Int(v interface{}) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	case float32:
		return int(x), true
	}
	return 0, false
}

// Map reads a nested document.
func Map(v interface{}) (map[string]interface{}, bool) {
	switch x := v.(type) {
	case map[string]interface{}:
		return x, true
	case primitive.M:
		return x, true
	}
	return nil, false
}
