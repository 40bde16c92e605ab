package docstore

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/moody-app/moody/internal/pkg/apperr"
	"github.com/moody-app/moody/internal/pkg/clock"
)

// Memory is an in-process Store with the same merge semantics as Mongo.
type Memory struct {
	mu    sync.Mutex
	clock clock.Clock
	docs  map[Key]Document
}

// NewMemory creates an empty in-memory store. c drives ServerTimestamp.
func NewMemory(c clock.Clock) *Memory {
	return &Memory{clock: clock.OrReal(c), docs: make(map[Key]Document)}
}

func normKey(k Key) Key {
	if k.IsRoot() {
		return Key{UserID: k.UserID}
	}
	return k
}

func (m *Memory) Get(ctx context.Context, key Key) (Document, error) {
	if err := key.validate("docstore.get"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindRemoteReadFailed, "docstore.get", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[normKey(key)]
	if !ok {
		return nil, apperr.NotFound("docstore.get", key.String()+" does not exist")
	}
	return normalizeMap(doc), nil
}

func (m *Memory) Merge(ctx context.Context, key Key, patch Patch) error {
	const op = "docstore.merge"
	if err := key.validate(op); err != nil {
		return err
	}
	if err := patch.validate(op); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperr.Wrap(apperr.KindRemoteWriteFailed, op, err)
	}

	// encode outside the lock and before touching the document so a bad
	// value leaves it unchanged
	values := make(map[string]interface{}, len(patch))
	for path, v := range patch {
		switch x := v.(type) {
		case deleteField, serverTimestamp:
			values[path] = v
		case arrayUnion:
			items := make([]interface{}, 0, len(x.items))
			for _, it := range x.items {
				p, err := toPlain(it)
				if err != nil {
					return apperr.Wrap(apperr.KindInvalid, op, err)
				}
				items = append(items, p)
			}
			values[path] = arrayUnion{items: items}
		default:
			p, err := toPlain(v)
			if err != nil {
				return apperr.Wrap(apperr.KindInvalid, op, err)
			}
			values[path] = p
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	k := normKey(key)
	doc, ok := m.docs[k]
	if !ok {
		doc = Document{}
	} else {
		doc = normalizeMap(doc)
	}
	now := m.clock.Now().UTC().Truncate(time.Millisecond)
	for path, v := range values {
		segs := strings.Split(path, ".")
		switch x := v.(type) {
		case deleteField:
			unsetPath(doc, segs)
		case serverTimestamp:
			setPath(doc, segs, now)
		case arrayUnion:
			existing, _ := getPath(doc, segs).([]interface{})
			merged := append([]interface{}(nil), existing...)
			for _, it := range x.items {
				if !containsValue(merged, it) {
					merged = append(merged, it)
				}
			}
			setPath(doc, segs, merged)
		default:
			setPath(doc, segs, v)
		}
	}
	m.docs[k] = doc
	return nil
}

func (m *Memory) Replace(ctx context.Context, key Key, doc Document) error {
	const op = "docstore.replace"
	if err := key.validate(op); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperr.Wrap(apperr.KindRemoteWriteFailed, op, err)
	}
	plain, err := toPlain(doc)
	if err != nil {
		return apperr.Wrap(apperr.KindInvalid, op, err)
	}
	out, _ := Map(plain)
	if out == nil {
		out = Document{}
	}
	m.mu.Lock()
	m.docs[normKey(key)] = out
	m.mu.Unlock()
	return nil
}

func (m *Memory) Remove(ctx context.Context, key Key) error {
	const op = "docstore.remove"
	if err := key.validate(op); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperr.Wrap(apperr.KindRemoteWriteFailed, op, err)
	}
	m.mu.Lock()
	delete(m.docs, normKey(key))
	m.mu.Unlock()
	return nil
}

// Len is the number of stored documents.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func setPath(doc map[string]interface{}, segs []string, v interface{}) {
	cur := doc
	for _, s := range segs[:len(segs)-1] {
		next, ok := Map(cur[s])
		if !ok {
			next = map[string]interface{}{}
			cur[s] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = v
}

func unsetPath(doc map[string]interface{}, segs []string) {
	cur := doc
	for _, s := range segs[:len(segs)-1] {
		next, ok := Map(cur[s])
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, segs[len(segs)-1])
}

func getPath(doc map[string]interface{}, segs []string) interface{} {
	cur := doc
	for _, s := range segs[:len(segs)-1] {
		next, ok := Map(cur[s])
		if !ok {
			return nil
		}
		cur = next
	}
	return cur[segs[len(segs)-1]]
}

func containsValue(list []interface{}, v interface{}) bool {
	for _, it := range list {
		if reflect.DeepEqual(it, v) {
			return true
		}
	}
	return false
}
