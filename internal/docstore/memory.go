package docstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/plumefeed/backend/internal/errors"
)

// MemStore is an in-memory Store for tests. Documents are kept as BSON
// bytes so encode/decode behavior matches the mongo implementation.
// Transactions take the store lock and commit all-or-nothing.
type MemStore struct {
	mu   sync.Mutex
	data map[string]map[string][]byte

	// FindRecentErr, when set, fails every FindRecent call. Used to test
	// the fail-open dedup scan behavior.
	FindRecentErr error
}

// NewMemStore creates an empty in-memory store
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]map[string][]byte)}
}

// Count returns the number of documents in a collection
func (s *MemStore) Count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data[collection])
}

// Get decodes the document at (collection, id) into out
func (s *MemStore) Get(ctx context.Context, collection, id string, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(collection, id, out)
}

func (s *MemStore) get(collection, id string, out any) error {
	raw, ok := s.data[collection][id]
	if !ok {
		return errors.NotFound(collection + "/" + id)
	}
	if err := bson.Unmarshal(raw, out); err != nil {
		return errors.Internal("document decode", err)
	}
	return nil
}

// Create inserts doc, failing if the id is taken
func (s *MemStore) Create(ctx context.Context, collection, id string, doc any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(collection, id, doc)
}

func (s *MemStore) create(collection, id string, doc any) error {
	if _, ok := s.data[collection][id]; ok {
		return errors.AlreadyExists(collection + "/" + id)
	}
	return s.set(collection, id, doc)
}

// Set replaces the document at (collection, id)
func (s *MemStore) Set(ctx context.Context, collection, id string, doc any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set(collection, id, doc)
}

func (s *MemStore) set(collection, id string, doc any) error {
	raw, err := encodeWithID(doc, id)
	if err != nil {
		return err
	}
	if s.data[collection] == nil {
		s.data[collection] = make(map[string][]byte)
	}
	s.data[collection][id] = raw
	return nil
}

// Update applies field-level changes; nil values unset the field
func (s *MemStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(collection, id, fields)
}

func (s *MemStore) update(collection, id string, fields map[string]any) error {
	raw, ok := s.data[collection][id]
	if !ok {
		return errors.NotFound(collection + "/" + id)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return errors.Internal("document decode", err)
	}
	for k, v := range fields {
		applyField(m, strings.Split(k, "."), v)
	}
	return s.set(collection, id, m)
}

// Delete removes the document; missing documents are a no-op
func (s *MemStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[collection], id)
	return nil
}

// Increment adds delta to a top-level numeric field
func (s *MemStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[collection][id]
	if !ok {
		return nil
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return errors.Internal("document decode", err)
	}
	m[field] = asInt64(m[field]) + delta
	return s.set(collection, id, m)
}

// DecrementClamped decrements a counter only while it is positive
func (s *MemStore) DecrementClamped(ctx context.Context, collection, id, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[collection][id]
	if !ok {
		return nil
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return errors.Internal("document decode", err)
	}
	if asInt64(m[field]) <= 0 {
		return nil
	}
	m[field] = asInt64(m[field]) - 1
	return s.set(collection, id, m)
}

// FindRecent returns up to limit matching documents, newest first
func (s *MemStore) FindRecent(ctx context.Context, collection string, filter map[string]any, limit int, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FindRecentErr != nil {
		return s.FindRecentErr
	}

	type entry struct {
		raw []byte
		at  time.Time
	}
	var matched []entry
	for _, raw := range s.data[collection] {
		var m bson.M
		if err := bson.Unmarshal(raw, &m); err != nil {
			return errors.Internal("document decode", err)
		}
		if !matches(m, filter) {
			continue
		}
		matched = append(matched, entry{raw: raw, at: asTime(m["created_at"])})
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].at.After(matched[j].at) })
	if len(matched) > limit {
		matched = matched[:limit]
	}

	slice := reflect.ValueOf(out).Elem()
	elemType := slice.Type().Elem()
	result := reflect.MakeSlice(slice.Type(), 0, len(matched))
	for _, e := range matched {
		elem := reflect.New(elemType)
		if err := bson.Unmarshal(e.raw, elem.Interface()); err != nil {
			return errors.Internal("document decode", err)
		}
		result = reflect.Append(result, elem.Elem())
	}
	slice.Set(result)
	return nil
}

// RunTransaction runs fn against a copy of the store and commits it only
// when fn succeeds. The store lock serializes transactions, which gives the
// same observable isolation the mongo implementation provides.
func (s *MemStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	shadow := &memTx{data: cloneData(s.data)}
	if err := fn(ctx, shadow); err != nil {
		return err
	}
	s.data = shadow.data
	return nil
}

// memTx operates on a shadow copy of the store data
type memTx struct {
	data map[string]map[string][]byte
}

func (t *memTx) Get(ctx context.Context, collection, id string, out any) error {
	raw, ok := t.data[collection][id]
	if !ok {
		return errors.NotFound(collection + "/" + id)
	}
	if err := bson.Unmarshal(raw, out); err != nil {
		return errors.Internal("document decode", err)
	}
	return nil
}

func (t *memTx) Create(ctx context.Context, collection, id string, doc any) error {
	if _, ok := t.data[collection][id]; ok {
		return errors.AlreadyExists(collection + "/" + id)
	}
	return t.Set(ctx, collection, id, doc)
}

func (t *memTx) Set(ctx context.Context, collection, id string, doc any) error {
	raw, err := encodeWithID(doc, id)
	if err != nil {
		return err
	}
	if t.data[collection] == nil {
		t.data[collection] = make(map[string][]byte)
	}
	t.data[collection][id] = raw
	return nil
}

func (t *memTx) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	raw, ok := t.data[collection][id]
	if !ok {
		return errors.NotFound(collection + "/" + id)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return errors.Internal("document decode", err)
	}
	for k, v := range fields {
		applyField(m, strings.Split(k, "."), v)
	}
	return t.Set(ctx, collection, id, m)
}

func (t *memTx) Delete(ctx context.Context, collection, id string) error {
	delete(t.data[collection], id)
	return nil
}

func cloneData(data map[string]map[string][]byte) map[string]map[string][]byte {
	out := make(map[string]map[string][]byte, len(data))
	for col, docs := range data {
		c := make(map[string][]byte, len(docs))
		for id, raw := range docs {
			c[id] = raw
		}
		out[col] = c
	}
	return out
}

func encodeWithID(doc any, id string) ([]byte, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, errors.Internal("document encode", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, errors.Internal("document encode", err)
	}
	m["_id"] = id
	raw, err = bson.Marshal(m)
	if err != nil {
		return nil, errors.Internal("document encode", err)
	}
	return raw, nil
}

// applyField walks a dotted path, creating intermediate maps; nil removes
func applyField(m bson.M, path []string, v any) {
	if len(path) == 1 {
		if v == nil {
			delete(m, path[0])
		} else {
			m[path[0]] = v
		}
		return
	}
	child, ok := m[path[0]].(bson.M)
	if !ok {
		// Nested documents round-trip through BSON as primitive.D
		if d, isD := m[path[0]].(primitive.D); isD {
			child = bson.M{}
			for _, e := range d {
				child[e.Key] = e.Value
			}
			m[path[0]] = child
		} else {
			if v == nil {
				return
			}
			child = bson.M{}
			m[path[0]] = child
		}
	}
	applyField(child, path[1:], v)
}

func matches(doc bson.M, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time()
	case time.Time:
		return t
	default:
		return time.Time{}
	}
}
