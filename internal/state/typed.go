package state

import (
	"encoding/json"
	"fmt"
)

// TypedStore stores values of T as JSON documents of one kind.
type TypedStore[T any] struct {
	store *Store
	kind  string
}

// NewTypedStore binds store to kind.
func NewTypedStore[T any](store *Store, kind string) *TypedStore[T] {
	return &TypedStore[T]{store: store, kind: kind}
}

// Get decodes the value stored under id. A missing value yields the zero
// T and version 0.
func (s *TypedStore[T]) Get(id string) (T, int64, error) {
	var value T

	doc, version, err := s.store.Get(s.kind, id)
	if err != nil || doc == nil {
		return value, 0, err
	}
	if err := json.Unmarshal(doc, &value); err != nil {
		return value, 0, fmt.Errorf("decode %s/%s: %w", s.kind, id, err)
	}
	return value, version, nil
}

// Set encodes value and stores it under id.
func (s *TypedStore[T]) Set(id string, value T) error {
	doc, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", s.kind, id, err)
	}
	return s.store.Set(s.kind, id, doc)
}

// Delete removes the value stored under id.
func (s *TypedStore[T]) Delete(id string) error {
	return s.store.Delete(s.kind, id)
}
