package checkout

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Storage.Get when the key holds no value.
var ErrNotFound = errors.New("key not found")

// Storage is the key/value port the store persists through.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

type scopedStorage struct {
	prefix string
	next   Storage
}

// Scope namespaces every key of next under scope, so one backend can hold the
// records of many checkout sessions.
func Scope(next Storage, scope string) Storage {
	return &scopedStorage{prefix: scope + ":", next: next}
}

func (s *scopedStorage) Get(ctx context.Context, key string) (string, error) {
	return s.next.Get(ctx, s.prefix+key)
}

func (s *scopedStorage) Set(ctx context.Context, key, value string) error {
	return s.next.Set(ctx, s.prefix+key, value)
}

func (s *scopedStorage) Remove(ctx context.Context, key string) error {
	return s.next.Remove(ctx, s.prefix+key)
}
