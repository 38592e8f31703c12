// Package kv is the key-value store the game coordinator persists to.
// Values are opaque JSON documents; every Set replaces the whole value.
package kv

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

type Store interface {
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete is a no-op for absent keys.
	Delete(ctx context.Context, key string) error
	// ScanPrefix returns the values of every key starting with prefix, in no
	// particular order.
	ScanPrefix(ctx context.Context, prefix string) ([][]byte, error)
}
