// Package storage serializes values to and from the persistent key/value
// store as JSON.
//
// Every failure is logged. Lookups return a tagged Status so callers can tell
// an absent key from a record that no longer decodes.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/taskcal/internal/kv"
)

// Status is the outcome of a Lookup.
type Status int

const (
	// StatusFound means the value was read and decoded.
	StatusFound Status = iota
	// StatusNotFound means the key is absent.
	StatusNotFound
	// StatusCorrupt means the key exists but its value could not be read or decoded.
	StatusCorrupt
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusCorrupt:
		return "corrupt"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Store is the subset of kv.Store the adapter needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Insert(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Adapter reads and writes JSON values in a Store.
type Adapter struct {
	store  Store
	logger *slog.Logger
}

// New creates an Adapter over store. A nil logger uses slog.Default().
func New(store Store, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{store: store, logger: logger}
}

// Set serializes v and writes it under key, replacing any previous value.
// Failures are logged and returned; callers that only need the "log and
// carry on" contract may ignore the error.
func (a *Adapter) Set(ctx context.Context, key string, v any) error {
	return a.write(ctx, key, v, a.store.Set)
}

// Insert is Set for keys that must not already exist.
// Returns an error wrapping kv.ErrKeyExists on collision.
func (a *Adapter) Insert(ctx context.Context, key string, v any) error {
	return a.write(ctx, key, v, a.store.Insert)
}

func (a *Adapter) write(ctx context.Context, key string, v any, put func(context.Context, string, string) error) error {
	data, err := json.Marshal(v)
	if err != nil {
		a.logger.Error("storage: serialize value", "key", key, "error", err)
		return fmt.Errorf("serialize %q: %w", key, err)
	}
	if err := put(ctx, key, string(data)); err != nil {
		a.logger.Error("storage: write value", "key", key, "bytes", len(data), "error", err)
		return err
	}
	return nil
}

// Lookup reads key and decodes it into v.
// v is only meaningful when the returned status is StatusFound.
func (a *Adapter) Lookup(ctx context.Context, key string, v any) Status {
	raw, err := a.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return StatusNotFound
	}
	if err != nil {
		a.logger.Error("storage: read value", "key", key, "error", err)
		return StatusCorrupt
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		a.logger.Warn("storage: decode value", "key", key, "error", err)
		return StatusCorrupt
	}
	return StatusFound
}

// Remove deletes key.
func (a *Adapter) Remove(ctx context.Context, key string) error {
	if err := a.store.Remove(ctx, key); err != nil {
		a.logger.Error("storage: remove value", "key", key, "error", err)
		return err
	}
	return nil
}

// Clear empties the entire store, regardless of who wrote the keys.
func (a *Adapter) Clear(ctx context.Context) error {
	if err := a.store.Clear(ctx); err != nil {
		a.logger.Error("storage: clear", "error", err)
		return err
	}
	return nil
}

// Keys lists the keys that start with prefix, in insertion order.
func (a *Adapter) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := a.store.Keys(ctx, prefix)
	if err != nil {
		a.logger.Error("storage: list keys", "prefix", prefix, "error", err)
		return nil, err
	}
	return keys, nil
}
