package testutil

import (
	"fmt"
	"sync"
)

// SequenceKeys generates predictable keys: prefix followed by a
// zero-padded counter starting at 1.
//
// It satisfies attachment.KeyGenerator and is safe for concurrent use.
type SequenceKeys struct {
	prefix string

	mu sync.Mutex
	n  int
}

// NewSequenceKeys creates a generator for keys starting with prefix.
func NewSequenceKeys(prefix string) *SequenceKeys {
	return &SequenceKeys{prefix: prefix}
}

// Next returns the next key.
func (k *SequenceKeys) Next() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.n++
	return fmt.Sprintf("%s%04d", k.prefix, k.n)
}

// FixedKeys returns the same key every time. Useful for forcing collisions.
type FixedKeys string

// Next returns the fixed key.
func (k FixedKeys) Next() string {
	return string(k)
}
