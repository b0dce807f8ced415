// Package kv provides the SQLite-backed persistent key/value store that holds
// client-side state such as task attachments.
//
// The store mirrors the contract of a browser's per-origin storage:
//   - String keys and string values, no namespacing
//   - Synchronous Get, Set, Remove and Clear
//   - Capacity-bounded: writes fail with ErrQuotaExceeded when full
//
// Keys are enumerated in insertion order. Overwriting an existing key keeps
// its original position.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - Single connection: all writes are serialized
package kv
