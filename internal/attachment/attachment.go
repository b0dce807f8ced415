// Package attachment keeps files attached to tasks in the local key/value
// store.
//
// Each attachment is one JSON record under a key beginning with Prefix. The
// record carries the owning task id and the whole file as a data URI; nothing
// is ever sent to the task backend. Listing is a linear scan over every
// attachment key. Deleting a task does not touch its attachments.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/roach88/taskcal/internal/kv"
	"github.com/roach88/taskcal/internal/storage"
)

// Prefix starts every attachment key.
const Prefix = "attachment_"

var (
	// ErrNotFound is returned by Get when no attachment has the key.
	ErrNotFound = errors.New("attachment not found")

	// ErrCorrupt is returned by Get when the stored record cannot be decoded.
	ErrCorrupt = errors.New("attachment record is corrupt")

	// ErrKeyCollision is returned when a generated key is already taken.
	// The existing record is left untouched.
	ErrKeyCollision = errors.New("attachment key collision")

	// ErrNotAttachment is returned for keys outside the attachment namespace.
	ErrNotAttachment = errors.New("not an attachment key")
)

// Attachment is the stored record.
type Attachment struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Type   string `json:"type"`
	TaskID int64  `json:"taskId"`
	Data   string `json:"data"`
}

// Entry is an attachment together with the key it is stored under.
type Entry struct {
	Key string `json:"key"`
	Attachment
}

// Result reports the outcome of adding one file.
type Result struct {
	File  string
	Key   string
	Entry *Entry
	Err   error
}

// Options configures a Catalogue.
type Options struct {
	// Keys generates storage keys. Nil uses UUIDKeys.
	Keys KeyGenerator
	// OnAdded is called once for every attachment that was stored.
	// Calls never overlap, but their order across files is unspecified.
	OnAdded func(Entry)
	// Logger receives failure diagnostics. Nil uses slog.Default().
	Logger *slog.Logger
	// Quota is the byte quota of the backing store. When set, files too
	// large to fit are rejected with kv.ErrQuotaExceeded without being read
	// in full.
	Quota int64
}

// Catalogue adds, lists and removes attachments.
type Catalogue struct {
	store   *storage.Adapter
	keys    KeyGenerator
	onAdded func(Entry)
	logger  *slog.Logger
	limit   int64

	hookMu sync.Mutex
}

// New creates a Catalogue over store.
func New(store *storage.Adapter, opts Options) *Catalogue {
	c := &Catalogue{
		store:   store,
		keys:    opts.Keys,
		onAdded: opts.OnAdded,
		logger:  opts.Logger,
		limit:   maxContent(opts.Quota),
	}
	if c.keys == nil {
		c.keys = UUIDKeys{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// IsKey reports whether key is in the attachment namespace.
func IsKey(key string) bool {
	return strings.HasPrefix(key, Prefix)
}

// Add stores every file as an attachment of taskID.
//
// Files are read and encoded concurrently, one goroutine per file. The
// returned results are in input order. A file that fails to read or to be
// written reports the error in its Result and is not passed to OnAdded.
func (c *Catalogue) Add(ctx context.Context, taskID int64, files ...File) []Result {
	results := make([]Result, len(files))

	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f File) {
			defer wg.Done()
			results[i] = c.add(ctx, taskID, f)
		}(i, f)
	}
	wg.Wait()

	return results
}

func (c *Catalogue) add(ctx context.Context, taskID int64, f File) Result {
	res := Result{File: f.Name}

	att, err := encode(f, c.limit)
	if err != nil {
		c.logger.Error("read attachment", "file", f.Name, "error", err)
		res.Err = err
		return res
	}
	att.TaskID = taskID

	key := c.keys.Next()
	res.Key = key

	if err := c.store.Insert(ctx, key, att); err != nil {
		if errors.Is(err, kv.ErrKeyExists) {
			err = fmt.Errorf("%s: %w", key, ErrKeyCollision)
		}
		res.Err = err
		return res
	}

	entry := Entry{Key: key, Attachment: att}
	res.Entry = &entry
	c.notify(entry)
	return res
}

func (c *Catalogue) notify(e Entry) {
	if c.onAdded == nil {
		return
	}
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.onAdded(e)
}

// ListByTask returns every attachment owned by taskID, in storage order.
// Records that cannot be decoded are logged and skipped.
func (c *Catalogue) ListByTask(ctx context.Context, taskID int64) ([]Entry, error) {
	all, err := c.All(ctx)
	if err != nil {
		return nil, err
	}

	entries := []Entry{}
	for _, e := range all {
		if e.TaskID == taskID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// All returns every decodable attachment regardless of owner.
func (c *Catalogue) All(ctx context.Context) ([]Entry, error) {
	keys, err := c.store.Keys(ctx, Prefix)
	if err != nil {
		return nil, fmt.Errorf("list attachment keys: %w", err)
	}

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		var att Attachment
		if c.store.Lookup(ctx, key, &att) != storage.StatusFound {
			continue
		}
		entries = append(entries, Entry{Key: key, Attachment: att})
	}
	return entries, nil
}

// Get returns the attachment stored under key.
func (c *Catalogue) Get(ctx context.Context, key string) (Entry, error) {
	if !IsKey(key) {
		return Entry{}, fmt.Errorf("%q: %w", key, ErrNotAttachment)
	}

	var att Attachment
	switch c.store.Lookup(ctx, key, &att) {
	case storage.StatusFound:
		return Entry{Key: key, Attachment: att}, nil
	case storage.StatusNotFound:
		return Entry{}, fmt.Errorf("%q: %w", key, ErrNotFound)
	default:
		return Entry{}, fmt.Errorf("%q: %w", key, ErrCorrupt)
	}
}

// Remove deletes the attachment under key. Ownership is not checked and
// removing an absent key is not an error.
func (c *Catalogue) Remove(ctx context.Context, key string) error {
	if !IsKey(key) {
		return fmt.Errorf("%q: %w", key, ErrNotAttachment)
	}
	return c.store.Remove(ctx, key)
}

// Orphans returns the attachments whose task id is not in liveTaskIDs.
func (c *Catalogue) Orphans(ctx context.Context, liveTaskIDs []int64) ([]Entry, error) {
	live := make(map[int64]struct{}, len(liveTaskIDs))
	for _, id := range liveTaskIDs {
		live[id] = struct{}{}
	}

	all, err := c.All(ctx)
	if err != nil {
		return nil, err
	}

	orphans := []Entry{}
	for _, e := range all {
		if _, ok := live[e.TaskID]; !ok {
			orphans = append(orphans, e)
		}
	}
	return orphans, nil
}
