package storage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taskcal/internal/kv"
)

type record struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

func newTestAdapter(t *testing.T, opts ...kv.Option) (*Adapter, *kv.Store, *bytes.Buffer) {
	t.Helper()
	st, err := kv.Open(filepath.Join(t.TempDir(), "store.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(st, logger), st, logs
}

func TestAdapter_SetLookup(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "r1", record{Name: "notes.txt", Size: 12}))

	var got record
	assert.Equal(t, StatusFound, a.Lookup(ctx, "r1", &got))
	assert.Equal(t, record{Name: "notes.txt", Size: 12}, got)
}

func TestAdapter_LookupDistinguishesAbsentFromCorrupt(t *testing.T) {
	a, st, logs := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "broken", "{not json"))

	var got record
	assert.Equal(t, StatusNotFound, a.Lookup(ctx, "missing", &got))
	assert.Equal(t, StatusCorrupt, a.Lookup(ctx, "broken", &got))
	assert.Contains(t, logs.String(), "storage: decode value")
	assert.Contains(t, logs.String(), "key=broken")
}

func TestAdapter_SetLogsQuotaFailure(t *testing.T) {
	a, _, logs := newTestAdapter(t, kv.WithQuota(8))

	err := a.Set(context.Background(), "too-big", record{Name: "large"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, kv.ErrQuotaExceeded))
	assert.Contains(t, logs.String(), "storage: write value")
}

func TestAdapter_SetLogsSerializationFailure(t *testing.T) {
	a, _, logs := newTestAdapter(t)

	err := a.Set(context.Background(), "chan", make(chan int))
	require.Error(t, err)
	assert.Contains(t, logs.String(), "storage: serialize value")
}

func TestAdapter_InsertCollision(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.Insert(ctx, "k", record{Name: "first"}))
	err := a.Insert(ctx, "k", record{Name: "second"})
	assert.ErrorIs(t, err, kv.ErrKeyExists)

	var got record
	require.Equal(t, StatusFound, a.Lookup(ctx, "k", &got))
	assert.Equal(t, "first", got.Name)
}

func TestAdapter_RemoveClearKeys(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "attachment_1", record{Name: "a"}))
	require.NoError(t, a.Set(ctx, "attachment_2", record{Name: "b"}))
	require.NoError(t, a.Set(ctx, "prefs", record{Name: "c"}))

	keys, err := a.Keys(ctx, "attachment_")
	require.NoError(t, err)
	assert.Equal(t, []string{"attachment_1", "attachment_2"}, keys)

	require.NoError(t, a.Remove(ctx, "attachment_1"))
	var got record
	assert.Equal(t, StatusNotFound, a.Lookup(ctx, "attachment_1", &got))

	require.NoError(t, a.Clear(ctx))
	keys, err = a.Keys(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "found", StatusFound.String())
	assert.Equal(t, "not_found", StatusNotFound.String())
	assert.Equal(t, "corrupt", StatusCorrupt.String())
	assert.Equal(t, "status(9)", Status(9).String())
}
