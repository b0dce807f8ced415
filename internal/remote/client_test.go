package remote

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taskcal/internal/server"
	"github.com/roach88/taskcal/internal/task"
	"github.com/roach88/taskcal/internal/taskdb"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBackend(t *testing.T) *Client {
	t.Helper()
	srv := httptest.NewServer(server.New(taskdb.NewMemory(), quietLogger(), nil).Handler())
	t.Cleanup(srv.Close)
	return New(srv.URL, Options{Logger: quietLogger()})
}

// failingBackend answers every request with the given status.
func failingBackend(t *testing.T, status int, reg prometheus.Registerer) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, status)
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, Options{Logger: quietLogger(), Registerer: reg})
}

func TestCreateThenListIncludesTitle(t *testing.T) {
	ctx := context.Background()
	c := newBackend(t)

	ack := c.Create(ctx, task.Task{Title: "Write report", Priority: 2})
	require.NotNil(t, ack)
	assert.Equal(t, int64(1), ack.ID)
	assert.Equal(t, "Task created", ack.Message)

	tasks := c.List(ctx)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Write report", tasks[0].Title)
	assert.Equal(t, 2, tasks[0].Priority)
	assert.Equal(t, task.StatusPending, tasks[0].Status)
}

func TestGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	c := newBackend(t)

	ack := c.Create(ctx, task.Task{Title: "Draft"})
	require.NotNil(t, ack)

	got := c.Get(ctx, ack.ID)
	require.NotNil(t, got)
	assert.Equal(t, "Draft", got.Title)

	updated := *got
	updated.Title = "Final"
	updated.Status = task.StatusCompleted
	require.NotNil(t, c.Update(ctx, ack.ID, updated))

	got = c.Get(ctx, ack.ID)
	require.NotNil(t, got)
	assert.Equal(t, "Final", got.Title)
	assert.Equal(t, task.StatusCompleted, got.Status)

	del := c.Delete(ctx, ack.ID)
	require.NotNil(t, del)
	assert.Equal(t, "Task deleted", del.Message)

	assert.Nil(t, c.Get(ctx, ack.ID))
	assert.Empty(t, c.List(ctx))
}

func TestListEmptyBackendReturnsEmptySlice(t *testing.T) {
	c := newBackend(t)

	tasks := c.List(context.Background())
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestNon2xxMapsToSentinels(t *testing.T) {
	ctx := context.Background()
	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError} {
		c := failingBackend(t, status, nil)

		list := c.List(ctx)
		assert.NotNil(t, list, "status %d", status)
		assert.Empty(t, list, "status %d", status)
		assert.Nil(t, c.Get(ctx, 1), "status %d", status)
		assert.Nil(t, c.Create(ctx, task.Task{Title: "x"}), "status %d", status)
		assert.Nil(t, c.Update(ctx, 1, task.Task{Title: "x"}), "status %d", status)
		assert.Nil(t, c.Delete(ctx, 1), "status %d", status)
		assert.False(t, c.Health(ctx), "status %d", status)
	}
}

func TestUndecodableBodyMapsToSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	t.Cleanup(srv.Close)
	c := New(srv.URL, Options{Logger: quietLogger()})

	assert.Empty(t, c.List(context.Background()))
	assert.Nil(t, c.Get(context.Background(), 1))
}

func TestTransportErrorMapsToSentinel(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, Options{Logger: quietLogger()})
	assert.Empty(t, c.List(context.Background()))
	assert.Nil(t, c.Create(context.Background(), task.Task{Title: "x"}))
}

func TestTimeoutMapsToSentinel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	c := New(srv.URL, Options{Logger: quietLogger(), Timeout: 50 * time.Millisecond})
	assert.Nil(t, c.Get(context.Background(), 1))
}

func TestFailuresAreLogged(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, Options{Logger: logger})
	c.Delete(context.Background(), 7)

	out := buf.String()
	assert.Contains(t, out, "task backend request failed")
	assert.Contains(t, out, "op=delete")
	assert.Contains(t, out, "path=/api/tasks/7")
	assert.Contains(t, out, "HTTP 503")
}

func TestSendsJSONPayloadWithoutServerFields(t *testing.T) {
	var gotBody, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotType = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{"message":"Task updated"}`))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL+"/", Options{Logger: quietLogger()})
	ack := c.Update(context.Background(), 4, task.Task{
		ID:        4,
		Title:     "t",
		Priority:  3,
		Status:    task.StatusPending,
		CreatedAt: "2024-01-01T00:00:00.000Z",
	})
	require.NotNil(t, ack)
	assert.Equal(t, "application/json", gotType)
	assert.NotContains(t, gotBody, `"id"`)
	assert.NotContains(t, gotBody, "created_at")
	assert.Contains(t, gotBody, `"title":"t"`)
}

func TestHealth(t *testing.T) {
	assert.True(t, newBackend(t).Health(context.Background()))
}

func TestRequestMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()

	srv := httptest.NewServer(server.New(taskdb.NewMemory(), quietLogger(), nil).Handler())
	t.Cleanup(srv.Close)
	c := New(srv.URL, Options{Logger: quietLogger(), Registerer: reg})

	c.List(ctx)
	c.List(ctx)
	c.Get(ctx, 99)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues("list", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("get", "error")))

	failing := failingBackend(t, http.StatusInternalServerError, prometheus.NewRegistry())
	failing.Create(ctx, task.Task{Title: "x"})
	assert.Equal(t, 1.0, testutil.ToFloat64(failing.requests.WithLabelValues("create", "error")))
}
