package taskdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taskcal/internal/task"
)

// repositories returns a fresh instance of every repository that can run
// without external services.
func repositories(t *testing.T) map[string]Repository {
	t.Helper()

	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close(context.Background()) })

	return map[string]Repository{
		"sqlite": sqlite,
		"memory": NewMemory(),
	}
}

func sample(title string) task.Task {
	return task.Task{
		Title:       title,
		Description: "details",
		Category:    "home",
		Priority:    2,
		DueDate:     "2024-05-01",
		Status:      "in_progress",
	}
}

func TestRepository_CreateGet(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			id, err := repo.Create(ctx, sample("Buy milk"))
			require.NoError(t, err)
			assert.Positive(t, id)

			got, err := repo.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, id, got.ID)
			assert.Equal(t, "Buy milk", got.Title)
			assert.Equal(t, "details", got.Description)
			assert.Equal(t, "home", got.Category)
			assert.Equal(t, 2, got.Priority)
			assert.Equal(t, "2024-05-01", got.DueDate)
			assert.Equal(t, task.StatusPending, got.Status, "new tasks always start pending")
			assert.NotEmpty(t, got.CreatedAt)
		})
	}
}

func TestRepository_GetMissing(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			_, err := repo.Get(context.Background(), 999)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestRepository_ListNewestFirst(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, title := range []string{"first", "second", "third"} {
				_, err := repo.Create(ctx, sample(title))
				require.NoError(t, err)
			}

			tasks, err := repo.List(ctx)
			require.NoError(t, err)
			require.Len(t, tasks, 3)
			assert.Equal(t, "third", tasks[0].Title)
			assert.Equal(t, "first", tasks[2].Title)
		})
	}
}

func TestRepository_ListEmpty(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			tasks, err := repo.List(context.Background())
			require.NoError(t, err)
			assert.NotNil(t, tasks)
			assert.Empty(t, tasks)
		})
	}
}

func TestRepository_Update(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, err := repo.Create(ctx, sample("draft"))
			require.NoError(t, err)

			edit := sample("final")
			edit.Status = "completed"
			edit.Priority = 5
			require.NoError(t, repo.Update(ctx, id, edit))

			got, err := repo.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, "final", got.Title)
			assert.Equal(t, task.StatusCompleted, got.Status)
			assert.Equal(t, 5, got.Priority)

			assert.NoError(t, repo.Update(ctx, 999, edit), "updating an unknown id is not an error")
		})
	}
}

func TestRepository_Delete(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			keep, err := repo.Create(ctx, sample("keep"))
			require.NoError(t, err)
			drop, err := repo.Create(ctx, sample("drop"))
			require.NoError(t, err)

			require.NoError(t, repo.Delete(ctx, drop))
			assert.NoError(t, repo.Delete(ctx, drop), "deleting twice is not an error")

			tasks, err := repo.List(ctx)
			require.NoError(t, err)
			require.Len(t, tasks, 1)
			assert.Equal(t, keep, tasks[0].ID)
		})
	}
}

func TestSQLite_PriorityCheckConstraint(t *testing.T) {
	repo, err := OpenSQLite(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	defer repo.Close(context.Background())

	bad := sample("too urgent")
	bad.Priority = 9
	_, err = repo.Create(context.Background(), bad)
	assert.Error(t, err)
}

func TestSQLite_NullColumnsScanAsZeroValues(t *testing.T) {
	repo, err := OpenSQLite(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	defer repo.Close(context.Background())

	_, err = repo.db.Exec(`INSERT INTO tasks (title) VALUES ('legacy row')`)
	require.NoError(t, err)

	tasks, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "legacy row", tasks[0].Title)
	assert.Empty(t, tasks[0].Description)
	assert.Equal(t, 0, tasks[0].Priority)
	assert.Equal(t, task.StatusPending, tasks[0].Status)
}

func TestMemory_TimestampsFromClock(t *testing.T) {
	repo := NewMemory()
	repo.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC) }

	id, err := repo.Create(context.Background(), sample("stamped"))
	require.NoError(t, err)

	got, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T03:04:05.006Z", got.CreatedAt)
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
}

func TestRecordToTask(t *testing.T) {
	record := &neo4j.Record{
		Keys:   []string{"id", "title", "description", "category", "priority", "due_date", "status", "created_at", "updated_at"},
		Values: []any{int64(4), "graph task", nil, "work", int64(1), "2024-02-02", "pending", "2024-01-01T00:00:00.000Z", nil},
	}

	got, err := recordToTask(record)
	require.NoError(t, err)
	assert.Equal(t, task.Task{
		ID:        4,
		Title:     "graph task",
		Category:  "work",
		Priority:  1,
		DueDate:   "2024-02-02",
		Status:    task.StatusPending,
		CreatedAt: "2024-01-01T00:00:00.000Z",
	}, got)
}

func TestRecordToTask_MissingID(t *testing.T) {
	record := &neo4j.Record{Keys: []string{"title"}, Values: []any{"orphan"}}

	_, err := recordToTask(record)
	assert.Error(t, err)
}
