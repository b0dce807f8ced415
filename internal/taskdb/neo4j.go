package taskdb

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/roach88/taskcal/internal/task"
)

// Neo4jConfig holds the connection settings for a Neo4j repository.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string // empty selects the server default
}

// Neo4j is a Repository that stores each task as a (:Task) node.
// Integer ids are drawn from a (:Counter {name: 'task'}) node.
type Neo4j struct {
	driver   neo4j.DriverWithContext
	database string
	now      func() time.Time
}

var _ Repository = (*Neo4j)(nil)

// OpenNeo4j connects to Neo4j and verifies connectivity.
func OpenNeo4j(ctx context.Context, cfg Neo4jConfig) (*Neo4j, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j at %s: %w", cfg.URI, err)
	}
	return &Neo4j{driver: driver, database: cfg.Database, now: time.Now}, nil
}

// Close closes the driver.
func (n *Neo4j) Close(ctx context.Context) error {
	return n.driver.Close(ctx)
}

const returnTaskFields = `
	RETURN t.id AS id, t.title AS title, t.description AS description,
	       t.category AS category, t.priority AS priority, t.due_date AS due_date,
	       t.status AS status, t.created_at AS created_at, t.updated_at AS updated_at`

func (n *Neo4j) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return n.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: n.database})
}

// List returns all tasks, newest first.
func (n *Neo4j) List(ctx context.Context) ([]task.Task, error) {
	session := n.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, "MATCH (t:Task)"+returnTaskFields+" ORDER BY t.created_at DESC, t.id DESC", nil)
		if err != nil {
			return nil, err
		}

		tasks := []task.Task{}
		for res.Next(ctx) {
			t, err := recordToTask(res.Record())
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return tasks, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return result.([]task.Task), nil
}

// Get returns the task with the given id, or ErrNotFound.
func (n *Neo4j) Get(ctx context.Context, id int64) (*task.Task, error) {
	session := n.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, "MATCH (t:Task {id: $id})"+returnTaskFields, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, res.Err()
		}
		t, err := recordToTask(res.Record())
		if err != nil {
			return nil, err
		}
		return &t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	t, _ := result.(*task.Task)
	if t == nil {
		return nil, ErrNotFound
	}
	return t, nil
}

// Create inserts t under the next counter value. New tasks always start pending.
func (n *Neo4j) Create(ctx context.Context, t task.Task) (int64, error) {
	session := n.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	now := timestamp(n.now())
	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			"MERGE (c:Counter {name: 'task'}) "+
				"ON CREATE SET c.value = 0 "+
				"SET c.value = c.value + 1 "+
				"WITH c.value AS id "+
				"CREATE (t:Task {id: id, title: $title, description: $description, category: $category, "+
				"priority: $priority, due_date: $due_date, status: 'pending', created_at: $now, updated_at: $now}) "+
				"RETURN t.id AS id",
			map[string]any{
				"title":       t.Title,
				"description": t.Description,
				"category":    t.Category,
				"priority":    int64(t.Priority),
				"due_date":    t.DueDate,
				"now":         now,
			},
		)
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		return int64Value(record, "id")
	})
	if err != nil {
		return 0, fmt.Errorf("create task: %w", err)
	}
	return result.(int64), nil
}

// Update replaces the editable fields of task id.
func (n *Neo4j) Update(ctx context.Context, id int64, t task.Task) error {
	session := n.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx,
			"MATCH (t:Task {id: $id}) "+
				"SET t.title = $title, t.description = $description, t.category = $category, "+
				"t.priority = $priority, t.due_date = $due_date, t.status = $status, t.updated_at = $now",
			map[string]any{
				"id":          id,
				"title":       t.Title,
				"description": t.Description,
				"category":    t.Category,
				"priority":    int64(t.Priority),
				"due_date":    t.DueDate,
				"status":      string(t.Status),
				"now":         timestamp(n.now()),
			},
		)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("update task %d: %w", id, err)
	}
	return nil
}

// Delete removes task id and its relationships.
func (n *Neo4j) Delete(ctx context.Context, id int64) error {
	session := n.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, "MATCH (t:Task {id: $id}) DETACH DELETE t", map[string]any{"id": id})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return nil
}

// recordToTask converts one row produced by returnTaskFields.
// Missing or null properties become zero values.
func recordToTask(record *neo4j.Record) (task.Task, error) {
	id, err := int64Value(record, "id")
	if err != nil {
		return task.Task{}, err
	}
	priority, _ := int64Value(record, "priority")
	return task.Task{
		ID:          id,
		Title:       stringValue(record, "title"),
		Description: stringValue(record, "description"),
		Category:    stringValue(record, "category"),
		Priority:    int(priority),
		DueDate:     stringValue(record, "due_date"),
		Status:      task.Status(stringValue(record, "status")),
		CreatedAt:   stringValue(record, "created_at"),
		UpdatedAt:   stringValue(record, "updated_at"),
	}, nil
}

func stringValue(record *neo4j.Record, key string) string {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func int64Value(record *neo4j.Record, key string) (int64, error) {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return 0, fmt.Errorf("record has no %q", key)
	}
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("record field %q is %T, want int64", key, v)
	}
	return n, nil
}
