// Package remote is the client for the task REST backend.
//
// Every method performs exactly one HTTP exchange. Any failure (transport
// error, non-2xx status, undecodable body) is logged and collapsed into a
// sentinel: List returns an empty slice and every other method returns nil.
// There are no retries.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/taskcal/internal/task"
)

// CollectionPath is the base path of the task collection.
const CollectionPath = "/api/tasks"

// Ack is the backend's acknowledgement of a mutation.
// ID is only set by create.
type Ack struct {
	ID      int64  `json:"id,omitempty"`
	Message string `json:"message"`
}

// Options configures a Client.
type Options struct {
	// Timeout bounds each request. Zero means no timeout.
	Timeout time.Duration
	// Logger receives failure diagnostics. Nil uses slog.Default().
	Logger *slog.Logger
	// Registerer receives the request counter. Nil disables metrics.
	Registerer prometheus.Registerer
	// HTTPClient overrides the transport. Its Timeout is left untouched.
	HTTPClient *http.Client
}

// Client talks to one task backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	requests   *prometheus.CounterVec
}

// New creates a client for the backend at baseURL (e.g. http://localhost:5000).
func New(baseURL string, opts Options) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: opts.Timeout}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if opts.Registerer != nil {
		c.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskcal_remote_requests_total",
			Help: "Requests made to the task backend, by operation and outcome.",
		}, []string{"op", "outcome"})
		opts.Registerer.MustRegister(c.requests)
	}
	return c
}

// List fetches every task. Returns an empty slice on any failure.
func (c *Client) List(ctx context.Context) []task.Task {
	var tasks []task.Task
	if err := c.do(ctx, "list", http.MethodGet, CollectionPath, nil, &tasks); err != nil {
		return []task.Task{}
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return tasks
}

// Get fetches one task. Returns nil on any failure, including 404.
func (c *Client) Get(ctx context.Context, id int64) *task.Task {
	var t task.Task
	if err := c.do(ctx, "get", http.MethodGet, itemPath(id), nil, &t); err != nil {
		return nil
	}
	return &t
}

// Create posts a new task. The returned Ack carries the assigned id.
// Returns nil on any failure.
func (c *Client) Create(ctx context.Context, t task.Task) *Ack {
	var ack Ack
	if err := c.do(ctx, "create", http.MethodPost, CollectionPath, t.Payload(), &ack); err != nil {
		return nil
	}
	return &ack
}

// Update replaces task id. Returns nil on any failure.
func (c *Client) Update(ctx context.Context, id int64, t task.Task) *Ack {
	var ack Ack
	if err := c.do(ctx, "update", http.MethodPut, itemPath(id), t.Payload(), &ack); err != nil {
		return nil
	}
	return &ack
}

// Delete removes task id. Returns nil on any failure.
func (c *Client) Delete(ctx context.Context, id int64) *Ack {
	var ack Ack
	if err := c.do(ctx, "delete", http.MethodDelete, itemPath(id), nil, &ack); err != nil {
		return nil
	}
	return &ack
}

// Health reports whether the backend answers its health probe.
func (c *Client) Health(ctx context.Context) bool {
	var status struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, "health", http.MethodGet, "/api/health", nil, &status); err != nil {
		return false
	}
	return status.Status == "ok"
}

func itemPath(id int64) string {
	return CollectionPath + "/" + strconv.FormatInt(id, 10)
}

// do performs one exchange and decodes a 2xx JSON body into out.
// Failures are logged here; callers only map them to sentinels.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) (err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			c.logger.Error("task backend request failed", "op", op, "method", method, "path", path, "error", err)
		}
		if c.requests != nil {
			c.requests.WithLabelValues(op, outcome).Inc()
		}
	}()

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
