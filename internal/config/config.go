// Package config loads taskcal's layered YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete taskcal configuration.
type Config struct {
	API         APIConfig         `yaml:"api"`
	Store       StoreConfig       `yaml:"store"`
	Attachments AttachmentsConfig `yaml:"attachments"`
	Server      ServerConfig      `yaml:"server"`
	Neo4j       Neo4jConfig       `yaml:"neo4j"`
}

// APIConfig locates the task backend.
type APIConfig struct {
	// BaseURL is the backend root; /api/tasks is appended.
	BaseURL string `yaml:"base_url"`
	// Timeout bounds each request. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout"`
}

// StoreConfig configures the local attachment store.
type StoreConfig struct {
	// Path is the SQLite file holding attachments.
	Path string `yaml:"path"`
	// QuotaBytes caps keys plus values. Zero means unbounded.
	QuotaBytes int64 `yaml:"quota_bytes"`
}

// AttachmentsConfig configures how attachments are keyed and watched.
type AttachmentsConfig struct {
	// KeyScheme is "uuid" or "timestamp".
	KeyScheme string `yaml:"key_scheme"`
	// WatchDebounce is how long a dropped file must be quiet before upload.
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// ServerConfig configures the bundled task backend.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// Backend is "sqlite" or "neo4j".
	Backend string `yaml:"backend"`
	// DB is the SQLite file used by the sqlite backend.
	DB string `yaml:"db"`
}

// Neo4jConfig configures the neo4j backend.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// Key schemes.
const (
	KeySchemeUUID      = "uuid"
	KeySchemeTimestamp = "timestamp"
)

// Server backends.
const (
	BackendSQLite = "sqlite"
	BackendNeo4j  = "neo4j"
)

// DefaultQuotaBytes matches the per-origin storage budget of common browsers.
const DefaultQuotaBytes int64 = 5 << 20

// Default returns a Config with every default applied.
// dataDir holds the store and backend database files.
func Default(dataDir string) *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:5000",
		},
		Store: StoreConfig{
			Path:       filepath.Join(dataDir, "store.db"),
			QuotaBytes: DefaultQuotaBytes,
		},
		Attachments: AttachmentsConfig{
			KeyScheme:     KeySchemeUUID,
			WatchDebounce: 500 * time.Millisecond,
		},
		Server: ServerConfig{
			Addr:    ":5000",
			Backend: BackendSQLite,
			DB:      filepath.Join(dataDir, "tasks.db"),
		},
		Neo4j: Neo4jConfig{
			URI:      "neo4j://localhost:7687",
			Username: "neo4j",
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url %q must be an http(s) URL", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return errors.New("api.timeout must not be negative")
	}
	if c.Store.Path == "" {
		return errors.New("store.path is required")
	}
	if c.Store.QuotaBytes < 0 {
		return errors.New("store.quota_bytes must not be negative")
	}
	switch c.Attachments.KeyScheme {
	case KeySchemeUUID, KeySchemeTimestamp:
	default:
		return fmt.Errorf("attachments.key_scheme must be %q or %q, got %q", KeySchemeUUID, KeySchemeTimestamp, c.Attachments.KeyScheme)
	}
	if c.Attachments.WatchDebounce <= 0 {
		return errors.New("attachments.watch_debounce must be positive")
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	switch c.Server.Backend {
	case BackendSQLite:
		if c.Server.DB == "" {
			return errors.New("server.db is required for the sqlite backend")
		}
	case BackendNeo4j:
		if c.Neo4j.URI == "" {
			return errors.New("neo4j.uri is required for the neo4j backend")
		}
	default:
		return fmt.Errorf("server.backend must be %q or %q, got %q", BackendSQLite, BackendNeo4j, c.Server.Backend)
	}
	return nil
}

// decodeInto overlays the YAML document in data onto c. Keys absent from
// the document keep their current values; unknown keys are rejected.
func decodeInto(c *Config, data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// mergeFile overlays the file at path onto c.
func mergeFile(c *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := decodeInto(c, data); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// SaveToFile writes c as YAML, creating parent directories.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
