package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

// Config holds all configuration for memory-cloud.
type Config struct {
	// RemoteURL is the cloud Postgres endpoint, e.g. postgres://host:5432/memories.
	RemoteURL string

	// RemoteServiceKey is the service credential used to authenticate against
	// the cloud store. Injected into the DSN as the password.
	RemoteServiceKey string

	// RemoteType selects the cloud gateway backend.
	RemoteType string

	// LocalDBPath is the local memory store SQLite file. Auto-detected by
	// platform when unset.
	LocalDBPath string

	// SyncInterval is the daemon sleep between cycles.
	SyncInterval time.Duration

	// DeviceName identifies this device in sync_state and source_device.
	// Defaults to the short hostname, lowercased.
	DeviceName string

	// EmbeddingDim is the embedding vector dimension.
	EmbeddingDim int

	// MetricsPort serves /metrics and /health in daemon mode when non-zero.
	MetricsPort int

	// MigrateAtStart runs cloud schema migrations before the first cycle.
	MigrateAtStart bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RemoteType:   "postgres",
		LocalDBPath:  DefaultLocalDBPath(),
		SyncInterval: 5 * time.Minute,
		DeviceName:   DefaultDeviceName(),
		EmbeddingDim: 384,
	}
}

// IsConfigured reports whether the cloud credentials are present. Commands
// that touch the cloud store refuse to run without them.
func (c *Config) IsConfigured() bool {
	return c.RemoteURL != "" && c.RemoteServiceKey != ""
}

// RemoteDSN builds the Postgres DSN from the endpoint URL and service key.
// A user already present in the URL is kept; the service key always wins as
// the password.
func (c *Config) RemoteDSN() (string, error) {
	u, err := url.Parse(c.RemoteURL)
	if err != nil {
		return "", fmt.Errorf("invalid remote URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("unsupported remote URL scheme %q", u.Scheme)
	}
	user := "memory_cloud"
	if u.User != nil && u.User.Username() != "" {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, c.RemoteServiceKey)
	return u.String(), nil
}

// Summary returns the human-readable configuration for the status command.
// The service key is masked down to its tail.
func (c *Config) Summary() map[string]interface{} {
	endpoint := "(not set)"
	if c.RemoteURL != "" {
		endpoint = c.RemoteURL
	}
	key := "(not set)"
	if c.RemoteServiceKey != "" {
		tail := c.RemoteServiceKey
		if len(tail) > 8 {
			tail = tail[len(tail)-8:]
		}
		key = "***" + tail
	}
	_, statErr := os.Stat(c.LocalDBPath)
	return map[string]interface{}{
		"remote_url":      endpoint,
		"service_key":     key,
		"local_db_path":   c.LocalDBPath,
		"local_db_exists": statErr == nil,
		"sync_interval":   c.SyncInterval.String(),
		"device_name":     c.DeviceName,
		"embedding_dim":   c.EmbeddingDim,
		"configured":      c.IsConfigured(),
	}
}

// DefaultLocalDBPath auto-detects the local memory store location for the
// current platform, falling back through known legacy locations.
func DefaultLocalDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sqlite_vec.db"
	}

	var path string
	switch runtime.GOOS {
	case "darwin":
		path = filepath.Join(home, "Library", "Application Support", "mcp-memory", "sqlite_vec.db")
	case "linux":
		path = filepath.Join(home, ".local", "share", "mcp-memory", "sqlite_vec.db")
	default:
		path = filepath.Join(home, ".mcp-memory", "sqlite_vec.db")
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}

	fallbacks := []string{
		filepath.Join(home, ".mcp_memory_service", "memories.db"),
		filepath.Join(home, ".mcp-memory", "sqlite_vec.db"),
	}
	for _, fb := range fallbacks {
		if _, err := os.Stat(fb); err == nil {
			return fb
		}
	}
	return path
}

// DefaultDeviceName derives a device name from the short hostname.
func DefaultDeviceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "unknown-device"
	}
	short, _, _ := strings.Cut(host, ".")
	return strings.ToLower(short)
}
