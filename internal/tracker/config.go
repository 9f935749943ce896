package tracker

import (
	"fmt"
	"os"
	"strings"
)

// Config holds configuration for a tracker backend.
// It wraps the config storage and provides a consistent interface
// for accessing backend-specific settings.
type Config struct {
	// Prefix is the config key prefix for this backend (e.g., "github", "jira")
	Prefix string

	// Store provides access to the configuration record
	Store ConfigStore

	// RemoteURL is the fetch URL of the configured git remote, used by
	// backends that can derive their project from it.
	RemoteURL string
}

// ConfigStore provides access to the continuity configuration record.
type ConfigStore interface {
	GetString(key string) string
	AllStrings() map[string]string
}

// MapStore is an in-memory ConfigStore.
type MapStore map[string]string

// GetString implements ConfigStore.
func (m MapStore) GetString(key string) string { return m[key] }

// AllStrings implements ConfigStore.
func (m MapStore) AllStrings() map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// NewConfig creates a new backend config with the given prefix and store.
func NewConfig(prefix string, store ConfigStore) *Config {
	return &Config{
		Prefix: prefix,
		Store:  store,
	}
}

// Get retrieves a config value by key, checking both the config store
// and environment variables. The key should not include the backend prefix.
// Example: cfg.Get("token") for "github" prefix looks up "github.token"
// and falls back to the "GITHUB_TOKEN" env var.
func (c *Config) Get(key string) string {
	if c.Store != nil {
		if value := c.Store.GetString(c.Prefix + "." + key); value != "" {
			return value
		}
	}
	return os.Getenv(c.envVarName(key))
}

// GetDefault is like Get but returns def when the value is empty.
func (c *Config) GetDefault(key, def string) string {
	if v := c.Get(key); v != "" {
		return v
	}
	return def
}

// GetRequired is like Get but returns an error if the value is empty.
func (c *Config) GetRequired(key string) (string, error) {
	value := c.Get(key)
	if value == "" {
		fullKey := c.Prefix + "." + key
		hint := "Run: continuity init"
		hint += fmt.Sprintf("\nOr: export %s=VALUE", c.envVarName(key))
		return "", fmt.Errorf("%s not configured\n%s", fullKey, hint)
	}
	return value, nil
}

// GetAll returns all config values with the backend's prefix.
func (c *Config) GetAll() map[string]string {
	result := make(map[string]string)
	if c.Store == nil {
		return result
	}
	prefix := c.Prefix + "."
	for key, value := range c.Store.AllStrings() {
		if strings.HasPrefix(key, prefix) {
			result[strings.TrimPrefix(key, prefix)] = value
		}
	}
	return result
}

// envVarName converts a config key to its environment variable name.
// Example: for prefix "jira" and key "api-url", returns "JIRA_API_URL"
func (c *Config) envVarName(key string) string {
	envKey := strings.ToUpper(c.Prefix + "_" + key)
	envKey = strings.ReplaceAll(envKey, ".", "_")
	return strings.ReplaceAll(envKey, "-", "_")
}
