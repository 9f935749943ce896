// Package config loads continuity's repository configuration.
//
// Values come, lowest precedence first, from built-in defaults, the user
// file ($XDG_CONFIG_HOME/continuity/config.yaml), the repository file
// (.continuity/config.yaml, found by walking up from the working
// directory) and CONTINUITY_* environment variables. A .env file next to
// .continuity is loaded into the environment first without overriding
// variables that are already set.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// DirName is the per-repository configuration directory.
	DirName = ".continuity"
	// FileName is the configuration file inside DirName.
	FileName = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. CONTINUITY_TRACKER.
	EnvPrefix = "CONTINUITY"
)

var (
	v           *viper.Viper
	projectFile string
	userFile    string
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("tracker", "")
	v.SetDefault("integration-branch", "main")
	v.SetDefault("remote", "origin")
	v.SetDefault("exclusive", false)
	v.SetDefault("delete-remote", false)
	v.SetDefault("comments", true)
	v.SetDefault("templates.branch", "")
	v.SetDefault("templates.pr-title", "")
	v.SetDefault("templates.pr-body", "")
	v.SetDefault("templates.commit", "")
	v.SetDefault("templates.merge", "")
}

// Initialize (re)loads configuration for the working directory.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	projectFile, userFile = "", ""
	if path, ok := findProjectConfig(); ok {
		projectFile = path
	}
	if path := userConfigPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			userFile = path
		}
	}

	if dir := envDir(); dir != "" {
		envFile := filepath.Join(dir, ".env")
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("error loading %s: %w", envFile, err)
			}
		}
	}

	if userFile != "" {
		v.SetConfigFile(userFile)
		if err := v.MergeInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", userFile, err)
		}
	}
	if projectFile != "" {
		v.SetConfigFile(projectFile)
		if err := v.MergeInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", projectFile, err)
		}
	}
	return nil
}

// ResetForTesting drops loaded configuration.
func ResetForTesting() {
	v = nil
	projectFile, userFile = "", ""
}

// findProjectConfig walks up from the working directory looking for
// .continuity/config.yaml.
func findProjectConfig() (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for dir := cwd; ; dir = filepath.Dir(dir) {
		path := filepath.Join(dir, DirName, FileName)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
		if dir == filepath.Dir(dir) {
			return "", false
		}
	}
}

func userConfigPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "continuity", FileName)
}

func envDir() string {
	if projectFile != "" {
		return filepath.Dir(filepath.Dir(projectFile))
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return cwd
}

// ProjectFile returns the repository config file in use, or "".
func ProjectFile() string { return projectFile }

// UserFile returns the user-wide config file in use, or "".
func UserFile() string { return userFile }

// ProjectPath returns where the repository config file lives for the
// repository rooted at root.
func ProjectPath(root string) string {
	return filepath.Join(root, DirName, FileName)
}

// UserPath returns where the user-wide config file lives.
func UserPath() string { return userConfigPath() }

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// Set overrides a value for the rest of the process (flags).
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// IsSet reports whether key has a value from any source.
func IsSet(key string) bool {
	if v == nil {
		return false
	}
	return v.IsSet(key)
}

// AllSettings returns every value as a nested map.
func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}

// AllKeys returns every known dotted key, sorted.
func AllKeys() []string {
	if v == nil {
		return nil
	}
	keys := v.AllKeys()
	sort.Strings(keys)
	return keys
}
