// Package config provides configuration management for courselink.
// Settings are loaded from ~/.config/courselink/config.yaml with sensible defaults.
// Project-relative paths (.env, credentials, token) are resolved from the executable's directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// executableDir caches the executable's directory
	executableDir     string
	executableDirOnce sync.Once
)

// Settings holds where courselink finds its files and how it behaves.
type Settings struct {
	EnvFile         string `yaml:"env_file"`
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`

	// Timezone is the IANA zone all-day events are anchored in.
	Timezone string `yaml:"timezone"`

	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultSettingsPath is the default location for the settings file.
	DefaultSettingsPath = "~/.config/courselink/config.yaml"

	DefaultEnvFile         = ".env"
	DefaultCredentialsFile = "credentials.json"
	DefaultTokenFile       = "token.json"
	DefaultTimezone        = "UTC"
	DefaultLogLevel        = "info"
)

// DefaultSettings returns the settings used when no settings file exists.
func DefaultSettings() *Settings {
	return &Settings{
		EnvFile:         DefaultEnvFile,
		CredentialsFile: DefaultCredentialsFile,
		TokenFile:       DefaultTokenFile,
		Timezone:        DefaultTimezone,
		LogLevel:        DefaultLogLevel,
	}
}

// LoadSettings loads settings from path. A missing file yields the defaults.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(ExpandHome(path))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	s.normalize()

	return s, nil
}

// normalize fills fields a partial settings file left empty.
func (s *Settings) normalize() {
	if s.EnvFile == "" {
		s.EnvFile = DefaultEnvFile
	}
	if s.CredentialsFile == "" {
		s.CredentialsFile = DefaultCredentialsFile
	}
	if s.TokenFile == "" {
		s.TokenFile = DefaultTokenFile
	}
	if s.Timezone == "" {
		s.Timezone = DefaultTimezone
	}
	if s.LogLevel == "" {
		s.LogLevel = DefaultLogLevel
	}
}

// Location returns the zone all-day events are anchored in.
func (s *Settings) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// EnvPath returns the absolute path of the override file.
func (s *Settings) EnvPath() string {
	return ResolvePath(s.EnvFile)
}

// CredentialsPath returns the absolute path of the client secret file.
func (s *Settings) CredentialsPath() string {
	return ResolvePath(s.CredentialsFile)
}

// TokenPath returns the absolute path of the persisted token.
func (s *Settings) TokenPath() string {
	return ResolvePath(s.TokenFile)
}

// GetExecutableDir returns the directory containing the courselink executable.
// The result is cached after the first call.
func GetExecutableDir() string {
	executableDirOnce.Do(func() {
		execPath, err := os.Executable()
		if err != nil {
			// Fall back to current working directory
			executableDir, _ = os.Getwd()
			return
		}
		// Resolve symlinks to get the real executable location
		execPath, err = filepath.EvalSymlinks(execPath)
		if err != nil {
			executableDir, _ = os.Getwd()
			return
		}
		executableDir = filepath.Dir(execPath)
	})
	return executableDir
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// ResolvePath expands ~ to home directory and resolves relative paths.
// Relative paths are resolved from the executable's directory, not the cwd.
func ResolvePath(path string) string {
	path = ExpandHome(path)
	if !filepath.IsAbs(path) {
		return filepath.Join(GetExecutableDir(), path)
	}
	return path
}

// ResetForTesting resets the cached executable directory. Only use in tests.
func ResetForTesting() {
	executableDirOnce = sync.Once{}
	executableDir = ""
}

// SetExecutableDirForTesting allows tests to override the executable directory.
func SetExecutableDirForTesting(dir string) {
	executableDirOnce.Do(func() {
		executableDir = dir
	})
}
