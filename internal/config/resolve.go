package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// ErrMissingConfig is returned when a required key is set nowhere.
var ErrMissingConfig = errors.New("missing configuration")

const (
	KeyCalendarID  = "CALENDAR_ID"
	KeyCurrentLink = "CURRENT_COURSE_LINK"
)

// Config is the resolved per-run configuration. It is built once and
// passed to every component that needs it.
type Config struct {
	CalendarID  string
	CurrentLink string

	// ClassPaths maps a class identifier to its directory.
	ClassPaths map[string]string
}

// ClassPath returns the directory mapped to classID.
func (c *Config) ClassPath(classID string) (string, bool) {
	p, ok := c.ClassPaths[strings.TrimSpace(classID)]
	if !ok || p == "" {
		return "", false
	}
	return p, true
}

// CurrentLinkPath returns the path of the current-course symlink.
func (c *Config) CurrentLinkPath() (string, bool) {
	return c.CurrentLink, c.CurrentLink != ""
}

// Resolver looks keys up in the override file first and the process
// environment second.
type Resolver struct {
	override    map[string]string
	env         map[string]string
	hasOverride bool
}

// NewResolver reads the override file at envFile, if present, and indexes
// environ (as returned by os.Environ).
func NewResolver(envFile string, environ []string) (*Resolver, error) {
	r := &Resolver{
		override: map[string]string{},
		env:      parseEnviron(environ),
	}

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, err
	}

	values, err := godotenv.Read(envFile)
	if err != nil {
		return nil, fmt.Errorf("read override file %s: %w", envFile, err)
	}
	r.override = values
	r.hasOverride = true

	return r, nil
}

// HasOverride reports whether an override file was found.
func (r *Resolver) HasOverride() bool {
	return r.hasOverride
}

// Lookup returns the value of key. Empty values count as unset.
func (r *Resolver) Lookup(key string) (string, bool) {
	if v := strings.TrimSpace(r.override[key]); v != "" {
		return v, true
	}
	if v := strings.TrimSpace(r.env[key]); v != "" {
		return v, true
	}
	return "", false
}

// CalendarID returns the calendar identifier or ErrMissingConfig.
func (r *Resolver) CalendarID() (string, error) {
	id, ok := r.Lookup(KeyCalendarID)
	if !ok {
		return "", fmt.Errorf("%s: %w", KeyCalendarID, ErrMissingConfig)
	}
	return id, nil
}

// ClassPath returns the directory configured for classID.
func (r *Resolver) ClassPath(classID string) (string, bool) {
	return r.Lookup(strings.TrimSpace(classID))
}

// CurrentLinkPath returns the configured current-course link.
func (r *Resolver) CurrentLinkPath() (string, bool) {
	return r.Lookup(KeyCurrentLink)
}

// Resolve builds the immutable Config. Only a missing calendar id is an
// error; absent link or class paths are left for the switcher to report.
func (r *Resolver) Resolve() (*Config, error) {
	calendarID, err := r.CalendarID()
	if err != nil {
		return nil, err
	}
	link, _ := r.CurrentLinkPath()

	classes := make(map[string]string, len(r.env)+len(r.override))
	for _, src := range []map[string]string{r.env, r.override} {
		for k, v := range src {
			if k == KeyCalendarID || k == KeyCurrentLink {
				continue
			}
			if v = strings.TrimSpace(v); v != "" {
				classes[k] = v
			}
		}
	}

	return &Config{
		CalendarID:  calendarID,
		CurrentLink: link,
		ClassPaths:  classes,
	}, nil
}

func parseEnviron(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}
