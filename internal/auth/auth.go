// Package auth obtains OAuth2 credentials for read-only Google Calendar
// access, reusing a persisted token where possible.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	"github.com/pearcec/courselink/internal/logging"
)

// ErrInteractiveUnavailable is returned when no usable token exists and
// the browser flow cannot run (for example under cron).
var ErrInteractiveUnavailable = errors.New("interactive authorization unavailable")

// Variant records how the current token was obtained.
type Variant int

const (
	Cached Variant = iota
	Refreshed
	Interactive
)

func (v Variant) String() string {
	switch v {
	case Refreshed:
		return "refreshed"
	case Interactive:
		return "interactive"
	default:
		return "cached"
	}
}

// Authorizer runs an interactive authorization flow.
type Authorizer interface {
	Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)
}

// LoadOAuthConfig loads OAuth2 configuration from the client secret file.
// The scope is always read-only calendar access.
func LoadOAuthConfig(path string) (*oauth2.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	cfg, err := google.ConfigFromJSON(b, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}
	return cfg, nil
}

// Manager hands out a valid token, refreshing or re-authorizing as needed.
type Manager struct {
	oauth      *oauth2.Config
	store      TokenStore
	authorizer Authorizer
	log        *zap.Logger
}

// NewManager creates a Manager.
func NewManager(cfg *oauth2.Config, store TokenStore, authorizer Authorizer, log *zap.Logger) *Manager {
	return &Manager{
		oauth:      cfg,
		store:      store,
		authorizer: authorizer,
		log:        logging.OrNop(log),
	}
}

// Token returns a valid token and how it was obtained. Every token that
// did not come straight from the store is written back to it. Refresh
// failures are returned as-is, without retry.
func (m *Manager) Token(ctx context.Context) (*oauth2.Token, Variant, error) {
	tok, err := m.store.Load()
	if err != nil && !os.IsNotExist(err) {
		m.log.Warn("ignoring unreadable token", zap.Error(err))
	}

	if err == nil && tok.Valid() {
		return tok, Cached, nil
	}

	if err == nil && tok.RefreshToken != "" {
		m.log.Debug("token expired, refreshing", zap.Time("expiry", tok.Expiry))
		fresh, err := m.oauth.TokenSource(ctx, tok).Token()
		if err != nil {
			return nil, Refreshed, fmt.Errorf("refresh token: %w", err)
		}
		if err := m.store.Save(fresh); err != nil {
			return nil, Refreshed, err
		}
		m.log.Info("token refreshed")
		return fresh, Refreshed, nil
	}

	if m.authorizer == nil {
		return nil, Interactive, ErrInteractiveUnavailable
	}
	fresh, err := m.authorizer.Authorize(ctx, m.oauth)
	if err != nil {
		return nil, Interactive, fmt.Errorf("authorize: %w", err)
	}
	if err := m.store.Save(fresh); err != nil {
		return nil, Interactive, err
	}
	m.log.Info("authorization complete, token saved")
	return fresh, Interactive, nil
}

// Client returns an HTTP client authorized with a valid token.
func (m *Manager) Client(ctx context.Context) (*http.Client, error) {
	tok, variant, err := m.Token(ctx)
	if err != nil {
		return nil, err
	}
	m.log.Debug("using token", zap.Stringer("variant", variant))
	return m.oauth.Client(ctx, tok), nil
}
