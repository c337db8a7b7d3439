package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
)

type memStore struct {
	tok   *oauth2.Token
	saves int
}

func (s *memStore) Load() (*oauth2.Token, error) {
	if s.tok == nil {
		return nil, os.ErrNotExist
	}
	cp := *s.tok
	return &cp, nil
}

func (s *memStore) Save(tok *oauth2.Token) error {
	s.saves++
	s.tok = tok
	return nil
}

type fakeAuthorizer struct {
	tok   *oauth2.Token
	err   error
	calls int
}

func (a *fakeAuthorizer) Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	a.calls++
	return a.tok, a.err
}

// tokenServer serves a token endpoint answering with status and body.
func tokenServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func oauthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.example.com/auth",
			TokenURL: tokenURL,
		},
		Scopes: []string{calendar.CalendarReadonlyScope},
	}
}

func TestManagerCachedToken(t *testing.T) {
	store := &memStore{tok: &oauth2.Token{
		AccessToken:  "cached",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour),
	}}
	authz := &fakeAuthorizer{}

	tok, variant, err := NewManager(oauthConfig("http://unused"), store, authz, nil).Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if variant != Cached || tok.AccessToken != "cached" {
		t.Errorf("Token() = %q (%v), want cached token", tok.AccessToken, variant)
	}
	if store.saves != 0 || authz.calls != 0 {
		t.Errorf("saves = %d, authorize calls = %d, want none", store.saves, authz.calls)
	}
}

func TestManagerRefreshesExpiredToken(t *testing.T) {
	srv := tokenServer(t, http.StatusOK, `{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`)
	store := &memStore{tok: &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(-time.Hour),
	}}
	authz := &fakeAuthorizer{}

	tok, variant, err := NewManager(oauthConfig(srv.URL), store, authz, nil).Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if variant != Refreshed || tok.AccessToken != "fresh" {
		t.Errorf("Token() = %q (%v), want refreshed token", tok.AccessToken, variant)
	}
	if store.saves != 1 || store.tok.AccessToken != "fresh" {
		t.Errorf("refreshed token not persisted: saves=%d tok=%+v", store.saves, store.tok)
	}
	if store.tok.RefreshToken != "refresh" {
		t.Errorf("refresh token lost: %q", store.tok.RefreshToken)
	}
	if authz.calls != 0 {
		t.Error("authorizer should not run when refresh succeeds")
	}
}

func TestManagerRefreshFailureSurfaces(t *testing.T) {
	srv := tokenServer(t, http.StatusBadRequest, `{"error":"invalid_grant"}`)
	store := &memStore{tok: &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "revoked",
		Expiry:       time.Now().Add(-time.Hour),
	}}
	authz := &fakeAuthorizer{}

	if _, _, err := NewManager(oauthConfig(srv.URL), store, authz, nil).Token(context.Background()); err == nil {
		t.Fatal("Token() expected refresh error")
	}
	if store.saves != 0 || authz.calls != 0 {
		t.Errorf("saves = %d, authorize calls = %d, want none", store.saves, authz.calls)
	}
}

func TestManagerInteractiveWhenNoToken(t *testing.T) {
	store := &memStore{}
	authz := &fakeAuthorizer{tok: &oauth2.Token{AccessToken: "new", RefreshToken: "r"}}

	tok, variant, err := NewManager(oauthConfig("http://unused"), store, authz, nil).Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if variant != Interactive || tok.AccessToken != "new" {
		t.Errorf("Token() = %q (%v), want interactive token", tok.AccessToken, variant)
	}
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1", store.saves)
	}
}

func TestManagerInteractiveWhenExpiredWithoutRefresh(t *testing.T) {
	store := &memStore{tok: &oauth2.Token{AccessToken: "stale", Expiry: time.Now().Add(-time.Hour)}}
	authz := &fakeAuthorizer{tok: &oauth2.Token{AccessToken: "new"}}

	_, variant, err := NewManager(oauthConfig("http://unused"), store, authz, nil).Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if variant != Interactive || authz.calls != 1 {
		t.Errorf("variant = %v, authorize calls = %d", variant, authz.calls)
	}
}

func TestManagerAuthorizerFailure(t *testing.T) {
	store := &memStore{}
	authz := &fakeAuthorizer{err: ErrInteractiveUnavailable}

	_, _, err := NewManager(oauthConfig("http://unused"), store, authz, nil).Token(context.Background())
	if !errors.Is(err, ErrInteractiveUnavailable) {
		t.Errorf("Token() error = %v, want ErrInteractiveUnavailable", err)
	}
	if store.saves != 0 {
		t.Error("nothing should be persisted on failure")
	}
}

func TestManagerNoAuthorizer(t *testing.T) {
	_, _, err := NewManager(oauthConfig("http://unused"), &memStore{}, nil, nil).Token(context.Background())
	if !errors.Is(err, ErrInteractiveUnavailable) {
		t.Errorf("Token() error = %v, want ErrInteractiveUnavailable", err)
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	store := FileStore{Path: path}

	if _, err := store.Load(); !os.IsNotExist(err) {
		t.Errorf("Load() on missing file error = %v, want not-exist", err)
	}

	if err := store.Save(&oauth2.Token{AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("token file mode = %o, want 600", perm)
	}

	tok, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if tok.RefreshToken != "r" {
		t.Errorf("Load() refresh token = %q", tok.RefreshToken)
	}

	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}
	if _, err := store.Load(); err == nil {
		t.Error("Load() expected decode error")
	}
}

func TestLoadOAuthConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	secret := `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"s",` +
		`"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token",` +
		`"redirect_uris":["http://localhost"]}}`
	if err := os.WriteFile(path, []byte(secret), 0600); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}

	cfg, err := LoadOAuthConfig(path)
	if err != nil {
		t.Fatalf("LoadOAuthConfig() error = %v", err)
	}
	if cfg.ClientID != "id.apps.googleusercontent.com" {
		t.Errorf("ClientID = %q", cfg.ClientID)
	}
	if len(cfg.Scopes) != 1 || cfg.Scopes[0] != calendar.CalendarReadonlyScope {
		t.Errorf("Scopes = %v, want read-only calendar", cfg.Scopes)
	}

	if _, err := LoadOAuthConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadOAuthConfig() expected error for missing file")
	}
}

func TestLocalServerAuthorizerNotInteractive(t *testing.T) {
	a := &LocalServerAuthorizer{Interactive: func() bool { return false }}

	if _, err := a.Authorize(context.Background(), oauthConfig("http://unused")); !errors.Is(err, ErrInteractiveUnavailable) {
		t.Errorf("Authorize() error = %v, want ErrInteractiveUnavailable", err)
	}
}

func TestLocalServerAuthorizerFlow(t *testing.T) {
	var (
		mu                   sync.Mutex
		gotCode, gotRedirect string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		mu.Lock()
		gotCode = r.Form.Get("code")
		gotRedirect = r.Form.Get("redirect_uri")
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"granted","refresh_token":"keep","token_type":"Bearer","expires_in":3600}`)
	}))
	defer srv.Close()

	var redirect string
	a := &LocalServerAuthorizer{
		Timeout:     5 * time.Second,
		Out:         io.Discard,
		Interactive: func() bool { return true },
		OpenBrowser: func(authURL string) error {
			u, err := url.Parse(authURL)
			if err != nil {
				return err
			}
			q := u.Query()
			if q.Get("access_type") != "offline" {
				t.Errorf("access_type = %q, want offline", q.Get("access_type"))
			}
			redirect = q.Get("redirect_uri")
			resp, err := http.Get(redirect + "?code=abc&state=" + url.QueryEscape(q.Get("state")))
			if err != nil {
				return err
			}
			resp.Body.Close()
			return nil
		},
	}

	tok, err := a.Authorize(context.Background(), oauthConfig(srv.URL))
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if tok.AccessToken != "granted" || tok.RefreshToken != "keep" {
		t.Errorf("Authorize() token = %+v", tok)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotCode != "abc" {
		t.Errorf("exchanged code = %q, want abc", gotCode)
	}
	if gotRedirect != redirect {
		t.Errorf("redirect_uri = %q, want %q", gotRedirect, redirect)
	}
}

func TestLocalServerAuthorizerStateMismatch(t *testing.T) {
	a := &LocalServerAuthorizer{
		Timeout:     5 * time.Second,
		Out:         io.Discard,
		Interactive: func() bool { return true },
		OpenBrowser: func(authURL string) error {
			u, _ := url.Parse(authURL)
			resp, err := http.Get(u.Query().Get("redirect_uri") + "?code=abc&state=forged")
			if err != nil {
				return err
			}
			resp.Body.Close()
			return nil
		},
	}

	if _, err := a.Authorize(context.Background(), oauthConfig("http://unused")); err == nil {
		t.Error("Authorize() expected state mismatch error")
	}
}
