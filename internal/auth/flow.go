package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/term"

	"github.com/pearcec/courselink/internal/logging"
)

// DefaultAuthTimeout bounds how long the callback server waits.
const DefaultAuthTimeout = 2 * time.Minute

// LocalServerAuthorizer runs the installed-app flow: it prints the consent
// URL, tries to open a browser and waits for the redirect on a loopback
// port chosen by the kernel.
type LocalServerAuthorizer struct {
	Timeout time.Duration
	Out     io.Writer

	// OpenBrowser defaults to the platform launcher.
	OpenBrowser func(url string) error
	// Interactive defaults to checking that stdout is a terminal.
	Interactive func() bool

	Log *zap.Logger
}

// Authorize implements Authorizer.
func (a *LocalServerAuthorizer) Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	if !a.interactive() {
		return nil, ErrInteractiveUnavailable
	}
	log := logging.OrNop(a.Log)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen for callback: %w", err)
	}

	flow := *cfg
	flow.RedirectURL = fmt.Sprintf("http://%s/callback", ln.Addr())

	state, err := newState()
	if err != nil {
		ln.Close()
		return nil, err
	}

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("state") != state:
			http.Error(w, "State mismatch.", http.StatusBadRequest)
			sendErr(errCh, errors.New("state mismatch in callback"))
		case q.Get("error") != "":
			http.Error(w, "Authorization denied.", http.StatusForbidden)
			sendErr(errCh, fmt.Errorf("authorization denied: %s", q.Get("error")))
		case q.Get("code") == "":
			http.Error(w, "Missing code.", http.StatusBadRequest)
			sendErr(errCh, errors.New("no code in callback"))
		default:
			fmt.Fprintf(w, "Authorization successful. You may close this window.")
			select {
			case codeCh <- q.Get("code"):
			default:
			}
		}
	})

	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			sendErr(errCh, err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	authURL := flow.AuthCodeURL(state, oauth2.AccessTypeOffline)
	fmt.Fprintf(a.out(), "\nOpen the following URL in your browser:\n\n%s\n\n", authURL)
	if err := a.openBrowser(authURL); err != nil {
		log.Debug("could not launch browser", zap.Error(err))
	}

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultAuthTimeout
	}

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return nil, err
	case <-time.After(timeout):
		return nil, errors.New("timeout waiting for authorization")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	tok, err := flow.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to exchange code for token: %w", err)
	}
	return tok, nil
}

func (a *LocalServerAuthorizer) interactive() bool {
	if a.Interactive != nil {
		return a.Interactive()
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func (a *LocalServerAuthorizer) out() io.Writer {
	if a.Out != nil {
		return a.Out
	}
	return os.Stdout
}

func (a *LocalServerAuthorizer) openBrowser(url string) error {
	if a.OpenBrowser != nil {
		return a.OpenBrowser(url)
	}
	return launchBrowser(url)
}

func launchBrowser(url string) error {
	tools := map[string]string{
		"linux":  "xdg-open",
		"darwin": "open",
	}
	tool, ok := tools[runtime.GOOS]
	if !ok {
		return fmt.Errorf("no launcher for %s", runtime.GOOS)
	}
	path, err := exec.LookPath(tool)
	if err != nil {
		return err
	}
	return exec.Command(path, url).Start()
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func sendErr(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}
