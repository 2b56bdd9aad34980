// Package calendar pushes social events to Google Calendar.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	"github.com/quantumlife/lifectx/internal/config"
	"github.com/quantumlife/lifectx/internal/logging"
)

// CallbackPort is the local port the OAuth redirect lands on
const CallbackPort = 8765

// ErrNoToken is returned when no calendar token has been stored yet
var ErrNoToken = errors.New("calendar not authorized")

// OAuthConfig holds Google Calendar OAuth configuration
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// OAuthConfigFrom builds the OAuth settings from the calendar config section
func OAuthConfigFrom(cfg config.CalendarConfig) OAuthConfig {
	return OAuthConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  fmt.Sprintf("http://localhost:%d/callback", CallbackPort),
		Scopes:       []string{calendar.CalendarEventsScope},
	}
}

// OAuthClient handles OAuth2 authentication for Google Calendar
type OAuthClient struct {
	config *oauth2.Config
}

// NewOAuthClient creates a new OAuth client
func NewOAuthClient(cfg OAuthConfig) *OAuthClient {
	return &OAuthClient{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     google.Endpoint,
		},
	}
}

// AuthURL returns the URL for user authorization
func (c *OAuthClient) AuthURL(state string) string {
	return c.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange exchanges the authorization code for tokens
func (c *OAuthClient) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return c.config.Exchange(ctx, code)
}

// HTTPClient returns a client that refreshes token as needed
func (c *OAuthClient) HTTPClient(ctx context.Context, token *oauth2.Token) *http.Client {
	return c.config.Client(ctx, token)
}

// Authorize runs the browser consent flow against a local callback server.
// prompt receives the URL the user has to open.
func (c *OAuthClient) Authorize(ctx context.Context, prompt func(url string)) (*oauth2.Token, error) {
	state := fmt.Sprintf("lifectx-calendar-%d", time.Now().UnixNano())

	server := NewCallbackServer()
	if err := server.Start(CallbackPort); err != nil {
		return nil, fmt.Errorf("start callback server: %w", err)
	}
	defer server.Stop(context.Background())

	prompt(c.AuthURL(state))

	code, err := server.WaitForCode(ctx, 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("authorization failed: %w", err)
	}

	token, err := c.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return token, nil
}

// CallbackServer receives the OAuth redirect locally
type CallbackServer struct {
	server   *http.Server
	codeChan chan string
	errChan  chan error
}

// NewCallbackServer creates a callback server
func NewCallbackServer() *CallbackServer {
	return &CallbackServer{
		codeChan: make(chan string, 1),
		errChan:  make(chan error, 1),
	}
}

// Start listens on port in the background
func (s *CallbackServer) Start(port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.handleCallback)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.report(err)
		}
	}()
	return nil
}

// WaitForCode blocks until the callback arrives, ctx is done or timeout passes
func (s *CallbackServer) WaitForCode(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case code := <-s.codeChan:
		return code, nil
	case err := <-s.errChan:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", fmt.Errorf("no callback received within %v", timeout)
	}
}

// Stop shuts the server down
func (s *CallbackServer) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		errMsg := r.URL.Query().Get("error")
		if errMsg == "" {
			errMsg = "unknown error"
		}
		s.report(fmt.Errorf("oauth error: %s", errMsg))
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	select {
	case s.codeChan <- code:
	default:
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "Calendar connected. You can close this window.")
}

func (s *CallbackServer) report(err error) {
	select {
	case s.errChan <- err:
	default:
		logging.Warn("dropped oauth callback error: %v", err)
	}
}

// LoadToken reads a stored token from path
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parse token %s: %w", path, err)
	}
	return &token, nil
}

// SaveToken writes token to path, readable only by the owner
func SaveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return err
	}
	return os.Chmod(path, 0600)
}
