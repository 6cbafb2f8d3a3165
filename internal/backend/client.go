package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"myswing/internal/config"
	"myswing/internal/swing"
)

// refreshLeeway refreshes an access token shortly before it expires.
const refreshLeeway = 30 * time.Second

// Client talks to the hosted backend: auth under /auth/v1, tables and RPCs
// under /rest/v1, edge functions under /functions/v1 and objects under
// /storage/v1. It holds the current session.
type Client struct {
	http         *resty.Client
	baseURL      string
	anonKey      string
	functionName string
	clock        swing.Clock
	logger       swing.Logger

	mu       sync.Mutex
	session  *swing.Session
	store    swing.SessionStore
	remember bool
}

// NewClient creates a Resty-backed client. store may be nil.
func NewClient(cfg config.BackendConfig, store swing.SessionStore, clock swing.Clock, logger swing.Logger) *Client {
	baseURL := strings.TrimRight(cfg.URL, "/")
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = swing.NewNopLogger()
	}
	if clock == nil {
		clock = swing.RealClock{}
	}
	fn := cfg.FunctionName
	if fn == "" {
		fn = "analyze-swing"
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("apikey", cfg.AnonKey).
			SetHeader("User-Agent", "myswing/1.0").
			SetTimeout(timeout),
		baseURL:      baseURL,
		anonKey:      cfg.AnonKey,
		functionName: fn,
		clock:        clock,
		logger:       logger,
		store:        store,
	}
}

// BaseURL returns the backend URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Session returns the current session, or nil when signed out.
func (c *Client) Session() *swing.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// AccessToken returns the bearer token for the current session, falling
// back to the anon key.
func (c *Client) AccessToken() string {
	if s := c.Session(); s != nil {
		return s.AccessToken
	}
	return c.anonKey
}

// SetRemember controls whether new sessions are persisted to the store.
func (c *Client) SetRemember(remember bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remember = remember
}

// Restore loads a remembered session from the store. It reports whether one
// was found.
func (c *Client) Restore() (bool, error) {
	if c.store == nil {
		return false, nil
	}
	s, err := c.store.Load()
	if err != nil {
		return false, fmt.Errorf("restoring session: %w", err)
	}
	if s == nil {
		return false, nil
	}
	c.mu.Lock()
	c.session = s
	c.remember = true
	c.mu.Unlock()
	c.logger.Debug("session restored", "user_id", s.User.ID)
	return true, nil
}

func (c *Client) setSession(s *swing.Session) error {
	c.mu.Lock()
	c.session = s
	persist := c.remember && c.store != nil
	c.mu.Unlock()
	if !persist {
		return nil
	}
	if err := c.store.Save(s); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// request returns a request carrying the caller's bearer token, refreshing
// the session first when it is about to expire.
func (c *Client) request(ctx context.Context) *resty.Request {
	if s := c.Session(); s != nil && s.RefreshToken != "" && s.Expired(c.clock.Now().Add(refreshLeeway)) {
		if _, err := c.Refresh(ctx, s.RefreshToken); err != nil {
			c.logger.Warn("session refresh failed", "error", err)
		}
	}
	return c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.AccessToken())
}

// apiError turns a non-2xx response into an error whose text carries the
// status code and the server's message for classification.
func apiError(op string, resp *resty.Response) error {
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode(), errorMessage(resp.Body()))
}

// errorMessage extracts the human message from the backend's error bodies.
func errorMessage(body []byte) string {
	var e struct {
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		for _, s := range []string{e.Message, e.Msg, e.ErrorDescription, e.Error} {
			if s != "" {
				return s
			}
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
