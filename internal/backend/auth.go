package backend

import (
	"context"
	"fmt"
	"time"

	"myswing/internal/swing"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int64      `json:"expires_in"`
	ExpiresAt    int64      `json:"expires_at"`
	User         swing.User `json:"user"`
}

func (c *Client) toSession(t *tokenResponse) *swing.Session {
	s := &swing.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		User:         t.User,
	}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0).UTC()
	case t.ExpiresIn > 0:
		s.ExpiresAt = c.clock.Now().Add(time.Duration(t.ExpiresIn) * time.Second).UTC()
	}
	return s
}

// SignUp creates an account. When email confirmation is required the
// backend returns no token and SignUp returns a nil session.
func (c *Client) SignUp(ctx context.Context, email, password string) (*swing.Session, error) {
	var out tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.anonKey).
		SetBody(credentials{Email: email, Password: password}).
		SetResult(&out).
		Post("/auth/v1/signup")
	if err != nil {
		return nil, fmt.Errorf("sign up request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError("sign up", resp)
	}
	if out.AccessToken == "" {
		c.logger.Info("sign up pending confirmation", "email", email)
		return nil, nil
	}
	s := c.toSession(&out)
	if err := c.setSession(s); err != nil {
		return nil, err
	}
	c.logger.Info("signed up", "user_id", s.User.ID)
	return s, nil
}

// SignIn authenticates with email and password.
func (c *Client) SignIn(ctx context.Context, email, password string) (*swing.Session, error) {
	var out tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.anonKey).
		SetQueryParam("grant_type", "password").
		SetBody(credentials{Email: email, Password: password}).
		SetResult(&out).
		Post("/auth/v1/token")
	if err != nil {
		return nil, fmt.Errorf("sign in request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError("sign in", resp)
	}
	s := c.toSession(&out)
	if err := c.setSession(s); err != nil {
		return nil, err
	}
	c.logger.Info("signed in", "user_id", s.User.ID)
	return s, nil
}

// Refresh exchanges a refresh token for a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*swing.Session, error) {
	var out tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.anonKey).
		SetQueryParam("grant_type", "refresh_token").
		SetBody(map[string]string{"refresh_token": refreshToken}).
		SetResult(&out).
		Post("/auth/v1/token")
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError("refresh session", resp)
	}
	s := c.toSession(&out)
	if err := c.setSession(s); err != nil {
		return nil, err
	}
	c.logger.Debug("session refreshed", "user_id", s.User.ID)
	return s, nil
}

// SignOut revokes the session server-side and forgets it locally. The local
// session is dropped even when the server call fails.
func (c *Client) SignOut(ctx context.Context) error {
	s := c.Session()

	c.mu.Lock()
	c.session = nil
	c.remember = false
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Clear(); err != nil {
			return fmt.Errorf("clearing saved session: %w", err)
		}
	}
	if s == nil {
		return nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+s.AccessToken).
		Post("/auth/v1/logout")
	if err != nil {
		return fmt.Errorf("sign out request failed: %w", err)
	}
	if resp.IsError() {
		return apiError("sign out", resp)
	}
	c.logger.Info("signed out", "user_id", s.User.ID)
	return nil
}

var _ swing.AuthService = (*Client)(nil)
