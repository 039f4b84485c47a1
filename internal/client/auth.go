package client

import (
	"context"
	"net/http"
	"time"

	"vitamora/internal/models"
	"vitamora/internal/session"
)

// AuthSession is the server's answer to sign-up, sign-in and refresh.
type AuthSession struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresAt    time.Time       `json:"expires_at"`
	UserID       uint            `json:"user_id"`
	Profile      *models.Profile `json:"profile,omitempty"`
}

// SignUpRequest seeds the new account's profile.
type SignUpRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// SignUp creates an account and signs the session in.
func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (*AuthSession, error) {
	var out AuthSession
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", req, &out); err != nil {
		return nil, err
	}
	return &out, c.apply(session.EventSignedIn, &out)
}

// SignIn exchanges credentials for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*AuthSession, error) {
	var out AuthSession
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return nil, err
	}
	return &out, c.apply(session.EventSignedIn, &out)
}

// Refresh rotates the session's tokens.
func (c *Client) Refresh(ctx context.Context) (*AuthSession, error) {
	refresh := c.session.Snapshot().RefreshToken
	if refresh == "" {
		return nil, models.NewAuthenticationRequiredError("No refresh token")
	}
	var out AuthSession
	body := map[string]string{"refresh_token": refresh}
	if err := c.do(ctx, http.MethodPost, "/api/auth/refresh", body, &out); err != nil {
		return nil, err
	}
	return &out, c.apply(session.EventTokenRefreshed, &out)
}

// SignOut revokes the tokens on the server and clears the session. The local
// session is cleared even when the server cannot be reached.
func (c *Client) SignOut(ctx context.Context) error {
	snap := c.session.Snapshot()
	var err error
	if snap.AccessToken != "" {
		err = c.do(ctx, http.MethodPost, "/api/auth/logout",
			map[string]string{"refresh_token": snap.RefreshToken}, nil)
	}
	if applyErr := c.session.Apply(session.AuthEvent{Type: session.EventSignedOut}); applyErr != nil {
		return applyErr
	}
	return err
}

// Restore starts the session from stored tokens and confirms them with the
// server. Empty tokens start an anonymous session.
func (c *Client) Restore(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken == "" {
		return c.session.Apply(session.AuthEvent{Type: session.EventInitialSession})
	}
	// The token has to be in place before the server can be asked about it.
	check := New(c.baseURL, session.Signed(1, accessToken), WithHTTPClient(c.http))
	var who struct {
		UserID uint `json:"user_id"`
	}
	if err := check.do(ctx, http.MethodGet, "/api/session", nil, &who); err != nil {
		if models.IsCode(err, models.CodeAuthenticationRequired) {
			_ = c.session.Apply(session.AuthEvent{Type: session.EventInitialSession})
		}
		return err
	}
	return c.session.Apply(session.AuthEvent{
		Type:         session.EventInitialSession,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		UserID:       who.UserID,
	})
}

func (c *Client) apply(typ session.EventType, s *AuthSession) error {
	return c.session.Apply(session.AuthEvent{
		Type:         typ,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		UserID:       s.UserID,
		ExpiresAt:    s.ExpiresAt,
	})
}
