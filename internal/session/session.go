// Package session holds the authenticated identity a client process acts as.
//
// A Context starts out loading, is populated from Auth Service events and is
// cleared on sign-out or once its access token expires. Views read it through
// snapshots and never mutate it.
package session

import (
	"sync"
	"time"

	"vitamora/internal/models"
)

// EventType names an Auth Service state change.
type EventType string

const (
	EventInitialSession EventType = "INITIAL_SESSION"
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
)

// AuthEvent is delivered by the Auth Service. INITIAL_SESSION may carry no
// tokens, which means the process starts anonymous.
type AuthEvent struct {
	Type         EventType
	AccessToken  string
	RefreshToken string
	UserID       uint
	ExpiresAt    time.Time
}

// Snapshot is a read-only copy of the session.
type Snapshot struct {
	AccessToken  string
	RefreshToken string
	UserID       uint
	ExpiresAt    time.Time
	Loading      bool
}

// Authenticated reports whether the snapshot carries a usable identity.
func (s Snapshot) Authenticated() bool {
	return s.UserID != 0 && s.AccessToken != ""
}

// Context is safe for concurrent use.
type Context struct {
	mu        sync.RWMutex
	cur       Snapshot
	now       func() time.Time
	listeners map[int]func(Snapshot)
	nextID    int
}

// New returns a Context in the loading state.
func New() *Context {
	return &Context{
		cur:       Snapshot{Loading: true},
		now:       time.Now,
		listeners: make(map[int]func(Snapshot)),
	}
}

// Signed returns a loaded Context for userID. A zero expiry never expires.
func Signed(userID uint, accessToken string) *Context {
	c := New()
	c.cur = Snapshot{AccessToken: accessToken, UserID: userID}
	return c
}

// Anonymous returns a loaded Context with no identity.
func Anonymous() *Context {
	c := New()
	c.cur = Snapshot{}
	return c
}

// Apply folds an Auth Service event into the session and notifies subscribers.
func (c *Context) Apply(ev AuthEvent) error {
	var next Snapshot
	switch ev.Type {
	case EventSignedOut:
		next = Snapshot{}
	case EventInitialSession:
		if ev.AccessToken == "" {
			next = Snapshot{}
			break
		}
		fallthrough
	case EventSignedIn, EventTokenRefreshed:
		if ev.AccessToken == "" || ev.UserID == 0 {
			return models.NewValidationError("auth event " + string(ev.Type) + " carries no session")
		}
		next = Snapshot{
			AccessToken:  ev.AccessToken,
			RefreshToken: ev.RefreshToken,
			UserID:       ev.UserID,
			ExpiresAt:    ev.ExpiresAt,
		}
	default:
		return models.NewValidationError("unknown auth event " + string(ev.Type))
	}

	c.mu.Lock()
	if ev.Type == EventTokenRefreshed && c.cur.UserID != 0 && c.cur.UserID != ev.UserID {
		c.mu.Unlock()
		return models.NewConflictError("token refresh for a different user")
	}
	c.cur = next
	listeners := c.listenersLocked()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return nil
}

// Snapshot returns the current session, clearing it first if it has expired.
func (c *Context) Snapshot() Snapshot {
	c.mu.RLock()
	cur := c.cur
	expired := !cur.ExpiresAt.IsZero() && !c.now().Before(cur.ExpiresAt)
	c.mu.RUnlock()
	if !expired {
		return cur
	}

	c.mu.Lock()
	// Re-check: a refresh may have landed in between.
	if c.cur.ExpiresAt.IsZero() || c.now().Before(c.cur.ExpiresAt) {
		cur = c.cur
		c.mu.Unlock()
		return cur
	}
	c.cur = Snapshot{}
	listeners := c.listenersLocked()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(Snapshot{})
	}
	return Snapshot{}
}

// UserID is zero when anonymous.
func (c *Context) UserID() uint {
	return c.Snapshot().UserID
}

// AccessToken is empty when anonymous.
func (c *Context) AccessToken() string {
	return c.Snapshot().AccessToken
}

// Subscribe registers fn for every later change. fn runs on the goroutine that
// caused the change and must not call Apply.
func (c *Context) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

func (c *Context) listenersLocked() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(c.listeners))
	for _, fn := range c.listeners {
		out = append(out, fn)
	}
	return out
}
