// Package social keeps client-side views of posts, likes and comments in step
// with the Data Store. Local state changes are applied before the remote write
// and restored exactly if that write fails.
package social

import (
	"context"
	"errors"
	"sync"

	"vitamora/internal/models"
	"vitamora/internal/observability"
)

var (
	// ErrDisposed is returned by operations on a closed view.
	ErrDisposed = errors.New("social: view closed")
	// ErrDiscarded reports that a remote result arrived after the view closed
	// and was dropped.
	ErrDiscarded = errors.New("social: result discarded after close")
)

// Cell holds a value that at most one speculative transition may be changing
// at a time.
type Cell[T any] struct {
	mu       sync.Mutex
	value    T
	pending  bool
	disposed bool
	feature  string
}

// NewCell returns a Cell holding initial. feature labels its metrics.
func NewCell[T any](feature string, initial T) *Cell[T] {
	return &Cell[T]{feature: feature, value: initial}
}

// Get returns the current value and whether a transition is in flight.
func (c *Cell[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.pending
}

// Update replaces the value outside of a speculation.
func (c *Cell[T]) Update(fn func(T) T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	if c.pending {
		return models.NewConflictError("A change is already in progress")
	}
	c.value = fn(c.value)
	return nil
}

// Speculate applies transition at once, then runs confirm with the speculative
// value. When confirm succeeds its result becomes the value; when it fails the
// value from before the transition is restored and confirm's error returned.
//
// A transition error aborts without touching the value. Starting while another
// speculation is in flight fails with CONFLICT. If the Cell is disposed while
// confirm runs, its result is dropped and ErrDiscarded returned.
func (c *Cell[T]) Speculate(
	ctx context.Context,
	transition func(T) (T, error),
	confirm func(ctx context.Context, next T) (T, error),
) (T, error) {
	var zero T

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return zero, ErrDisposed
	}
	if c.pending {
		c.mu.Unlock()
		return zero, models.NewConflictError("A change is already in progress")
	}
	prior := c.value
	next, err := transition(prior)
	if err != nil {
		c.mu.Unlock()
		return prior, err
	}
	c.value = next
	c.pending = true
	c.mu.Unlock()

	result, err := confirm(ctx, next)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = false
	switch {
	case c.disposed:
		observability.SpeculativeTransitions.WithLabelValues(c.feature, "discarded").Inc()
		return zero, ErrDiscarded
	case err != nil:
		c.value = prior
		observability.SpeculativeTransitions.WithLabelValues(c.feature, "reverted").Inc()
		return prior, err
	default:
		c.value = result
		observability.SpeculativeTransitions.WithLabelValues(c.feature, "confirmed").Inc()
		return result, nil
	}
}

// Dispose makes every later call fail and drops in-flight results.
func (c *Cell[T]) Dispose() {
	c.mu.Lock()
	c.disposed = true
	c.mu.Unlock()
}

func (c *Cell[T]) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// remoteError keeps AppErrors as they are and wraps anything else as REMOTE_ERROR.
func remoteError(err error) error {
	if err == nil || models.ErrorCode(err) != "" {
		return err
	}
	return models.NewRemoteError(err.Error(), err)
}

// message is the user-facing text of err.
func message(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
