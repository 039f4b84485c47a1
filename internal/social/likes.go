package social

import (
	"context"
	"errors"

	"vitamora/internal/models"
)

// LikeStatus is the state of one LikeSync.
type LikeStatus int

const (
	StatusUnknown LikeStatus = iota
	StatusNotLiked
	StatusLiked
	StatusPending
)

func (s LikeStatus) String() string {
	switch s {
	case StatusNotLiked:
		return "not_liked"
	case StatusLiked:
		return "liked"
	case StatusPending:
		return "pending"
	default:
		return "unknown"
	}
}

// LikeView is what a post shows: whether the viewer likes it and the count.
type LikeView struct {
	Liked        bool
	DisplayCount int
}

// LikeBackend is what a LikeSync reads and writes.
type LikeBackend interface {
	GetPost(ctx context.Context, postID uint) (*models.Post, error)
	LikeStore
}

type likeState struct {
	known bool
	liked bool
	count int
}

func (s likeState) view() LikeView {
	return LikeView{Liked: s.liked, DisplayCount: s.count}
}

// LikeSync keeps one post's like flag and like count for the session user.
// The count is seeded from the post's stored counter and replaced by the
// count the store returns after each write.
type LikeSync struct {
	postID   uint
	session  Session
	store    LikeBackend
	notifier Notifier
	cell     *Cell[likeState]
}

// NewLikeSync returns a LikeSync in the Unknown state. A nil notifier logs.
func NewLikeSync(postID uint, session Session, store LikeBackend, notifier Notifier) *LikeSync {
	return &LikeSync{
		postID:   postID,
		session:  session,
		store:    store,
		notifier: orLogNotifier(notifier),
		cell:     NewCell("like", likeState{}),
	}
}

// Initialize loads the like flag and the post's counter. Anonymous viewers
// never like anything.
func (l *LikeSync) Initialize(ctx context.Context) (LikeView, error) {
	if l.cell.Disposed() {
		return LikeView{}, ErrDisposed
	}
	post, err := l.store.GetPost(ctx, l.postID)
	if err != nil {
		return l.fail("Could not load likes", err)
	}
	liked := false
	if l.session.UserID() != 0 {
		if liked, err = l.store.IsLiked(ctx, l.postID); err != nil {
			return l.fail("Could not load likes", err)
		}
	}

	next := likeState{known: true, liked: liked, count: post.LikesCount}
	if err := l.cell.Update(func(likeState) likeState { return next }); err != nil {
		if errors.Is(err, ErrDisposed) {
			return LikeView{}, nil
		}
		return l.View(), err
	}
	return next.view(), nil
}

// Seed initializes from a post row that already carries Liked for the
// session user. It is a no-op while a toggle is in flight.
func (l *LikeSync) Seed(post *models.Post) {
	liked := post.Liked && l.session.UserID() != 0
	_ = l.cell.Update(func(likeState) likeState {
		return likeState{known: true, liked: liked, count: post.LikesCount}
	})
}

// ApplyCount takes a count pushed by the realtime channel. It is ignored
// before initialization and while a toggle is in flight, since the toggle's
// result carries a newer count.
func (l *LikeSync) ApplyCount(count int) {
	_ = l.cell.Update(func(s likeState) likeState {
		if s.known {
			s.count = max(count, 0)
		}
		return s
	})
}

// Toggle flips the like at once and writes it. On failure the previous view is
// restored and the user notified. Results arriving after Close are dropped.
func (l *LikeSync) Toggle(ctx context.Context) (LikeView, error) {
	if l.session.UserID() == 0 {
		return l.View(), models.NewAuthenticationRequiredError("Sign in to like posts")
	}

	remote := false
	state, err := l.cell.Speculate(ctx,
		func(s likeState) (likeState, error) {
			if !s.known {
				return s, models.NewConflictError("Likes are still loading")
			}
			s.liked = !s.liked
			if s.liked {
				s.count++
			} else if s.count > 0 {
				s.count--
			}
			return s, nil
		},
		func(ctx context.Context, next likeState) (likeState, error) {
			remote = true
			res, err := l.store.SetLike(ctx, l.postID, next.liked)
			if err != nil {
				return next, err
			}
			return likeState{known: true, liked: res.Liked, count: res.LikesCount}, nil
		},
	)
	switch {
	case errors.Is(err, ErrDiscarded):
		return LikeView{}, nil
	case err != nil && !remote:
		return l.View(), err
	case err != nil:
		err = remoteError(err)
		l.notifier.Notify(LevelError, "Could not update like: "+message(err))
		return state.view(), err
	}
	return state.view(), nil
}

// View returns the current flag and count, including an in-flight toggle.
func (l *LikeSync) View() LikeView {
	s, _ := l.cell.Get()
	return s.view()
}

func (l *LikeSync) Status() LikeStatus {
	s, pending := l.cell.Get()
	switch {
	case pending:
		return StatusPending
	case !s.known:
		return StatusUnknown
	case s.liked:
		return StatusLiked
	default:
		return StatusNotLiked
	}
}

// CanToggle is false for anonymous viewers.
func (l *LikeSync) CanToggle() bool {
	return l.session.UserID() != 0 && !l.cell.Disposed()
}

// Close discards the state. An in-flight toggle finishes without effect.
func (l *LikeSync) Close() {
	l.cell.Dispose()
}

func (l *LikeSync) fail(prefix string, err error) (LikeView, error) {
	err = remoteError(err)
	if l.cell.Disposed() {
		return LikeView{}, nil
	}
	l.notifier.Notify(LevelError, prefix+": "+message(err))
	return l.View(), err
}
