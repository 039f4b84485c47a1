package social

import (
	"context"
	"errors"
	"slices"
	"strings"
	"unicode/utf8"

	"vitamora/internal/models"
)

const maxCommentLen = 10000

type threadState struct {
	comments []*models.Comment
	count    int
}

// CommentThread is one post's comment list and visible comment count.
type CommentThread struct {
	postID   uint
	session  Session
	store    CommentStore
	notifier Notifier
	cell     *Cell[threadState]
}

// NewCommentThread returns an empty thread. A nil notifier logs.
func NewCommentThread(postID uint, session Session, store CommentStore, notifier Notifier) *CommentThread {
	return &CommentThread{
		postID:   postID,
		session:  session,
		store:    store,
		notifier: orLogNotifier(notifier),
		cell:     NewCell("comment", threadState{}),
	}
}

// ApplyCount sets the visible count from the post's stored counter. Ignored
// while a submit or remove is in flight.
func (t *CommentThread) ApplyCount(count int) {
	_ = t.cell.Update(func(s threadState) threadState {
		s.count = max(count, 0)
		return s
	})
}

// Load fetches the comments, oldest first. The visible count becomes their number.
func (t *CommentThread) Load(ctx context.Context) ([]*models.Comment, error) {
	if t.cell.Disposed() {
		return nil, ErrDisposed
	}
	comments, err := t.store.ListComments(ctx, t.postID)
	if err != nil {
		if t.cell.Disposed() {
			return nil, nil
		}
		err = remoteError(err)
		t.notifier.Notify(LevelError, "Could not load comments: "+message(err))
		return nil, err
	}
	if err := t.cell.Update(func(threadState) threadState {
		return threadState{comments: comments, count: len(comments)}
	}); err != nil {
		if errors.Is(err, ErrDisposed) {
			return nil, nil
		}
		return nil, err
	}
	return slices.Clone(comments), nil
}

// Submit posts text as a new comment. Empty text is rejected before any
// network call. The count goes up at once and back down if the write fails.
func (t *CommentThread) Submit(ctx context.Context, text string) (*models.Comment, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		return nil, models.NewValidationError("Comment cannot be empty")
	}
	if utf8.RuneCountInString(content) > maxCommentLen {
		return nil, models.NewValidationError("Comment is too long")
	}
	if t.session.UserID() == 0 {
		return nil, models.NewAuthenticationRequiredError("Sign in to comment")
	}

	var (
		created *models.Comment
		remote  bool
	)
	_, err := t.cell.Speculate(ctx,
		func(s threadState) (threadState, error) {
			s.count++
			return s, nil
		},
		func(ctx context.Context, next threadState) (threadState, error) {
			remote = true
			c, err := t.store.CreateComment(ctx, t.postID, content)
			if err != nil {
				return next, err
			}
			created = c
			if !slices.ContainsFunc(next.comments, func(x *models.Comment) bool { return x.ID == c.ID }) {
				next.comments = append(slices.Clip(next.comments), c)
			}
			return next, nil
		},
	)
	if err := t.settle("Could not add comment", err, remote); err != nil {
		return nil, err
	}
	return created, nil
}

// Remove deletes one of the session user's comments. Comments of other users
// are refused locally and the list is left as it was.
func (t *CommentThread) Remove(ctx context.Context, commentID uint) error {
	userID := t.session.UserID()
	if userID == 0 {
		return models.NewAuthenticationRequiredError("Sign in to delete comments")
	}

	remote := false
	_, err := t.cell.Speculate(ctx,
		func(s threadState) (threadState, error) {
			i := slices.IndexFunc(s.comments, func(c *models.Comment) bool { return c.ID == commentID })
			if i < 0 {
				return s, models.NewNotFoundError("Comment", commentID)
			}
			if s.comments[i].UserID != userID {
				return s, models.NewUnauthorizedError("You can only delete your own comments")
			}
			s.comments = slices.Delete(slices.Clone(s.comments), i, i+1)
			s.count = max(s.count-1, 0)
			return s, nil
		},
		func(ctx context.Context, next threadState) (threadState, error) {
			remote = true
			return next, t.store.DeleteComment(ctx, t.postID, commentID)
		},
	)
	return t.settle("Could not delete comment", err, remote)
}

// Comments returns a copy of the loaded list.
func (t *CommentThread) Comments() []*models.Comment {
	s, _ := t.cell.Get()
	return slices.Clone(s.comments)
}

// Count is the visible comment count, including in-flight changes.
func (t *CommentThread) Count() int {
	s, _ := t.cell.Get()
	return s.count
}

// Close discards the thread. In-flight writes finish without effect.
func (t *CommentThread) Close() {
	t.cell.Dispose()
}

// settle turns a speculation error into the caller's result. Refusals by
// the local checks pass through; store failures are reported to the user.
func (t *CommentThread) settle(prefix string, err error, remote bool) error {
	switch {
	case err == nil, errors.Is(err, ErrDiscarded):
		return nil
	case !remote:
		return err
	}
	err = remoteError(err)
	t.notifier.Notify(LevelError, prefix+": "+message(err))
	return err
}
