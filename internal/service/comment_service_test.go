package service

import (
	"context"
	"strings"
	"testing"

	"vitamora/internal/models"
	"vitamora/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentService_CreateComment_Validation(t *testing.T) {
	t.Parallel()

	postRepo := noopPostRepo()
	postRepo.getByIDFn = func(_ context.Context, _ uint) (*models.Post, error) {
		t.Error("store must not be reached for invalid input")
		return nil, errStore
	}
	svc := NewCommentService(noopCommentRepo(), postRepo, nil)
	ctx := context.Background()

	t.Run("empty content", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreateComment(ctx, CreateCommentInput{UserID: 1, PostID: 1})
		assertValidationError(t, err)
	})

	t.Run("whitespace only", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreateComment(ctx, CreateCommentInput{UserID: 1, PostID: 1, Content: " \n\t "})
		assertValidationError(t, err)
	})

	t.Run("content too long", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreateComment(ctx, CreateCommentInput{
			UserID:  1,
			PostID:  1,
			Content: strings.Repeat("x", 10001),
		})
		assertValidationError(t, err)
	})

	t.Run("anonymous", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreateComment(ctx, CreateCommentInput{PostID: 1, Content: "hi"})
		assertCode(t, err, models.CodeAuthenticationRequired)
	})
}

func TestCommentService_CreateComment_MissingPost(t *testing.T) {
	t.Parallel()
	postRepo := noopPostRepo()
	postRepo.getByIDFn = func(_ context.Context, _ uint) (*models.Post, error) { return nil, errNotFound }

	_, err := NewCommentService(noopCommentRepo(), postRepo, nil).
		CreateComment(context.Background(), CreateCommentInput{UserID: 1, PostID: 99, Content: "hi"})
	assertCode(t, err, models.CodeNotFound)
}

func TestCommentService_CreateComment_Success(t *testing.T) {
	t.Parallel()

	commentRepo := noopCommentRepo()
	commentRepo.createFn = func(_ context.Context, c *models.Comment) error {
		assert.Equal(t, "hello", c.Content, "content is stored trimmed")
		c.ID = 42
		return nil
	}
	commentRepo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
		return &models.Comment{ID: id, Content: "hello", UserID: 1, PostID: 1, Author: &models.Profile{ID: 1}}, nil
	}
	events := &recordingPublisher{}

	postRepo := noopPostRepo()
	postRepo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, AuthorID: 2, CommentsCount: 6, LikesCount: 9}, nil
	}

	svc := NewCommentService(commentRepo, postRepo, events)
	comment, err := svc.CreateComment(context.Background(), CreateCommentInput{
		UserID:  1,
		PostID:  1,
		Content: "  hello ",
	})
	require.NoError(t, err)
	assert.Equal(t, uint(42), comment.ID)
	require.NotNil(t, comment.Author)

	changes := events.all()
	require.Len(t, changes, 2)
	assert.Equal(t, models.TableComments, changes[0].Table)
	assert.Equal(t, realtime.EventInsert, changes[0].Type)
	assert.Equal(t, uint(42), changes[0].RecordID())
	assert.NotContains(t, changes[0].Record, "author")

	assert.Equal(t, models.TablePosts, changes[1].Table)
	assert.Equal(t, realtime.EventUpdate, changes[1].Type)
	assert.Equal(t, map[string]any{"id": uint(1), "comments_count": 6}, changes[1].Record,
		"only the counter is announced")
}

func TestCommentService_CommentCountUpdate(t *testing.T) {
	t.Parallel()

	t.Run("delete announces the new count", func(t *testing.T) {
		t.Parallel()
		commentRepo := noopCommentRepo()
		commentRepo.getByIDFn = func(_ context.Context, _ uint) (*models.Comment, error) {
			return &models.Comment{ID: 5, UserID: 10, PostID: 3}, nil
		}
		postRepo := noopPostRepo()
		postRepo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
			return &models.Post{ID: id, CommentsCount: 0}, nil
		}
		events := &recordingPublisher{}
		_, err := NewCommentService(commentRepo, postRepo, events).
			DeleteComment(context.Background(), DeleteCommentInput{UserID: 10, CommentID: 5})
		require.NoError(t, err)

		changes := events.all()
		require.Len(t, changes, 2)
		update := changes[1]
		assert.Equal(t, models.TablePosts, update.Table)
		assert.Equal(t, realtime.EventUpdate, update.Type)
		assert.Equal(t, uint(3), update.RecordID())
		assert.Contains(t, update.Record, "comments_count")
		assert.Zero(t, update.RecordUint("comments_count"))
	})

	t.Run("unreadable post skips the update", func(t *testing.T) {
		t.Parallel()
		commentRepo := noopCommentRepo()
		commentRepo.getByIDFn = func(_ context.Context, _ uint) (*models.Comment, error) {
			return &models.Comment{ID: 5, UserID: 10, PostID: 3}, nil
		}
		postRepo := noopPostRepo()
		postRepo.getByIDFn = func(_ context.Context, _ uint) (*models.Post, error) { return nil, errStore }
		events := &recordingPublisher{}
		_, err := NewCommentService(commentRepo, postRepo, events).
			DeleteComment(context.Background(), DeleteCommentInput{UserID: 10, CommentID: 5})
		require.NoError(t, err, "the delete itself succeeded")
		require.Len(t, events.all(), 1)
		assert.Equal(t, models.TableComments, events.all()[0].Table)
	})
}

func TestCommentService_DeleteComment_Ownership(t *testing.T) {
	t.Parallel()

	t.Run("non-owner cannot delete", func(t *testing.T) {
		t.Parallel()
		commentRepo := noopCommentRepo()
		commentRepo.getByIDFn = func(_ context.Context, _ uint) (*models.Comment, error) {
			return &models.Comment{ID: 1, UserID: 10}, nil
		}
		commentRepo.deleteFn = func(_ context.Context, _ uint) error {
			t.Error("delete must not run for a non-owner")
			return nil
		}
		events := &recordingPublisher{}
		svc := NewCommentService(commentRepo, noopPostRepo(), events)
		_, err := svc.DeleteComment(context.Background(), DeleteCommentInput{UserID: 1, CommentID: 1})
		assertUnauthorizedError(t, err)
		assert.Empty(t, events.all())
	})

	t.Run("owner deletes", func(t *testing.T) {
		t.Parallel()
		deleted := false
		commentRepo := noopCommentRepo()
		commentRepo.getByIDFn = func(_ context.Context, _ uint) (*models.Comment, error) {
			return &models.Comment{ID: 5, UserID: 10, PostID: 3}, nil
		}
		commentRepo.deleteFn = func(_ context.Context, id uint) error {
			deleted = id == 5
			return nil
		}
		events := &recordingPublisher{}
		svc := NewCommentService(commentRepo, noopPostRepo(), events)
		_, err := svc.DeleteComment(context.Background(), DeleteCommentInput{UserID: 10, CommentID: 5})
		require.NoError(t, err)
		assert.True(t, deleted)
		require.Len(t, events.all(), 2)
		assert.Equal(t, realtime.EventDelete, events.all()[0].Type)
		assert.Equal(t, uint(3), events.all()[0].RecordUint("post_id"))
	})

	t.Run("comment of another post", func(t *testing.T) {
		t.Parallel()
		commentRepo := noopCommentRepo()
		commentRepo.getByIDFn = func(_ context.Context, _ uint) (*models.Comment, error) {
			return &models.Comment{ID: 5, UserID: 10, PostID: 3}, nil
		}
		commentRepo.deleteFn = func(context.Context, uint) error {
			t.Error("delete must not run")
			return nil
		}
		_, err := NewCommentService(commentRepo, noopPostRepo(), nil).
			DeleteComment(context.Background(), DeleteCommentInput{UserID: 10, PostID: 4, CommentID: 5})
		assertCode(t, err, models.CodeNotFound)
	})

	t.Run("store failure is remote error", func(t *testing.T) {
		t.Parallel()
		commentRepo := noopCommentRepo()
		commentRepo.getByIDFn = func(_ context.Context, _ uint) (*models.Comment, error) { return nil, errStore }
		_, err := NewCommentService(commentRepo, noopPostRepo(), nil).
			DeleteComment(context.Background(), DeleteCommentInput{UserID: 1, CommentID: 1})
		assertCode(t, err, models.CodeRemote)
	})
}
