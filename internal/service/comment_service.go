package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"vitamora/internal/models"
	"vitamora/internal/realtime"
	"vitamora/internal/repository"
)

const maxCommentLen = 10000

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	events      realtime.Publisher
}

type CreateCommentInput struct {
	UserID  uint
	PostID  uint
	Content string
}

// DeleteCommentInput names the comment to delete. A non-zero PostID must match
// the comment's post.
type DeleteCommentInput struct {
	UserID    uint
	PostID    uint
	CommentID uint
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	events realtime.Publisher,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		events:      events,
	}
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if utf8.RuneCountInString(content) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 10000 characters)")
	}
	if in.UserID == 0 {
		return nil, models.NewAuthenticationRequiredError("Sign in to comment")
	}
	if _, err := s.postRepo.GetByID(ctx, in.PostID); err != nil {
		return nil, repository.Classify(err, "Post", in.PostID)
	}

	comment := &models.Comment{
		Content: content,
		UserID:  in.UserID,
		PostID:  in.PostID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, repository.Classify(err, "Post", in.PostID)
	}
	publish(ctx, s.events, models.TableComments, realtime.EventInsert, commentRecord(comment), nil)
	s.publishCommentCount(ctx, in.PostID)

	stored, err := s.commentRepo.GetByID(ctx, comment.ID)
	if err != nil {
		return comment, nil
	}
	return stored, nil
}

// ListComments returns a post's comments oldest first.
func (s *CommentService) ListComments(ctx context.Context, postID uint) ([]*models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return nil, repository.Classify(err, "Post", postID)
	}
	comments, err := s.commentRepo.ListByPost(ctx, postID)
	if err != nil {
		return nil, repository.Classify(err, "Comment", postID)
	}
	return comments, nil
}

// DeleteComment removes a comment. Only its author may do so.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) (*models.Comment, error) {
	if in.UserID == 0 {
		return nil, models.NewAuthenticationRequiredError("Sign in to delete comments")
	}
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, repository.Classify(err, "Comment", in.CommentID)
	}
	if in.PostID != 0 && comment.PostID != in.PostID {
		return nil, models.NewNotFoundError("Comment", in.CommentID)
	}
	if comment.UserID != in.UserID {
		return nil, models.NewUnauthorizedError("You can only delete your own comments")
	}

	if err := s.commentRepo.Delete(ctx, in.CommentID); err != nil {
		return nil, repository.Classify(err, "Comment", in.CommentID)
	}
	publish(ctx, s.events, models.TableComments, realtime.EventDelete,
		map[string]any{"id": comment.ID, "post_id": comment.PostID}, commentRecord(comment))
	s.publishCommentCount(ctx, comment.PostID)
	return comment, nil
}

// publishCommentCount announces a post's stored comment count after the
// repository adjusted it. Only the counter column is sent.
func (s *CommentService) publishCommentCount(ctx context.Context, postID uint) {
	if s.events == nil {
		return
	}
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		slog.WarnContext(ctx, "comment count not published", "post_id", postID, "error", err)
		return
	}
	publish(ctx, s.events, models.TablePosts, realtime.EventUpdate,
		map[string]any{"id": postID, "comments_count": post.CommentsCount}, nil)
}
