package repository

import (
	"context"

	"vitamora/internal/cache"
	"vitamora/internal/models"
	"vitamora/internal/observability"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error)
	Delete(ctx context.Context, id uint) error
}

type commentRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db, log: observability.NewRepoLogger("social_comments", nil)}
}

// Create inserts the comment and bumps comments_count in one transaction.
// A missing post rolls back the insert and returns gorm.ErrRecordNotFound.
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	defer observability.TrackQuery("create", "social_comments")()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		return adjustCounter(tx, comment.PostID, ColumnComments, 1)
	})
	if err != nil {
		comment.ID = 0
		return err
	}
	cache.InvalidatePost(ctx, comment.PostID)
	r.log.LogCreate(ctx, map[string]any{"comment_id": comment.ID, "post_id": comment.PostID})
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("Author").First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListByPost returns a post's comments oldest first.
func (r *commentRepository) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	defer observability.TrackQuery("list", "social_comments")()

	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	defer observability.TrackQuery("delete", "social_comments")()

	var postID uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := tx.Select("id", "post_id").First(&comment, id).Error; err != nil {
			return err
		}
		postID = comment.PostID
		if err := tx.Delete(&models.Comment{}, id).Error; err != nil {
			return err
		}
		err := adjustCounter(tx, postID, ColumnComments, -1)
		if IsNotFound(err) {
			// Orphaned comment; nothing to decrement.
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	cache.InvalidatePost(ctx, postID)
	r.log.LogDelete(ctx, map[string]any{"comment_id": id, "post_id": postID})
	return nil
}
