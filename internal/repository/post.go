package repository

import (
	"context"
	"fmt"

	"vitamora/internal/cache"
	"vitamora/internal/models"
	"vitamora/internal/observability"

	"gorm.io/gorm"
)

// Counter columns on social_posts. Only these may be passed to AdjustCounter.
const (
	ColumnLikes    = "likes_count"
	ColumnComments = "comments_count"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context, limit, offset int) ([]*models.Post, error)
	Delete(ctx context.Context, id uint) error
	AdjustCounter(ctx context.Context, postID uint, column string, delta int) error
	Recount(ctx context.Context, postID uint) (*models.Post, error)
}

type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("social_posts", nil)}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", "social_posts")()

	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		r.log.LogError(ctx, "create", err, map[string]any{"author_id": post.AuthorID})
		return err
	}
	cache.InvalidateFeed(ctx)
	r.log.LogCreate(ctx, map[string]any{"post_id": post.ID, "author_id": post.AuthorID})
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	defer observability.TrackQuery("get", "social_posts")()

	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		return r.db.WithContext(ctx).Preload("Author").First(&post, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// List returns posts newest first with their authors.
func (r *postRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	defer observability.TrackQuery("list", "social_posts")()

	var posts []*models.Post
	err := cache.Aside(ctx, cache.FeedPageKey(ctx, limit, offset), &posts, cache.FeedTTL, func() error {
		return r.db.WithContext(ctx).
			Preload("Author").
			Order("created_at DESC").
			Order("id DESC").
			Limit(limit).
			Offset(offset).
			Find(&posts).Error
	})
	return posts, err
}

// Delete removes a post together with its likes and comments.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	defer observability.TrackQuery("delete", "social_posts")()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	cache.InvalidatePost(ctx, id)
	r.log.LogDelete(ctx, map[string]any{"post_id": id})
	return nil
}

// AdjustCounter applies delta to a counter column in a single UPDATE, so
// concurrent adjustments never overwrite each other. The result is floored at 0.
func (r *postRepository) AdjustCounter(ctx context.Context, postID uint, column string, delta int) error {
	if err := adjustCounter(r.db.WithContext(ctx), postID, column, delta); err != nil {
		return err
	}
	cache.InvalidatePost(ctx, postID)
	return nil
}

// Recount rebuilds both counters from the relation rows.
func (r *postRepository) Recount(ctx context.Context, postID uint) (*models.Post, error) {
	defer observability.TrackQuery("recount", "social_posts")()

	res := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).UpdateColumns(map[string]any{
		ColumnLikes:    gorm.Expr("(SELECT COUNT(*) FROM social_likes WHERE social_likes.post_id = ?)", postID),
		ColumnComments: gorm.Expr("(SELECT COUNT(*) FROM social_comments WHERE social_comments.post_id = ?)", postID),
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	cache.InvalidatePost(ctx, postID)

	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, postID).Error; err != nil {
		return nil, err
	}
	r.log.LogUpdate(ctx, map[string]any{
		"post_id":        postID,
		"likes_count":    post.LikesCount,
		"comments_count": post.CommentsCount,
	})
	return &post, nil
}

// adjustCounter is shared with the like and comment repositories so the
// relation row and its counter change inside one transaction.
func adjustCounter(db *gorm.DB, postID uint, column string, delta int) error {
	if column != ColumnLikes && column != ColumnComments {
		return fmt.Errorf("unknown counter column %q", column)
	}
	if delta == 0 {
		return nil
	}
	defer observability.TrackQuery("adjust_counter", "social_posts")()

	expr := gorm.Expr(fmt.Sprintf("CASE WHEN %[1]s + ? < 0 THEN 0 ELSE %[1]s + ? END", column), delta, delta)
	res := db.Model(&models.Post{}).Where("id = ?", postID).UpdateColumn(column, expr)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	direction := "up"
	if delta < 0 {
		direction = "down"
	}
	observability.CounterAdjustments.WithLabelValues(column, direction).Inc()
	return nil
}
