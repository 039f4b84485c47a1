package repository

import (
	"context"

	"vitamora/internal/cache"
	"vitamora/internal/models"
	"vitamora/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository owns the (post, user) like relation and keeps likes_count in step with it.
type LikeRepository interface {
	Exists(ctx context.Context, postID, userID uint) (bool, error)
	LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error)
	// SetLiked converges the relation to the wanted state. changed is false when
	// the row was already in that state, in which case the counter is untouched.
	SetLiked(ctx context.Context, postID, userID uint, liked bool) (changed bool, likesCount int, err error)
}

type likeRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewLikeRepository creates a new like repository
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db, log: observability.NewRepoLogger("social_likes", nil)}
}

func (r *likeRepository) Exists(ctx context.Context, postID, userID uint) (bool, error) {
	defer observability.TrackQuery("exists", "social_likes")()

	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *likeRepository) LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error) {
	if userID == 0 || len(postIDs) == 0 {
		return nil, nil
	}
	defer observability.TrackQuery("liked_ids", "social_likes")()

	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error
	return ids, err
}

func (r *likeRepository) SetLiked(ctx context.Context, postID, userID uint, liked bool) (bool, int, error) {
	defer observability.TrackQuery("set_liked", "social_likes")()

	var (
		changed bool
		count   int
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var res *gorm.DB
		if liked {
			res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Like{PostID: postID, UserID: userID})
		} else {
			res = tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.Like{})
		}
		if res.Error != nil {
			return res.Error
		}
		changed = res.RowsAffected == 1

		if changed {
			delta := 1
			if !liked {
				delta = -1
			}
			if err := adjustCounter(tx, postID, ColumnLikes, delta); err != nil {
				return err
			}
		}

		var post models.Post
		if err := tx.Select("id", ColumnLikes).First(&post, postID).Error; err != nil {
			return err
		}
		count = post.LikesCount
		return nil
	})
	if err != nil {
		r.log.LogError(ctx, "set_liked", err, map[string]any{"post_id": postID, "user_id": userID, "liked": liked})
		return false, 0, err
	}

	if changed {
		cache.InvalidatePost(ctx, postID)
		fields := map[string]any{"post_id": postID, "user_id": userID, "likes_count": count}
		if liked {
			r.log.LogCreate(ctx, fields)
		} else {
			r.log.LogDelete(ctx, fields)
		}
	}
	return changed, count, nil
}
