package models

import "time"

// Table names, shared with realtime change events.
const (
	TablePosts    = "social_posts"
	TableLikes    = "social_likes"
	TableComments = "social_comments"
	TableProfiles = "profiles"
)

// Post is a feed entry. LikesCount and CommentsCount are denormalized caches
// of the relation cardinalities and are only ever changed by server-side expressions.
type Post struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	AuthorID      uint      `gorm:"not null;index" json:"author_id"`
	Content       string    `gorm:"type:text" json:"content"`
	ImageURL      string    `json:"image_url,omitempty"`
	LikesCount    int       `gorm:"not null;default:0" json:"likes_count"`
	CommentsCount int       `gorm:"not null;default:0" json:"comments_count"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Author *Profile `gorm:"foreignKey:AuthorID" json:"author,omitempty"`

	// Liked is viewer-specific and never persisted.
	Liked bool `gorm:"-" json:"liked"`
}

func (Post) TableName() string { return TablePosts }

// Like is the (post, user) relation row behind likes_count.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_social_likes_post_user" json:"post_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_social_likes_post_user;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Like) TableName() string { return TableLikes }

// Comment is owned by UserID; only that user may delete it.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	Author *Profile `gorm:"foreignKey:UserID" json:"author,omitempty"`
}

func (Comment) TableName() string { return TableComments }
