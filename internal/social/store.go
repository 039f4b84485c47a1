package social

import (
	"context"

	"vitamora/internal/models"
	"vitamora/internal/service"
)

// Session is the identity the views act as. Zero means anonymous.
type Session interface {
	UserID() uint
}

// PostReader reads posts with their author profiles joined. Liked is set for
// the identity the store is bound to.
type PostReader interface {
	ListPosts(ctx context.Context, limit, offset int) ([]*models.Post, error)
	GetPost(ctx context.Context, postID uint) (*models.Post, error)
}

// ProfileReader fetches a single profile.
type ProfileReader interface {
	GetProfile(ctx context.Context, id uint) (*models.Profile, error)
}

// LikeResult is the authoritative outcome of a like write.
type LikeResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

// LikeStore reads and writes the bound identity's like relation.
type LikeStore interface {
	IsLiked(ctx context.Context, postID uint) (bool, error)
	SetLike(ctx context.Context, postID uint, liked bool) (LikeResult, error)
}

// CommentStore reads and writes comments as the bound identity.
type CommentStore interface {
	ListComments(ctx context.Context, postID uint) ([]*models.Comment, error)
	CreateComment(ctx context.Context, postID uint, content string) (*models.Comment, error)
	DeleteComment(ctx context.Context, postID, commentID uint) error
}

// Store is everything the feed needs from the Data Store.
type Store interface {
	PostReader
	ProfileReader
	LikeStore
	CommentStore
}

// LocalStore serves the views in-process from the data-plane services,
// acting as whoever the session names.
type LocalStore struct {
	posts    *service.PostService
	comments *service.CommentService
	profiles *service.ProfileService
	session  Session
}

func NewLocalStore(
	posts *service.PostService,
	comments *service.CommentService,
	profiles *service.ProfileService,
	session Session,
) *LocalStore {
	return &LocalStore{posts: posts, comments: comments, profiles: profiles, session: session}
}

func (s *LocalStore) ListPosts(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	return s.posts.ListFeed(ctx, service.ListFeedInput{
		Limit:    limit,
		Offset:   offset,
		ViewerID: s.session.UserID(),
	})
}

func (s *LocalStore) GetPost(ctx context.Context, postID uint) (*models.Post, error) {
	return s.posts.GetPost(ctx, postID, s.session.UserID())
}

func (s *LocalStore) GetProfile(ctx context.Context, id uint) (*models.Profile, error) {
	return s.profiles.GetProfile(ctx, id)
}

func (s *LocalStore) IsLiked(ctx context.Context, postID uint) (bool, error) {
	return s.posts.IsLiked(ctx, postID, s.session.UserID())
}

func (s *LocalStore) SetLike(ctx context.Context, postID uint, liked bool) (LikeResult, error) {
	state, err := s.posts.SetLike(ctx, service.SetLikeInput{
		UserID: s.session.UserID(),
		PostID: postID,
		Liked:  liked,
	})
	if err != nil {
		return LikeResult{}, err
	}
	return LikeResult{Liked: state.Liked, LikesCount: state.LikesCount}, nil
}

func (s *LocalStore) ListComments(ctx context.Context, postID uint) ([]*models.Comment, error) {
	return s.comments.ListComments(ctx, postID)
}

func (s *LocalStore) CreateComment(ctx context.Context, postID uint, content string) (*models.Comment, error) {
	return s.comments.CreateComment(ctx, service.CreateCommentInput{
		UserID:  s.session.UserID(),
		PostID:  postID,
		Content: content,
	})
}

func (s *LocalStore) DeleteComment(ctx context.Context, postID, commentID uint) error {
	_, err := s.comments.DeleteComment(ctx, service.DeleteCommentInput{
		UserID:    s.session.UserID(),
		PostID:    postID,
		CommentID: commentID,
	})
	return err
}
