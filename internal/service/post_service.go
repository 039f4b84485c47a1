package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"vitamora/internal/models"
	"vitamora/internal/observability"
	"vitamora/internal/realtime"
	"vitamora/internal/repository"
	"vitamora/internal/storage"

	"go.opentelemetry.io/otel/attribute"
)

const (
	maxPostContentLen = 5000
	defaultFeedLimit  = 20
	maxFeedLimit      = 100
)

type PostService struct {
	postRepo    repository.PostRepository
	likeRepo    repository.LikeRepository
	profileRepo repository.ProfileRepository
	uploader    *storage.Uploader
	events      realtime.Publisher
}

type CreatePostInput struct {
	UserID           uint
	Content          string
	Image            []byte
	ImageContentType string
}

type ListFeedInput struct {
	Limit    int
	Offset   int
	ViewerID uint
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

type SetLikeInput struct {
	UserID uint
	PostID uint
	Liked  bool
}

// LikeState is the authoritative result of a like write.
type LikeState struct {
	PostID     uint `json:"post_id"`
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
	Changed    bool `json:"changed"`
}

// NewPostService creates a PostService. uploader and events may be nil.
func NewPostService(
	postRepo repository.PostRepository,
	likeRepo repository.LikeRepository,
	profileRepo repository.ProfileRepository,
	uploader *storage.Uploader,
	events realtime.Publisher,
) *PostService {
	return &PostService{
		postRepo:    postRepo,
		likeRepo:    likeRepo,
		profileRepo: profileRepo,
		uploader:    uploader,
		events:      events,
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if in.UserID == 0 {
		return nil, models.NewAuthenticationRequiredError("Sign in to publish")
	}
	content := strings.TrimSpace(in.Content)
	if content == "" && len(in.Image) == 0 {
		return nil, models.NewValidationError("Content or image is required")
	}
	if utf8.RuneCountInString(content) > maxPostContentLen {
		return nil, models.NewValidationError("Content too long (max 5000 characters)")
	}

	post := &models.Post{AuthorID: in.UserID, Content: content}
	if len(in.Image) > 0 {
		if s.uploader == nil {
			return nil, models.NewValidationError("Image uploads are disabled")
		}
		res, err := s.uploader.UploadImage(ctx, storage.UploadInput{
			UserID:      in.UserID,
			Bucket:      storage.BucketSocialImages,
			Folder:      storage.PostFolder(in.UserID),
			Content:     in.Image,
			ContentType: in.ImageContentType,
		})
		if err != nil {
			return nil, err
		}
		post.ImageURL = res.URL
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, repository.Classify(err, "Post", 0)
	}
	publish(ctx, s.events, models.TablePosts, realtime.EventInsert, postRecord(post), nil)

	created, err := s.postRepo.GetByID(ctx, post.ID)
	if err != nil {
		return post, nil
	}
	return created, nil
}

// ListFeed returns posts newest first with Liked set for the viewer.
func (s *PostService) ListFeed(ctx context.Context, in ListFeedInput) ([]*models.Post, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	limit = min(limit, maxFeedLimit)
	offset := max(in.Offset, 0)

	posts, err := s.postRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, repository.Classify(err, "Feed", offset)
	}
	if err := s.markLiked(ctx, in.ViewerID, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *PostService) GetPost(ctx context.Context, postID, viewerID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, repository.Classify(err, "Post", postID)
	}
	if err := s.markLiked(ctx, viewerID, []*models.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) markLiked(ctx context.Context, viewerID uint, posts []*models.Post) error {
	if viewerID == 0 || len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	liked, err := s.likeRepo.LikedPostIDs(ctx, viewerID, ids)
	if err != nil {
		return repository.Classify(err, "Like", viewerID)
	}
	set := make(map[uint]struct{}, len(liked))
	for _, id := range liked {
		set[id] = struct{}{}
	}
	for _, p := range posts {
		_, p.Liked = set[p.ID]
	}
	return nil
}

// DeletePost removes a post. Only its author or an admin may do so.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	if in.UserID == 0 {
		return models.NewAuthenticationRequiredError("Sign in to delete posts")
	}
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return repository.Classify(err, "Post", in.PostID)
	}
	if post.AuthorID != in.UserID {
		admin, err := s.isAdmin(ctx, in.UserID)
		if err != nil {
			return err
		}
		if !admin {
			return models.NewUnauthorizedError("You can only delete your own posts")
		}
	}
	if err := s.postRepo.Delete(ctx, in.PostID); err != nil {
		return repository.Classify(err, "Post", in.PostID)
	}
	rec := postRecord(post)
	publish(ctx, s.events, models.TablePosts, realtime.EventDelete, map[string]any{"id": post.ID}, rec)
	return nil
}

// SetLike converges the viewer's like on a post and returns the stored count.
// Repeating the same call is a no-op.
func (s *PostService) SetLike(ctx context.Context, in SetLikeInput) (*LikeState, error) {
	ctx, finish := observability.StartSpan(ctx, "service", "SetLike",
		attribute.Int64("post.id", int64(in.PostID)),
		attribute.Bool("like.wanted", in.Liked),
	)
	var err error
	defer func() { finish(err) }()

	if in.UserID == 0 {
		err = models.NewAuthenticationRequiredError("Sign in to like posts")
		return nil, err
	}
	changed, count, err := s.likeRepo.SetLiked(ctx, in.PostID, in.UserID, in.Liked)
	if err != nil {
		err = repository.Classify(err, "Post", in.PostID)
		return nil, err
	}

	if changed {
		likeRec := map[string]any{"post_id": in.PostID, "user_id": in.UserID}
		if in.Liked {
			publish(ctx, s.events, models.TableLikes, realtime.EventInsert, likeRec, nil)
		} else {
			publish(ctx, s.events, models.TableLikes, realtime.EventDelete, likeRec, likeRec)
		}
		publish(ctx, s.events, models.TablePosts, realtime.EventUpdate,
			map[string]any{"id": in.PostID, "likes_count": count}, nil)
	}
	return &LikeState{PostID: in.PostID, Liked: in.Liked, LikesCount: count, Changed: changed}, nil
}

// IsLiked reports whether userID likes postID. Anonymous viewers like nothing.
func (s *PostService) IsLiked(ctx context.Context, postID, userID uint) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	liked, err := s.likeRepo.Exists(ctx, postID, userID)
	if err != nil {
		return false, repository.Classify(err, "Like", postID)
	}
	return liked, nil
}

// Recount rebuilds a post's counters from its relations. Admin only.
func (s *PostService) Recount(ctx context.Context, userID, postID uint) (*models.Post, error) {
	admin, err := s.isAdmin(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, models.NewUnauthorizedError("Only admins can recount posts")
	}
	post, err := s.postRepo.Recount(ctx, postID)
	if err != nil {
		return nil, repository.Classify(err, "Post", postID)
	}
	publish(ctx, s.events, models.TablePosts, realtime.EventUpdate, postRecord(post), nil)
	return post, nil
}

func (s *PostService) isAdmin(ctx context.Context, userID uint) (bool, error) {
	if userID == 0 || s.profileRepo == nil {
		return false, nil
	}
	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return false, nil
		}
		return false, repository.Classify(err, "Profile", userID)
	}
	return profile.Role == models.RoleAdmin, nil
}
