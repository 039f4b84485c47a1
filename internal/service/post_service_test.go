package service

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"testing"

	"vitamora/internal/models"
	"vitamora/internal/realtime"
	"vitamora/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostService_CreatePost_Validation(t *testing.T) {
	t.Parallel()

	svc := NewPostService(noopPostRepo(), noopLikeRepo(), noopProfileRepo(), nil, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreatePostInput
		code  string
	}{
		{"anonymous", CreatePostInput{Content: "hi"}, models.CodeAuthenticationRequired},
		{"empty", CreatePostInput{UserID: 1, Content: "   "}, models.CodeValidation},
		{"too long", CreatePostInput{UserID: 1, Content: strings.Repeat("a", 5001)}, models.CodeValidation},
		{"image without uploader", CreatePostInput{UserID: 1, Image: []byte{1}}, models.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.CreatePost(ctx, tt.input)
			assertCode(t, err, tt.code)
		})
	}
}

func TestPostService_CreatePost_WithImage(t *testing.T) {
	t.Parallel()

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 3, 3))))

	var stored *models.Post
	postRepo := noopPostRepo()
	postRepo.createFn = func(_ context.Context, p *models.Post) error {
		p.ID = 8
		stored = p
		return nil
	}
	postRepo.getByIDFn = func(_ context.Context, _ uint) (*models.Post, error) { return stored, nil }
	events := &recordingPublisher{}
	uploader := storage.NewUploader(storage.NewLocalStore(t.TempDir(), "http://cdn"), 0)

	svc := NewPostService(postRepo, noopLikeRepo(), noopProfileRepo(), uploader, events)
	post, err := svc.CreatePost(context.Background(), CreatePostInput{UserID: 4, Image: img.Bytes()})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(post.ImageURL, "http://cdn/social_images/posts/4/4-"), post.ImageURL)

	changes := events.all()
	require.Len(t, changes, 1)
	assert.Equal(t, realtime.EventInsert, changes[0].Type)
	assert.Equal(t, uint(4), changes[0].RecordUint("author_id"))
}

func TestPostService_ListFeed_MarksLikedAndClampsLimit(t *testing.T) {
	t.Parallel()

	postRepo := noopPostRepo()
	postRepo.listFn = func(_ context.Context, limit, offset int) ([]*models.Post, error) {
		assert.Equal(t, maxFeedLimit, limit)
		assert.Equal(t, 0, offset)
		return []*models.Post{{ID: 3}, {ID: 2}, {ID: 1}}, nil
	}
	likeRepo := noopLikeRepo()
	likeRepo.likedIDsFn = func(_ context.Context, userID uint, ids []uint) ([]uint, error) {
		assert.Equal(t, uint(7), userID)
		assert.Equal(t, []uint{3, 2, 1}, ids)
		return []uint{2}, nil
	}

	svc := NewPostService(postRepo, likeRepo, noopProfileRepo(), nil, nil)
	posts, err := svc.ListFeed(context.Background(), ListFeedInput{Limit: 1000, Offset: -5, ViewerID: 7})
	require.NoError(t, err)
	assert.False(t, posts[0].Liked)
	assert.True(t, posts[1].Liked)
	assert.False(t, posts[2].Liked)
}

func TestPostService_SetLike(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("anonymous", func(t *testing.T) {
		t.Parallel()
		likeRepo := noopLikeRepo()
		likeRepo.setLikedFn = func(context.Context, uint, uint, bool) (bool, int, error) {
			t.Error("store must not be reached")
			return false, 0, nil
		}
		_, err := NewPostService(noopPostRepo(), likeRepo, noopProfileRepo(), nil, nil).
			SetLike(ctx, SetLikeInput{PostID: 1, Liked: true})
		assertCode(t, err, models.CodeAuthenticationRequired)
	})

	t.Run("changed publishes relation and counter", func(t *testing.T) {
		t.Parallel()
		likeRepo := noopLikeRepo()
		likeRepo.setLikedFn = func(_ context.Context, postID, userID uint, liked bool) (bool, int, error) {
			assert.Equal(t, uint(9), postID)
			assert.Equal(t, uint(2), userID)
			assert.True(t, liked)
			return true, 6, nil
		}
		events := &recordingPublisher{}
		state, err := NewPostService(noopPostRepo(), likeRepo, noopProfileRepo(), nil, events).
			SetLike(ctx, SetLikeInput{UserID: 2, PostID: 9, Liked: true})
		require.NoError(t, err)
		assert.Equal(t, LikeState{PostID: 9, Liked: true, LikesCount: 6, Changed: true}, *state)

		changes := events.all()
		require.Len(t, changes, 2)
		assert.Equal(t, models.TableLikes, changes[0].Table)
		assert.Equal(t, realtime.EventInsert, changes[0].Type)
		assert.Equal(t, models.TablePosts, changes[1].Table)
		assert.Equal(t, realtime.EventUpdate, changes[1].Type)
		assert.EqualValues(t, 6, changes[1].Record["likes_count"])
	})

	t.Run("unchanged is silent", func(t *testing.T) {
		t.Parallel()
		likeRepo := noopLikeRepo()
		likeRepo.setLikedFn = func(context.Context, uint, uint, bool) (bool, int, error) { return false, 5, nil }
		events := &recordingPublisher{}
		state, err := NewPostService(noopPostRepo(), likeRepo, noopProfileRepo(), nil, events).
			SetLike(ctx, SetLikeInput{UserID: 2, PostID: 9, Liked: false})
		require.NoError(t, err)
		assert.False(t, state.Changed)
		assert.Equal(t, 5, state.LikesCount)
		assert.Empty(t, events.all())
	})

	t.Run("missing post", func(t *testing.T) {
		t.Parallel()
		likeRepo := noopLikeRepo()
		likeRepo.setLikedFn = func(context.Context, uint, uint, bool) (bool, int, error) { return false, 0, errNotFound }
		_, err := NewPostService(noopPostRepo(), likeRepo, noopProfileRepo(), nil, nil).
			SetLike(ctx, SetLikeInput{UserID: 2, PostID: 9, Liked: true})
		assertCode(t, err, models.CodeNotFound)
	})
}

func TestPostService_DeletePost_Permissions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		userID  uint
		role    models.Role
		wantErr string
	}{
		{"author", 1, models.RoleClient, ""},
		{"stranger", 2, models.RoleClient, models.CodeUnauthorized},
		{"partner is not admin", 2, models.RolePartner, models.CodeUnauthorized},
		{"admin", 2, models.RoleAdmin, ""},
		{"anonymous", 0, models.RoleClient, models.CodeAuthenticationRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			profiles := noopProfileRepo()
			profiles.getByIDFn = func(_ context.Context, id uint) (*models.Profile, error) {
				return &models.Profile{ID: id, Role: tt.role}, nil
			}
			deleted := false
			posts := noopPostRepo()
			posts.deleteFn = func(context.Context, uint) error { deleted = true; return nil }
			events := &recordingPublisher{}

			err := NewPostService(posts, noopLikeRepo(), profiles, nil, events).
				DeletePost(context.Background(), DeletePostInput{UserID: tt.userID, PostID: 4})
			if tt.wantErr != "" {
				assertCode(t, err, tt.wantErr)
				assert.False(t, deleted)
				assert.Empty(t, events.all())
				return
			}
			require.NoError(t, err)
			assert.True(t, deleted)
			require.Len(t, events.all(), 1)
			assert.Equal(t, realtime.EventDelete, events.all()[0].Type)
		})
	}
}

func TestPostService_IsLikedAnonymous(t *testing.T) {
	t.Parallel()
	likeRepo := noopLikeRepo()
	likeRepo.existsFn = func(context.Context, uint, uint) (bool, error) {
		t.Error("anonymous viewers never query the relation")
		return true, nil
	}
	liked, err := NewPostService(noopPostRepo(), likeRepo, noopProfileRepo(), nil, nil).
		IsLiked(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestPostService_RecountRequiresAdmin(t *testing.T) {
	t.Parallel()
	_, err := NewPostService(noopPostRepo(), noopLikeRepo(), noopProfileRepo(), nil, nil).
		Recount(context.Background(), 3, 1)
	assertUnauthorizedError(t, err)
}
