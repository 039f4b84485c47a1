package social

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"vitamora/internal/database"
	"vitamora/internal/models"
	"vitamora/internal/realtime"
	"vitamora/internal/repository"
	"vitamora/internal/service"
	"vitamora/internal/session"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var errStore = errors.New("connection reset by peer")

// storeStub implements Store with overridable funcs.
type storeStub struct {
	ListPostsFn     func(ctx context.Context, limit, offset int) ([]*models.Post, error)
	GetPostFn       func(ctx context.Context, postID uint) (*models.Post, error)
	GetProfileFn    func(ctx context.Context, id uint) (*models.Profile, error)
	IsLikedFn       func(ctx context.Context, postID uint) (bool, error)
	SetLikeFn       func(ctx context.Context, postID uint, liked bool) (LikeResult, error)
	ListCommentsFn  func(ctx context.Context, postID uint) ([]*models.Comment, error)
	CreateCommentFn func(ctx context.Context, postID uint, content string) (*models.Comment, error)
	DeleteCommentFn func(ctx context.Context, postID, commentID uint) error
}

func (s *storeStub) ListPosts(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	return s.ListPostsFn(ctx, limit, offset)
}

func (s *storeStub) GetPost(ctx context.Context, postID uint) (*models.Post, error) {
	return s.GetPostFn(ctx, postID)
}

func (s *storeStub) GetProfile(ctx context.Context, id uint) (*models.Profile, error) {
	return s.GetProfileFn(ctx, id)
}

func (s *storeStub) IsLiked(ctx context.Context, postID uint) (bool, error) {
	return s.IsLikedFn(ctx, postID)
}

func (s *storeStub) SetLike(ctx context.Context, postID uint, liked bool) (LikeResult, error) {
	return s.SetLikeFn(ctx, postID, liked)
}

func (s *storeStub) ListComments(ctx context.Context, postID uint) ([]*models.Comment, error) {
	return s.ListCommentsFn(ctx, postID)
}

func (s *storeStub) CreateComment(ctx context.Context, postID uint, content string) (*models.Comment, error) {
	return s.CreateCommentFn(ctx, postID, content)
}

func (s *storeStub) DeleteComment(ctx context.Context, postID, commentID uint) error {
	return s.DeleteCommentFn(ctx, postID, commentID)
}

func noopStore() *storeStub {
	return &storeStub{
		ListPostsFn: func(context.Context, int, int) ([]*models.Post, error) { return nil, nil },
		GetPostFn: func(_ context.Context, id uint) (*models.Post, error) {
			return &models.Post{ID: id, AuthorID: 1}, nil
		},
		GetProfileFn: func(_ context.Context, id uint) (*models.Profile, error) {
			return &models.Profile{ID: id, FirstName: "Author"}, nil
		},
		IsLikedFn: func(context.Context, uint) (bool, error) { return false, nil },
		SetLikeFn: func(_ context.Context, _ uint, liked bool) (LikeResult, error) {
			return LikeResult{Liked: liked}, nil
		},
		ListCommentsFn: func(context.Context, uint) ([]*models.Comment, error) { return nil, nil },
		CreateCommentFn: func(_ context.Context, postID uint, content string) (*models.Comment, error) {
			return &models.Comment{ID: 1, PostID: postID, Content: content}, nil
		},
		DeleteCommentFn: func(context.Context, uint, uint) error { return nil },
	}
}

// likeTable is a Data Store for one post with set semantics on the relation.
type likeTable struct {
	mu     sync.Mutex
	user   uint
	count  int
	likers map[uint]bool
	writes int
}

func newLikeTable(user uint, count int) *likeTable {
	return &likeTable{user: user, count: count, likers: map[uint]bool{}}
}

func (l *likeTable) GetPost(_ context.Context, postID uint) (*models.Post, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &models.Post{ID: postID, LikesCount: l.count}, nil
}

func (l *likeTable) IsLiked(context.Context, uint) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.likers[l.user], nil
}

func (l *likeTable) SetLike(_ context.Context, _ uint, liked bool) (LikeResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writes++
	if l.likers[l.user] != liked {
		if liked {
			l.likers[l.user] = true
			l.count++
		} else {
			delete(l.likers, l.user)
			l.count--
		}
	}
	return LikeResult{Liked: liked, LikesCount: l.count}, nil
}

// blockingLikes holds SetLike until release is closed.
type blockingLikes struct {
	*likeTable
	entered chan struct{}
	release chan struct{}
}

func newBlockingLikes(user uint, count int) *blockingLikes {
	return &blockingLikes{
		likeTable: newLikeTable(user, count),
		entered:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
}

func (b *blockingLikes) SetLike(ctx context.Context, postID uint, liked bool) (LikeResult, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.likeTable.SetLike(ctx, postID, liked)
}

// countingSubscriber records subscriptions and how often each is released.
type countingSubscriber struct {
	mu           sync.Mutex
	handler      realtime.Handler
	subscribes   int
	unsubscribes int
	err          error
}

func (c *countingSubscriber) Subscribe(_ context.Context, _ string, _ []realtime.EventType, fn realtime.Handler) (realtime.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribes++
	if c.err != nil {
		return nil, c.err
	}
	c.handler = fn
	return countingSubscription{c}, nil
}

// fail makes every later Subscribe return err.
func (c *countingSubscriber) fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *countingSubscriber) subscribed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribes
}

func (c *countingSubscriber) deliver(change realtime.Change) {
	c.mu.Lock()
	fn := c.handler
	c.mu.Unlock()
	fn(change)
}

func (c *countingSubscriber) released() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unsubscribes
}

type countingSubscription struct{ c *countingSubscriber }

func (s countingSubscription) Unsubscribe() {
	s.c.mu.Lock()
	s.c.unsubscribes++
	s.c.mu.Unlock()
}

// world is a data plane running in-process on sqlite with an in-memory broker.
type world struct {
	db       *gorm.DB
	broker   *realtime.MemoryBroker
	posts    *service.PostService
	comments *service.CommentService
	profiles *service.ProfileService
	users    repository.UserRepository
}

func newWorld(t *testing.T) *world {
	t.Helper()
	db, err := database.OpenSQLiteMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	broker := realtime.NewMemoryBroker()
	postRepo := repository.NewPostRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	return &world{
		db:       db,
		broker:   broker,
		posts:    service.NewPostService(postRepo, repository.NewLikeRepository(db), profileRepo, nil, broker),
		comments: service.NewCommentService(repository.NewCommentRepository(db), postRepo, broker),
		profiles: service.NewProfileService(profileRepo, nil, broker),
		users:    repository.NewUserRepository(db),
	}
}

func (w *world) user(t *testing.T, first string) *session.Context {
	t.Helper()
	user := &models.User{Email: fmt.Sprintf("%s-%d@example.com", first, time.Now().UnixNano()), PasswordHash: "x"}
	profile := &models.Profile{FirstName: first, Role: models.RoleClient}
	require.NoError(t, w.users.CreateWithProfile(context.Background(), user, profile))
	return session.Signed(user.ID, "token")
}

func (w *world) store(sess *session.Context) *LocalStore {
	return NewLocalStore(w.posts, w.comments, w.profiles, sess)
}

func (w *world) post(t *testing.T, author *session.Context, content string) *models.Post {
	t.Helper()
	post, err := w.posts.CreatePost(context.Background(), service.CreatePostInput{UserID: author.UserID(), Content: content})
	require.NoError(t, err)
	return post
}
