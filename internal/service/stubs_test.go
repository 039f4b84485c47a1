package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"vitamora/internal/models"
	"vitamora/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn  func(context.Context, *models.Post) error
	getByIDFn func(context.Context, uint) (*models.Post, error)
	listFn    func(context.Context, int, int) ([]*models.Post, error)
	deleteFn  func(context.Context, uint) error
	adjustFn  func(context.Context, uint, string, int) error
	recountFn func(context.Context, uint) (*models.Post, error)
}

func (s *postRepoStub) Create(ctx context.Context, p *models.Post) error { return s.createFn(ctx, p) }
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	return s.listFn(ctx, limit, offset)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error { return s.deleteFn(ctx, id) }
func (s *postRepoStub) AdjustCounter(ctx context.Context, id uint, col string, d int) error {
	return s.adjustFn(ctx, id, col, d)
}
func (s *postRepoStub) Recount(ctx context.Context, id uint) (*models.Post, error) {
	return s.recountFn(ctx, id)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:  func(_ context.Context, p *models.Post) error { p.ID = 1; return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) { return &models.Post{ID: id, AuthorID: 1}, nil },
		listFn:    func(_ context.Context, _, _ int) ([]*models.Post, error) { return nil, nil },
		deleteFn:  func(_ context.Context, _ uint) error { return nil },
		adjustFn:  func(_ context.Context, _ uint, _ string, _ int) error { return nil },
		recountFn: func(_ context.Context, id uint) (*models.Post, error) { return &models.Post{ID: id}, nil },
	}
}

// likeRepoStub is a stub for repository.LikeRepository.
type likeRepoStub struct {
	existsFn   func(context.Context, uint, uint) (bool, error)
	likedIDsFn func(context.Context, uint, []uint) ([]uint, error)
	setLikedFn func(context.Context, uint, uint, bool) (bool, int, error)
}

func (s *likeRepoStub) Exists(ctx context.Context, postID, userID uint) (bool, error) {
	return s.existsFn(ctx, postID, userID)
}
func (s *likeRepoStub) LikedPostIDs(ctx context.Context, userID uint, ids []uint) ([]uint, error) {
	return s.likedIDsFn(ctx, userID, ids)
}
func (s *likeRepoStub) SetLiked(ctx context.Context, postID, userID uint, liked bool) (bool, int, error) {
	return s.setLikedFn(ctx, postID, userID, liked)
}

func noopLikeRepo() *likeRepoStub {
	return &likeRepoStub{
		existsFn:   func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
		likedIDsFn: func(_ context.Context, _ uint, _ []uint) ([]uint, error) { return nil, nil },
		setLikedFn: func(_ context.Context, _, _ uint, _ bool) (bool, int, error) { return true, 1, nil },
	}
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn     func(context.Context, *models.Comment) error
	getByIDFn    func(context.Context, uint) (*models.Comment, error)
	listByPostFn func(context.Context, uint) ([]*models.Comment, error)
	deleteFn     func(context.Context, uint) error
}

func (s *commentRepoStub) Create(ctx context.Context, c *models.Comment) error {
	return s.createFn(ctx, c)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	return s.listByPostFn(ctx, postID)
}
func (s *commentRepoStub) Delete(ctx context.Context, id uint) error { return s.deleteFn(ctx, id) }

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn:     func(_ context.Context, _ *models.Comment) error { return nil },
		getByIDFn:    func(_ context.Context, _ uint) (*models.Comment, error) { return &models.Comment{}, nil },
		listByPostFn: func(_ context.Context, _ uint) ([]*models.Comment, error) { return nil, nil },
		deleteFn:     func(_ context.Context, _ uint) error { return nil },
	}
}

// profileRepoStub is a stub for repository.ProfileRepository.
type profileRepoStub struct {
	getByIDFn  func(context.Context, uint) (*models.Profile, error)
	createFn   func(context.Context, *models.Profile) error
	updateFn   func(context.Context, uint, map[string]any) (*models.Profile, error)
	setImageFn func(context.Context, uint, string) error
}

func (s *profileRepoStub) GetByID(ctx context.Context, id uint) (*models.Profile, error) {
	return s.getByIDFn(ctx, id)
}
func (s *profileRepoStub) Create(ctx context.Context, p *models.Profile) error {
	return s.createFn(ctx, p)
}
func (s *profileRepoStub) Update(ctx context.Context, id uint, patch map[string]any) (*models.Profile, error) {
	return s.updateFn(ctx, id, patch)
}
func (s *profileRepoStub) SetImageURL(ctx context.Context, id uint, url string) error {
	return s.setImageFn(ctx, id, url)
}

func noopProfileRepo() *profileRepoStub {
	return &profileRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.Profile, error) {
			return &models.Profile{ID: id, Role: models.RoleClient}, nil
		},
		createFn: func(_ context.Context, _ *models.Profile) error { return nil },
		updateFn: func(_ context.Context, id uint, _ map[string]any) (*models.Profile, error) {
			return &models.Profile{ID: id}, nil
		},
		setImageFn: func(_ context.Context, _ uint, _ string) error { return nil },
	}
}

// recordingPublisher captures published changes.
type recordingPublisher struct {
	mu      sync.Mutex
	changes []realtime.Change
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, c realtime.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return p.err
}

func (p *recordingPublisher) all() []realtime.Change {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]realtime.Change(nil), p.changes...)
}

var errStore = errors.New("connection refused")

var errNotFound = gorm.ErrRecordNotFound

// assertCode asserts that err is an AppError with the given code.
func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeValidation)
}

func assertUnauthorizedError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeUnauthorized)
}
