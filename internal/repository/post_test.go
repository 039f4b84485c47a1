package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"vitamora/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_AdjustCounterIsSingleStatement(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "social_posts" SET "likes_count"=CASE WHEN likes_count \+ \$1 < 0 THEN 0 ELSE likes_count \+ \$2 END`).
		WithArgs(1, 1, 42).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.AdjustCounter(context.Background(), 42, ColumnLikes, 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_AdjustCounterMissingPost(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "social_posts" SET "comments_count"=`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.AdjustCounter(context.Background(), 9, ColumnComments, -1)
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_AdjustCounterRejectsUnknownColumn(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	err := repo.AdjustCounter(context.Background(), 1, "id; DROP TABLE users", 1)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_AdjustCounterFloorsAtZero(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	author := createUser(t, db, "ana")
	post := createPost(t, db, author, 1)

	require.NoError(t, repo.AdjustCounter(ctx, post.ID, ColumnLikes, -1))
	require.NoError(t, repo.AdjustCounter(ctx, post.ID, ColumnLikes, -1))
	assert.Equal(t, 0, likesCount(t, db, post.ID))

	require.NoError(t, repo.AdjustCounter(ctx, post.ID, ColumnLikes, 3))
	assert.Equal(t, 3, likesCount(t, db, post.ID))
}

func TestPostRepository_ListNewestFirstWithAuthor(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	author := createUser(t, db, "ana")
	base := time.Now().Add(-time.Hour)
	for i, content := range []string{"first", "second", "third"} {
		post := &models.Post{AuthorID: author, Content: content, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, repo.Create(ctx, post))
	}

	posts, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "third", posts[0].Content)
	assert.Equal(t, "second", posts[1].Content)
	require.NotNil(t, posts[0].Author)
	assert.Equal(t, "ana", posts[0].Author.FirstName)

	rest, err := repo.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "first", rest[0].Content)
}

func TestPostRepository_DeleteRemovesRelations(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()
	posts := NewPostRepository(db)

	author := createUser(t, db, "ana")
	post := createPost(t, db, author, 0)
	_, _, err := NewLikeRepository(db).SetLiked(ctx, post.ID, author, true)
	require.NoError(t, err)
	require.NoError(t, NewCommentRepository(db).Create(ctx, &models.Comment{PostID: post.ID, UserID: author, Content: "hi"}))

	require.NoError(t, posts.Delete(ctx, post.ID))

	var likes, comments int64
	db.Model(&models.Like{}).Where("post_id = ?", post.ID).Count(&likes)
	db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&comments)
	assert.Zero(t, likes)
	assert.Zero(t, comments)

	_, err = posts.GetByID(ctx, post.ID)
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(posts.Delete(ctx, post.ID)))
}

func TestPostRepository_RecountRepairsDrift(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()
	posts := NewPostRepository(db)

	author := createUser(t, db, "ana")
	other := createUser(t, db, "ben")
	post := createPost(t, db, author, 0)
	likes := NewLikeRepository(db)
	_, _, err := likes.SetLiked(ctx, post.ID, author, true)
	require.NoError(t, err)
	_, _, err = likes.SetLiked(ctx, post.ID, other, true)
	require.NoError(t, err)
	require.NoError(t, NewCommentRepository(db).Create(ctx, &models.Comment{PostID: post.ID, UserID: other, Content: "nice"}))

	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", post.ID).
		UpdateColumns(map[string]any{ColumnLikes: 40, ColumnComments: 0}).Error)

	fixed, err := posts.Recount(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, fixed.LikesCount)
	assert.Equal(t, 1, fixed.CommentsCount)

	_, err = posts.Recount(ctx, 9999)
	assert.True(t, IsNotFound(err))
}
