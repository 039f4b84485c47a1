package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"vitamora/internal/database"
	"vitamora/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// newTestDB returns a fresh migrated in-memory database private to the test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLiteMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func createUser(t *testing.T, db *gorm.DB, first string) uint {
	t.Helper()
	user := &models.User{Email: fmt.Sprintf("%s-%d@example.com", first, time.Now().UnixNano()), PasswordHash: "x"}
	profile := &models.Profile{FirstName: first, Role: models.RoleClient}
	require.NoError(t, NewUserRepository(db).CreateWithProfile(context.Background(), user, profile))
	return user.ID
}

func createPost(t *testing.T, db *gorm.DB, authorID uint, likes int) *models.Post {
	t.Helper()
	post := &models.Post{AuthorID: authorID, Content: "hello", LikesCount: likes}
	require.NoError(t, NewPostRepository(db).Create(context.Background(), post))
	return post
}

func likesCount(t *testing.T, db *gorm.DB, postID uint) int {
	t.Helper()
	var post models.Post
	require.NoError(t, db.First(&post, postID).Error)
	return post.LikesCount
}
