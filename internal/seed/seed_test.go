package seed

import (
	"context"
	"testing"

	"vitamora/internal/database"
	"vitamora/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLiteMemory(nil)
	require.NoError(t, err)
	return db
}

func TestDefaultFixture(t *testing.T) {
	t.Parallel()
	f := DefaultFixture()
	require.Len(t, f.Users, 3)
	assert.Equal(t, "admin@vitamora.com", f.Users[0].Email)
	assert.Equal(t, models.RoleAdmin, models.ParseRole(f.Users[0].Role))
	assert.Equal(t, models.RolePartner, models.ParseRole(f.Users[1].Role))
}

func TestLoadFixture(t *testing.T) {
	t.Parallel()
	f, err := LoadFixture([]byte(""))
	require.NoError(t, err)
	assert.Empty(t, f.Users)

	_, err = LoadFixture([]byte("users:\n  - email: a@b.c\n"))
	assert.Error(t, err, "a password is required")

	_, err = LoadFixture([]byte("users: ["))
	assert.Error(t, err)
}

func TestSeeder_Run(t *testing.T) {
	t.Parallel()
	db := newDB(t)
	ctx := context.Background()
	s := NewSeeder(db, nil)

	opts := Options{FillerUsers: 4, PostsPerUser: 2, CommentsPerPost: 1, LikeRatio: 1, RandSeed: 42}
	res, err := s.Run(ctx, DefaultFixture(), opts)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Users)
	assert.Equal(t, 2+7*2, res.Posts)
	assert.Equal(t, 7*2*7, res.Likes, "every user likes every generated post")
	assert.Equal(t, 7*2, res.Comments)

	var admin models.User
	require.NoError(t, db.Where("email = ?", "admin@vitamora.com").First(&admin).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("admin123")))
	var profile models.Profile
	require.NoError(t, db.First(&profile, admin.ID).Error)
	assert.Equal(t, models.RoleAdmin, profile.Role)

	// Stored counters agree with the rows.
	var posts []models.Post
	require.NoError(t, db.Find(&posts).Error)
	for _, p := range posts {
		var likes, comments int64
		require.NoError(t, db.Model(&models.Like{}).Where("post_id = ?", p.ID).Count(&likes).Error)
		require.NoError(t, db.Model(&models.Comment{}).Where("post_id = ?", p.ID).Count(&comments).Error)
		assert.EqualValues(t, likes, p.LikesCount)
		assert.EqualValues(t, comments, p.CommentsCount)
	}
}

func TestSeeder_RerunKeepsDemoAccounts(t *testing.T) {
	t.Parallel()
	db := newDB(t)
	ctx := context.Background()
	s := NewSeeder(db, nil)

	_, err := s.Run(ctx, DefaultFixture(), Options{})
	require.NoError(t, err)
	res, err := s.Run(ctx, DefaultFixture(), Options{})
	require.NoError(t, err)
	assert.Zero(t, res.Users)
	assert.Zero(t, res.Posts, "demo posts are only written for new accounts")

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.EqualValues(t, 3, users)

	res, err = s.Run(ctx, DefaultFixture(), Options{Clean: true})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Users)
	assert.Equal(t, 2, res.Posts)
}
