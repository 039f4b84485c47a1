// Package seed fills a database with demo accounts and generated social
// activity for development. Nothing here runs in the request path.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"vitamora/internal/models"
	"vitamora/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed demo_users.yaml
var demoUsersYAML []byte

// FillerPassword is shared by every generated account.
const FillerPassword = "password123"

// DemoUser is one fixed account from the fixture.
type DemoUser struct {
	Email     string   `yaml:"email"`
	Password  string   `yaml:"password"`
	FirstName string   `yaml:"first_name"`
	LastName  string   `yaml:"last_name"`
	Role      string   `yaml:"role"`
	Posts     []string `yaml:"posts"`
}

// Fixture is the parsed demo_users.yaml.
type Fixture struct {
	Users []DemoUser `yaml:"users"`
}

// LoadFixture parses a fixture document. An empty document yields no users.
func LoadFixture(raw []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	for i, u := range f.Users {
		if u.Email == "" || u.Password == "" {
			return nil, fmt.Errorf("fixture user %d: email and password are required", i)
		}
	}
	return &f, nil
}

// DefaultFixture returns the embedded demo accounts.
func DefaultFixture() *Fixture {
	f, err := LoadFixture(demoUsersYAML)
	if err != nil {
		panic(err)
	}
	return f
}

// Options controls how much generated activity is added.
type Options struct {
	FillerUsers     int
	PostsPerUser    int
	CommentsPerPost int
	// LikeRatio is the share of users liking each post, between 0 and 1.
	LikeRatio float64
	// RandSeed makes the generated content reproducible when non-zero.
	RandSeed int64
	Clean    bool
}

// DefaultOptions is what cmd/seed uses without flags.
func DefaultOptions() Options {
	return Options{FillerUsers: 10, PostsPerUser: 3, CommentsPerPost: 2, LikeRatio: 0.3}
}

// Result counts what a run created.
type Result struct {
	Users    int
	Posts    int
	Likes    int
	Comments int
}

// Seeder writes through the repositories so counters stay consistent.
type Seeder struct {
	db       *gorm.DB
	users    repository.UserRepository
	posts    repository.PostRepository
	likes    repository.LikeRepository
	comments repository.CommentRepository
	log      *slog.Logger
}

func NewSeeder(db *gorm.DB, log *slog.Logger) *Seeder {
	if log == nil {
		log = slog.Default()
	}
	return &Seeder{
		db:       db,
		users:    repository.NewUserRepository(db),
		posts:    repository.NewPostRepository(db),
		likes:    repository.NewLikeRepository(db),
		comments: repository.NewCommentRepository(db),
		log:      log,
	}
}

// Clean removes all social data and accounts, children first.
func (s *Seeder) Clean(ctx context.Context) error {
	tx := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, m := range []any{&models.Comment{}, &models.Like{}, &models.Post{}, &models.Profile{}, &models.User{}} {
		if err := tx.Delete(m).Error; err != nil {
			return fmt.Errorf("clean %T: %w", m, err)
		}
	}
	return nil
}

// Run creates the fixture accounts and then the generated activity.
func (s *Seeder) Run(ctx context.Context, fixture *Fixture, opts Options) (*Result, error) {
	if opts.Clean {
		if err := s.Clean(ctx); err != nil {
			return nil, err
		}
	}
	faker := gofakeit.New(opts.RandSeed)
	res := &Result{}

	var authors []uint
	for _, du := range fixture.Users {
		id, created, err := s.ensureUser(ctx, du.Email, du.Password, &models.Profile{
			FirstName: du.FirstName,
			LastName:  du.LastName,
			Role:      models.ParseRole(du.Role),
		})
		if err != nil {
			return res, err
		}
		authors = append(authors, id)
		if !created {
			continue
		}
		res.Users++
		for _, content := range du.Posts {
			if err := s.posts.Create(ctx, &models.Post{AuthorID: id, Content: content}); err != nil {
				return res, fmt.Errorf("demo post for %s: %w", du.Email, err)
			}
			res.Posts++
		}
	}

	for range opts.FillerUsers {
		email := fmt.Sprintf("%d.%s", faker.Number(1000, 999999), faker.Email())
		id, _, err := s.ensureUser(ctx, email, FillerPassword, &models.Profile{
			FirstName: faker.FirstName(),
			LastName:  faker.LastName(),
			Phone:     faker.Phone(),
			Address:   faker.City(),
			Role:      models.RoleClient,
		})
		if err != nil {
			return res, err
		}
		authors = append(authors, id)
		res.Users++
	}
	if len(authors) == 0 {
		return res, nil
	}

	now := time.Now().UTC()
	for _, author := range authors {
		for range opts.PostsPerUser {
			post := &models.Post{
				AuthorID:  author,
				Content:   faker.Sentence(faker.Number(6, 18)),
				CreatedAt: now.Add(-time.Duration(faker.Number(1, 60*24*30)) * time.Minute),
			}
			if err := s.posts.Create(ctx, post); err != nil {
				return res, fmt.Errorf("generated post: %w", err)
			}
			res.Posts++

			for _, liker := range authors {
				if faker.Float64Range(0, 1) >= opts.LikeRatio {
					continue
				}
				changed, _, err := s.likes.SetLiked(ctx, post.ID, liker, true)
				if err != nil {
					return res, fmt.Errorf("generated like: %w", err)
				}
				if changed {
					res.Likes++
				}
			}

			for range opts.CommentsPerPost {
				comment := &models.Comment{
					PostID:  post.ID,
					UserID:  authors[faker.Number(0, len(authors)-1)],
					Content: faker.Sentence(faker.Number(3, 12)),
				}
				if err := s.comments.Create(ctx, comment); err != nil {
					return res, fmt.Errorf("generated comment: %w", err)
				}
				res.Comments++
			}
		}
	}

	s.log.InfoContext(ctx, "seed complete",
		slog.Int("users", res.Users),
		slog.Int("posts", res.Posts),
		slog.Int("likes", res.Likes),
		slog.Int("comments", res.Comments))
	return res, nil
}

// ensureUser returns the existing account for email or creates it.
func (s *Seeder) ensureUser(ctx context.Context, email, password string, profile *models.Profile) (uint, bool, error) {
	existing, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return existing.ID, false, nil
	}
	if !repository.IsNotFound(err) {
		return 0, false, fmt.Errorf("look up %s: %w", email, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return 0, false, err
	}
	user := &models.User{Email: email, PasswordHash: string(hash)}
	if err := s.users.CreateWithProfile(ctx, user, profile); err != nil {
		return 0, false, fmt.Errorf("create %s: %w", email, err)
	}
	return user.ID, true, nil
}
