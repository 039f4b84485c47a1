package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"vitamora/internal/models"
	"vitamora/internal/repository"
	"vitamora/internal/validation"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const blacklistPrefix = "blacklist:"

// AuthSession is what sign-in style calls hand back to the caller.
type AuthSession struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresAt    time.Time       `json:"expires_at"`
	UserID       uint            `json:"user_id"`
	Profile      *models.Profile `json:"profile,omitempty"`
}

type SignUpInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// AuthService issues, refreshes and revokes sessions.
type AuthService struct {
	users    repository.UserRepository
	profiles repository.ProfileRepository
	tokens   *TokenIssuer
	rdb      *redis.Client
}

// NewAuthService creates an AuthService. A nil rdb disables token revocation.
func NewAuthService(
	users repository.UserRepository,
	profiles repository.ProfileRepository,
	tokens *TokenIssuer,
	rdb *redis.Client,
) *AuthService {
	return &AuthService{users: users, profiles: profiles, tokens: tokens, rdb: rdb}
}

func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*AuthSession, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}
	for _, check := range []error{
		validation.ValidateEmail(in.Email),
		validation.ValidatePassword(in.Password),
		validation.ValidateName("first_name", in.FirstName),
		validation.ValidateName("last_name", in.LastName),
		validation.ValidatePhone(in.Phone),
	} {
		if check != nil {
			return nil, models.NewValidationError(check.Error())
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{Email: in.Email, PasswordHash: string(hash)}
	profile := &models.Profile{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Phone:     strings.TrimSpace(in.Phone),
		Role:      models.RoleClient,
	}
	if err := s.users.CreateWithProfile(ctx, user, profile); err != nil {
		if repository.IsDuplicate(err) {
			return nil, models.NewConflictError("Email already registered")
		}
		return nil, repository.Classify(err, "User", in.Email)
	}
	return s.issue(ctx, user.ID, profile)
}

func (s *AuthService) SignIn(ctx context.Context, email, password string) (*AuthSession, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, models.NewAuthenticationRequiredError("Invalid email or password")
		}
		return nil, repository.Classify(err, "User", email)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, models.NewAuthenticationRequiredError("Invalid email or password")
	}
	return s.issue(ctx, user.ID, nil)
}

// Refresh exchanges a refresh token for a new pair. The old refresh token is revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthSession, error) {
	claims, err := s.verify(ctx, refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	s.revoke(ctx, claims)
	return s.issue(ctx, claims.UserID, nil)
}

// SignOut revokes the access token and, when given, the refresh token.
func (s *AuthService) SignOut(ctx context.Context, accessToken, refreshToken string) error {
	claims, err := s.verify(ctx, accessToken, tokenTypeAccess)
	if err != nil {
		return err
	}
	s.revoke(ctx, claims)
	if refreshToken != "" {
		if rc, err := s.tokens.Parse(refreshToken); err == nil && rc.UserID == claims.UserID {
			s.revoke(ctx, rc)
		}
	}
	return nil
}

// Verify returns the user behind a valid, unrevoked access token.
func (s *AuthService) Verify(ctx context.Context, accessToken string) (uint, error) {
	claims, err := s.verify(ctx, accessToken, tokenTypeAccess)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

func (s *AuthService) verify(ctx context.Context, token, typ string) (*TokenClaims, error) {
	if token == "" {
		return nil, models.NewAuthenticationRequiredError("Authorization required")
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	if claims.Type != typ {
		return nil, models.NewAuthenticationRequiredError("Wrong token type")
	}
	if s.rdb != nil && claims.JTI != "" {
		n, err := s.rdb.Exists(ctx, blacklistPrefix+claims.JTI).Result()
		if err == nil && n > 0 {
			return nil, models.NewAuthenticationRequiredError("Token has been revoked")
		}
	}
	return claims, nil
}

func (s *AuthService) revoke(ctx context.Context, claims *TokenClaims) {
	if s.rdb == nil || claims.JTI == "" {
		return
	}
	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return
	}
	if err := s.rdb.Set(ctx, blacklistPrefix+claims.JTI, claims.UserID, ttl).Err(); err != nil {
		slog.WarnContext(ctx, "token revocation failed", "user_id", claims.UserID, "error", err)
	}
}

func (s *AuthService) issue(ctx context.Context, userID uint, profile *models.Profile) (*AuthSession, error) {
	access, refresh, exp, err := s.tokens.Issue(userID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if profile == nil {
		if p, err := s.profiles.GetByID(ctx, userID); err == nil {
			profile = p
		}
	}
	return &AuthSession{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    exp,
		UserID:       userID,
		Profile:      profile,
	}, nil
}
