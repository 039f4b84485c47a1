package service

import (
	"fmt"
	"strconv"
	"time"

	"vitamora/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	JWTIssuer   = "vitamora-api"
	JWTAudience = "vitamora-client"

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type tokenClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenClaims is the verified content of a token.
type TokenClaims struct {
	UserID    uint
	Type      string
	JTI       string
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies HS256 access and refresh tokens.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer creates an issuer. Zero TTLs fall back to 1h and 30 days.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}
}

// Issue returns a fresh access/refresh pair for userID.
func (i *TokenIssuer) Issue(userID uint) (access, refresh string, expiresAt time.Time, err error) {
	if len(i.secret) == 0 {
		return "", "", time.Time{}, fmt.Errorf("JWT secret not configured")
	}
	access, expiresAt, err = i.sign(userID, tokenTypeAccess, i.accessTTL)
	if err != nil {
		return "", "", time.Time{}, err
	}
	refresh, _, err = i.sign(userID, tokenTypeRefresh, i.refreshTTL)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return access, refresh, expiresAt, nil
}

func (i *TokenIssuer) sign(userID uint, typ string, ttl time.Duration) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(ttl)
	claims := tokenClaims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    JWTIssuer,
			Audience:  jwt.ClaimStrings{JWTAudience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	return signed, exp, err
}

// Parse verifies signature, issuer, audience and expiry. Every failure is
// AUTHENTICATION_REQUIRED.
func (i *TokenIssuer) Parse(tokenString string) (*TokenClaims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(JWTIssuer),
		jwt.WithAudience(JWTAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid {
		return nil, models.NewAuthenticationRequiredError("Invalid or expired token")
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || userID == 0 {
		return nil, models.NewAuthenticationRequiredError("Invalid subject claim")
	}
	return &TokenClaims{
		UserID:    uint(userID),
		Type:      claims.Type,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
