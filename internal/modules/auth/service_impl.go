package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"

	"github.com/georgemunganga/pos-backend/internal/apperr"
	"github.com/georgemunganga/pos-backend/internal/modules/user"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

type claims struct {
	TokenType string `json:"typ"`
	jwt.StandardClaims
}

// Config controls token signing.
type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type service struct {
	userRepo user.Repository
	cfg      Config
	now      func() time.Time
}

// NewService creates a new auth service.
func NewService(userRepo user.Repository, cfg Config) Service {
	return &service{userRepo: userRepo, cfg: cfg, now: time.Now}
}

func (s *service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	u, err := s.userRepo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.Unauthorized("invalid credentials")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	return s.issue(u.ID.String())
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	subject, err := s.parse(refreshToken, tokenRefresh)
	if err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetUserByID(ctx, subject); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.Unauthorized("user no longer exists")
		}
		return nil, err
	}
	return s.issue(subject)
}

func (s *service) Verify(accessToken string) (string, error) {
	return s.parse(accessToken, tokenAccess)
}

func (s *service) issue(subject string) (*TokenPair, error) {
	access, err := s.sign(subject, tokenAccess, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(subject, tokenRefresh, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *service) sign(subject, typ string, ttl time.Duration) (string, error) {
	now := s.now()
	c := &claims{
		TokenType: typ,
		StandardClaims: jwt.StandardClaims{
			Subject:   subject,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.cfg.Secret)
}

func (s *service) parse(tokenString, wantType string) (string, error) {
	c := &claims{}
	token, err := jwt.ParseWithClaims(tokenString, c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.cfg.Secret, nil
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnauthorized, err, "invalid token")
	}
	if !token.Valid {
		return "", apperr.Unauthorized("invalid token")
	}
	if c.TokenType != wantType {
		return "", apperr.Unauthorized("expected %s token", wantType)
	}
	return c.Subject, nil
}
