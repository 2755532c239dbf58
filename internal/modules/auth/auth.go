package auth

import "context"

// TokenPair is returned by a successful login.
type TokenPair struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}

// Service defines the interface for authentication-related business logic.
type Service interface {
	Login(ctx context.Context, email, password string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	// Verify validates an access token and returns its subject (the user id).
	Verify(accessToken string) (string, error)
}
