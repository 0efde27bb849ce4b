package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued tokens and user info.
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	User         UserInfo  `json:"user"`
	IssuedAt     time.Time `json:"issued_at"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// ExchangeRequest carries an upstream identity-provider token asserting
// {sub, email, name} for the caller.
type ExchangeRequest struct {
	IdentityToken string `json:"identity_token" validate:"required"`
	IP            string `json:"-"`
	UserAgent     string `json:"-"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
	Branch   string   `json:"branch"`
}

// JWTClaims are the access-token claims carried on every request.
type JWTClaims struct {
	UserID   string   `json:"uid"`
	Email    string   `json:"email"`
	FullName string   `json:"name"`
	Role     UserRole `json:"role"`
	Branch   string   `json:"branch"`
	jwt.RegisteredClaims
}

// ActingUser converts claims into the user value passed to every
// workflow operation.
func (c *JWTClaims) ActingUser() *User {
	if c == nil {
		return nil
	}
	return &User{
		ID:       c.UserID,
		Email:    c.Email,
		FullName: c.FullName,
		Role:     c.Role,
		Branch:   c.Branch,
	}
}
