package auth

import (
	"github.com/angelmondragon/tirestore-backend/internal/users"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	// CartSessionID is the anonymous cart to fold into the account cart.
	CartSessionID string `json:"-"`
}

// RegisterRequest is the payload for customer self-registration.
type RegisterRequest struct {
	Email         string  `json:"email" validate:"required,email"`
	Password      string  `json:"password" validate:"required"`
	FullName      string  `json:"full_name" validate:"required,max=120"`
	Phone         *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	CartSessionID string  `json:"-"`
}

// RefreshRequest carries the refresh token bound to the expired access token.
type RefreshRequest struct {
	AccessToken  string `json:"-"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenResponse contains the tokens and user produced by a successful login.
type TokenResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}
