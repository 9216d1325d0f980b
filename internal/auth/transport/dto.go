// Package transport defines request and response DTOs for the auth API.
package transport

import (
	"time"

	"conviaq_backend/internal/auth/repository"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type UserResponse struct {
	ID          int64      `json:"id"`
	TenantID    int64      `json:"tenantId"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Roles       []string   `json:"roles"`
	LastLoginAt *time.Time `json:"lastLoginAt"`
}

type TokenPairResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
	User         UserResponse `json:"user"`
}

func ToUserResponse(u repository.User) UserResponse {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return UserResponse{
		ID:          u.ID,
		TenantID:    u.TenantID,
		Name:        u.Name,
		Email:       u.Email,
		Roles:       roles,
		LastLoginAt: u.LastLoginAt,
	}
}
