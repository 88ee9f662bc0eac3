package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are carried by access tokens issued at login
type TokenClaims struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
