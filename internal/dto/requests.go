package dto

import "github.com/ignatzorin/scout-reports/internal/models"

// AnalyzeRequest is the body of POST /api/analyze.
// Coordinates are pointers so that a missing value is distinguishable from zero.
type AnalyzeRequest struct {
	ImageURL string   `json:"imageUrl"`
	Lat      *float64 `json:"lat"`
	Long     *float64 `json:"long"`
}

// SignUpRequest represents the request to create an account
type SignUpRequest struct {
	Email    string      `json:"email" binding:"required"`
	Password string      `json:"password" binding:"required"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
}

// SignInRequest represents the request to sign in
type SignInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries a refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// SignOutRequest optionally carries the refresh token of the session to drop
type SignOutRequest struct {
	RefreshToken string `json:"refresh_token"`
}
