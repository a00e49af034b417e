package models

import "time"

// User is the sanitized user returned to clients.
// It never carries the password hash, verification token or apikey.
type User struct {
	ID         uint      `json:"id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	Banned     bool      `json:"banned"`
	Links      int64     `json:"links"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	CreatedAgo string    `json:"created_ago"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
}

// UserList is a page of users.
type UserList struct {
	Data  []User `json:"data"`
	Total int64  `json:"total"`
	Limit int    `json:"limit"`
	Skip  int    `json:"skip"`
}

// LoginRequest is the body of a session login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
