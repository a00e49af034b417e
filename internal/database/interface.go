package database

import (
	"context"
	"time"
)

// DB defines the store operations used by the user repository.
type DB interface {
	// Users
	FindUser(ctx context.Context, match UserMatch) (*User, error)
	ListUsers(ctx context.Context, search string, limit, offset int) ([]User, error)
	CountUsers(ctx context.Context, search string) (int64, error)
	CreateUser(ctx context.Context, user *User) error
	UpdateUser(ctx context.Context, id uint, patch UserPatch) (*User, error)
	DeleteUser(ctx context.Context, id uint) (bool, error)
	ClearExpiredVerifications(ctx context.Context, asOf time.Time) (int64, error)
	GetUserStats(ctx context.Context) (*UserStats, error)

	// Links
	CreateLink(ctx context.Context, link *Link) error
	CountLinksByUser(ctx context.Context, userIDs []uint) (map[uint]int64, error)

	// Utility
	Close() error
}

// UserStats provides overall statistics about the users table.
type UserStats struct {
	TotalUsers  int64
	AdminUsers  int64
	BannedUsers int64
	TotalLinks  int64
}
