package models

import (
	"time"

	"github.com/jon4hz/shortlink/internal/database"
	"github.com/jon4hz/shortlink/internal/gravatar"
	"github.com/jon4hz/shortlink/internal/users"
	"github.com/mergestat/timediff"
	"github.com/samber/lo"
)

// ToUser converts a database.User to the sanitized client model.
func ToUser(u database.User, avatars *gravatar.Resolver) User {
	return ToUserAt(u, avatars, time.Now())
}

// ToUserAt is ToUser with a fixed reference time for created_ago.
func ToUserAt(u database.User, avatars *gravatar.Resolver, now time.Time) User {
	return User{
		ID:         u.ID,
		Email:      u.Email,
		Role:       string(u.Role),
		Banned:     u.Banned,
		Links:      max(u.Links, 0),
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
		CreatedAgo: timediff.TimeDiff(u.CreatedAt, timediff.WithStartTime(now)),
		AvatarURL:  avatars.URL(u.Email),
	}
}

// ToUserList converts a service listing to the client model.
func ToUserList(res *users.ListResult, avatars *gravatar.Resolver) UserList {
	now := time.Now()
	return UserList{
		Data: lo.Map(res.Users, func(u database.User, _ int) User {
			return ToUserAt(u, avatars, now)
		}),
		Total: res.Total,
		Limit: res.Limit,
		Skip:  res.Skip,
	}
}
