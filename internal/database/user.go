package database

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// Role is the access level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents an account in the database.
// Links is derived at read time and never stored on the row.
type User struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	Email               string     `gorm:"uniqueIndex;not null" json:"email"`
	Password            string     `gorm:"not null" json:"password"`
	APIKey              string     `gorm:"column:apikey;uniqueIndex" json:"apikey"`
	Role                Role       `gorm:"not null;default:user" json:"role"`
	Banned              bool       `gorm:"not null;default:false" json:"banned"`
	BannedByID          *uint      `json:"banned_by_id"`
	Verified            bool       `gorm:"not null;default:false" json:"verified"`
	VerificationToken   *string    `gorm:"index" json:"verification_token"`
	VerificationExpires *time.Time `json:"verification_expires"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	Links int64 `gorm:"-" json:"-"`
}

// UserMatch selects a single user by one of its unique columns.
// Zero values are ignored.
type UserMatch struct {
	ID     uint
	Email  string
	APIKey string
}

// IsZero reports whether no column is set.
func (m UserMatch) IsZero() bool {
	return m.ID == 0 && m.Email == "" && m.APIKey == ""
}

// UserPatch holds the fields of a partial update. Nil fields are left untouched.
// BannedByID is only applied together with Banned: it is stored on ban and cleared on unban.
type UserPatch struct {
	Email      *string
	Password   *string
	Role       *Role
	Banned     *bool
	BannedByID *uint
}

// Fields returns the column map for gorm's Updates.
func (p UserPatch) Fields() map[string]any {
	fields := make(map[string]any)
	if p.Email != nil {
		fields["email"] = NormalizeEmail(*p.Email)
	}
	if p.Password != nil {
		fields["password"] = *p.Password
	}
	if p.Role != nil {
		fields["role"] = *p.Role
	}
	if p.Banned != nil {
		fields["banned"] = *p.Banned
		if *p.Banned {
			fields["banned_by_id"] = p.BannedByID
		} else {
			fields["banned_by_id"] = nil
		}
	}
	return fields
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (m UserMatch) apply(tx *gorm.DB) *gorm.DB {
	if m.ID != 0 {
		tx = tx.Where("id = ?", m.ID)
	}
	if m.Email != "" {
		tx = tx.Where("email = ?", NormalizeEmail(m.Email))
	}
	if m.APIKey != "" {
		tx = tx.Where("apikey = ?", m.APIKey)
	}
	return tx
}

func searchScope(search string) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if search == "" {
			return tx
		}
		return tx.Where("LOWER(email) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
}

func (c *Client) FindUser(ctx context.Context, match UserMatch) (*User, error) {
	if match.IsZero() {
		return nil, gorm.ErrRecordNotFound
	}
	var user User
	if err := match.apply(c.db.WithContext(ctx)).First(&user).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to find user", "error", err)
		}
		return nil, err
	}
	return &user, nil
}

func (c *Client) ListUsers(ctx context.Context, search string, limit, offset int) ([]User, error) {
	var users []User
	err := c.db.WithContext(ctx).
		Scopes(searchScope(search)).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&users).Error
	if err != nil {
		log.Error("failed to list users", "error", err)
		return nil, err
	}
	return users, nil
}

func (c *Client) CountUsers(ctx context.Context, search string) (int64, error) {
	var count int64
	if err := c.db.WithContext(ctx).Model(&User{}).Scopes(searchScope(search)).Count(&count).Error; err != nil {
		log.Error("failed to count users", "error", err)
		return 0, err
	}
	return count, nil
}

func (c *Client) CreateUser(ctx context.Context, user *User) error {
	user.Email = NormalizeEmail(user.Email)
	if err := c.db.WithContext(ctx).Create(user).Error; err != nil {
		err = translateError(err)
		if err != ErrDuplicate {
			log.Error("failed to create user", "error", err)
		}
		return err
	}
	return nil
}

func (c *Client) UpdateUser(ctx context.Context, id uint, patch UserPatch) (*User, error) {
	fields := patch.Fields()
	fields["updated_at"] = time.Now()

	res := c.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		err := translateError(res.Error)
		if err != ErrDuplicate {
			log.Error("failed to update user", "id", id, "error", err)
		}
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return c.FindUser(ctx, UserMatch{ID: id})
}

// DeleteUser removes the user and the links it owns.
// It reports false if no user with that id existed.
func (c *Client) DeleteUser(ctx context.Context, id uint) (bool, error) {
	var deleted bool
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&Link{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&User{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		log.Error("failed to delete user", "id", id, "error", err)
		return false, err
	}
	return deleted, nil
}

// ClearExpiredVerifications drops verification tokens of unverified users whose token expired before asOf.
func (c *Client) ClearExpiredVerifications(ctx context.Context, asOf time.Time) (int64, error) {
	res := c.db.WithContext(ctx).Model(&User{}).
		Where("verified = ?", false).
		Where("verification_token IS NOT NULL").
		Where("verification_expires < ?", asOf).
		Updates(map[string]any{
			"verification_token":   nil,
			"verification_expires": nil,
		})
	if res.Error != nil {
		log.Error("failed to clear expired verifications", "error", res.Error)
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (c *Client) GetUserStats(ctx context.Context) (*UserStats, error) {
	var stats UserStats
	db := c.db.WithContext(ctx)
	if err := db.Model(&User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&User{}).Where("role = ?", RoleAdmin).Count(&stats.AdminUsers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&User{}).Where("banned = ?", true).Count(&stats.BannedUsers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Link{}).Count(&stats.TotalLinks).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}
