package database

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// Link is a shortened URL owned by a user.
type Link struct {
	ID        uint   `gorm:"primaryKey"`
	Address   string `gorm:"uniqueIndex;not null"`
	Target    string `gorm:"not null"`
	UserID    *uint  `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Client) CreateLink(ctx context.Context, link *Link) error {
	if err := c.db.WithContext(ctx).Create(link).Error; err != nil {
		err = translateError(err)
		log.Error("failed to create link", "error", err)
		return err
	}
	return nil
}

// CountLinksByUser returns the number of links per user id in a single grouped query.
// Users without links are absent from the map.
func (c *Client) CountLinksByUser(ctx context.Context, userIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(userIDs))
	if len(userIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		UserID uint
		Count  int64
	}
	err := c.db.WithContext(ctx).Model(&Link{}).
		Select("user_id, COUNT(*) AS count").
		Where("user_id IN ?", userIDs).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		log.Error("failed to count links", "error", err)
		return nil, err
	}

	for _, r := range rows {
		counts[r.UserID] = r.Count
	}
	return counts, nil
}
