package registry

import (
	"time"

	"github.com/ytget/yt-link-bot/internal/model"
)

// userRow is the persisted chat user
type userRow struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      int64  `gorm:"uniqueIndex;not null"`
	DisplayName string `gorm:"size:255"`
	Language    string `gorm:"size:8"`
	CreatedAt   time.Time
}

func (userRow) TableName() string { return "users" }

// downloadLinkRow is the persisted state of one (user, video) link
type downloadLinkRow struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    int64     `gorm:"uniqueIndex:idx_user_video;not null"`
	VideoID   string    `gorm:"uniqueIndex:idx_user_video;size:64;not null"`
	Title     string    `gorm:"size:512"`
	Extension string    `gorm:"size:16"`
	Status    string    `gorm:"size:16;index:idx_status_updated"`
	FilePath  string    `gorm:"size:1024"`
	UpdatedAt time.Time `gorm:"index:idx_status_updated"`
}

func (downloadLinkRow) TableName() string { return "download_links" }

func (r *downloadLinkRow) toModel() model.DownloadRecord {
	return model.DownloadRecord{
		UserID:    r.UserID,
		VideoID:   r.VideoID,
		Title:     r.Title,
		Extension: r.Extension,
		Status:    model.RecordStatus(r.Status),
		FilePath:  r.FilePath,
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (r *userRow) toModel() model.User {
	return model.User{
		UserID:      r.UserID,
		DisplayName: r.DisplayName,
		Language:    r.Language,
	}
}
