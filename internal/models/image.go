package models

import (
	"time"

	"gorm.io/gorm"
)

// GalleryImage is a generated image a user explicitly saved to their
// private gallery. Prompt, magic level and owner are write-once at
// creation.
type GalleryImage struct {
	ID             string `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	UserID         string `json:"user_id" gorm:"index;type:varchar(36)" validate:"required,uuid"`
	Prompt         string `json:"prompt" gorm:"type:text" validate:"required"`
	NegativePrompt string `json:"negative_prompt,omitempty" gorm:"type:text"`
	ImageURL       string `json:"image_url" gorm:"type:varchar(1024)" validate:"required,url"`
	MagicLevel     int    `json:"magic_level" validate:"gte=0,lte=100"`
	gorm.Model
}

// TableName keeps the table name the app has always used.
func (GalleryImage) TableName() string { return "generated_images" }

// FeedImage is a community-visible image with its like counter.
type FeedImage struct {
	ID         string `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	UserID     string `json:"user_id" gorm:"index;type:varchar(36)" validate:"required,uuid"`
	Prompt     string `json:"prompt" gorm:"type:text"`
	ImageURL   string `json:"image_url" gorm:"type:varchar(1024)" validate:"required,url"`
	Likes      int64  `json:"likes"`
	User       User   `json:"-" gorm:"foreignKey:UserID"`
	gorm.Model
}

func (FeedImage) TableName() string { return "images" }

// FeedEntry is a FeedImage enriched with its denormalized author,
// the shape the feed API returns.
type FeedEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Prompt    string    `json:"prompt"`
	ImageURL  string    `json:"image_url"`
	Likes     int64     `json:"likes"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

// SavedImage is the bookmark join between a user and a feed image.
// No soft delete here: unsave removes the row so the unique index
// allows saving the same image again later.
type SavedImage struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"user_id" gorm:"uniqueIndex:idx_saved_user_image;type:varchar(36)" validate:"required,uuid"`
	ImageID   string    `json:"image_id" gorm:"uniqueIndex:idx_saved_user_image;type:varchar(36)" validate:"required,uuid"`
	CreatedAt time.Time `json:"created_at"`
}

func (SavedImage) TableName() string { return "saved_images" }

// GenerationResult is what a generation call hands back to the caller.
// Nothing is persisted until the caller saves it to the gallery.
type GenerationResult struct {
	ImageURL  string    `json:"image_url"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
}
