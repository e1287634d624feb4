package models

import "gorm.io/gorm"

// User represents an account in the app.
type User struct {
	ID                  string `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Username            string `json:"username" gorm:"uniqueIndex;type:varchar(100)" validate:"required,min=3,max=100"`
	Email               string `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password            string `gorm:"type:varchar(255)" validate:"required,min=6"` // No json tag for security
	AvatarURL           string `json:"avatar_url" gorm:"type:varchar(512)" validate:"omitempty,url"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
	gorm.Model                 // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}

// ProfileStats holds the aggregate numbers shown on a profile page.
type ProfileStats struct {
	TotalImages int64 `json:"total_images"`
	TotalLikes  int64 `json:"total_likes"`
}

// Profile is a user together with their computed stats.
type Profile struct {
	User
	Stats ProfileStats `json:"stats"`
}
