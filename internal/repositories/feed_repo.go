package repositories

import "ghiblify/internal/models"

// FeedRepository defines the interface for the community feed and the
// save/like interactions on it.
type FeedRepository interface {
	Create(image *models.FeedImage) error
	GetPage(page, pageSize int) ([]models.FeedEntry, error)
	GetByID(id string) (*models.FeedImage, error)
	// IncrementLikes bumps the like counter by one in a single atomic
	// update and returns the new count.
	IncrementLikes(id string) (int64, error)
	Save(userID, imageID string) error
	Unsave(userID, imageID string) error
	GetSaved(userID string) ([]models.FeedEntry, error)
	CountByUser(userID string) (int64, error)
	SumLikesByUser(userID string) (int64, error)
}
