package repositories

import (
	"fmt"

	"ghiblify/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const feedEntryColumns = "images.id, images.user_id, images.prompt, images.image_url, images.likes, images.created_at, users.username, users.avatar_url"

// GORMFeedRepository is a GORM implementation of FeedRepository.
type GORMFeedRepository struct {
	db *gorm.DB
}

// NewGORMFeedRepository creates a new instance of GORMFeedRepository.
func NewGORMFeedRepository(db *gorm.DB) *GORMFeedRepository {
	return &GORMFeedRepository{
		db: db,
	}
}

// Create publishes a new image to the community feed.
func (r *GORMFeedRepository) Create(image *models.FeedImage) error {
	if image.ID == "" {
		image.ID = uuid.New().String()
	}
	if err := r.db.Create(image).Error; err != nil {
		return fmt.Errorf("failed to create feed image: %w", err)
	}
	return nil
}

// GetPage retrieves one page of the feed, newest first, with the
// author denormalized onto each entry.
func (r *GORMFeedRepository) GetPage(page, pageSize int) ([]models.FeedEntry, error) {
	if page < 1 {
		page = 1
	}
	var entries []models.FeedEntry
	err := r.db.Model(&models.FeedImage{}).
		Select(feedEntryColumns).
		Joins("JOIN users ON users.id = images.user_id").
		Order("images.created_at DESC, images.id").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get feed page %d: %w", page, err)
	}
	return entries, nil
}

// GetByID retrieves a single feed image by its ID.
func (r *GORMFeedRepository) GetByID(id string) (*models.FeedImage, error) {
	var image models.FeedImage
	if err := r.db.First(&image, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("feed image with ID %s not found", id)
		}
		return nil, fmt.Errorf("failed to get feed image by ID %s: %w", id, err)
	}
	return &image, nil
}

// IncrementLikes bumps the like counter with a single
// "likes = likes + 1" update so concurrent likes cannot lose writes,
// then reads back the new count.
func (r *GORMFeedRepository) IncrementLikes(id string) (int64, error) {
	res := r.db.Model(&models.FeedImage{}).
		Where("id = ?", id).
		UpdateColumn("likes", gorm.Expr("likes + ?", 1))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to like feed image %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("feed image with ID %s not found", id)
	}

	var image models.FeedImage
	if err := r.db.First(&image, "id = ?", id).Error; err != nil {
		return 0, fmt.Errorf("failed to reload feed image %s: %w", id, err)
	}
	return image.Likes, nil
}

// Save bookmarks a feed image for a user. The unique index on
// (user_id, image_id) backstops concurrent duplicate saves.
func (r *GORMFeedRepository) Save(userID, imageID string) error {
	var count int64
	err := r.db.Model(&models.SavedImage{}).
		Where("user_id = ? AND image_id = ?", userID, imageID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to check saved image %s for user %s: %w", imageID, userID, err)
	}
	if count > 0 {
		return fmt.Errorf("feed image %s already saved for user %s", imageID, userID)
	}

	saved := models.SavedImage{
		ID:      uuid.New().String(),
		UserID:  userID,
		ImageID: imageID,
	}
	if err := r.db.Create(&saved).Error; err != nil {
		return fmt.Errorf("failed to save feed image %s for user %s: %w", imageID, userID, err)
	}
	return nil
}

// Unsave removes a user's bookmark on a feed image.
func (r *GORMFeedRepository) Unsave(userID, imageID string) error {
	res := r.db.Where("user_id = ? AND image_id = ?", userID, imageID).Delete(&models.SavedImage{})
	if res.Error != nil {
		return fmt.Errorf("failed to unsave feed image %s for user %s: %w", imageID, userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("saved image %s not found for user %s", imageID, userID)
	}
	return nil
}

// GetSaved retrieves the feed entries a user has bookmarked, most
// recently saved first.
func (r *GORMFeedRepository) GetSaved(userID string) ([]models.FeedEntry, error) {
	var entries []models.FeedEntry
	err := r.db.Model(&models.SavedImage{}).
		Select(feedEntryColumns).
		Joins("JOIN images ON images.id = saved_images.image_id AND images.deleted_at IS NULL").
		Joins("JOIN users ON users.id = images.user_id").
		Where("saved_images.user_id = ?", userID).
		Order("saved_images.created_at DESC").
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get saved images for user %s: %w", userID, err)
	}
	return entries, nil
}

// CountByUser counts feed images owned by a user.
func (r *GORMFeedRepository) CountByUser(userID string) (int64, error) {
	var count int64
	if err := r.db.Model(&models.FeedImage{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count feed images for user %s: %w", userID, err)
	}
	return count, nil
}

// SumLikesByUser totals the likes across all of a user's feed images.
func (r *GORMFeedRepository) SumLikesByUser(userID string) (int64, error) {
	var sum int64
	err := r.db.Model(&models.FeedImage{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(likes), 0)").
		Scan(&sum).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum likes for user %s: %w", userID, err)
	}
	return sum, nil
}
