package repositories

import (
	"fmt"

	"ghiblify/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMGalleryRepository is a GORM implementation of GalleryRepository.
type GORMGalleryRepository struct {
	db *gorm.DB
}

// NewGORMGalleryRepository creates a new instance of GORMGalleryRepository.
func NewGORMGalleryRepository(db *gorm.DB) *GORMGalleryRepository {
	return &GORMGalleryRepository{
		db: db,
	}
}

// Create inserts a new gallery image. Repeated saves of the same
// generation create separate rows; the caller saves once per result.
func (r *GORMGalleryRepository) Create(image *models.GalleryImage) error {
	if image.ID == "" {
		image.ID = uuid.New().String()
	}
	if err := r.db.Create(image).Error; err != nil {
		return fmt.Errorf("failed to create gallery image: %w", err)
	}
	return nil
}

// GetByUser retrieves all gallery images for a user, newest first.
func (r *GORMGalleryRepository) GetByUser(userID string) ([]models.GalleryImage, error) {
	var images []models.GalleryImage
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&images).Error; err != nil {
		return nil, fmt.Errorf("failed to get gallery for user %s: %w", userID, err)
	}
	return images, nil
}

// GetByID retrieves a single gallery image by its ID.
func (r *GORMGalleryRepository) GetByID(id string) (*models.GalleryImage, error) {
	var image models.GalleryImage
	if err := r.db.First(&image, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("gallery image with ID %s not found", id)
		}
		return nil, fmt.Errorf("failed to get gallery image by ID %s: %w", id, err)
	}
	return &image, nil
}

// Delete deletes a gallery image by its ID.
func (r *GORMGalleryRepository) Delete(id string) error {
	res := r.db.Delete(&models.GalleryImage{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete gallery image: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("gallery image with ID %s not found for deletion", id)
	}
	return nil
}
