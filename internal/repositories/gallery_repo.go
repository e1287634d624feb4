package repositories

import "ghiblify/internal/models"

// GalleryRepository defines the interface for a user's saved
// generated images.
type GalleryRepository interface {
	Create(image *models.GalleryImage) error
	GetByUser(userID string) ([]models.GalleryImage, error)
	GetByID(id string) (*models.GalleryImage, error)
	Delete(id string) error
}
