package repositories

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"ghiblify/internal/models"

	"github.com/google/uuid"
)

// MockGalleryRepository is an in-memory implementation of GalleryRepository.
type MockGalleryRepository struct {
	images map[string]models.GalleryImage
	mu     sync.RWMutex
}

// NewMockGalleryRepository creates a new instance of MockGalleryRepository.
func NewMockGalleryRepository() *MockGalleryRepository {
	return &MockGalleryRepository{
		images: make(map[string]models.GalleryImage),
	}
}

// Create adds a new gallery image.
func (r *MockGalleryRepository) Create(image *models.GalleryImage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if image.ID == "" {
		image.ID = uuid.New().String()
	}
	if image.CreatedAt.IsZero() {
		image.CreatedAt = time.Now()
	}
	r.images[image.ID] = *image
	return nil
}

// GetByUser returns the user's gallery images, newest first.
func (r *MockGalleryRepository) GetByUser(userID string) ([]models.GalleryImage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	imageList := make([]models.GalleryImage, 0)
	for _, img := range r.images {
		if img.UserID == userID {
			imageList = append(imageList, img)
		}
	}
	sort.Slice(imageList, func(i, j int) bool {
		return imageList[i].CreatedAt.After(imageList[j].CreatedAt)
	})
	return imageList, nil
}

// GetByID returns a gallery image by its ID.
func (r *MockGalleryRepository) GetByID(id string) (*models.GalleryImage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	image, ok := r.images[id]
	if !ok {
		return nil, fmt.Errorf("gallery image with ID %s not found", id)
	}
	return &image, nil
}

// Delete removes a gallery image.
func (r *MockGalleryRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.images[id]; !ok {
		return fmt.Errorf("gallery image with ID %s not found for deletion", id)
	}
	delete(r.images, id)
	return nil
}
