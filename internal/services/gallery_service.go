package services

import (
	"fmt"
	"log"

	"ghiblify/internal/models"
	"ghiblify/internal/repositories"
	"ghiblify/pkg/rabbitmq"
)

// GalleryService handles a user's private collection of generated images.
type GalleryService struct {
	repo     repositories.GalleryRepository
	mqClient *rabbitmq.Client
}

// NewGalleryService creates a new GalleryService. mqClient may be nil;
// event publication is best-effort.
func NewGalleryService(repo repositories.GalleryRepository, mqClient *rabbitmq.Client) *GalleryService {
	return &GalleryService{
		repo:     repo,
		mqClient: mqClient,
	}
}

// SaveToGallery persists a generation result for a user. Repeated
// saves of the same result create separate rows; callers save once
// per generation.
func (s *GalleryService) SaveToGallery(userID string, result models.GenerationResult, magicLevel int, negativePrompt string) (*models.GalleryImage, error) {
	image := &models.GalleryImage{
		UserID:         userID,
		Prompt:         result.Prompt,
		NegativePrompt: negativePrompt,
		ImageURL:       result.ImageURL,
		MagicLevel:     magicLevel,
	}
	if err := s.repo.Create(image); err != nil {
		return nil, fmt.Errorf("failed to save to gallery: %w", err)
	}

	if s.mqClient != nil {
		err := s.mqClient.PublishImageEvent("gallery.saved", map[string]interface{}{
			"imageID": image.ID,
			"userID":  userID,
		})
		if err != nil {
			log.Printf("Warning: Failed to publish gallery saved event for image %s: %v", image.ID, err)
		}
	}

	return image, nil
}

// GetUserGallery returns all of a user's gallery images, newest first.
func (s *GalleryService) GetUserGallery(userID string) ([]models.GalleryImage, error) {
	return s.repo.GetByUser(userID)
}

// GetImage returns a single gallery image.
func (s *GalleryService) GetImage(imageID string) (*models.GalleryImage, error) {
	return s.repo.GetByID(imageID)
}

// DeleteFromGallery removes a gallery image by ID. Ownership is
// checked by the handler against the authenticated user.
func (s *GalleryService) DeleteFromGallery(imageID string) error {
	if err := s.repo.Delete(imageID); err != nil {
		return err
	}

	if s.mqClient != nil {
		err := s.mqClient.PublishImageEvent("gallery.deleted", map[string]interface{}{
			"imageID": imageID,
		})
		if err != nil {
			log.Printf("Warning: Failed to publish gallery deleted event for image %s: %v", imageID, err)
		}
	}
	return nil
}
