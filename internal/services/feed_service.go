package services

import (
	"fmt"
	"log"

	"ghiblify/internal/models"
	"ghiblify/internal/repositories"
	"ghiblify/pkg/rabbitmq"
	"ghiblify/pkg/realtime"
)

// FeedPageSize is the fixed page size for the community feed.
const FeedPageSize = 10

// FeedTopic is the realtime topic for feed-wide changes.
const FeedTopic = "feed"

// SavedTopic is the realtime topic for one user's saved list.
func SavedTopic(userID string) string {
	return "saved_images:" + userID
}

// FeedPage is one page of the feed. HasMore is inferred from a full
// page: a page that exactly drains the table still reports true until
// the next (empty) fetch.
type FeedPage struct {
	Images  []models.FeedEntry `json:"images"`
	Page    int                `json:"page"`
	HasMore bool               `json:"has_more"`
}

// FeedService handles the public feed and the like/save interactions
// on it, pushing change events to realtime subscribers and onto the
// message queue.
type FeedService struct {
	repo     repositories.FeedRepository
	broker   *realtime.Broker
	mqClient *rabbitmq.Client
}

// NewFeedService creates a new FeedService. broker and mqClient may be
// nil; event delivery is best-effort and never fails the operation.
func NewFeedService(repo repositories.FeedRepository, broker *realtime.Broker, mqClient *rabbitmq.Client) *FeedService {
	return &FeedService{
		repo:     repo,
		broker:   broker,
		mqClient: mqClient,
	}
}

func (s *FeedService) publishMQ(event string, data map[string]interface{}) {
	if s.mqClient == nil {
		return
	}
	if err := s.mqClient.PublishImageEvent(event, data); err != nil {
		log.Printf("Warning: Failed to publish %s event: %v", event, err)
	}
}

// LoadFeed returns one page of the feed, newest first.
func (s *FeedService) LoadFeed(page int) (*FeedPage, error) {
	if page < 1 {
		page = 1
	}
	entries, err := s.repo.GetPage(page, FeedPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load feed page %d: %w", page, err)
	}
	return &FeedPage{
		Images:  entries,
		Page:    page,
		HasMore: len(entries) == FeedPageSize,
	}, nil
}

// ShareImage publishes a user's image to the community feed.
func (s *FeedService) ShareImage(userID, prompt, imageURL string) (*models.FeedImage, error) {
	image := &models.FeedImage{
		UserID:   userID,
		Prompt:   prompt,
		ImageURL: imageURL,
	}
	if err := s.repo.Create(image); err != nil {
		return nil, fmt.Errorf("failed to share image to feed: %w", err)
	}

	if s.broker != nil {
		s.broker.Publish(FeedTopic, realtime.EventInsert, map[string]any{
			"image_id": image.ID,
			"user_id":  userID,
		})
	}
	s.publishMQ("feed.shared", map[string]interface{}{
		"imageID": image.ID,
		"userID":  userID,
	})
	return image, nil
}

// LikeImage increments an image's like counter atomically and returns
// the new count.
func (s *FeedService) LikeImage(imageID string) (int64, error) {
	likes, err := s.repo.IncrementLikes(imageID)
	if err != nil {
		return 0, err
	}

	if s.broker != nil {
		s.broker.Publish(FeedTopic, realtime.EventUpdate, map[string]any{
			"image_id": imageID,
			"likes":    likes,
		})
	}
	s.publishMQ("image.liked", map[string]interface{}{
		"imageID": imageID,
		"likes":   likes,
	})
	return likes, nil
}

// SaveImage bookmarks a feed image for a user. Other open views of the
// same user's saved list receive an insert event instead of refetching.
func (s *FeedService) SaveImage(userID, imageID string) error {
	if _, err := s.repo.GetByID(imageID); err != nil {
		return err
	}
	if err := s.repo.Save(userID, imageID); err != nil {
		return err
	}

	if s.broker != nil {
		s.broker.Publish(SavedTopic(userID), realtime.EventInsert, map[string]any{
			"image_id": imageID,
		})
	}
	s.publishMQ("image.saved", map[string]interface{}{
		"imageID": imageID,
		"userID":  userID,
	})
	return nil
}

// UnsaveImage removes a user's bookmark.
func (s *FeedService) UnsaveImage(userID, imageID string) error {
	if err := s.repo.Unsave(userID, imageID); err != nil {
		return err
	}

	if s.broker != nil {
		s.broker.Publish(SavedTopic(userID), realtime.EventDelete, map[string]any{
			"image_id": imageID,
		})
	}
	s.publishMQ("image.unsaved", map[string]interface{}{
		"imageID": imageID,
		"userID":  userID,
	})
	return nil
}

// GetSavedImages returns the feed entries a user has bookmarked.
func (s *FeedService) GetSavedImages(userID string) ([]models.FeedEntry, error) {
	return s.repo.GetSaved(userID)
}
