package repositories

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"ghiblify/internal/models"

	"github.com/google/uuid"
)

// MockFeedRepository is an in-memory implementation of FeedRepository.
type MockFeedRepository struct {
	images map[string]models.FeedImage
	saved  map[string]models.SavedImage // keyed by userID+"/"+imageID
	users  map[string]models.User
	mu     sync.RWMutex
}

// NewMockFeedRepository creates a new instance of MockFeedRepository.
func NewMockFeedRepository() *MockFeedRepository {
	return &MockFeedRepository{
		images: make(map[string]models.FeedImage),
		saved:  make(map[string]models.SavedImage),
		users:  make(map[string]models.User),
	}
}

// SeedUser registers an author so feed entries can denormalize
// username and avatar.
func (r *MockFeedRepository) SeedUser(user models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
}

// Create adds a new feed image.
func (r *MockFeedRepository) Create(image *models.FeedImage) error {
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

func (r *MockFeedRepository) entry(img models.FeedImage) models.FeedEntry {
	author := r.users[img.UserID]
	return models.FeedEntry{
		ID:        img.ID,
		UserID:    img.UserID,
		Prompt:    img.Prompt,
		ImageURL:  img.ImageURL,
		Likes:     img.Likes,
		Username:  author.Username,
		AvatarURL: author.AvatarURL,
		CreatedAt: img.CreatedAt,
	}
}

func (r *MockFeedRepository) sortedImages() []models.FeedImage {
	imageList := make([]models.FeedImage, 0, len(r.images))
	for _, img := range r.images {
		imageList = append(imageList, img)
	}
	sort.Slice(imageList, func(i, j int) bool {
		if imageList[i].CreatedAt.Equal(imageList[j].CreatedAt) {
			return imageList[i].ID < imageList[j].ID
		}
		return imageList[i].CreatedAt.After(imageList[j].CreatedAt)
	})
	return imageList
}

// GetPage returns one page of the feed, newest first.
func (r *MockFeedRepository) GetPage(page, pageSize int) ([]models.FeedEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if page < 1 {
		page = 1
	}
	sorted := r.sortedImages()
	from := (page - 1) * pageSize
	if from >= len(sorted) {
		return []models.FeedEntry{}, nil
	}
	to := from + pageSize
	if to > len(sorted) {
		to = len(sorted)
	}
	entries := make([]models.FeedEntry, 0, to-from)
	for _, img := range sorted[from:to] {
		entries = append(entries, r.entry(img))
	}
	return entries, nil
}

// GetByID returns a feed image by its ID.
func (r *MockFeedRepository) GetByID(id string) (*models.FeedImage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	image, ok := r.images[id]
	if !ok {
		return nil, fmt.Errorf("feed image with ID %s not found", id)
	}
	return &image, nil
}

// IncrementLikes bumps the like counter under the repository lock.
func (r *MockFeedRepository) IncrementLikes(id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	image, ok := r.images[id]
	if !ok {
		return 0, fmt.Errorf("feed image with ID %s not found", id)
	}
	image.Likes++
	r.images[id] = image
	return image.Likes, nil
}

// Save bookmarks a feed image for a user.
func (r *MockFeedRepository) Save(userID, imageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.images[imageID]; !ok {
		return fmt.Errorf("feed image with ID %s not found", imageID)
	}
	key := userID + "/" + imageID
	if _, ok := r.saved[key]; ok {
		return fmt.Errorf("feed image %s already saved for user %s", imageID, userID)
	}
	r.saved[key] = models.SavedImage{
		ID:        uuid.New().String(),
		UserID:    userID,
		ImageID:   imageID,
		CreatedAt: time.Now(),
	}
	return nil
}

// Unsave removes a user's bookmark.
func (r *MockFeedRepository) Unsave(userID, imageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := userID + "/" + imageID
	if _, ok := r.saved[key]; !ok {
		return fmt.Errorf("saved image %s not found for user %s", imageID, userID)
	}
	delete(r.saved, key)
	return nil
}

// GetSaved returns the feed entries a user has bookmarked.
func (r *MockFeedRepository) GetSaved(userID string) ([]models.FeedEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bookmarks := make([]models.SavedImage, 0)
	for _, s := range r.saved {
		if s.UserID == userID {
			bookmarks = append(bookmarks, s)
		}
	}
	sort.Slice(bookmarks, func(i, j int) bool {
		return bookmarks[i].CreatedAt.After(bookmarks[j].CreatedAt)
	})

	entries := make([]models.FeedEntry, 0, len(bookmarks))
	for _, s := range bookmarks {
		if img, ok := r.images[s.ImageID]; ok {
			entries = append(entries, r.entry(img))
		}
	}
	return entries, nil
}

// CountByUser counts feed images owned by a user.
func (r *MockFeedRepository) CountByUser(userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, img := range r.images {
		if img.UserID == userID {
			count++
		}
	}
	return count, nil
}

// SumLikesByUser totals the likes across a user's feed images.
func (r *MockFeedRepository) SumLikesByUser(userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sum int64
	for _, img := range r.images {
		if img.UserID == userID {
			sum += img.Likes
		}
	}
	return sum, nil
}
