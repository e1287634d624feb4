package repositories

import (
	"fmt"
	"sync"

	"ghiblify/internal/models"

	"github.com/google/uuid"
)

// MockSubscriptionRepository is an in-memory implementation of
// SubscriptionRepository.
type MockSubscriptionRepository struct {
	subs map[string]models.Subscription // keyed by userID
	mu   sync.RWMutex
}

// NewMockSubscriptionRepository creates a new instance of MockSubscriptionRepository.
func NewMockSubscriptionRepository() *MockSubscriptionRepository {
	return &MockSubscriptionRepository{
		subs: make(map[string]models.Subscription),
	}
}

// GetByUser returns a user's subscription.
func (r *MockSubscriptionRepository) GetByUser(userID string) (*models.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.subs[userID]
	if !ok {
		return nil, fmt.Errorf("subscription for user %s not found", userID)
	}
	return &sub, nil
}

// GetByStripeSubscriptionID returns a subscription by its provider ID.
func (r *MockSubscriptionRepository) GetByStripeSubscriptionID(stripeSubID string) (*models.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sub := range r.subs {
		if sub.StripeSubscriptionID == stripeSubID {
			return &sub, nil
		}
	}
	return nil, fmt.Errorf("subscription with stripe ID %s not found", stripeSubID)
}

// Upsert inserts or replaces the subscription row for a user.
func (r *MockSubscriptionRepository) Upsert(sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.subs[sub.UserID]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	} else if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	r.subs[sub.UserID] = *sub
	return nil
}
