package repositories

import (
	"fmt"

	"ghiblify/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMSubscriptionRepository is a GORM implementation of SubscriptionRepository.
type GORMSubscriptionRepository struct {
	db *gorm.DB
}

// NewGORMSubscriptionRepository creates a new instance of GORMSubscriptionRepository.
func NewGORMSubscriptionRepository(db *gorm.DB) *GORMSubscriptionRepository {
	return &GORMSubscriptionRepository{
		db: db,
	}
}

// GetByUser retrieves a user's subscription row.
func (r *GORMSubscriptionRepository) GetByUser(userID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.First(&sub, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("subscription for user %s not found", userID)
		}
		return nil, fmt.Errorf("failed to get subscription for user %s: %w", userID, err)
	}
	return &sub, nil
}

// GetByStripeSubscriptionID retrieves a subscription by its billing-provider ID.
func (r *GORMSubscriptionRepository) GetByStripeSubscriptionID(stripeSubID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.First(&sub, "stripe_subscription_id = ?", stripeSubID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("subscription with stripe ID %s not found", stripeSubID)
		}
		return nil, fmt.Errorf("failed to get subscription by stripe ID %s: %w", stripeSubID, err)
	}
	return &sub, nil
}

// Upsert inserts the subscription row for a user or replaces the
// existing one. user_id carries a unique index, one row per user.
func (r *GORMSubscriptionRepository) Upsert(sub *models.Subscription) error {
	var existing models.Subscription
	err := r.db.First(&existing, "user_id = ?", sub.UserID).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("failed to look up subscription for user %s: %w", sub.UserID, err)
		}
		if sub.ID == "" {
			sub.ID = uuid.New().String()
		}
		if err := r.db.Create(sub).Error; err != nil {
			return fmt.Errorf("failed to create subscription for user %s: %w", sub.UserID, err)
		}
		return nil
	}

	sub.ID = existing.ID
	sub.CreatedAt = existing.CreatedAt
	if err := r.db.Save(sub).Error; err != nil {
		return fmt.Errorf("failed to update subscription for user %s: %w", sub.UserID, err)
	}
	return nil
}
