package repositories

import "ghiblify/internal/models"

// SubscriptionRepository defines the interface for billing state.
// Only the webhook path writes; everything else reads.
type SubscriptionRepository interface {
	GetByUser(userID string) (*models.Subscription, error)
	GetByStripeSubscriptionID(stripeSubID string) (*models.Subscription, error)
	Upsert(sub *models.Subscription) error
}
