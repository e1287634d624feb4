package services_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"ghiblify/internal/models"
	"ghiblify/internal/repositories"
	"ghiblify/internal/services"

	"github.com/stretchr/testify/assert"
)

const testWebhookSecret = "whsec_test_secret"

// signWebhookPayload produces a Stripe-Signature header the verifier
// accepts: an HMAC-SHA256 of "<timestamp>.<payload>" keyed by the
// endpoint secret.
func signWebhookPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func newSubscriptionService(repo repositories.SubscriptionRepository) *services.SubscriptionService {
	return services.NewSubscriptionService(repo, repositories.NewMockUserRepository(), "", testWebhookSecret, "https://app.example.com")
}

func TestSubscriptionService_FetchSubscription(t *testing.T) {
	repo := repositories.NewMockSubscriptionRepository()
	svc := newSubscriptionService(repo)

	// No row yet: free and inactive, not an error.
	status, err := svc.FetchSubscription("user-1")
	assert.NoError(t, err)
	assert.False(t, status.IsSubscribed)
	assert.False(t, status.IsPremium)
	assert.Equal(t, models.PlanFree, status.Subscription.Plan)
	assert.Equal(t, models.SubscriptionStatusInactive, status.Subscription.Status)

	assert.NoError(t, repo.Upsert(&models.Subscription{
		UserID: "user-1",
		Status: models.SubscriptionStatusActive,
		Plan:   models.PlanPremium,
	}))

	status, err = svc.FetchSubscription("user-1")
	assert.NoError(t, err)
	assert.True(t, status.IsSubscribed)
	assert.True(t, status.IsPremium)
}

func TestSubscriptionService_WebhookCheckoutCompleted(t *testing.T) {
	repo := repositories.NewMockSubscriptionRepository()
	svc := newSubscriptionService(repo)

	periodEnd := time.Now().Add(30 * 24 * time.Hour).Unix()
	payload := []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"api_version": "2023-10-16",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_test_1",
				"object": "checkout.session",
				"customer": {"id": "cus_123"},
				"subscription": {"id": "sub_123", "current_period_end": %d},
				"metadata": {"userId": "user-1"}
			}
		}
	}`, periodEnd))

	err := svc.HandleWebhook(payload, signWebhookPayload(payload, testWebhookSecret))
	assert.NoError(t, err)

	sub, err := repo.GetByUser("user-1")
	assert.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, models.PlanPremium, sub.Plan)
	assert.Equal(t, "cus_123", sub.StripeCustomerID)
	assert.Equal(t, "sub_123", sub.StripeSubscriptionID)
	assert.Equal(t, periodEnd, sub.CurrentPeriodEnd.Unix())
}

func TestSubscriptionService_WebhookBadSignature(t *testing.T) {
	repo := repositories.NewMockSubscriptionRepository()
	svc := newSubscriptionService(repo)

	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"api_version": "2023-10-16",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_test_1", "object": "checkout.session", "metadata": {"userId": "user-1"}}}
	}`)

	// Wrong secret.
	err := svc.HandleWebhook(payload, signWebhookPayload(payload, "whsec_other"))
	assert.ErrorIs(t, err, services.ErrWebhookSignature)

	// Garbage header.
	err = svc.HandleWebhook(payload, "t=0,v1=deadbeef")
	assert.ErrorIs(t, err, services.ErrWebhookSignature)

	// Missing header.
	err = svc.HandleWebhook(payload, "")
	assert.ErrorIs(t, err, services.ErrWebhookSignature)

	// Nothing was recorded.
	_, err = repo.GetByUser("user-1")
	assert.Error(t, err)
}

func TestSubscriptionService_WebhookSubscriptionUpdated(t *testing.T) {
	repo := repositories.NewMockSubscriptionRepository()
	svc := newSubscriptionService(repo)

	assert.NoError(t, repo.Upsert(&models.Subscription{
		UserID:               "user-1",
		StripeSubscriptionID: "sub_123",
		Status:               models.SubscriptionStatusActive,
		Plan:                 models.PlanPremium,
	}))

	// Metadata identifies the user directly.
	payload := []byte(`{
		"id": "evt_2",
		"object": "event",
		"api_version": "2023-10-16",
		"type": "customer.subscription.updated",
		"data": {
			"object": {
				"id": "sub_123",
				"object": "subscription",
				"status": "past_due",
				"metadata": {"userId": "user-1"}
			}
		}
	}`)
	assert.NoError(t, svc.HandleWebhook(payload, signWebhookPayload(payload, testWebhookSecret)))

	sub, err := repo.GetByUser("user-1")
	assert.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPastDue, sub.Status)

	// Without metadata the stored provider subscription ID resolves the row.
	payload = []byte(`{
		"id": "evt_3",
		"object": "event",
		"api_version": "2023-10-16",
		"type": "customer.subscription.updated",
		"data": {
			"object": {
				"id": "sub_123",
				"object": "subscription",
				"status": "active"
			}
		}
	}`)
	assert.NoError(t, svc.HandleWebhook(payload, signWebhookPayload(payload, testWebhookSecret)))

	sub, err = repo.GetByUser("user-1")
	assert.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.True(t, sub.IsSubscribed())
}

func TestSubscriptionService_WebhookSubscriptionDeleted(t *testing.T) {
	repo := repositories.NewMockSubscriptionRepository()
	svc := newSubscriptionService(repo)

	assert.NoError(t, repo.Upsert(&models.Subscription{
		UserID:               "user-1",
		StripeSubscriptionID: "sub_123",
		Status:               models.SubscriptionStatusActive,
		Plan:                 models.PlanPremium,
	}))

	payload := []byte(`{
		"id": "evt_4",
		"object": "event",
		"api_version": "2023-10-16",
		"type": "customer.subscription.deleted",
		"data": {
			"object": {
				"id": "sub_123",
				"object": "subscription",
				"status": "canceled",
				"metadata": {"userId": "user-1"}
			}
		}
	}`)
	assert.NoError(t, svc.HandleWebhook(payload, signWebhookPayload(payload, testWebhookSecret)))

	sub, err := repo.GetByUser("user-1")
	assert.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCanceled, sub.Status)
	assert.False(t, sub.IsSubscribed())
	// Plan is retained for reactivation; access is gated on status.
	assert.True(t, sub.IsPremium())
}

func TestSubscriptionService_WebhookIgnoresUnknownEvents(t *testing.T) {
	repo := repositories.NewMockSubscriptionRepository()
	svc := newSubscriptionService(repo)

	payload := []byte(`{
		"id": "evt_5",
		"object": "event",
		"api_version": "2023-10-16",
		"type": "invoice.paid",
		"data": {"object": {"id": "in_1", "object": "invoice"}}
	}`)
	assert.NoError(t, svc.HandleWebhook(payload, signWebhookPayload(payload, testWebhookSecret)))

	// Events for users we have no record of are acknowledged, not errors.
	payload = []byte(`{
		"id": "evt_6",
		"object": "event",
		"api_version": "2023-10-16",
		"type": "customer.subscription.updated",
		"data": {
			"object": {
				"id": "sub_unknown",
				"object": "subscription",
				"status": "active",
				"metadata": {"userId": "ghost"}
			}
		}
	}`)
	assert.NoError(t, svc.HandleWebhook(payload, signWebhookPayload(payload, testWebhookSecret)))
}
