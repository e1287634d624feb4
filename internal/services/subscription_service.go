package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"ghiblify/internal/models"
	"ghiblify/internal/repositories"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
)

// ErrWebhookSignature marks a webhook whose signature did not verify.
// No state is mutated when this is returned.
var ErrWebhookSignature = errors.New("webhook signature verification failed")

// SubscriptionStatus is the derived billing state returned to clients.
type SubscriptionStatus struct {
	Subscription *models.Subscription `json:"subscription"`
	IsSubscribed bool                 `json:"is_subscribed"`
	IsPremium    bool                 `json:"is_premium"`
}

// SubscriptionService reflects billing state and brokers checkout.
// Subscription rows are mutated exclusively by the webhook path.
type SubscriptionService struct {
	repo          repositories.SubscriptionRepository
	userRepo      repositories.UserRepository
	webhookSecret string
	publicURL     string
}

// NewSubscriptionService creates a new SubscriptionService. secretKey
// configures the Stripe client globally.
func NewSubscriptionService(repo repositories.SubscriptionRepository, userRepo repositories.UserRepository, secretKey, webhookSecret, publicURL string) *SubscriptionService {
	if secretKey != "" {
		stripe.Key = secretKey
	}
	return &SubscriptionService{
		repo:          repo,
		userRepo:      userRepo,
		webhookSecret: webhookSecret,
		publicURL:     publicURL,
	}
}

// FetchSubscription returns the user's billing state. Users without a
// subscription row are reported as free/inactive.
func (s *SubscriptionService) FetchSubscription(userID string) (*SubscriptionStatus, error) {
	sub, err := s.repo.GetByUser(userID)
	if err != nil {
		// No row yet: never subscribed.
		return &SubscriptionStatus{
			Subscription: &models.Subscription{
				UserID: userID,
				Status: models.SubscriptionStatusInactive,
				Plan:   models.PlanFree,
			},
		}, nil
	}
	return &SubscriptionStatus{
		Subscription: sub,
		IsSubscribed: sub.IsSubscribed(),
		IsPremium:    sub.IsPremium(),
	}, nil
}

// CreateCheckoutSession starts a subscription-mode checkout for the
// given price and returns the provider session ID.
func (s *SubscriptionService) CreateCheckoutSession(userID, priceID string) (string, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve user for checkout: %w", err)
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:    stripe.String(s.publicURL + "/profile?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:     stripe.String(s.publicURL + "/subscription"),
		CustomerEmail: stripe.String(user.Email),
	}
	params.AddMetadata("userId", userID)

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	return sess.ID, nil
}

// HandleWebhook verifies and processes a billing-provider event. A bad
// signature rejects the request before any state change; unrecognized
// event types are acknowledged and ignored.
func (s *SubscriptionService) HandleWebhook(payload []byte, sigHeader string) error {
	event, err := webhook.ConstructEvent(payload, sigHeader, s.webhookSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}

	switch string(event.Type) {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(event.Data.Raw)
	case "customer.subscription.updated", "customer.subscription.deleted":
		return s.handleSubscriptionChanged(event.Data.Raw, string(event.Type) == "customer.subscription.deleted")
	default:
		log.Printf("Ignoring webhook event type %s", event.Type)
		return nil
	}
}

func (s *SubscriptionService) handleCheckoutCompleted(raw json.RawMessage) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return fmt.Errorf("failed to parse checkout session payload: %w", err)
	}

	userID := sess.Metadata["userId"]
	if userID == "" {
		log.Printf("checkout.session.completed without userId metadata, ignoring")
		return nil
	}

	sub := &models.Subscription{
		UserID: userID,
		Status: models.SubscriptionStatusActive,
		Plan:   models.PlanPremium,
	}
	if sess.Customer != nil {
		sub.StripeCustomerID = sess.Customer.ID
	}
	if sess.Subscription != nil {
		sub.StripeSubscriptionID = sess.Subscription.ID
		if sess.Subscription.CurrentPeriodEnd > 0 {
			sub.CurrentPeriodEnd = time.Unix(sess.Subscription.CurrentPeriodEnd, 0)
		}
	}

	if err := s.repo.Upsert(sub); err != nil {
		return fmt.Errorf("failed to record subscription for user %s: %w", userID, err)
	}
	log.Printf("Recorded premium subscription for user %s", userID)
	return nil
}

func (s *SubscriptionService) handleSubscriptionChanged(raw json.RawMessage, deleted bool) error {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(raw, &stripeSub); err != nil {
		return fmt.Errorf("failed to parse subscription payload: %w", err)
	}

	// Checkout is the only place we set metadata; fall back to the
	// stored provider subscription ID when metadata is absent.
	var sub *models.Subscription
	if userID := stripeSub.Metadata["userId"]; userID != "" {
		existing, err := s.repo.GetByUser(userID)
		if err != nil {
			log.Printf("Subscription event for unknown user %s, ignoring", userID)
			return nil
		}
		sub = existing
	} else {
		existing, err := s.repo.GetByStripeSubscriptionID(stripeSub.ID)
		if err != nil {
			log.Printf("Subscription event for unknown subscription %s, ignoring", stripeSub.ID)
			return nil
		}
		sub = existing
	}

	if deleted {
		sub.Status = models.SubscriptionStatusCanceled
	} else {
		sub.Status = string(stripeSub.Status)
	}
	if stripeSub.CurrentPeriodEnd > 0 {
		sub.CurrentPeriodEnd = time.Unix(stripeSub.CurrentPeriodEnd, 0)
	}

	if err := s.repo.Upsert(sub); err != nil {
		return fmt.Errorf("failed to update subscription for user %s: %w", sub.UserID, err)
	}
	log.Printf("Updated subscription for user %s to status %s", sub.UserID, sub.Status)
	return nil
}
