package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"reflexion/internal/cache"
	"reflexion/internal/models"
	"reflexion/internal/observability"
	"reflexion/internal/payments"
	"reflexion/internal/repository"
	"reflexion/internal/retry"
)

// Webhook outcomes recorded in metrics.
const (
	webhookApplied   = "applied"
	webhookDuplicate = "duplicate"
	webhookIgnored   = "ignored"
	webhookRejected  = "rejected"
	webhookFailed    = "failed"
)

// SubscriptionCreator opens a checkout with the payment provider.
type SubscriptionCreator interface {
	CreateSubscription(ctx context.Context, req payments.SubscriptionRequest) (*payments.Subscription, error)
}

type BillingService struct {
	users         repository.UserRepository
	provider      SubscriptionCreator
	planID        string
	backURL       string
	webhookSecret string
	tolerance     time.Duration
	policy        retry.Policy
	now           func() time.Time
}

type BillingConfig struct {
	PlanID        string
	AppURL        string
	WebhookSecret string
}

func NewBillingService(users repository.UserRepository, provider SubscriptionCreator, cfg BillingConfig) *BillingService {
	return &BillingService{
		users:         users,
		provider:      provider,
		planID:        cfg.PlanID,
		backURL:       strings.TrimRight(cfg.AppURL, "/") + "/app/settings",
		webhookSecret: cfg.WebhookSecret,
		tolerance:     payments.DefaultTolerance,
		policy:        retry.DefaultPolicy,
		now:           time.Now,
	}
}

// Checkout starts a subscription for userID and returns the provider URL
// the client should be redirected to.
func (s *BillingService) Checkout(ctx context.Context, userID string) (string, error) {
	user, err := retry.Do(ctx, s.policy, "user.get", func() (*models.User, error) {
		return s.users.GetByID(ctx, userID)
	})
	if err != nil {
		return "", err
	}
	if user.SubscriptionStatus == models.SubscriptionActive {
		return "", models.NewConflictError("subscription is already active")
	}

	sub, err := s.provider.CreateSubscription(ctx, payments.SubscriptionRequest{
		PlanID:            s.planID,
		PayerEmail:        user.Email,
		ExternalReference: user.ID,
		BackURL:           s.backURL,
	})
	if err != nil {
		return "", err
	}

	observability.LogServiceCall(ctx, "BillingService", "Checkout",
		slog.String("user_id", user.ID),
		slog.String("subscription_id", sub.ID),
	)
	return sub.InitPoint, nil
}

// HandleWebhook applies a signed provider notification. Deliveries are
// deduplicated by event id, so provider retries are harmless.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if err := payments.VerifySignature(s.webhookSecret, payload, signature, s.now(), s.tolerance); err != nil {
		observability.WebhookEvents.WithLabelValues(webhookRejected).Inc()
		return models.NewUnauthorizedError("invalid webhook signature")
	}

	ev, err := payments.ParseEvent(payload)
	if err != nil {
		observability.WebhookEvents.WithLabelValues(webhookRejected).Inc()
		return err
	}

	status, ok := payments.MapStatus(ev.Data.Status)
	if !ok || ev.Data.ExternalReference == "" {
		observability.WebhookEvents.WithLabelValues(webhookIgnored).Inc()
		return nil
	}

	first, err := cache.MarkWebhookEvent(ctx, ev.ID)
	if err != nil {
		return models.NewUnavailableError(err)
	}
	if !first {
		observability.WebhookEvents.WithLabelValues(webhookDuplicate).Inc()
		return nil
	}

	err = retry.Exec(ctx, s.policy, "user.set_subscription", func() error {
		return s.users.SetSubscriptionStatus(ctx, ev.Data.ExternalReference, status)
	})
	if err != nil {
		if models.IsNotFound(err) {
			observability.WebhookEvents.WithLabelValues(webhookIgnored).Inc()
			observability.GlobalLogger.WarnContext(ctx, "webhook for unknown user",
				slog.String("event_id", ev.ID),
				slog.String("external_reference", ev.Data.ExternalReference),
			)
			return nil
		}
		cache.ForgetWebhookEvent(ctx, ev.ID)
		observability.WebhookEvents.WithLabelValues(webhookFailed).Inc()
		return err
	}

	observability.WebhookEvents.WithLabelValues(webhookApplied).Inc()
	observability.LogServiceCall(ctx, "BillingService", "HandleWebhook",
		slog.String("event_id", ev.ID),
		slog.String("user_id", ev.Data.ExternalReference),
		slog.String("status", string(status)),
	)
	return nil
}
