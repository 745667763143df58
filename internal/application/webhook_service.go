package application

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/distributor-platform/tracking-service/internal/domain"
	"github.com/distributor-platform/tracking-service/pkg/errors"
	"github.com/distributor-platform/tracking-service/pkg/logging"
	"github.com/distributor-platform/tracking-service/pkg/metrics"
)

// WebhookApplicationService handles subscription lifecycle and the
// dead-letter listing
type WebhookApplicationService struct {
	subscribers domain.SubscriberRepository
	deadLetters domain.DeadLetterRepository
	metrics     *metrics.Metrics
	logger      *logging.Logger
}

// NewWebhookApplicationService creates a new WebhookApplicationService
func NewWebhookApplicationService(
	subscribers domain.SubscriberRepository,
	deadLetters domain.DeadLetterRepository,
	m *metrics.Metrics,
	logger *logging.Logger,
) *WebhookApplicationService {
	return &WebhookApplicationService{
		subscribers: subscribers,
		deadLetters: deadLetters,
		metrics:     m,
		logger:      logger,
	}
}

// Subscribe registers a webhook consumer. The response is the only place
// the generated secret is ever returned.
func (s *WebhookApplicationService) Subscribe(ctx context.Context, cmd SubscribeCommand) (*SubscriptionDTO, error) {
	existing, err := s.subscribers.FindActiveByURL(ctx, cmd.TargetURL)
	if err != nil && !stderrors.Is(err, domain.ErrSubscriberNotFound) {
		s.logger.WithError(err).Error("Failed to check existing subscription", "targetUrl", cmd.TargetURL)
		return nil, fmt.Errorf("failed to check existing subscription: %w", err)
	}
	if existing != nil {
		return nil, errors.ErrConflict("an active subscription already exists for this URL")
	}

	subscriber, err := domain.NewSubscriber(cmd.TargetURL, cmd.Events, cmd.Secret)
	if err != nil {
		return nil, errors.ErrValidation(err.Error())
	}

	if err := s.subscribers.Save(ctx, subscriber); err != nil {
		s.logger.WithError(err).Error("Failed to save subscriber", "targetUrl", cmd.TargetURL)
		return nil, fmt.Errorf("failed to save subscriber: %w", err)
	}

	s.refreshActiveGauge(ctx)
	s.logger.Info("Registered webhook subscriber", "subscriberId", subscriber.ID, "targetUrl", subscriber.TargetURL)
	return ToSubscriptionDTO(subscriber, true), nil
}

// Unsubscribe logically deletes a subscriber by ID or target URL. The
// records stay in the store so past deliveries remain attributable.
// Idempotent: unsubscribing an already-inactive subscriber, or a URL
// with no active subscription, succeeds with zero matched records.
func (s *WebhookApplicationService) Unsubscribe(ctx context.Context, cmd UnsubscribeCommand) (*UnsubscribeDTO, error) {
	switch {
	case cmd.SubscriberID != "":
		return s.unsubscribeByID(ctx, cmd.SubscriberID)
	case cmd.TargetURL != "":
		return s.unsubscribeByURL(ctx, cmd.TargetURL)
	default:
		return nil, errors.ErrValidation("either subscriberId or targetUrl is required")
	}
}

func (s *WebhookApplicationService) unsubscribeByID(ctx context.Context, subscriberID string) (*UnsubscribeDTO, error) {
	subscriber, err := s.subscribers.FindByID(ctx, subscriberID)
	if stderrors.Is(err, domain.ErrSubscriberNotFound) {
		return nil, errors.ErrNotFoundWithID("subscriber", subscriberID)
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to get subscriber", "subscriberId", subscriberID)
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}

	if !subscriber.Active {
		return &UnsubscribeDTO{Matched: 0, Subscriber: ToSubscriptionDTO(subscriber, false)}, nil
	}

	if err := subscriber.Deactivate(); err != nil {
		return nil, errors.ErrConflict(err.Error())
	}

	if err := s.subscribers.Save(ctx, subscriber); err != nil {
		s.logger.WithError(err).Error("Failed to save subscriber", "subscriberId", subscriber.ID)
		return nil, fmt.Errorf("failed to save subscriber: %w", err)
	}

	s.refreshActiveGauge(ctx)
	s.logger.Info("Deactivated webhook subscriber", "subscriberId", subscriber.ID, "targetUrl", subscriber.TargetURL)
	return &UnsubscribeDTO{Matched: 1, Subscriber: ToSubscriptionDTO(subscriber, false)}, nil
}

// unsubscribeByURL deactivates every active record for the URL in one
// update, so duplicates written by the legacy system all stop receiving
// deliveries at once.
func (s *WebhookApplicationService) unsubscribeByURL(ctx context.Context, targetURL string) (*UnsubscribeDTO, error) {
	matched, err := s.subscribers.DeactivateAllByURL(ctx, targetURL)
	if err != nil {
		s.logger.WithError(err).Error("Failed to deactivate subscribers", "targetUrl", targetURL)
		return nil, fmt.Errorf("failed to deactivate subscribers: %w", err)
	}

	if matched > 0 {
		s.refreshActiveGauge(ctx)
		s.logger.Info("Deactivated webhook subscribers", "targetUrl", targetURL, "matched", matched)
	}
	return &UnsubscribeDTO{Matched: int(matched)}, nil
}

// ListDeadLetters returns the most recent exhausted deliveries
func (s *WebhookApplicationService) ListDeadLetters(ctx context.Context, query ListDeadLettersQuery) ([]DeadLetterDTO, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	letters, err := s.deadLetters.FindRecent(ctx, limit)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list dead letters")
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}

	return ToDeadLetterDTOs(letters), nil
}

func (s *WebhookApplicationService) refreshActiveGauge(ctx context.Context) {
	count, err := s.subscribers.CountActive(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to count active subscribers")
		return
	}
	s.metrics.SetActiveSubscriptions(int(count))
}
