package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/distributor-platform/tracking-service/internal/domain"
	"github.com/distributor-platform/tracking-service/pkg/logging"
	"github.com/distributor-platform/tracking-service/pkg/metrics"
)

const webhookUserAgent = "distributor-webhook/1.0"

// DispatcherConfig holds webhook delivery configuration
type DispatcherConfig struct {
	// MaxAttempts is the total number of tries per subscriber, not the
	// number of retries after the first failure.
	MaxAttempts int
	// BackoffBase is the delay before the first retry; it doubles on
	// each subsequent retry.
	BackoffBase time.Duration
	// BackoffStep is the linear component added per completed attempt
	// to spread out concurrent retry schedules.
	BackoffStep time.Duration
	// AttemptTimeout bounds a single HTTP exchange.
	AttemptTimeout time.Duration
	// Async makes Dispatch return immediately and deliver in the
	// background. Synchronous dispatch blocks until every subscriber
	// has a final outcome.
	Async bool
}

// DefaultDispatcherConfig returns the production delivery configuration
func DefaultDispatcherConfig() *DispatcherConfig {
	return &DispatcherConfig{
		MaxAttempts:    3,
		BackoffBase:    700 * time.Millisecond,
		BackoffStep:    50 * time.Millisecond,
		AttemptTimeout: 5 * time.Second,
		Async:          true,
	}
}

// AttemptOutcome classifies how a single delivery attempt ended
type AttemptOutcome int

const (
	// OutcomeDelivered means the target acknowledged with a 2xx.
	OutcomeDelivered AttemptOutcome = iota
	// OutcomeRetry means the attempt failed and another attempt remains.
	OutcomeRetry
	// OutcomeExhausted means the attempt failed and none remain.
	OutcomeExhausted
)

// DeliveryResult is the final outcome for one subscriber. Outcomes are
// independent per subscriber: one exhaustion never affects another
// subscriber's delivery.
type DeliveryResult struct {
	SubscriberID string
	TargetURL    string
	Delivered    bool
	Attempts     int
	LastError    string
}

// Dispatcher fans a signed status event out to webhook subscribers with
// bounded retries, dead-lettering exhausted deliveries.
type Dispatcher struct {
	config      *DispatcherConfig
	client      *http.Client
	deadLetters domain.DeadLetterRepository
	logger      *logging.Logger
	metrics     *metrics.Metrics

	// sleep is swapped in tests to observe the backoff schedule.
	sleep func(time.Duration)

	wg sync.WaitGroup
}

// NewDispatcher creates a webhook dispatcher
func NewDispatcher(config *DispatcherConfig, deadLetters domain.DeadLetterRepository, logger *logging.Logger, m *metrics.Metrics) *Dispatcher {
	if config == nil {
		config = DefaultDispatcherConfig()
	}
	return &Dispatcher{
		config:      config,
		client:      &http.Client{Timeout: config.AttemptTimeout},
		deadLetters: deadLetters,
		logger:      logger.WithComponent("webhook-dispatcher"),
		metrics:     m,
		sleep:       time.Sleep,
	}
}

// Dispatch delivers the event to every subscriber. The payload is
// serialized exactly once; each subscriber gets the same bytes signed
// under its own secret. Per-subscriber failures are absorbed into
// results and dead letters, never returned as an aggregate error.
func (d *Dispatcher) Dispatch(ctx context.Context, event domain.StatusEvent, subscribers []*domain.Subscriber) error {
	if len(subscribers) == 0 {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event %s: %w", event.ID, err)
	}

	if d.config.Async {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliverAll(context.WithoutCancel(ctx), event, payload, subscribers)
		}()
		return nil
	}

	d.deliverAll(ctx, event, payload, subscribers)
	return nil
}

// Wait blocks until all background deliveries have finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliverAll(ctx context.Context, event domain.StatusEvent, payload []byte, subscribers []*domain.Subscriber) {
	var wg sync.WaitGroup
	for _, sub := range subscribers {
		wg.Add(1)
		go func(sub *domain.Subscriber) {
			defer wg.Done()
			d.deliverOne(ctx, event, payload, sub)
		}(sub)
	}
	wg.Wait()
}

func (d *Dispatcher) deliverOne(ctx context.Context, event domain.StatusEvent, payload []byte, sub *domain.Subscriber) DeliveryResult {
	result := DeliveryResult{
		SubscriberID: sub.ID,
		TargetURL:    sub.TargetURL,
	}
	signature := Sign(sub.Secret, payload)

	start := time.Now()
	for attempt := 0; attempt < d.config.MaxAttempts; attempt++ {
		result.Attempts = attempt + 1

		err := d.post(ctx, sub.TargetURL, event, payload, signature)
		d.metrics.RecordWebhookAttempt(event.Type, err == nil)

		if err == nil {
			result.Delivered = true
			break
		}
		result.LastError = err.Error()

		switch d.classify(attempt) {
		case OutcomeRetry:
			d.logger.WithContext(ctx).Warn("webhook attempt failed, retrying",
				"subscriberId", sub.ID,
				"eventId", event.ID,
				"attempt", result.Attempts,
				"error", result.LastError,
			)
			d.sleep(backoffDelay(d.config.BackoffBase, d.config.BackoffStep, attempt))
		case OutcomeExhausted:
			d.deadLetter(ctx, event, sub, result.LastError)
		}
	}

	duration := time.Since(start)
	d.metrics.RecordWebhookDelivery(event.Type, result.Delivered, duration)
	d.logger.WebhookDelivery(ctx, sub.ID, sub.TargetURL, event.ID, result.Attempts, result.Delivered, duration)

	return result
}

// classify decides what follows a failed attempt. attempt is zero-based.
func (d *Dispatcher) classify(attempt int) AttemptOutcome {
	if attempt+1 < d.config.MaxAttempts {
		return OutcomeRetry
	}
	return OutcomeExhausted
}

func (d *Dispatcher) post(ctx context.Context, targetURL string, event domain.StatusEvent, payload []byte, signature string) error {
	ctx, cancel := context.WithTimeout(ctx, d.config.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(payload))
	if err != nil {
		return &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)
	req.Header.Set(EventTypeHeader, event.Type)
	req.Header.Set(EventIDHeader, event.ID)
	req.Header.Set(SignatureHeader, signature)

	resp, err := d.client.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	return NewRemoteRejection(resp.StatusCode, body)
}

func (d *Dispatcher) deadLetter(ctx context.Context, event domain.StatusEvent, sub *domain.Subscriber, lastError string) {
	letter := domain.NewDeadLetter(sub.ID, sub.TargetURL, event, lastError)
	if err := d.deadLetters.Append(ctx, letter); err != nil {
		d.logger.WithContext(ctx).Error("failed to record dead letter",
			"subscriberId", sub.ID,
			"eventId", event.ID,
			"error", err.Error(),
		)
		return
	}
	d.metrics.RecordWebhookDeadLetter(event.Type)
}

// backoffDelay computes the wait after the given zero-based failed
// attempt: base doubles per attempt, plus a small linear step.
func backoffDelay(base, step time.Duration, attempt int) time.Duration {
	exp := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	return exp + time.Duration(attempt)*step
}
