package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/distributor-platform/tracking-service/internal/domain"
	"github.com/distributor-platform/tracking-service/pkg/logging"
	"github.com/distributor-platform/tracking-service/pkg/metrics"
)

const broadcastUserAgent = "distributor-direct/1.0"

// Drop reasons for broadcast metrics
const (
	DropQueueFull       = "queue_full"
	DropUnknownPartner  = "unknown_partner"
	DropMissingShipment = "missing_shipment"
	DropClosed          = "closed"
)

// BroadcasterConfig holds direct broadcast configuration
type BroadcasterConfig struct {
	// QueueSize bounds the pending broadcast queue. A full queue drops
	// new broadcasts instead of blocking status updates.
	QueueSize int
	// Workers is the number of goroutines draining the queue.
	Workers int
	// MaxAttempts is the total number of tries per broadcast.
	MaxAttempts int
	// BackoffBase is the delay before the first retry; it doubles on
	// each subsequent retry.
	BackoffBase time.Duration
	// BackoffStep is the linear component added per completed attempt.
	BackoffStep time.Duration
	// AttemptTimeout bounds a single HTTP exchange.
	AttemptTimeout time.Duration
}

// DefaultBroadcasterConfig returns the production broadcast configuration
func DefaultBroadcasterConfig() *BroadcasterConfig {
	return &BroadcasterConfig{
		QueueSize:      256,
		Workers:        4,
		MaxAttempts:    3,
		BackoffBase:    700 * time.Millisecond,
		BackoffStep:    50 * time.Millisecond,
		AttemptTimeout: 5 * time.Second,
	}
}

// ShipmentLookup re-reads the shipment a queued broadcast refers to
type ShipmentLookup interface {
	FindByID(ctx context.Context, shipmentID string) (*domain.Shipment, error)
}

// broadcastJob records a transition; the worker re-fetches the shipment
// so a stale snapshot is never broadcast.
type broadcastJob struct {
	shipmentID string
	oldStatus  domain.Status
	newStatus  domain.Status
}

// Broadcaster pushes unsigned status events directly to known partner
// systems. Delivery is fire-and-forget: exhausted retries are logged and
// counted, never dead-lettered.
type Broadcaster struct {
	config    *BroadcasterConfig
	client    *http.Client
	partners  map[string]string
	shipments ShipmentLookup
	logger    *logging.Logger
	metrics   *metrics.Metrics

	// sleep is swapped in tests to observe the backoff schedule.
	sleep func(time.Duration)

	jobs      chan broadcastJob
	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewBroadcaster creates a broadcaster and starts its worker pool.
// partners maps partner identifiers to their ingest endpoints.
func NewBroadcaster(config *BroadcasterConfig, partners map[string]string, shipments ShipmentLookup, logger *logging.Logger, m *metrics.Metrics) *Broadcaster {
	if config == nil {
		config = DefaultBroadcasterConfig()
	}

	b := &Broadcaster{
		config:    config,
		client:    &http.Client{Timeout: config.AttemptTimeout},
		partners:  partners,
		shipments: shipments,
		logger:    logger.WithComponent("direct-broadcaster"),
		metrics:   m,
		sleep:     time.Sleep,
		jobs:      make(chan broadcastJob, config.QueueSize),
	}

	for i := 0; i < config.Workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}

	return b
}

// Enqueue queues a broadcast for a status transition. It never blocks:
// a full queue drops the broadcast with a counted reason. The shipment
// and its partner endpoint are resolved by the worker, not here.
func (b *Broadcaster) Enqueue(ctx context.Context, shipmentID string, oldStatus, newStatus domain.Status) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.metrics.RecordBroadcastDropped(DropClosed)
		return nil
	}

	select {
	case b.jobs <- broadcastJob{shipmentID: shipmentID, oldStatus: oldStatus, newStatus: newStatus}:
		b.metrics.SetBroadcastQueueDepth(len(b.jobs))
	default:
		b.metrics.RecordBroadcastDropped(DropQueueFull)
		b.logger.WithContext(ctx).Warn("broadcast queue full, dropping transition",
			"shipmentId", shipmentID,
			"newStatus", string(newStatus),
		)
	}

	return nil
}

// HasPartner reports whether a broadcast endpoint is configured
func (b *Broadcaster) HasPartner(partnerID string) bool {
	_, ok := b.partners[partnerID]
	return ok
}

// Close stops accepting broadcasts and waits for queued ones to drain
func (b *Broadcaster) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		close(b.jobs)
		b.mu.Unlock()
		b.wg.Wait()
	})
}

func (b *Broadcaster) worker() {
	defer b.wg.Done()
	for job := range b.jobs {
		b.metrics.SetBroadcastQueueDepth(len(b.jobs))
		b.broadcast(job)
	}
}

// broadcast re-fetches the shipment, resolves the partner endpoint and
// delivers the rebuilt event. A missing shipment or unmapped partner is
// a logged no-op, not an error.
func (b *Broadcaster) broadcast(job broadcastJob) {
	ctx := context.Background()

	shipment, err := b.shipments.FindByID(ctx, job.shipmentID)
	if err != nil {
		b.metrics.RecordBroadcastDropped(DropMissingShipment)
		b.logger.Warn("broadcast shipment no longer readable, dropping",
			"shipmentId", job.shipmentID,
			"error", err.Error(),
		)
		return
	}

	targetURL, ok := b.partners[shipment.PartnerID]
	if !ok {
		b.metrics.RecordBroadcastDropped(DropUnknownPartner)
		b.logger.Debug("no broadcast endpoint for partner",
			"partnerId", shipment.PartnerID,
			"shipmentId", job.shipmentID,
		)
		return
	}

	event := domain.BuildStatusEvent(shipment, job.oldStatus, job.newStatus, shipment.UpdatedAt)
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.WithError(err).Error("failed to serialize broadcast event", "eventId", event.ID)
		return
	}

	attempts := 0
	var lastErr error
	for attempt := 0; attempt < b.config.MaxAttempts; attempt++ {
		attempts = attempt + 1

		lastErr = b.post(ctx, targetURL, event, payload)
		if lastErr == nil {
			break
		}
		if attempt+1 < b.config.MaxAttempts {
			b.sleep(backoffDelay(b.config.BackoffBase, b.config.BackoffStep, attempt))
		}
	}

	success := lastErr == nil
	b.metrics.RecordBroadcastOutcome(success)
	b.logger.BroadcastDelivery(ctx, shipment.PartnerID, targetURL, event.ID, attempts, success)
	if lastErr != nil {
		b.logger.Warn("direct broadcast exhausted retries",
			"partnerId", shipment.PartnerID,
			"eventId", event.ID,
			"attempts", attempts,
			"error", lastErr.Error(),
		)
	}
}

func (b *Broadcaster) post(ctx context.Context, targetURL string, event domain.StatusEvent, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, b.config.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(payload))
	if err != nil {
		return &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", broadcastUserAgent)
	req.Header.Set(EventTypeHeader, event.Type)
	req.Header.Set(EventIDHeader, event.ID)

	resp, err := b.client.Do(req)
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
