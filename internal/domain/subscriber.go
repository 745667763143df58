package domain

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Errors
var (
	ErrSubscriberNotFound    = errors.New("subscriber not found")
	ErrSubscriberURLRequired = errors.New("subscriber target URL is required")
	ErrSubscriberNoEvents    = errors.New("subscriber must register at least one event type")
	ErrStatusEventRequired   = errors.New("subscriber events must include the status-update event")
	ErrSubscriberAlreadyGone = errors.New("subscriber is already inactive")
)

// Subscriber is a registered webhook consumer. Subscribers are never
// physically deleted: unsubscribing flips Active to false so delivery
// history stays attributable.
type Subscriber struct {
	ID            string     `bson:"_id"`
	TargetURL     string     `bson:"targetUrl"`
	Events        []string   `bson:"events"`
	Secret        string     `bson:"secret"`
	Active        bool       `bson:"isActive"`
	CreatedAt     time.Time  `bson:"createdAt"`
	UpdatedAt     time.Time  `bson:"updatedAt"`
	DeactivatedAt *time.Time `bson:"deactivatedAt,omitempty"`
}

// NewSubscriber registers a webhook consumer. An empty secret gets a
// generated one so every subscriber can verify signatures from day one.
func NewSubscriber(targetURL string, events []string, secret string) (*Subscriber, error) {
	targetURL = strings.TrimSpace(targetURL)
	if targetURL == "" {
		return nil, ErrSubscriberURLRequired
	}

	normalized := normalizeEvents(events)
	if len(normalized) == 0 {
		return nil, ErrSubscriberNoEvents
	}
	// Extra event types are kept as-is; only the status-update event is
	// required to be among them.
	if !containsEvent(normalized, EventShipmentStatusUpdated) {
		return nil, ErrStatusEventRequired
	}

	if secret == "" {
		generated, err := GenerateSecret()
		if err != nil {
			return nil, err
		}
		secret = generated
	}

	now := time.Now().UTC()
	return &Subscriber{
		ID:        uuid.New().String(),
		TargetURL: targetURL,
		Events:    normalized,
		Secret:    secret,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GenerateSecret produces a random shared secret for request signing
func GenerateSecret() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Deactivate performs the logical delete
func (s *Subscriber) Deactivate() error {
	if !s.Active {
		return ErrSubscriberAlreadyGone
	}
	now := time.Now().UTC()
	s.Active = false
	s.DeactivatedAt = &now
	s.UpdatedAt = now
	return nil
}

// SubscribesTo reports whether the subscriber registered for an event type
func (s *Subscriber) SubscribesTo(eventType string) bool {
	return containsEvent(s.Events, eventType)
}

func containsEvent(events []string, eventType string) bool {
	for _, ev := range events {
		if ev == eventType {
			return true
		}
	}
	return false
}

func normalizeEvents(events []string) []string {
	seen := make(map[string]bool, len(events))
	out := make([]string, 0, len(events))
	for _, ev := range events {
		ev = strings.TrimSpace(ev)
		if ev == "" || seen[ev] {
			continue
		}
		seen[ev] = true
		out = append(out, ev)
	}
	return out
}
