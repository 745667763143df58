package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeadLetter records a webhook delivery that exhausted every attempt.
// Entries are append-only; Retryable marks them as candidates for a
// future replay job.
type DeadLetter struct {
	ID           string      `bson:"_id"`
	SubscriberID string      `bson:"subscriberId"`
	TargetURL    string      `bson:"targetUrl"`
	Event        StatusEvent `bson:"event"`
	LastError    string      `bson:"lastError"`
	Retryable    bool        `bson:"retryable"`
	CreatedAt    time.Time   `bson:"createdAt"`
}

// NewDeadLetter captures an exhausted delivery
func NewDeadLetter(subscriberID, targetURL string, event StatusEvent, lastError string) *DeadLetter {
	return &DeadLetter{
		ID:           uuid.New().String(),
		SubscriberID: subscriberID,
		TargetURL:    targetURL,
		Event:        event,
		LastError:    lastError,
		Retryable:    true,
		CreatedAt:    time.Now().UTC(),
	}
}
