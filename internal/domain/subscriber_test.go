package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSubscriber(t *testing.T) {
	sub, err := NewSubscriber("https://partner.example.com/hooks", []string{EventShipmentStatusUpdated}, "s3cret")
	require.NoError(t, err)

	assert.NotEmpty(t, sub.ID)
	assert.True(t, sub.Active)
	assert.Equal(t, "s3cret", sub.Secret)
	assert.Nil(t, sub.DeactivatedAt)
	assert.True(t, sub.SubscribesTo(EventShipmentStatusUpdated))
	assert.False(t, sub.SubscribesTo("shipment.deleted"))
}

func TestNewSubscriberGeneratesSecret(t *testing.T) {
	sub, err := NewSubscriber("https://partner.example.com/hooks", []string{EventShipmentStatusUpdated}, "")
	require.NoError(t, err)

	// 16 random bytes, hex encoded
	assert.Len(t, sub.Secret, 32)

	other, err := NewSubscriber("https://partner.example.com/hooks", []string{EventShipmentStatusUpdated}, "")
	require.NoError(t, err)
	assert.NotEqual(t, sub.Secret, other.Secret)
}

func TestNewSubscriberValidation(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		events  []string
		wantErr error
	}{
		{name: "missing url", url: "  ", events: []string{EventShipmentStatusUpdated}, wantErr: ErrSubscriberURLRequired},
		{name: "no events", url: "https://x.example.com", events: nil, wantErr: ErrSubscriberNoEvents},
		{name: "blank events", url: "https://x.example.com", events: []string{"", "  "}, wantErr: ErrSubscriberNoEvents},
		{name: "status event missing", url: "https://x.example.com", events: []string{"order.created"}, wantErr: ErrStatusEventRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSubscriber(tt.url, tt.events, "")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewSubscriberKeepsExtraEvents(t *testing.T) {
	sub, err := NewSubscriber("https://x.example.com",
		[]string{EventShipmentStatusUpdated, "shipment.created"}, "")
	require.NoError(t, err)

	assert.Equal(t, []string{EventShipmentStatusUpdated, "shipment.created"}, sub.Events)
	assert.True(t, sub.SubscribesTo("shipment.created"))
}

func TestNewSubscriberDeduplicatesEvents(t *testing.T) {
	sub, err := NewSubscriber("https://x.example.com",
		[]string{EventShipmentStatusUpdated, EventShipmentStatusUpdated, " " + EventShipmentStatusUpdated + " "}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{EventShipmentStatusUpdated}, sub.Events)
}

func TestSubscriberDeactivate(t *testing.T) {
	sub, err := NewSubscriber("https://x.example.com", []string{EventShipmentStatusUpdated}, "")
	require.NoError(t, err)

	require.NoError(t, sub.Deactivate())
	assert.False(t, sub.Active)
	require.NotNil(t, sub.DeactivatedAt)

	assert.ErrorIs(t, sub.Deactivate(), ErrSubscriberAlreadyGone)
}
