package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distributor-platform/tracking-service/internal/domain"
	"github.com/distributor-platform/tracking-service/pkg/errors"
)

func newWebhookService() (*WebhookApplicationService, *memorySubscribers, *memoryDeadLetters) {
	subscribers := newMemorySubscribers()
	deadLetters := &memoryDeadLetters{}
	service := NewWebhookApplicationService(subscribers, deadLetters, testMetrics(), testLogger())
	return service, subscribers, deadLetters
}

func TestSubscribe(t *testing.T) {
	service, subscribers, _ := newWebhookService()

	dto, err := service.Subscribe(context.Background(), SubscribeCommand{
		TargetURL: "https://partner.example.com/hooks",
		Events:    []string{domain.EventShipmentStatusUpdated},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, dto.ID)
	assert.True(t, dto.Active)
	// The generated secret is returned exactly once, at registration
	assert.NotEmpty(t, dto.Secret)

	stored, err := subscribers.FindByID(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.Secret, stored.Secret)
}

func TestSubscribeDuplicateURLConflicts(t *testing.T) {
	service, _, _ := newWebhookService()

	cmd := SubscribeCommand{
		TargetURL: "https://partner.example.com/hooks",
		Events:    []string{domain.EventShipmentStatusUpdated},
	}

	_, err := service.Subscribe(context.Background(), cmd)
	require.NoError(t, err)

	_, err = service.Subscribe(context.Background(), cmd)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeConflict, appErr.Code)
}

func TestSubscribeValidation(t *testing.T) {
	service, _, _ := newWebhookService()

	tests := []struct {
		name string
		cmd  SubscribeCommand
	}{
		{name: "missing url", cmd: SubscribeCommand{Events: []string{domain.EventShipmentStatusUpdated}}},
		{name: "no events", cmd: SubscribeCommand{TargetURL: "https://x.example.com"}},
		{name: "status event missing", cmd: SubscribeCommand{TargetURL: "https://x.example.com", Events: []string{"order.created"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Subscribe(context.Background(), tt.cmd)
			appErr, ok := errors.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, errors.CodeValidationError, appErr.Code)
		})
	}
}

func TestUnsubscribeByID(t *testing.T) {
	service, subscribers, _ := newWebhookService()

	created, err := service.Subscribe(context.Background(), SubscribeCommand{
		TargetURL: "https://partner.example.com/hooks",
		Events:    []string{domain.EventShipmentStatusUpdated},
	})
	require.NoError(t, err)

	dto, err := service.Unsubscribe(context.Background(), UnsubscribeCommand{SubscriberID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, dto.Matched)
	require.NotNil(t, dto.Subscriber)
	assert.False(t, dto.Subscriber.Active)
	assert.Empty(t, dto.Subscriber.Secret)

	// Logical delete: the record still exists, just inactive
	stored, err := subscribers.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
	require.NotNil(t, stored.DeactivatedAt)
}

func TestUnsubscribeByURL(t *testing.T) {
	service, _, _ := newWebhookService()

	_, err := service.Subscribe(context.Background(), SubscribeCommand{
		TargetURL: "https://partner.example.com/hooks",
		Events:    []string{domain.EventShipmentStatusUpdated},
	})
	require.NoError(t, err)

	dto, err := service.Unsubscribe(context.Background(), UnsubscribeCommand{TargetURL: "https://partner.example.com/hooks"})
	require.NoError(t, err)
	assert.Equal(t, 1, dto.Matched)

	// A second unsubscribe matches nothing but still succeeds
	dto, err = service.Unsubscribe(context.Background(), UnsubscribeCommand{TargetURL: "https://partner.example.com/hooks"})
	require.NoError(t, err)
	assert.Equal(t, 0, dto.Matched)
	assert.Nil(t, dto.Subscriber)
}

func TestUnsubscribeByURLDeactivatesDuplicates(t *testing.T) {
	service, subscribers, _ := newWebhookService()

	// The legacy system wrote duplicate-URL documents without the
	// conflict guard; seed them directly at the repository.
	first, err := domain.NewSubscriber("https://partner.example.com/hooks", []string{domain.EventShipmentStatusUpdated}, "")
	require.NoError(t, err)
	second, err := domain.NewSubscriber("https://partner.example.com/hooks", []string{domain.EventShipmentStatusUpdated}, "")
	require.NoError(t, err)
	require.NoError(t, subscribers.Save(context.Background(), first))
	require.NoError(t, subscribers.Save(context.Background(), second))

	dto, err := service.Unsubscribe(context.Background(), UnsubscribeCommand{TargetURL: "https://partner.example.com/hooks"})
	require.NoError(t, err)
	assert.Equal(t, 2, dto.Matched)

	for _, id := range []string{first.ID, second.ID} {
		stored, err := subscribers.FindByID(context.Background(), id)
		require.NoError(t, err)
		assert.False(t, stored.Active)
	}

	count, err := subscribers.CountActive(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUnsubscribeTwiceByIDIsIdempotent(t *testing.T) {
	service, subscribers, _ := newWebhookService()

	created, err := service.Subscribe(context.Background(), SubscribeCommand{
		TargetURL: "https://partner.example.com/hooks",
		Events:    []string{domain.EventShipmentStatusUpdated},
	})
	require.NoError(t, err)

	first, err := service.Unsubscribe(context.Background(), UnsubscribeCommand{SubscriberID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Matched)

	// Same end state, no error on the second call
	second, err := service.Unsubscribe(context.Background(), UnsubscribeCommand{SubscriberID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Matched)
	require.NotNil(t, second.Subscriber)
	assert.False(t, second.Subscriber.Active)

	stored, err := subscribers.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
}

func TestUnsubscribeUnknownID(t *testing.T) {
	service, _, _ := newWebhookService()

	_, err := service.Unsubscribe(context.Background(), UnsubscribeCommand{SubscriberID: "sub-missing"})
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeNotFound, appErr.Code)
}

func TestUnsubscribeRequiresIdentifier(t *testing.T) {
	service, _, _ := newWebhookService()

	_, err := service.Unsubscribe(context.Background(), UnsubscribeCommand{})
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeValidationError, appErr.Code)
}

func TestListDeadLetters(t *testing.T) {
	service, _, deadLetters := newWebhookService()

	shipment, err := domain.NewShipment("ord-1", "retail-7", "PT Sumber", "PT Distribusi",
		domain.RouteInfo{Origin: "Jakarta", Destination: "Surabaya"},
		[]domain.Item{{Name: "Rice 5kg", Quantity: 3}}, 125000)
	require.NoError(t, err)
	event := domain.BuildStatusEvent(shipment, domain.StatusProcessing, domain.StatusInTransit, time.Now())

	letter := domain.NewDeadLetter("sub-1", "https://x.example.com", event, "503 backend down")
	require.NoError(t, deadLetters.Append(context.Background(), letter))

	dtos, err := service.ListDeadLetters(context.Background(), ListDeadLettersQuery{})
	require.NoError(t, err)
	require.Len(t, dtos, 1)
	assert.Equal(t, "sub-1", dtos[0].SubscriberID)
	assert.Equal(t, event.ID, dtos[0].EventID)
	assert.Equal(t, "503 backend down", dtos[0].LastError)
	assert.True(t, dtos[0].Retryable)
}
