package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Notifuse/notifuse/internal/domain"
	"github.com/Notifuse/notifuse/pkg/logger"
)

type fakePartnerWebhookRepo struct {
	domain.PartnerWebhookRepository
	enabled []*domain.PartnerWebhook
}

func (f *fakePartnerWebhookRepo) ListEnabledForEvent(ctx context.Context, tenantID, eventType string) ([]*domain.PartnerWebhook, error) {
	return f.enabled, nil
}

type fakeDeliveryQueueRepo struct {
	domain.WebhookDeliveryQueueRepository
	pending  int
	enqueued []*domain.WebhookDeliveryQueue
}

func (f *fakeDeliveryQueueRepo) CountPending(ctx context.Context, tenantID string) (int, error) {
	return f.pending, nil
}

func (f *fakeDeliveryQueueRepo) Enqueue(ctx context.Context, rows []*domain.WebhookDeliveryQueue) error {
	f.enqueued = append(f.enqueued, rows...)
	return nil
}

func TestEnqueuer_EnqueueForAllPartners_MergesPayloadPayloadWins(t *testing.T) {
	webhookRepo := &fakePartnerWebhookRepo{
		enabled: []*domain.PartnerWebhook{
			{
				ID:                  "partner-1",
				URL:                 "https://partner.example.com/hook",
				Secret:              "shh",
				CustomPayloadFields: domain.MapOfAny{"source": "default", "region": "us"},
			},
		},
	}
	queueRepo := &fakeDeliveryQueueRepo{}

	e := NewEnqueuer(webhookRepo, queueRepo, logger.NewTestLogger(t))
	ids, err := e.EnqueueForAllPartners(context.Background(), "tenant-1", "call.completed", domain.MapOfAny{
		"call_id": "call-1",
		"source":  "event",
	})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	require.Len(t, queueRepo.enqueued, 1)

	row := queueRepo.enqueued[0]
	assert.Equal(t, "partner-1", *row.PartnerWebhookID)
	assert.Equal(t, "event", row.Payload["source"])
	assert.Equal(t, "us", row.Payload["region"])
	assert.Equal(t, "call-1", row.Payload["call_id"])
}

func TestEnqueuer_EnqueueForAllPartners_NoSubscribers(t *testing.T) {
	webhookRepo := &fakePartnerWebhookRepo{}
	queueRepo := &fakeDeliveryQueueRepo{}

	e := NewEnqueuer(webhookRepo, queueRepo, logger.NewTestLogger(t))
	ids, err := e.EnqueueForAllPartners(context.Background(), "tenant-1", "call.completed", domain.MapOfAny{})
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, queueRepo.enqueued)
}

func TestEnqueuer_EnqueueForAllPartners_OverflowStillEnqueues(t *testing.T) {
	webhookRepo := &fakePartnerWebhookRepo{
		enabled: []*domain.PartnerWebhook{{ID: "partner-1", URL: "https://p.example.com"}},
	}
	queueRepo := &fakeDeliveryQueueRepo{pending: maxPendingPerTenant + 1}

	e := NewEnqueuer(webhookRepo, queueRepo, logger.NewTestLogger(t))
	ids, err := e.EnqueueForAllPartners(context.Background(), "tenant-1", "call.completed", domain.MapOfAny{"call_id": "call-1"})
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	assert.Len(t, queueRepo.enqueued, 1)
}
