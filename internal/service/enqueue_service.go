package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Notifuse/notifuse/internal/domain"
	"github.com/Notifuse/notifuse/internal/metrics"
	"github.com/Notifuse/notifuse/pkg/logger"
)

// maxPendingPerTenant is the soft cap on a tenant's pending+in_flight
// queue depth. Crossing it never blocks the enqueue, it only trips the
// overflow counter so operators can see a lagging partner.
const maxPendingPerTenant = 10000

// Enqueuer fans an ingested event out to every partner subscribed to it,
// freezing each partner's url/secret and applying its custom payload
// fields at enqueue time so later edits to the partner's configuration
// never change an already-queued delivery.
type Enqueuer struct {
	webhookRepo domain.PartnerWebhookRepository
	queueRepo   domain.WebhookDeliveryQueueRepository
	logger      logger.Logger
}

// NewEnqueuer creates a new Enqueuer.
func NewEnqueuer(webhookRepo domain.PartnerWebhookRepository, queueRepo domain.WebhookDeliveryQueueRepository, log logger.Logger) *Enqueuer {
	return &Enqueuer{webhookRepo: webhookRepo, queueRepo: queueRepo, logger: log}
}

// EnqueueForAllPartners is the one and only place payload merge and
// partner filtering happens (§4.5): it looks up every enabled partner
// subscribed to eventType, builds one WebhookDeliveryQueue row per
// partner with the payload-wins merge already applied, and inserts
// them all. It returns the IDs of the rows it created, in the same
// order as the partners were returned by the repository.
func (e *Enqueuer) EnqueueForAllPartners(ctx context.Context, tenantID, eventType string, payload domain.MapOfAny) ([]string, error) {
	partners, err := e.webhookRepo.ListEnabledForEvent(ctx, tenantID, eventType)
	if err != nil {
		return nil, err
	}
	if len(partners) == 0 {
		return nil, nil
	}

	pending, err := e.queueRepo.CountPending(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	overflow := pending >= maxPendingPerTenant
	if overflow {
		metrics.RecordQueuedOverflow(tenantID)
		e.logger.WithFields(map[string]interface{}{
			"tenant_id": tenantID,
			"pending":   pending,
		}).Warn("pending delivery queue past soft cap, enqueuing anyway")
	}

	now := time.Now().UTC()
	ids := make([]string, 0, len(partners))
	rows := make([]*domain.WebhookDeliveryQueue, 0, len(partners))

	for _, partner := range partners {
		id := uuid.NewString()
		queueRow := &domain.WebhookDeliveryQueue{
			ID:               id,
			TenantID:         tenantID,
			PartnerWebhookID: &partner.ID,
			URL:              partner.URL,
			Secret:           partner.Secret,
			EventType:        eventType,
			Status:           domain.DeliveryStatusPending,
			MaxAttempts:      domain.DefaultMaxAttempts,
			CreatedAt:        now,
			ScheduledAt:      now,
			NextRetryAt:      now,
		}
		queueRow.Payload = payload
		queueRow.Payload = queueRow.MergePayload(partner.CustomPayloadFields)

		rows = append(rows, queueRow)
		ids = append(ids, id)
	}

	if err := e.queueRepo.Enqueue(ctx, rows); err != nil {
		return nil, err
	}

	for range rows {
		metrics.RecordWebhookQueued(eventType)
	}
	return ids, nil
}
