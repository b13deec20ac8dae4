package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWebhookDeliveryQueue_MergePayload_PayloadWinsOnCollision(t *testing.T) {
	q := &WebhookDeliveryQueue{Payload: MapOfAny{"event": "room_finished", "shared": "from_payload"}}
	custom := MapOfAny{"shared": "from_partner", "extra": "from_partner"}

	merged := q.MergePayload(custom)

	assert.Equal(t, "room_finished", merged["event"])
	assert.Equal(t, "from_payload", merged["shared"])
	assert.Equal(t, "from_partner", merged["extra"])
}

func TestWebhookDeliveryQueue_MergePayload_NoCustomFields(t *testing.T) {
	q := &WebhookDeliveryQueue{Payload: MapOfAny{"event": "room_finished"}}
	merged := q.MergePayload(nil)
	assert.Equal(t, q.Payload, merged)
}

func TestWebhookDeliveryQueueListParams_Validate(t *testing.T) {
	p := WebhookDeliveryQueueListParams{TenantID: "t1"}
	assert.NoError(t, p.Validate())
	assert.Equal(t, 20, p.Limit)

	bad := WebhookDeliveryQueueListParams{TenantID: "t1", Status: "bogus"}
	assert.Error(t, bad.Validate())
}
