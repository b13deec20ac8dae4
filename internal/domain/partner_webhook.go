package domain

import (
	"context"
	"time"

	"github.com/asaskevich/govalidator"
)

// PartnerWebhook is a tenant-configured outbound delivery target.
// Deleting one removes only its own row; queue entries already enqueued
// for it are not deleted and keep their copied url and secret.
type PartnerWebhook struct {
	ID                  string
	TenantID            string
	Name                string
	Slug                string
	URL                 string
	Secret              string
	EnabledEvents       []string
	CustomPayloadFields MapOfAny
	Enabled             bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Validate rejects a PartnerWebhook before it reaches storage. URL
// validity matters beyond input hygiene here: the delivery worker
// treats an unparseable URL as non-retryable and dead-letters on the
// first attempt, so catching it at configuration time saves a wasted
// delivery cycle.
func (w *PartnerWebhook) Validate() error {
	if w.TenantID == "" {
		return NewValidationError("tenant_id is required")
	}
	if w.Name == "" {
		return NewValidationError("name is required")
	}
	if w.Slug == "" {
		return NewValidationError("slug is required")
	}
	if !govalidator.IsURL(w.URL) {
		return NewValidationError("url is not a valid URL")
	}
	if w.Secret == "" {
		return NewValidationError("secret is required")
	}
	return nil
}

// AcceptsEvent reports whether this subscriber wants events of the
// given type delivered to it.
func (w *PartnerWebhook) AcceptsEvent(eventType string) bool {
	if !w.Enabled {
		return false
	}
	for _, e := range w.EnabledEvents {
		if e == eventType {
			return true
		}
	}
	return false
}

// PartnerWebhookRepository manages PartnerWebhook CRUD.
type PartnerWebhookRepository interface {
	Create(ctx context.Context, w *PartnerWebhook) error
	GetByID(ctx context.Context, tenantID, id string) (*PartnerWebhook, error)
	GetBySlug(ctx context.Context, tenantID, slug string) (*PartnerWebhook, error)
	Update(ctx context.Context, w *PartnerWebhook) error
	Delete(ctx context.Context, tenantID, id string) error

	// ListEnabledForEvent returns every enabled PartnerWebhook for the
	// tenant subscribed to eventType. This is the lookup that feeds
	// fan-out enqueue.
	ListEnabledForEvent(ctx context.Context, tenantID, eventType string) ([]*PartnerWebhook, error)

	List(ctx context.Context, params PartnerWebhookListParams) (*PartnerWebhookListResult, error)
}

// PartnerWebhookListParams filters an admin listing of partner webhooks.
type PartnerWebhookListParams struct {
	TenantID string
	Enabled  *bool
	Limit    int
	Offset   int
}

// Validate applies defaults and rejects malformed query parameters.
func (p *PartnerWebhookListParams) Validate() error {
	if p.TenantID == "" {
		return NewValidationError("tenant_id is required")
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		return NewValidationError("offset must be non-negative")
	}
	return nil
}

// PartnerWebhookListResult is a page of PartnerWebhook rows.
type PartnerWebhookListResult struct {
	Webhooks []*PartnerWebhook
	Total    int
}
