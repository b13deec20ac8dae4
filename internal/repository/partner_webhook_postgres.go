package repository

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/Notifuse/notifuse/internal/domain"
	"github.com/Notifuse/notifuse/pkg/crypto"
)

type partnerWebhookRepository struct {
	db        *sql.DB
	secretKey string
}

// NewPartnerWebhookRepository creates a new PostgreSQL-backed
// PartnerWebhookRepository. secretKey encrypts/decrypts the Secret
// column at rest via pkg/crypto's AES-GCM helpers, so a database leak
// alone does not disclose signing secrets.
func NewPartnerWebhookRepository(db *sql.DB, secretKey string) domain.PartnerWebhookRepository {
	return &partnerWebhookRepository{db: db, secretKey: secretKey}
}

func (r *partnerWebhookRepository) Create(ctx context.Context, webhook *domain.PartnerWebhook) error {
	if err := webhook.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	webhook.CreatedAt = now
	webhook.UpdatedAt = now
	if webhook.CustomPayloadFields == nil {
		webhook.CustomPayloadFields = domain.MapOfAny{}
	}

	encryptedSecret, err := crypto.EncryptString(webhook.Secret, r.secretKey)
	if err != nil {
		return &domain.StorageError{Op: "PartnerWebhookRepository.Create", Err: err}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO partner_webhooks (
			id, tenant_id, name, slug, url, secret, enabled_events,
			custom_payload_fields, enabled, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		webhook.ID, webhook.TenantID, webhook.Name, webhook.Slug, webhook.URL, encryptedSecret,
		pq.Array(webhook.EnabledEvents), webhook.CustomPayloadFields, webhook.Enabled,
		webhook.CreatedAt, webhook.UpdatedAt,
	)
	if err != nil {
		return &domain.StorageError{Op: "PartnerWebhookRepository.Create", Err: err}
	}
	return nil
}

func (r *partnerWebhookRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.PartnerWebhook, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, slug, url, secret, enabled_events,
			custom_payload_fields, enabled, created_at, updated_at
		FROM partner_webhooks WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	return r.scanOne(row, id)
}

func (r *partnerWebhookRepository) GetBySlug(ctx context.Context, tenantID, slug string) (*domain.PartnerWebhook, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, slug, url, secret, enabled_events,
			custom_payload_fields, enabled, created_at, updated_at
		FROM partner_webhooks WHERE tenant_id = $1 AND slug = $2
	`, tenantID, slug)
	return r.scanOne(row, slug)
}

func (r *partnerWebhookRepository) Update(ctx context.Context, webhook *domain.PartnerWebhook) error {
	if err := webhook.Validate(); err != nil {
		return err
	}

	webhook.UpdatedAt = time.Now().UTC()

	encryptedSecret, err := crypto.EncryptString(webhook.Secret, r.secretKey)
	if err != nil {
		return &domain.StorageError{Op: "PartnerWebhookRepository.Update", Err: err}
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE partner_webhooks SET
			name = $3, slug = $4, url = $5, secret = $6, enabled_events = $7,
			custom_payload_fields = $8, enabled = $9, updated_at = $10
		WHERE tenant_id = $1 AND id = $2
	`,
		webhook.TenantID, webhook.ID, webhook.Name, webhook.Slug, webhook.URL, encryptedSecret,
		pq.Array(webhook.EnabledEvents), webhook.CustomPayloadFields, webhook.Enabled, webhook.UpdatedAt,
	)
	if err != nil {
		return &domain.StorageError{Op: "PartnerWebhookRepository.Update", Err: err}
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return &domain.StorageError{Op: "PartnerWebhookRepository.Update", Err: err}
	}
	if rows == 0 {
		return &domain.NotFoundError{Entity: "PartnerWebhook", Key: webhook.ID}
	}
	return nil
}

func (r *partnerWebhookRepository) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM partner_webhooks WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return &domain.StorageError{Op: "PartnerWebhookRepository.Delete", Err: err}
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return &domain.StorageError{Op: "PartnerWebhookRepository.Delete", Err: err}
	}
	if rows == 0 {
		return &domain.NotFoundError{Entity: "PartnerWebhook", Key: id}
	}
	return nil
}

// ListEnabledForEvent returns every enabled webhook for the tenant whose
// enabled_events includes eventType — the set consulted by the enqueue
// helper, never by the delivery worker (§4.5's enqueue-time filtering).
func (r *partnerWebhookRepository) ListEnabledForEvent(ctx context.Context, tenantID, eventType string) ([]*domain.PartnerWebhook, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, slug, url, secret, enabled_events,
			custom_payload_fields, enabled, created_at, updated_at
		FROM partner_webhooks
		WHERE tenant_id = $1 AND enabled = TRUE AND $2 = ANY(enabled_events)
		ORDER BY created_at ASC
	`, tenantID, eventType)
	if err != nil {
		return nil, &domain.StorageError{Op: "PartnerWebhookRepository.ListEnabledForEvent", Err: err}
	}
	defer rows.Close()

	var webhooks []*domain.PartnerWebhook
	for rows.Next() {
		webhook, err := r.scanRows(rows)
		if err != nil {
			return nil, &domain.StorageError{Op: "PartnerWebhookRepository.ListEnabledForEvent", Err: err}
		}
		webhooks = append(webhooks, webhook)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "PartnerWebhookRepository.ListEnabledForEvent", Err: err}
	}
	return webhooks, nil
}

func (r *partnerWebhookRepository) List(ctx context.Context, params domain.PartnerWebhookListParams) (*domain.PartnerWebhookListResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	q := psql.Select(
		"id", "tenant_id", "name", "slug", "url", "secret", "enabled_events",
		"custom_payload_fields", "enabled", "created_at", "updated_at",
	).From("partner_webhooks").Where(sq.Eq{"tenant_id": params.TenantID})

	if params.Enabled != nil {
		q = q.Where(sq.Eq{"enabled": *params.Enabled})
	}

	q = q.OrderBy("created_at DESC").Limit(uint64(params.Limit)).Offset(uint64(params.Offset))

	query, args, err := q.ToSql()
	if err != nil {
		return nil, &domain.StorageError{Op: "PartnerWebhookRepository.List", Err: err}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StorageError{Op: "PartnerWebhookRepository.List", Err: err}
	}
	defer rows.Close()

	var webhooks []*domain.PartnerWebhook
	for rows.Next() {
		webhook, err := r.scanRows(rows)
		if err != nil {
			return nil, &domain.StorageError{Op: "PartnerWebhookRepository.List", Err: err}
		}
		webhooks = append(webhooks, webhook)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "PartnerWebhookRepository.List", Err: err}
	}

	countQ := psql.Select("COUNT(*)").From("partner_webhooks").Where(sq.Eq{"tenant_id": params.TenantID})
	if params.Enabled != nil {
		countQ = countQ.Where(sq.Eq{"enabled": *params.Enabled})
	}
	countQuery, countArgs, err := countQ.ToSql()
	if err != nil {
		return nil, &domain.StorageError{Op: "PartnerWebhookRepository.List", Err: err}
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, &domain.StorageError{Op: "PartnerWebhookRepository.List", Err: err}
	}

	return &domain.PartnerWebhookListResult{Webhooks: webhooks, Total: total}, nil
}

func (r *partnerWebhookRepository) scanOne(row *sql.Row, key string) (*domain.PartnerWebhook, error) {
	webhook, err := r.scanRows(row)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Entity: "PartnerWebhook", Key: key}
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "PartnerWebhookRepository.Get", Err: err}
	}
	return webhook, nil
}

func (r *partnerWebhookRepository) scanRows(row rowScanner) (*domain.PartnerWebhook, error) {
	var webhook domain.PartnerWebhook
	var encryptedSecret string

	err := row.Scan(
		&webhook.ID, &webhook.TenantID, &webhook.Name, &webhook.Slug, &webhook.URL, &encryptedSecret,
		pq.Array(&webhook.EnabledEvents), &webhook.CustomPayloadFields, &webhook.Enabled,
		&webhook.CreatedAt, &webhook.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	secret, err := crypto.DecryptFromHexString(encryptedSecret, r.secretKey)
	if err != nil {
		return nil, err
	}
	webhook.Secret = secret

	return &webhook, nil
}
