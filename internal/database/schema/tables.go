// Package schema defines the database schema for development.
//
// DEVELOPMENT USE ONLY
// This file contains the current database schema and is used for development and testing.
// Before deploying to production, these table definitions should be converted to proper migrations.
package schema

// TableDefinitions contains all the SQL statements to create the database tables
// Don't put REFERENCES and don't put CHECK constraints in the CREATE TABLE statements
var TableDefinitions = []string{
	`CREATE TABLE IF NOT EXISTS call_logs (
		id VARCHAR(40) PRIMARY KEY,
		tenant_id VARCHAR(40) NOT NULL,
		agent_id VARCHAR(40),
		room_name VARCHAR(255) NOT NULL,
		room_sid VARCHAR(255),
		direction VARCHAR(20) NOT NULL,
		phone_number VARCHAR(50) NOT NULL,
		status VARCHAR(20) NOT NULL,
		outcome VARCHAR(20),
		duration_seconds INTEGER,
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP,
		recording_url TEXT,
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_call_logs_tenant_room_name ON call_logs (tenant_id, room_name)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_call_logs_tenant_room_sid ON call_logs (tenant_id, room_sid) WHERE room_sid IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_call_logs_tenant_status ON call_logs (tenant_id, status)`,

	`CREATE TABLE IF NOT EXISTS upstream_call_events (
		id VARCHAR(40) PRIMARY KEY,
		tenant_id VARCHAR(40) NOT NULL,
		call_log_id VARCHAR(40),
		event_id VARCHAR(255) NOT NULL,
		event_type VARCHAR(50) NOT NULL,
		room_name VARCHAR(255),
		room_sid VARCHAR(255),
		participant_identity VARCHAR(255),
		participant_sid VARCHAR(255),
		event_timestamp TIMESTAMP NOT NULL,
		raw_payload JSONB NOT NULL DEFAULT '{}',
		processed BOOLEAN NOT NULL DEFAULT FALSE,
		processed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_upstream_call_events_event_id ON upstream_call_events (event_id)`,
	`CREATE INDEX IF NOT EXISTS idx_upstream_call_events_tenant_call_log ON upstream_call_events (tenant_id, call_log_id)`,

	`CREATE TABLE IF NOT EXISTS partner_webhooks (
		id VARCHAR(40) PRIMARY KEY,
		tenant_id VARCHAR(40) NOT NULL,
		name VARCHAR(255) NOT NULL,
		slug VARCHAR(255) NOT NULL,
		url TEXT NOT NULL,
		secret TEXT NOT NULL,
		enabled_events TEXT[] NOT NULL DEFAULT '{}',
		custom_payload_fields JSONB NOT NULL DEFAULT '{}',
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_partner_webhooks_tenant_slug ON partner_webhooks (tenant_id, slug)`,
	`CREATE INDEX IF NOT EXISTS idx_partner_webhooks_tenant_enabled ON partner_webhooks (tenant_id, enabled)`,

	`CREATE TABLE IF NOT EXISTS webhook_delivery_queue (
		id VARCHAR(40) PRIMARY KEY,
		tenant_id VARCHAR(40) NOT NULL,
		partner_webhook_id VARCHAR(40),
		url TEXT NOT NULL,
		secret TEXT NOT NULL,
		event_type VARCHAR(50) NOT NULL,
		payload JSONB NOT NULL DEFAULT '{}',
		status VARCHAR(20) NOT NULL,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 5,
		next_retry_at TIMESTAMP NOT NULL,
		last_attempt_at TIMESTAMP,
		last_response_status INTEGER,
		last_error TEXT,
		created_at TIMESTAMP NOT NULL,
		scheduled_at TIMESTAMP NOT NULL,
		delivered_at TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_delivery_queue_claim ON webhook_delivery_queue (tenant_id, status, next_retry_at)`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_delivery_queue_partner ON webhook_delivery_queue (tenant_id, partner_webhook_id)`,

	`CREATE TABLE IF NOT EXISTS delivery_attempt_logs (
		id VARCHAR(40) PRIMARY KEY,
		queue_id VARCHAR(40),
		tenant_id VARCHAR(40) NOT NULL,
		attempt_number INTEGER NOT NULL,
		attempt_timestamp TIMESTAMP NOT NULL,
		target_url TEXT NOT NULL,
		request_headers JSONB NOT NULL DEFAULT '{}',
		request_body JSONB,
		response_status INTEGER,
		response_headers JSONB NOT NULL DEFAULT '{}',
		response_body JSONB,
		response_time_ms INTEGER,
		error_message TEXT,
		network_error BOOLEAN NOT NULL DEFAULT FALSE,
		success BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_delivery_attempt_logs_queue ON delivery_attempt_logs (queue_id, attempt_number)`,
	`CREATE INDEX IF NOT EXISTS idx_delivery_attempt_logs_tenant ON delivery_attempt_logs (tenant_id, attempt_timestamp)`,

	// Downstream tables consulted best-effort by the ingestion service. Their
	// absence (e.g. a deployment with no campaign feature) is not an error —
	// the savepoint-isolated update simply no-ops.
	`CREATE TABLE IF NOT EXISTS campaign_calls (
		id VARCHAR(40) PRIMARY KEY,
		tenant_id VARCHAR(40) NOT NULL,
		call_log_id VARCHAR(40) NOT NULL,
		lead_id VARCHAR(40),
		status VARCHAR(20) NOT NULL,
		completed_at TIMESTAMP,
		call_duration_seconds INTEGER,
		call_outcome VARCHAR(20),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_campaign_calls_call_log ON campaign_calls (call_log_id)`,

	`CREATE TABLE IF NOT EXISTS leads (
		id VARCHAR(40) PRIMARY KEY,
		tenant_id VARCHAR(40) NOT NULL,
		times_called INTEGER NOT NULL DEFAULT 0,
		last_called_at TIMESTAMP,
		last_call_status VARCHAR(20),
		last_call_duration INTEGER,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
}

// TableNames returns a list of all table names in creation order
var TableNames = []string{
	"call_logs",
	"upstream_call_events",
	"partner_webhooks",
	"webhook_delivery_queue",
	"delivery_attempt_logs",
	"campaign_calls",
	"leads",
}
