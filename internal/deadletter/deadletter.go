// Package deadletter holds the operator-alerting policy for tenants
// accumulating dead-lettered deliveries.
package deadletter

import "fmt"

// DefaultAlertThreshold is the per-tenant dead-letter count that
// triggers an alert.
const DefaultAlertThreshold = 10

// Policy decides when a tenant's dead-letter count warrants an alert.
type Policy struct {
	Threshold int
}

// NewPolicy returns a Policy using DefaultAlertThreshold.
func NewPolicy() Policy {
	return Policy{Threshold: DefaultAlertThreshold}
}

// ShouldAlert reports whether count has crossed the alert threshold.
func (p Policy) ShouldAlert(count int) bool {
	threshold := p.Threshold
	if threshold <= 0 {
		threshold = DefaultAlertThreshold
	}
	return count >= threshold
}

// AlertMessage formats the operator-facing alert text for a tenant.
func (p Policy) AlertMessage(count int, tenantID string) string {
	return fmt.Sprintf(
		"dead letter queue alert: %d webhooks failed for tenant %s; partner endpoint may be down or misconfigured",
		count, tenantID,
	)
}
