package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallLogListParams_Validate_Defaults(t *testing.T) {
	p := CallLogListParams{TenantID: "t1"}
	err := p.Validate()
	assert.NoError(t, err)
	assert.Equal(t, 20, p.Limit)
}

func TestCallLogListParams_Validate_ClampsLimit(t *testing.T) {
	p := CallLogListParams{TenantID: "t1", Limit: 1000}
	err := p.Validate()
	assert.NoError(t, err)
	assert.Equal(t, 100, p.Limit)
}

func TestCallLogListParams_Validate_RequiresTenant(t *testing.T) {
	p := CallLogListParams{}
	err := p.Validate()
	assert.Error(t, err)
}

func TestCallLogListParams_Validate_RejectsBadStatus(t *testing.T) {
	p := CallLogListParams{TenantID: "t1", Status: "bogus"}
	err := p.Validate()
	assert.Error(t, err)
}
