package deadletter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldAlert(t *testing.T) {
	p := NewPolicy()
	assert.False(t, p.ShouldAlert(5))
	assert.True(t, p.ShouldAlert(10))
	assert.True(t, p.ShouldAlert(15))
}

func TestAlertMessage(t *testing.T) {
	p := NewPolicy()
	msg := p.AlertMessage(15, "tenant-a")
	assert.Contains(t, msg, "15")
	assert.Contains(t, msg, "tenant-a")
}

func TestCustomThreshold(t *testing.T) {
	p := Policy{Threshold: 3}
	assert.True(t, p.ShouldAlert(3))
	assert.False(t, p.ShouldAlert(2))
}
