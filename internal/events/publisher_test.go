package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectWithoutURLIsNoop(t *testing.T) {
	p, err := Connect("")
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Publish("order.created", map[string]string{"orderNumber": "ORD-20250101-001"}))
	p.Close()
}

func TestNilPublisherIsNoop(t *testing.T) {
	var p *Publisher
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Publish("order.created", nil))
}
