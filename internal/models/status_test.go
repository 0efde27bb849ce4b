package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStatusChain(t *testing.T) {
	next, ok := NextStatus(StatusPending)
	require.True(t, ok)
	assert.Equal(t, StatusReceived, next)

	next, ok = NextStatus(StatusReceived)
	require.True(t, ok)
	assert.Equal(t, StatusInRepair, next)

	next, ok = NextStatus(StatusInRepair)
	require.True(t, ok)
	assert.Equal(t, StatusDone, next)

	next, ok = NextStatus(StatusDone)
	require.True(t, ok)
	assert.Equal(t, StatusReturned, next)
}

func TestNextStatusTerminal(t *testing.T) {
	_, ok := NextStatus(StatusReturned)
	assert.False(t, ok)

	_, ok = NextStatus(TransferStatus("SHIPPED"))
	assert.False(t, ok)
}

func TestColorClass(t *testing.T) {
	assert.Equal(t, "badge-warning", ColorClass(StatusPending))
	assert.Equal(t, "badge-info", ColorClass(StatusReceived))
	assert.Equal(t, "badge-primary", ColorClass(StatusInRepair))
	assert.Equal(t, "badge-success", ColorClass(StatusDone))
	assert.Equal(t, "badge-secondary", ColorClass(StatusReturned))
	assert.Equal(t, "badge-light", ColorClass(TransferStatus("SHIPPED")))
}

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{"IN_REPAIR", "in_repair", "In Repair", "  in repair  "} {
		status, ok := ParseStatus(raw)
		require.True(t, ok, raw)
		assert.Equal(t, StatusInRepair, status)
	}

	_, ok := ParseStatus("SHIPPED")
	assert.False(t, ok)
	_, ok = ParseStatus("")
	assert.False(t, ok)
}

func TestStatusOrderCoversLabelsAndColors(t *testing.T) {
	require.Len(t, StatusOrder, 5)
	for _, status := range StatusOrder {
		assert.True(t, ValidStatus(status))
		assert.NotEmpty(t, status.Label())
		assert.NotEqual(t, "badge-light", ColorClass(status))
	}
}
