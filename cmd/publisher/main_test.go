package main

import (
	"testing"

	"github.com/example/storefront-sync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEvent_Update(t *testing.T) {
	ev, err := buildEvent(options{id: "abc123", status: "Cancelled", amount: 0, reason: "stok habis"})
	require.NoError(t, err)

	require.Equal(t, domain.EventUpdate, ev.Kind)
	amount, ok := ev.Record.TotalAmount.Get()
	assert.True(t, ok)
	assert.Equal(t, int64(0), amount)
	reason, ok := ev.Record.RejectionReason.Get()
	assert.True(t, ok)
	assert.Equal(t, "stok habis", reason)
}

func TestBuildEvent_OmitsNegativeAmountAndClearsReason(t *testing.T) {
	ev, err := buildEvent(options{id: "abc123", status: "Processing", amount: -1, clearReason: true})
	require.NoError(t, err)

	assert.True(t, ev.Record.TotalAmount.IsAbsent())
	assert.True(t, ev.Record.RejectionReason.IsNull())
}

func TestBuildEvent_Delete(t *testing.T) {
	ev, err := buildEvent(options{id: "abc123", delete: true})
	require.NoError(t, err)
	assert.Equal(t, domain.EventDelete, ev.Kind)
	assert.Equal(t, "abc123", ev.OrderID())
}

func TestBuildEvent_RequiresID(t *testing.T) {
	_, err := buildEvent(options{status: "Processing"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
