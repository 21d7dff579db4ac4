package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/example/storefront-sync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStateCache_LoadSave(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryStateCache()

	_, err := c.Load(ctx, domain.CartStorageKey)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	raw := []byte(`{"items":[]}`)
	require.NoError(t, c.Save(ctx, domain.CartStorageKey, raw))
	raw[0] = 'x'

	got, err := c.Load(ctx, domain.CartStorageKey)
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, string(got))
}

func TestMemoryStateCache_SaveErr(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryStateCache()
	c.SaveErr = errors.New("boom")

	assert.EqualError(t, c.Save(ctx, "k", []byte("v")), "boom")
	_, err := c.Load(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
