package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/storefront-sync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStateRepo_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "state")
	r, err := NewFileStateRepo(dir)
	require.NoError(t, err)

	_, err = r.Load(ctx, domain.OrderStorageKey)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, r.Save(ctx, domain.OrderStorageKey, []byte(`{"orders":[]}`)))
	require.NoError(t, r.Save(ctx, domain.OrderStorageKey, []byte(`{"orders":[{"id":"a"}]}`)))

	got, err := r.Load(ctx, domain.OrderStorageKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"orders":[{"id":"a"}]}`, string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, domain.OrderStorageKey+".json", entries[0].Name())
}

func TestFileStateRepo_InvalidKey(t *testing.T) {
	ctx := context.Background()
	r, err := NewFileStateRepo(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../escape", "a/b", `a\b`} {
		assert.ErrorIs(t, r.Save(ctx, key, []byte("{}")), domain.ErrValidation, key)
		_, err := r.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrValidation, key)
	}
}

func TestNewFileStateRepo_EmptyDir(t *testing.T) {
	_, err := NewFileStateRepo("  ")
	assert.Error(t, err)
}
