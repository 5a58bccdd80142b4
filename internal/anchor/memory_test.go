package anchor

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySubmit(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemory()
	const fp = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

	t.Run("submit then exists", func(t *testing.T) {
		exists, err := ledger.Exists(ctx, fp)
		require.NoError(t, err)
		assert.False(t, exists)

		ref, err := ledger.Submit(ctx, fp)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(ref, "0x"))

		exists, err = ledger.Exists(ctx, fp)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("resubmission is idempotent", func(t *testing.T) {
		first, err := ledger.Submit(ctx, fp)
		require.NoError(t, err)
		second, err := ledger.Submit(ctx, fp)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("distinct fingerprints get distinct references", func(t *testing.T) {
		a, err := ledger.Submit(ctx, strings.Repeat("b", 64))
		require.NoError(t, err)
		b, err := ledger.Submit(ctx, strings.Repeat("c", 64))
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}
