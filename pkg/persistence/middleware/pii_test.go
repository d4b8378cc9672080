package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/menuflow/pkg/adapters/memory"
	"github.com/aretw0/menuflow/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_MasksOnRead(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.SaveVariable(ctx, "u", "password", "hunter2"))
	require.NoError(t, underlying.SaveVariable(ctx, "u", "user_email", "a@b.c"))
	require.NoError(t, underlying.SaveVariable(ctx, "u", "color", "blue"))

	mw, err := middleware.NewPIIMiddleware([]string{"^password$", "email"})
	require.NoError(t, err)
	masked := mw(underlying)

	vars, err := masked.LoadVariables(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"password":   middleware.Mask,
		"user_email": middleware.Mask,
		"color":      "blue",
	}, vars)

	v, err := masked.LoadVariable(ctx, "u", "password")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, v)

	raw, err := underlying.LoadVariable(ctx, "u", "password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", raw, "backend keeps the real value")
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.ErrorContains(t, err, "invalid pii pattern")
}

func TestChain_FirstIsOutermost(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()

	pii, err := middleware.NewPIIMiddleware([]string{"token"})
	require.NoError(t, err)
	enc := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})

	store := middleware.Chain(underlying, pii, enc)
	require.NoError(t, store.SaveVariable(ctx, "u", "token", "abc"))

	// PII sees the decrypted value and masks it.
	v, err := store.LoadVariable(ctx, "u", "token")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, v)
}
