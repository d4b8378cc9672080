package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/menuflow/pkg/adapters/memory"
	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/aretw0/menuflow/pkg/persistence/middleware"
	"github.com/aretw0/menuflow/pkg/ports"
	contract "github.com/aretw0/menuflow/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	contract.RunSessionStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	ctx := context.Background()

	require.NoError(t, secure.SaveVariable(ctx, "u", "secret", "my-secret-sauce"))

	raw, err := underlying.LoadVariable(ctx, "u", "secret")
	require.NoError(t, err)
	assert.NotContains(t, raw, "my-secret-sauce")
	assert.True(t, strings.HasPrefix(raw, "enc:v1:"))

	plain, err := secure.LoadVariable(ctx, "u", "secret")
	require.NoError(t, err)
	assert.Equal(t, "my-secret-sauce", plain)
}

func TestEncryptionMiddleware_CommitSealsVariables(t *testing.T) {
	underlying := memory.NewStore()
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	ctx := context.Background()

	session := domain.NewSession("u", "start")
	require.NoError(t, secure.(ports.Committer).Commit(ctx, session, map[string]string{"card": "4111"}))

	raw, err := underlying.LoadVariables(ctx, "u")
	require.NoError(t, err)
	assert.NotEqual(t, "4111", raw["card"])

	vars, err := secure.LoadVariables(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"card": "4111"}, vars)

	s, err := secure.LoadSession(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "start", s.CurrentNodeID)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	oldStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, oldStore.SaveVariable(ctx, "u", "data", "encrypted-with-old-key"))

	newStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	v, err := newStore.LoadVariable(ctx, "u", "data")
	require.NoError(t, err)
	assert.Equal(t, "encrypted-with-old-key", v)

	require.NoError(t, newStore.SaveVariable(ctx, "u", "data", "encrypted-with-new-key"))

	_, err = oldStore.LoadVariable(ctx, "u", "data")
	assert.Error(t, err, "old key alone cannot read data sealed with the new key")
}

func TestEncryptionMiddleware_RejectsPlainValues(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.SaveVariable(ctx, "u", "name", "plain"))

	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := secure.LoadVariable(ctx, "u", "name")
	assert.ErrorIs(t, err, middleware.ErrNotEncrypted)
}

func TestEncryptionMiddleware_NotFoundPassesThrough(t *testing.T) {
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(memory.NewStore())
	_, err := secure.LoadVariable(context.Background(), "u", "missing")
	assert.ErrorIs(t, err, domain.ErrVariableNotFound)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}
