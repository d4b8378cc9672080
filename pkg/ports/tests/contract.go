package tests

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/aretw0/menuflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store ports.SessionStore) {
	t.Helper()
	ctx := context.Background()
	userID := "@contract-" + time.Now().Format("20060102150405") + ":example.org"

	t.Run("Save and Load", func(t *testing.T) {
		session := domain.NewSession(userID, "start")
		session.RoomID = "!room:example.org"
		session.Status = domain.StatusAwaitingInput
		session.Revision = 3

		require.NoError(t, store.SaveSession(ctx, session))

		loaded, err := store.LoadSession(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "start", loaded.CurrentNodeID)
		assert.Equal(t, "!room:example.org", loaded.RoomID)
		assert.Equal(t, domain.StatusAwaitingInput, loaded.Status)
		assert.Equal(t, int64(3), loaded.Revision)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.LoadSession(ctx, "non-existent-"+userID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		_, err = store.LoadVariable(ctx, "non-existent-"+userID, "x")
		assert.ErrorIs(t, err, domain.ErrVariableNotFound)

		vars, err := store.LoadVariables(ctx, "non-existent-"+userID)
		require.NoError(t, err)
		assert.Empty(t, vars)
	})

	t.Run("Save Twice Is Idempotent", func(t *testing.T) {
		session := domain.NewSession(userID, "second")
		require.NoError(t, store.SaveSession(ctx, session))
		require.NoError(t, store.SaveSession(ctx, session))

		loaded, err := store.LoadSession(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "second", loaded.CurrentNodeID)
	})

	t.Run("Variables", func(t *testing.T) {
		require.NoError(t, store.SaveVariable(ctx, userID, "name", "Ana"))
		require.NoError(t, store.SaveVariable(ctx, userID, "code", "42"))
		require.NoError(t, store.SaveVariable(ctx, userID, "code", "43"))

		v, err := store.LoadVariable(ctx, userID, "code")
		require.NoError(t, err)
		assert.Equal(t, "43", v)

		_, err = store.LoadVariable(ctx, userID, "missing")
		assert.ErrorIs(t, err, domain.ErrVariableNotFound)

		vars, err := store.LoadVariables(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"name": "Ana", "code": "43"}, vars)
	})

	if committer, ok := store.(ports.Committer); ok {
		t.Run("Commit", func(t *testing.T) {
			id := userID + "-commit"
			defer func() { _ = store.DeleteSession(ctx, id) }()

			session := domain.NewSession(id, "after")
			session.Revision = 7
			require.NoError(t, committer.Commit(ctx, session, map[string]string{"a": "1", "b": ""}))

			loaded, err := store.LoadSession(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, "after", loaded.CurrentNodeID)
			assert.Equal(t, int64(7), loaded.Revision)

			vars, err := store.LoadVariables(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"a": "1", "b": ""}, vars)
		})
	}

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.SaveSession(ctx, domain.NewSession(userID, "start")))
		require.NoError(t, store.SaveVariable(ctx, userID, "name", "Ana"))

		require.NoError(t, store.DeleteSession(ctx, userID))

		_, err := store.LoadSession(ctx, userID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		vars, err := store.LoadVariables(ctx, userID)
		require.NoError(t, err)
		assert.Empty(t, vars, "Delete should drop variables too")

		assert.NoError(t, store.DeleteSession(ctx, userID), "Delete of a missing session is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := userID + "-1"
		id2 := userID + "-2"
		require.NoError(t, store.SaveSession(ctx, domain.NewSession(id1, "start")))
		require.NoError(t, store.SaveSession(ctx, domain.NewSession(id2, "start")))

		defer func() {
			_ = store.DeleteSession(ctx, id1)
			_ = store.DeleteSession(ctx, id2)
		}()

		sessions, err := store.ListSessions(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

// MenuLoaderContractTest verifies that a loader returns a Menu containing the
// expected node ids, with a resolvable entry node.
func MenuLoaderContractTest(t *testing.T, loader ports.MenuLoader, wantIDs []string) {
	t.Helper()

	menu, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, menu)

	t.Run("Nodes", func(t *testing.T) {
		for _, id := range wantIDs {
			_, ok := menu.Node(id)
			assert.True(t, ok, "node %s missing from menu", id)
		}
		assert.Len(t, menu.Nodes, len(wantIDs))
	})

	t.Run("Entry", func(t *testing.T) {
		_, ok := menu.Node(menu.EntryNodeID())
		assert.True(t, ok, "entry node must resolve")
	})
}
