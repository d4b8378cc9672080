package runtime_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aretw0/menuflow/internal/runtime"
	"github.com/aretw0/menuflow/pkg/adapters/memory"
	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/aretw0/menuflow/pkg/session"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	RoomID string
	Text   string
}

// recorder is a Messenger that keeps every delivered text.
type recorder struct {
	mu   sync.Mutex
	msgs []delivery
	err  error
}

func (r *recorder) SendMessage(ctx context.Context, roomID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, delivery{RoomID: roomID, Text: text})
	return r.err
}

func (r *recorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.Text
	}
	return out
}

// flakyStore fails commits while failCommit is set.
type flakyStore struct {
	*memory.Store
	failCommit atomic.Bool
}

func (s *flakyStore) Commit(ctx context.Context, sess *domain.Session, vars map[string]string) error {
	if s.failCommit.Load() {
		return errors.New("disk full")
	}
	return s.Store.Commit(ctx, sess, vars)
}

func message(id, text, next string) *domain.Message {
	return &domain.Message{Base: domain.Base{ID: id, Type: domain.NodeTypeMessage, OConnection: next}, Text: text}
}

func input(id, text, variable, next string) *domain.Input {
	return &domain.Input{Base: domain.Base{ID: id, Type: domain.NodeTypeInput, OConnection: next}, Text: text, Variable: variable}
}

func switchNode(id, validation string, cases ...domain.Case) *domain.Switch {
	return &domain.Switch{
		Base:   domain.Base{ID: id, Type: domain.NodeTypeSwitch},
		Branch: domain.Branch{Validation: validation, Cases: cases},
	}
}

func newMenu(t *testing.T, nodes ...domain.Node) *domain.Menu {
	t.Helper()
	menu, err := domain.NewMenu("test", "", nodes)
	require.NoError(t, err)
	return menu
}

func newEngine(t *testing.T, store *memory.Store, nodes []domain.Node, opts ...runtime.EngineOption) *runtime.Engine {
	t.Helper()
	if store == nil {
		store = memory.NewStore()
	}
	engine, err := runtime.NewEngine(newMenu(t, nodes...), session.NewManager(store), opts...)
	require.NoError(t, err)
	return engine
}

func send(t *testing.T, engine *runtime.Engine, out *recorder, userID, body string) *domain.Result {
	t.Helper()
	res, err := engine.Process(context.Background(), domain.Inbound{UserID: userID, RoomID: "!room", Body: body}, out)
	require.NoError(t, err)
	return res
}
