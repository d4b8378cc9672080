package dsl

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_SimpleFlow(t *testing.T) {
	b := New("greeter")

	b.Add("start").
		Message("Hello, DSL!").
		Go("ask_name")

	b.Add("ask_name").
		Ask("What is your name?", "user_name").
		Go("greet")

	b.Add("greet").
		Message("Nice to meet you, {{ user_name }}!").
		Go("end")

	b.Add("end").
		Message("Goodbye!")

	loader, err := b.Build()
	require.NoError(t, err)

	menu, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "greeter", menu.ID)
	assert.Equal(t, "start", menu.EntryNodeID(), "first node added is the entry")
	require.Len(t, menu.Nodes, 4)

	start, ok := menu.Node("start")
	require.True(t, ok)
	msg, ok := start.(*domain.Message)
	require.True(t, ok)
	assert.Equal(t, "Hello, DSL!", msg.Text)
	assert.Equal(t, "ask_name", msg.Next())

	ask, ok := menu.Node("ask_name")
	require.True(t, ok)
	in, ok := ask.(*domain.Input)
	require.True(t, ok)
	assert.Equal(t, "user_name", in.Variable)
	assert.Equal(t, "greet", in.Next())

	end, _ := menu.Node("end")
	assert.Empty(t, end.Next())
}

func TestBuilder_AddReturnsExisting(t *testing.T) {
	b := New("m")
	first := b.Add("a").Message("one")
	second := b.Add("a")
	assert.Same(t, first, second)

	menu, err := b.Menu()
	require.NoError(t, err)
	assert.Len(t, menu.Nodes, 1)
}

func TestBuilder_BranchesAndRequests(t *testing.T) {
	b := New("shop")

	b.Add("menu").
		Ask("1 news, 2 quit", "opt").
		Validate("{{ opt }}").
		Case("1", "fetch", Set("topic", "tech")).
		Default("bye")

	b.Add("fetch").
		Request("POST", "https://example.org/news").
		Header("X-Topic", "{{ topic }}").
		Query("lang", "en").
		Body(map[string]any{"topic": "{{ topic }}"}).
		BasicAuth("bot", "secret").
		Capture("headline", "data.title").
		Cookie("sid", "session_id").
		Case("200", "route").
		Default("bye")

	b.Add("route").
		Switch("{{ topic }}").
		Case("tech", "bye").
		Default("menu")

	b.Add("bye").Message("Bye").Terminal()

	loader, err := b.Build()
	require.NoError(t, err)
	menu, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, menu.Validate())
	assert.Empty(t, menu.Unreachable())

	n, _ := menu.Node("menu")
	in := n.(*domain.Input)
	require.Len(t, in.Cases, 2)
	assert.Equal(t, domain.Assignments{{Name: "topic", Value: "tech"}}, in.Cases[0].Variables)
	assert.True(t, in.Cases[1].IsDefault())

	n, _ = menu.Node("fetch")
	req := n.(*domain.HTTPRequest)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "{{ topic }}", req.Headers["X-Topic"])
	assert.Equal(t, "en", req.QueryParams["lang"])
	assert.Equal(t, &domain.BasicAuth{Login: "bot", Password: "secret"}, req.BasicAuth)
	assert.Equal(t, domain.Assignments{{Name: "headline", Value: "data.title"}}, req.Variables)
	assert.Equal(t, domain.Assignments{{Name: "sid", Value: "session_id"}}, req.Cookies)

	n, _ = menu.Node("route")
	sw := n.(*domain.Switch)
	assert.Equal(t, "{{ topic }}", sw.Validation)
}

func TestBuilder_Errors(t *testing.T) {
	t.Run("untyped node", func(t *testing.T) {
		b := New("m")
		b.Add("start").Go("end")
		b.Add("end").Message("x")

		_, err := b.Build()
		assert.ErrorContains(t, err, `node "start" has no type`)
	})

	t.Run("dangling reference", func(t *testing.T) {
		b := New("m")
		b.Add("start").Message("x").Go("nowhere")

		_, err := b.Build()
		assert.True(t, errors.Is(err, domain.ErrUnknownNode))
	})
}
