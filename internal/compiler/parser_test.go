package compiler

import (
	"testing"

	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flowYAML = `
id: demo
nodes:
  - id: start
    type: message
    text: "Hi {{ name }}"
    o_connection: ask

  - id: ask
    type: input
    text: "Pick 1 or 2"
    variable: opt
    validation: "{{ opt }}"
    cases:
      - id: 1
        variables:
          zeta: "z"
          alpha: "{{ opt }}"
        o_connection: news
      - id: default
        o_connection: start

  - id: news
    type: http_request
    method: POST
    url: "https://example.org/news?c={{ category }}"
    headers:
      X-Count: 3
    query_params:
      lang: en
    basic_auth:
      login: "{{ user }}"
      password: secret
    data:
      category: "{{ category }}"
      limit: 10
    variables:
      headline: data.title
      total: count
    cookies:
      sid: session_id
    cases:
      - id: 200
        o_connection: start
      - id: default
`

func TestParser_ParseYAML(t *testing.T) {
	menu, err := NewParser().Parse([]byte(flowYAML))
	require.NoError(t, err)

	assert.Equal(t, "demo", menu.ID)
	assert.Equal(t, "start", menu.EntryNodeID())
	require.Len(t, menu.Nodes, 3)
	require.NoError(t, menu.ResolveReferences())

	start, ok := menu.Node("start")
	require.True(t, ok)
	msg, ok := start.(*domain.Message)
	require.True(t, ok)
	assert.Equal(t, "Hi {{ name }}", msg.Text)
	assert.Equal(t, "ask", msg.Next())

	ask, _ := menu.Node("ask")
	in, ok := ask.(*domain.Input)
	require.True(t, ok)
	assert.Equal(t, "opt", in.Variable)
	require.Len(t, in.Cases, 2)
	assert.Equal(t, "1", in.Cases[0].ID, "numeric case ids keep their literal text")
	assert.Equal(t, []string{"zeta", "alpha"}, in.Cases[0].Variables.Names(), "declaration order is preserved")
	assert.Equal(t, "{{ opt }}", in.Cases[0].Variables[1].Value)

	news, _ := menu.Node("news")
	req, ok := news.(*domain.HTTPRequest)
	require.True(t, ok)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "3", req.Headers["X-Count"])
	assert.Equal(t, "en", req.QueryParams["lang"])
	require.NotNil(t, req.BasicAuth)
	assert.Equal(t, "{{ user }}", req.BasicAuth.Login)
	assert.Equal(t, map[string]any{"category": "{{ category }}", "limit": 10}, req.Data)
	assert.Equal(t, []string{"headline", "total"}, req.Variables.Names())
	v, _ := req.Cookies.Lookup("sid")
	assert.Equal(t, "session_id", v)
	assert.Equal(t, "200", req.Cases[0].ID)
	assert.Empty(t, req.Cases[1].OConnection)
}

func TestParser_ParseJSON(t *testing.T) {
	data := `{"id":"j","entry":"b","nodes":[
		{"id":"a","type":"message","text":"A"},
		{"id":"b","type":"switch","validation":"{{ code }}","cases":[{"id":"default","o_connection":"a"}]}
	]}`
	menu, err := NewParser().Parse([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, "b", menu.EntryNodeID())

	n, _ := menu.Node("b")
	sw, ok := n.(*domain.Switch)
	require.True(t, ok)
	assert.Equal(t, "{{ code }}", sw.Validation)
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"empty", "id: x\n", "menu has no nodes"},
		{"missing id", "nodes:\n  - type: message\n", "node missing id"},
		{"missing type", "nodes:\n  - id: a\n", "missing type"},
		{"unknown type", "nodes:\n  - id: a\n    type: carousel\n", `unknown type "carousel"`},
		{"duplicate", "nodes:\n  - {id: a, type: message}\n  - {id: a, type: message}\n", "duplicate node id"},
		{"http without url", "nodes:\n  - {id: a, type: http_request}\n", "missing url"},
		{"nested variables", "nodes:\n  - id: a\n    type: switch\n    cases:\n      - id: default\n        variables:\n          x: [1, 2]\n", "must be a scalar"},
		{"variables list", "nodes:\n  - id: a\n    type: http_request\n    url: u\n    variables: [a]\n", "expected a mapping"},
		{"unknown entry", "entry: z\nnodes:\n  - {id: a, type: message}\n", "entry node does not exist"},
		{"malformed", "nodes: [", "failed to parse menu"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().Parse([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
