package template

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	r := New()
	ctx := context.Background()
	vars := map[string]string{"name": "Ana", "code": "1", "count": "3"}

	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain", "hello", "hello"},
		{"variable", "Hi {{ name }}!", "Hi Ana!"},
		{"no spaces", "{{name}}", "Ana"},
		{"undefined", "[{{ missing }}]", "[]"},
		{"comparison", "{{ code == '1' }}", "true"},
		{"false", "{{ code == '2' }}", "false"},
		{"ternary", "{{ code == '1' ? 'yes' : 'no' }}", "yes"},
		{"coalesce", "{{ missing ?? 'fallback' }}", "fallback"},
		{"builtin", "{{ upper(name) }}", "ANA"},
		{"pipe", "{{ name | lower() }}", "ana"},
		{"arithmetic", "{{ int(count) + 1 }}", "4"},
		{"float", "{{ float(count) / 2 }}", "1.5"},
		{"multiple", "{{ name }}-{{ code }}", "Ana-1"},
		{"unterminated", "a {{ name", "a {{ name"},
		{"empty expression", "a{{ }}b", "ab"},
		{"syntax error recovers", "x{{ name +* }}y{{ name }}", "xyAna"},
		{"runtime error recovers", "[{{ int(name) }}]", "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Render(ctx, tt.text, vars))
		})
	}
}

func TestEvaluate_DisallowsNonWhitelistedBuiltins(t *testing.T) {
	r := New()
	_, err := r.Evaluate(`now()`, nil)
	require.Error(t, err)

	var tplErr *Error
	assert.True(t, errors.As(err, &tplErr))
	assert.Equal(t, "now()", tplErr.Expression)
}

func TestEvaluate_MaxLength(t *testing.T) {
	r := New()
	r.MaxExpressionLength = 8
	_, err := r.Evaluate(strings.Repeat("a", 9), nil)
	assert.ErrorContains(t, err, "exceeds maximum length")
}

func TestEvaluate_CachesPrograms(t *testing.T) {
	r := New()
	_, err := r.Evaluate("a + b", map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	out, err := r.Evaluate("a + b", map[string]any{"a": 2, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, 4, out)
	assert.Len(t, r.compiled, 1)
}

func TestRenderValue(t *testing.T) {
	r := New()
	vars := map[string]string{"cat": "tech"}
	in := map[string]any{
		"category": "{{ cat }}",
		"limit":    10,
		"tags":     []any{"{{ cat }}", true},
		"nested":   map[string]any{"k": "v-{{ cat }}"},
	}
	out := r.RenderValue(context.Background(), in, vars)
	assert.Equal(t, map[string]any{
		"category": "tech",
		"limit":    10,
		"tags":     []any{"tech", true},
		"nested":   map[string]any{"k": "v-tech"},
	}, out)

	headers := r.RenderValue(context.Background(), map[string]string{"X": "{{ cat }}"}, vars)
	assert.Equal(t, map[string]string{"X": "tech"}, headers)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "", Format(nil))
	assert.Equal(t, "true", Format(true))
	assert.Equal(t, "3", Format(3))
	assert.Equal(t, "2.5", Format(2.5))
	assert.Equal(t, "x", Format("x"))
}
