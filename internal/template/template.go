// Package template renders "{{ expression }}" segments of flow text against a
// user's variables.
//
// Expressions are evaluated with expr-lang/expr in a restricted mode: variables,
// literals, operators, the ternary and nil-coalescing operators, pipes, and a
// small set of pure builtins. Nothing else is reachable from a flow definition.
package template

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/menuflow/internal/logging"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"

	// DefaultMaxExpressionLength limits a single expression.
	DefaultMaxExpressionLength = 4096

	maxCachedPrograms = 10000
)

// Builtins is the whitelist of expr builtins available to flow authors.
var Builtins = []string{
	"upper", "lower", "trim", "len", "int", "float", "string",
	"replace", "hasPrefix", "hasSuffix",
}

// Error is a failure to compile or evaluate one expression. Render recovers
// from it locally; Evaluate returns it.
type Error struct {
	Expression string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("template expression %q: %v", e.Expression, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Renderer compiles and caches expressions. It is safe for concurrent use.
type Renderer struct {
	compiled map[string]*vm.Program
	mu       sync.RWMutex
	logger   *slog.Logger
	options  []expr.Option

	// MaxExpressionLength limits expression size (default: 4096).
	MaxExpressionLength int
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger used to report recovered expression errors.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		compiled:            make(map[string]*vm.Program),
		logger:              logging.NewNop(),
		MaxExpressionLength: DefaultMaxExpressionLength,
	}
	r.options = []expr.Option{expr.AllowUndefinedVariables(), expr.DisableAllBuiltins()}
	for _, name := range Builtins {
		r.options = append(r.options, expr.EnableBuiltin(name))
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Evaluate runs one expression (without delimiters) against env.
func (r *Renderer) Evaluate(expression string, env map[string]any) (any, error) {
	if len(expression) > r.MaxExpressionLength {
		return nil, &Error{
			Expression: truncate(expression, 32),
			Err:        fmt.Errorf("exceeds maximum length of %d characters", r.MaxExpressionLength),
		}
	}

	prog, err := r.program(expression)
	if err != nil {
		return nil, &Error{Expression: expression, Err: err}
	}

	out, err := expr.Run(prog, env)
	if err != nil {
		return nil, &Error{Expression: expression, Err: err}
	}
	return out, nil
}

func (r *Renderer) program(expression string) (*vm.Program, error) {
	r.mu.RLock()
	prog, ok := r.compiled[expression]
	r.mu.RUnlock()
	if ok {
		return prog, nil
	}

	prog, err := expr.Compile(expression, r.options...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if len(r.compiled) >= maxCachedPrograms {
		r.compiled = make(map[string]*vm.Program)
	}
	r.compiled[expression] = prog
	r.mu.Unlock()
	return prog, nil
}

// Render replaces every "{{ expression }}" segment of text with its value.
// A failing segment renders as "" and is logged at debug level; the rest of
// the text is still rendered. An unterminated "{{" is kept literally.
func (r *Renderer) Render(ctx context.Context, text string, vars map[string]string) string {
	if !strings.Contains(text, openDelim) {
		return text
	}
	env := Env(vars)

	var b strings.Builder
	rest := text
	for {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start+len(openDelim):], closeDelim)
		if end < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])

		code := strings.TrimSpace(rest[start+len(openDelim) : start+len(openDelim)+end])
		rest = rest[start+len(openDelim)+end+len(closeDelim):]
		if code == "" {
			continue
		}

		out, err := r.Evaluate(code, env)
		if err != nil {
			r.logger.DebugContext(ctx, "Template expression failed", "expression", code, "error", err)
			continue
		}
		b.WriteString(Format(out))
	}
	return b.String()
}

// RenderValue renders every string found in v, descending into maps and
// slices. Other values are returned unchanged.
func (r *Renderer) RenderValue(ctx context.Context, v any, vars map[string]string) any {
	switch val := v.(type) {
	case string:
		return r.Render(ctx, val, vars)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = r.RenderValue(ctx, item, vars)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, item := range val {
			out[k] = r.Render(ctx, item, vars)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = r.RenderValue(ctx, item, vars)
		}
		return out
	default:
		return v
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Env exposes string variables as an expression environment.
func Env(vars map[string]string) map[string]any {
	env := make(map[string]any, len(vars))
	for k, v := range vars {
		env[k] = v
	}
	return env
}

// Format converts an expression result to its textual form.
func Format(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}
