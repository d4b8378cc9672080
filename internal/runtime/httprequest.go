package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/menuflow/internal/variables"
	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/jmespath/go-jmespath"
)

// httpRequest issues the node's call, extracts response variables and cookies,
// and resolves the successor from the status code.
func (s *step) httpRequest(ctx context.Context, n *domain.HTTPRequest) (string, error) {
	e := s.engine

	req, err := s.buildRequest(ctx, n)
	if err != nil {
		return "", err
	}
	netErr := func(err error) error {
		return &domain.NetworkError{NodeID: n.ID, Method: req.Method, URL: req.URL.Redacted(), Err: err}
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return "", netErr(fmt.Errorf("rate limit: %w", err))
		}
	}

	e.emitHTTP(ctx, s, e.hooks.OnHTTPRequest, domain.EventHTTPRequest, &domain.HTTPEvent{
		NodeID: n.ID, Method: req.Method, URL: req.URL.Redacted(),
	})

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		e.emitHTTP(ctx, s, e.hooks.OnHTTPResponse, domain.EventHTTPResponse, &domain.HTTPEvent{
			NodeID: n.ID, Method: req.Method, URL: req.URL.Redacted(), Duration: time.Since(start), Err: err,
		})
		return "", netErr(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, e.maxResponseBytes+1))
	duration := time.Since(start)
	e.emitHTTP(ctx, s, e.hooks.OnHTTPResponse, domain.EventHTTPResponse, &domain.HTTPEvent{
		NodeID: n.ID, Method: req.Method, URL: req.URL.Redacted(), StatusCode: resp.StatusCode, Duration: duration, Err: err,
	})
	if err != nil {
		return "", netErr(fmt.Errorf("read response: %w", err))
	}

	e.logger.DebugContext(ctx, "HTTP request completed",
		"node_id", n.ID,
		"method", req.Method,
		"url", req.URL.Redacted(),
		"status", resp.StatusCode,
		"duration", duration,
	)

	if int64(len(data)) > e.maxResponseBytes {
		// A cut body cannot be parsed reliably; branching still uses the status.
		if len(n.Variables) > 0 {
			e.logger.WarnContext(ctx, "Skipping response extraction",
				"node_id", n.ID,
				"limit", e.maxResponseBytes,
				"error", &domain.ParseError{NodeID: n.ID, Err: domain.ErrResponseTooLarge},
			)
		}
	} else {
		s.extractVariables(ctx, n, data)
	}
	s.extractCookies(ctx, n, resp.Cookies())

	if !n.HasCases() {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return "", netErr(fmt.Errorf("unexpected status %d", resp.StatusCode))
		}
		return n.Next(), nil
	}
	return s.resolve(ctx, n, strconv.Itoa(resp.StatusCode), n.Cases)
}

// buildRequest materializes every templated field of the node.
func (s *step) buildRequest(ctx context.Context, n *domain.HTTPRequest) (*http.Request, error) {
	r := s.engine.renderer
	vars := s.tx.All()

	method := strings.ToUpper(strings.TrimSpace(r.Render(ctx, n.Method, vars)))
	if method == "" {
		method = http.MethodGet
	}

	u, err := url.Parse(strings.TrimSpace(r.Render(ctx, n.URL, vars)))
	if err != nil || u.Scheme == "" || u.Host == "" {
		reason := "rendered url is not absolute"
		if err != nil {
			reason = fmt.Sprintf("rendered url is invalid: %v", err)
		}
		return nil, &domain.ConfigurationError{NodeID: n.ID, Reason: reason, Err: err}
	}
	if len(n.QueryParams) > 0 {
		q := u.Query()
		for k, v := range n.QueryParams {
			q.Set(k, r.Render(ctx, v, vars))
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if n.Data != nil {
		payload, err := json.Marshal(r.RenderValue(ctx, n.Data, vars))
		if err != nil {
			return nil, &domain.ConfigurationError{NodeID: n.ID, Reason: "data is not JSON encodable", Err: err}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, &domain.ConfigurationError{NodeID: n.ID, Reason: "cannot build request", Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range n.Headers {
		req.Header.Set(k, r.Render(ctx, v, vars))
	}
	if n.BasicAuth != nil {
		req.SetBasicAuth(r.Render(ctx, n.BasicAuth.Login, vars), r.Render(ctx, n.BasicAuth.Password, vars))
	}
	return req, nil
}

// extractVariables stores the configured response values. An object or array
// body is queried per variable; a scalar body is assigned to every variable;
// anything else is skipped. Response content is stored as text and never
// rendered.
func (s *step) extractVariables(ctx context.Context, n *domain.HTTPRequest, data []byte) {
	if len(n.Variables) == 0 || len(bytes.TrimSpace(data)) == 0 {
		return
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		s.engine.logger.DebugContext(ctx, "Response body is not JSON, skipping extraction",
			"node_id", n.ID,
			"error", &domain.ParseError{NodeID: n.ID, Err: err},
		)
		return
	}

	switch doc := body.(type) {
	case nil:
		return
	case map[string]any, []any:
		for _, a := range n.Variables {
			value, ok := lookup(doc, a.Value)
			if !ok {
				continue
			}
			if str, ok := variables.Stringify(value); ok {
				s.tx.Set(a.Name, str)
			}
		}
	default:
		str, _ := variables.Stringify(doc)
		for _, a := range n.Variables {
			s.tx.Set(a.Name, str)
		}
	}
}

// lookup evaluates key as a JMESPath expression, falling back to a plain
// top-level key for names that are not valid expressions.
func lookup(doc any, key string) (any, bool) {
	if res, err := jmespath.Search(key, doc); err == nil && res != nil {
		return res, true
	}
	if m, ok := doc.(map[string]any); ok {
		v, found := m[key]
		return v, found && v != nil
	}
	return nil, false
}

// extractCookies stores the configured response cookies. A mapping with an
// empty cookie name captures the cookie named like the variable.
func (s *step) extractCookies(ctx context.Context, n *domain.HTTPRequest, cookies []*http.Cookie) {
	if len(n.Cookies) == 0 {
		return
	}
	vars := s.tx.All()
	for _, a := range n.Cookies {
		name := a.Name
		if a.Value != "" {
			name = s.engine.renderer.Render(ctx, a.Value, vars)
		}
		for _, c := range cookies {
			if c.Name == name {
				s.tx.Set(a.Name, c.Value)
				break
			}
		}
	}
}
