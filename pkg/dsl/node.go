package dsl

import (
	"fmt"

	"github.com/aretw0/menuflow/pkg/domain"
)

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	id      string
	typ     domain.NodeType
	next    string
	builder *Builder

	text     string
	variable string
	branch   domain.Branch

	method    string
	url       string
	headers   map[string]string
	query     map[string]string
	data      any
	auth      *domain.BasicAuth
	variables domain.Assignments
	cookies   domain.Assignments
}

// Set binds a variable to a templated value, for use in Case and Default.
func Set(name, value string) domain.Assignment {
	return domain.Assignment{Name: name, Value: value}
}

// Message marks the node as a message node (soft step) with the given text.
func (n *NodeBuilder) Message(text string) *NodeBuilder {
	n.typ = domain.NodeTypeMessage
	n.text = text
	return n
}

// Ask marks the node as an input node (hard step): text is sent and the next
// inbound message is saved to variable.
func (n *NodeBuilder) Ask(text, variable string) *NodeBuilder {
	n.typ = domain.NodeTypeInput
	n.text = text
	n.variable = variable
	return n
}

// Switch marks the node as a switch node branching on the rendered validation.
func (n *NodeBuilder) Switch(validation string) *NodeBuilder {
	n.typ = domain.NodeTypeSwitch
	n.branch.Validation = validation
	return n
}

// Request marks the node as an HTTP request node.
func (n *NodeBuilder) Request(method, url string) *NodeBuilder {
	n.typ = domain.NodeTypeHTTPRequest
	n.method = method
	n.url = url
	return n
}

// Header adds a templated request header.
func (n *NodeBuilder) Header(key, value string) *NodeBuilder {
	if n.headers == nil {
		n.headers = make(map[string]string)
	}
	n.headers[key] = value
	return n
}

// Query adds a templated query parameter.
func (n *NodeBuilder) Query(key, value string) *NodeBuilder {
	if n.query == nil {
		n.query = make(map[string]string)
	}
	n.query[key] = value
	return n
}

// Body sets the JSON request body. String leaves are templated.
func (n *NodeBuilder) Body(data any) *NodeBuilder {
	n.data = data
	return n
}

// BasicAuth sets templated basic credentials.
func (n *NodeBuilder) BasicAuth(login, password string) *NodeBuilder {
	n.auth = &domain.BasicAuth{Login: login, Password: password}
	return n
}

// Capture saves the value at the JMESPath key of the response body to variable.
func (n *NodeBuilder) Capture(variable, key string) *NodeBuilder {
	n.variables = append(n.variables, domain.Assignment{Name: variable, Value: key})
	return n
}

// Cookie saves the named response cookie to variable.
func (n *NodeBuilder) Cookie(variable, cookie string) *NodeBuilder {
	n.cookies = append(n.cookies, domain.Assignment{Name: variable, Value: cookie})
	return n
}

// Validate sets the discriminant template of an input node's branch.
func (n *NodeBuilder) Validate(validation string) *NodeBuilder {
	n.branch.Validation = validation
	return n
}

// Case adds a case leading to target and applying vars in order.
func (n *NodeBuilder) Case(id, target string, vars ...domain.Assignment) *NodeBuilder {
	n.branch.Cases = append(n.branch.Cases, domain.Case{
		ID:          id,
		OConnection: target,
		Variables:   domain.Assignments(vars),
	})
	return n
}

// Default adds the fallback case.
func (n *NodeBuilder) Default(target string, vars ...domain.Assignment) *NodeBuilder {
	return n.Case(domain.DefaultCaseID, target, vars...)
}

// Go sets the unconditional successor.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.next = target
	return n
}

// Terminal marks the node as a terminal node (end of the flow).
func (n *NodeBuilder) Terminal() *NodeBuilder {
	n.next = ""
	return n
}

// Build returns the underlying domain.Node.
// This is primarily used by the Builder, but exposed for advanced usage.
func (n *NodeBuilder) Build() (domain.Node, error) {
	base := domain.Base{ID: n.id, Type: n.typ, OConnection: n.next}
	switch n.typ {
	case domain.NodeTypeMessage:
		return &domain.Message{Base: base, Text: n.text}, nil
	case domain.NodeTypeInput:
		return &domain.Input{Base: base, Branch: n.branch, Text: n.text, Variable: n.variable}, nil
	case domain.NodeTypeSwitch:
		return &domain.Switch{Base: base, Branch: n.branch}, nil
	case domain.NodeTypeHTTPRequest:
		return &domain.HTTPRequest{
			Base:        base,
			Branch:      n.branch,
			Method:      n.method,
			URL:         n.url,
			Headers:     n.headers,
			QueryParams: n.query,
			Data:        n.data,
			BasicAuth:   n.auth,
			Variables:   n.variables,
			Cookies:     n.cookies,
		}, nil
	}
	return nil, fmt.Errorf("node %q has no type", n.id)
}
