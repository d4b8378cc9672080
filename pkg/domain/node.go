package domain

// NodeType is the wire tag that selects a node variant.
type NodeType string

const (
	// NodeTypeMessage renders its text and continues immediately (soft step).
	NodeTypeMessage NodeType = "message"
	// NodeTypeInput renders its text and halts waiting for the next message (hard step).
	NodeTypeInput NodeType = "input"
	// NodeTypeSwitch branches on a rendered discriminant (silent step).
	NodeTypeSwitch NodeType = "switch"
	// NodeTypeHTTPRequest calls an external endpoint and branches on the status code.
	NodeTypeHTTPRequest NodeType = "http_request"
)

// Node is a logical unit in the conversation graph.
//
// The set of implementations is closed: *Message, *Input, *Switch and *HTTPRequest.
// Successors are referenced by id and resolved through the owning Menu.
type Node interface {
	// NodeID returns the id of the node, unique within its Menu.
	NodeID() string
	// Kind returns the variant tag.
	Kind() NodeType
	// Next returns the id of the unconditional successor, or "" for a terminal node.
	Next() string

	node()
}

// Base holds the fields shared by every node variant.
type Base struct {
	ID          string   `json:"id"`
	Type        NodeType `json:"type"`
	OConnection string   `json:"o_connection,omitempty"`
}

func (b *Base) NodeID() string { return b.ID }
func (b *Base) Kind() NodeType { return b.Type }
func (b *Base) Next() string   { return b.OConnection }

// Branch is the switch/case configuration shared by Switch, Input and HTTPRequest.
type Branch struct {
	// Validation is the discriminant template. HTTPRequest nodes ignore it and
	// branch on the response status instead.
	Validation string `json:"validation,omitempty"`
	Cases      []Case `json:"cases,omitempty"`
}

// HasCases reports whether the branch has anything to resolve.
func (b *Branch) HasCases() bool { return len(b.Cases) > 0 }

// Message emits a rendered text.
type Message struct {
	Base
	Text string `json:"text"`
}

// Input emits a rendered text and captures the next inbound message into Variable.
//
// When the node has no o_connection, its own Branch decides where to go after
// the capture.
type Input struct {
	Base
	Branch
	Text     string `json:"text"`
	Variable string `json:"variable"`
}

// Switch selects a successor by comparing its rendered Validation to the case ids.
type Switch struct {
	Base
	Branch
}

// BasicAuth holds templated HTTP basic credentials.
type BasicAuth struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// HTTPRequest issues one outbound HTTP call and branches on the response status.
type HTTPRequest struct {
	Base
	Branch

	Method      string            `json:"method,omitempty"`
	URL         string            `json:"url"`
	Headers     map[string]string `json:"headers,omitempty"`
	QueryParams map[string]string `json:"query_params,omitempty"`
	Data        any               `json:"data,omitempty"`
	BasicAuth   *BasicAuth        `json:"basic_auth,omitempty"`

	// Variables maps a variable name to the JMESPath key read from the response body.
	Variables Assignments `json:"variables,omitempty"`
	// Cookies maps a variable name to the response cookie captured into it.
	Cookies Assignments `json:"cookies,omitempty"`
}

func (*Message) node()     {}
func (*Input) node()       {}
func (*Switch) node()      {}
func (*HTTPRequest) node() {}

// BranchOf returns the branch configuration of a node, if it has one.
func BranchOf(n Node) (*Branch, bool) {
	switch v := n.(type) {
	case *Input:
		return &v.Branch, true
	case *Switch:
		return &v.Branch, true
	case *HTTPRequest:
		return &v.Branch, true
	}
	return nil, false
}

// Successors lists every node id a node can lead to, in declaration order.
func Successors(n Node) []string {
	var out []string
	if next := n.Next(); next != "" {
		out = append(out, next)
	}
	if b, ok := BranchOf(n); ok {
		for _, c := range b.Cases {
			if c.OConnection != "" {
				out = append(out, c.OConnection)
			}
		}
	}
	return out
}
