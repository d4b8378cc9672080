package domain

import (
	"errors"
	"fmt"
)

// Menu is a flow definition: an arena of nodes addressed by id.
//
// A Menu is immutable once built. Reloading a flow produces a new Menu that
// replaces the old one as a whole.
type Menu struct {
	ID    string `json:"id"`
	Entry string `json:"entry,omitempty"`
	Nodes []Node `json:"nodes"`

	index map[string]Node
}

// NewMenu builds the node index. It rejects empty and duplicated node ids but
// does not resolve successor references (see Validate).
func NewMenu(id, entry string, nodes []Node) (*Menu, error) {
	m := &Menu{
		ID:    id,
		Entry: entry,
		Nodes: nodes,
		index: make(map[string]Node, len(nodes)),
	}
	for i, n := range nodes {
		if n == nil {
			return nil, fmt.Errorf("menu %s: node #%d is nil", id, i)
		}
		nodeID := n.NodeID()
		if nodeID == "" {
			return nil, fmt.Errorf("menu %s: node #%d missing id", id, i)
		}
		if _, dup := m.index[nodeID]; dup {
			return nil, fmt.Errorf("menu %s: duplicate node id %q", id, nodeID)
		}
		m.index[nodeID] = n
	}
	if entry != "" {
		if _, ok := m.index[entry]; !ok {
			return nil, &ConfigurationError{NodeID: entry, Reason: "entry node does not exist", Err: ErrUnknownNode}
		}
	}
	return m, nil
}

// Node looks up a node by id.
func (m *Menu) Node(id string) (Node, bool) {
	n, ok := m.index[id]
	return n, ok
}

// EntryNodeID returns the configured entry node, or the first declared node.
func (m *Menu) EntryNodeID() string {
	if m.Entry != "" {
		return m.Entry
	}
	if len(m.Nodes) > 0 {
		return m.Nodes[0].NodeID()
	}
	return ""
}

// ResolveReferences checks that every successor reference resolves to a node
// of this Menu. Loaders call it so a dangling o_connection is rejected at load.
// A Menu not built with NewMenu has no index and is rejected as well.
func (m *Menu) ResolveReferences() error {
	var errs []error
	for i, n := range m.Nodes {
		if n == nil || m.index[n.NodeID()] != n {
			id := fmt.Sprintf("#%d", i)
			if n != nil {
				id = n.NodeID()
			}
			errs = append(errs, &ConfigurationError{
				NodeID: id,
				Reason: "node is not indexed, build the menu with NewMenu",
				Err:    ErrUnknownNode,
			})
			continue
		}
		for _, next := range Successors(n) {
			if _, ok := m.index[next]; !ok {
				errs = append(errs, &ConfigurationError{
					NodeID: n.NodeID(),
					Reason: fmt.Sprintf("o_connection %q does not resolve", next),
					Err:    ErrUnknownNode,
				})
			}
		}
	}
	return errors.Join(errs...)
}

// Validate is the full static check used by tooling: references, default
// cases on every case list and a variable on every input node. All problems
// are reported together.
func (m *Menu) Validate() error {
	errs := []error{m.ResolveReferences()}
	for _, n := range m.Nodes {
		if b, ok := BranchOf(n); ok && b.HasCases() {
			if _, ok := FindCase(b.Cases, DefaultCaseID); !ok {
				errs = append(errs, &ConfigurationError{
					NodeID: n.NodeID(),
					Reason: "case list has no default case",
					Err:    ErrMissingDefaultCase,
				})
			}
		}
		if in, ok := n.(*Input); ok && in.Variable == "" {
			errs = append(errs, &ConfigurationError{NodeID: n.NodeID(), Reason: "input node missing variable"})
		}
	}
	return errors.Join(errs...)
}

// Unreachable returns the ids of nodes that cannot be reached from the entry node.
func (m *Menu) Unreachable() []string {
	start := m.EntryNodeID()
	if start == "" {
		return nil
	}
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		n, ok := m.index[id]
		if !ok {
			continue
		}
		for _, next := range Successors(n) {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	var out []string
	for _, n := range m.Nodes {
		if !visited[n.NodeID()] {
			out = append(out, n.NodeID())
		}
	}
	return out
}
