package dsl

import (
	"fmt"

	"github.com/aretw0/menuflow/pkg/adapters/memory"
	"github.com/aretw0/menuflow/pkg/domain"
)

// Builder manages the menu construction.
type Builder struct {
	id    string
	order []string
	nodes map[string]*NodeBuilder
}

// New creates a new menu builder.
func New(id string) *Builder {
	return &Builder{
		id:    id,
		nodes: make(map[string]*NodeBuilder),
	}
}

// Add creates a new node in the menu.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{id: id, builder: b}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Menu compiles the nodes, in the order they were added, into a Menu.
// References are not checked; see Build.
func (b *Builder) Menu() (*domain.Menu, error) {
	nodes := make([]domain.Node, 0, len(b.order))
	for _, id := range b.order {
		n, err := b.nodes[id].Build()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return domain.NewMenu(b.id, "", nodes)
}

// Build compiles the menu into a MemoryLoader.
func (b *Builder) Build() (*memory.Loader, error) {
	menu, err := b.Menu()
	if err != nil {
		return nil, fmt.Errorf("failed to build menu: %w", err)
	}
	if err := menu.ResolveReferences(); err != nil {
		return nil, fmt.Errorf("failed to build menu: %w", err)
	}
	return memory.NewLoader(menu), nil
}
