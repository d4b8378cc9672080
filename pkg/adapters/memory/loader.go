package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/aretw0/menuflow/pkg/domain"
)

// Loader implements ports.MenuLoader and ports.Watchable over a Menu held in
// memory. Update swaps the Menu and notifies watchers, which makes it handy
// for tests and for embedding flows built in code.
type Loader struct {
	mu       sync.RWMutex
	menu     *domain.Menu
	watchers []chan struct{}
}

// NewLoader creates a loader serving menu.
func NewLoader(menu *domain.Menu) *Loader {
	return &Loader{menu: menu}
}

// NewFromNodes builds a Menu from domain objects and checks its references.
// The first node is the entry node.
func NewFromNodes(id string, nodes ...domain.Node) (*Loader, error) {
	menu, err := domain.NewMenu(id, "", nodes)
	if err != nil {
		return nil, err
	}
	if err := menu.ResolveReferences(); err != nil {
		return nil, err
	}
	return NewLoader(menu), nil
}

// Load returns the current Menu.
func (l *Loader) Load(ctx context.Context) (*domain.Menu, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.menu == nil {
		return nil, errors.New("memory loader: no menu")
	}
	return l.menu, nil
}

// Update replaces the Menu and signals every watcher.
func (l *Loader) Update(menu *domain.Menu) {
	l.mu.Lock()
	l.menu = menu
	watchers := append([]chan struct{}(nil), l.watchers...)
	l.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watch returns a channel signaled on every Update until ctx is done.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	l.mu.Lock()
	l.watchers = append(l.watchers, ch)
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, w := range l.watchers {
			if w == ch {
				l.watchers = append(l.watchers[:i], l.watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}
