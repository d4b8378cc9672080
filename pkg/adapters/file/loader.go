// Package file provides filesystem adapters: a flow loader with hot reload
// and a JSON session store.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/menuflow/internal/compiler"
	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/fsnotify/fsnotify"
)

// debounce collapses the burst of events editors produce on save.
const debounce = 150 * time.Millisecond

// Loader implements ports.MenuLoader and ports.Watchable for a YAML or JSON
// flow file.
type Loader struct {
	Path   string
	parser *compiler.Parser
}

// NewLoader creates a loader for the flow file at path.
func NewLoader(path string) *Loader {
	return &Loader{Path: path, parser: compiler.NewParser()}
}

// Load reads, parses and resolves the flow file.
func (l *Loader) Load(ctx context.Context) (*domain.Menu, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow %s: %w", l.Path, err)
	}
	menu, err := l.parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", l.Path, err)
	}
	if err := menu.ResolveReferences(); err != nil {
		return nil, fmt.Errorf("flow %s: %w", l.Path, err)
	}
	return menu, nil
}

// Watch signals when the flow file changes. The parent directory is watched
// so that editors replacing the file by rename are noticed too.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	abs, err := filepath.Abs(l.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid flow path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	ch := make(chan struct{}, 1)

	go func() {
		defer close(ch)
		defer watcher.Close()

		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != abs {
					continue
				}
				if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-fire:
				fire = nil
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()

	return ch, nil
}
