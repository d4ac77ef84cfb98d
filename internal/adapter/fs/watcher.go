package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ChangeType classifies a file system change.
type ChangeType int

const (
	ChangeCreated ChangeType = iota
	ChangeUpdated
	ChangeDeleted
)

func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Change is one document file appearing, changing or going away.
type Change struct {
	Type ChangeType
	Path string
	Name string
}

// Watcher reports changes to the documents directly inside a directory.
// Only names accepted by the walker's patterns are reported.
type Watcher struct {
	root    string
	walker  *Walker
	watcher *fsnotify.Watcher
}

// NewWatcher starts watching root. Close releases the OS handles.
func NewWatcher(root string, walker *Walker) (*Watcher, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if walker == nil {
		walker = NewWalker(nil, nil)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(root); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", root, err)
	}
	return &Watcher{root: root, walker: walker, watcher: fw}, nil
}

// Watch delivers changes until ctx is cancelled or the watcher is closed.
// Watch errors are sent to errs when it is non-nil and dropped otherwise.
func (w *Watcher) Watch(ctx context.Context, errs chan<- error) <-chan Change {
	changes := make(chan Change)
	go func() {
		defer close(changes)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				change, ok := w.handleFsEvent(event)
				if !ok {
					continue
				}
				select {
				case changes <- change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				if errs != nil {
					select {
					case errs <- err:
					default:
					}
				}
			}
		}
	}()
	return changes
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// handleFsEvent maps a raw notification to a Change. Directories, hidden
// files, files in subdirectories and chmod-only events are ignored.
func (w *Watcher) handleFsEvent(event fsnotify.Event) (Change, bool) {
	if filepath.Dir(event.Name) != w.root {
		return Change{}, false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || !w.walker.Matches(name) {
		return Change{}, false
	}

	change := Change{Path: event.Name, Name: name}
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		change.Type = ChangeDeleted
		return change, true
	case event.Has(fsnotify.Create):
		change.Type = ChangeCreated
	case event.Has(fsnotify.Write):
		change.Type = ChangeUpdated
	default:
		return Change{}, false
	}

	info, err := os.Stat(event.Name)
	if err != nil || !info.Mode().IsRegular() {
		return Change{}, false
	}
	return change, true
}
