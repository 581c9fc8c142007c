// Package file provides a kvo.Source backed by a file on disk, using fsnotify.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Source emits the contents of a file whenever it is written or replaced.
//
// The parent directory is watched rather than the file itself, so editors
// that save by writing a temporary file and renaming it over the original
// keep being picked up.
type Source struct {
	path string
}

// New creates a Source for the file at path.
func New(path string) *Source {
	return &Source{path: filepath.Clean(path)}
}

// Watch implements kvo.Source. The current contents are emitted first.
// It fails immediately if the file does not exist.
func (s *Source) Watch(ctx context.Context) (<-chan []byte, error) {
	if _, err := os.Stat(s.path); err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", s.path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory of %s: %w", s.path, err)
	}

	out := make(chan []byte)
	go s.run(ctx, watcher, out)
	return out, nil
}

func (s *Source) run(ctx context.Context, watcher *fsnotify.Watcher, out chan<- []byte) {
	defer close(out)
	defer watcher.Close()

	if !s.emit(ctx, out) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !s.emit(ctx, out) {
				return
			}

		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
			// Transient watcher errors; keep going
		}
	}
}

// emit reads the file and sends its contents. A read failure (for example
// between the remove and create of a rename) is skipped. It returns false
// once ctx is done.
func (s *Source) emit(ctx context.Context, out chan<- []byte) bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return ctx.Err() == nil
	}
	select {
	case out <- data:
		return true
	case <-ctx.Done():
		return false
	}
}
