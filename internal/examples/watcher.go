package examples

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the catalog whenever the examples file is written or
// recreated, until ctx is done. The parent directory is watched so editors
// that replace the file on save are picked up too.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.path == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create examples watcher: %w", err)
	}

	target := filepath.Clean(c.path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", target, err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || !reloadable(event.Op) {
					continue
				}
				if err := c.Load(); err != nil {
					log.Printf("Examples reload failed, keeping previous catalog: %v", err)
					continue
				}
				log.Printf("Reloaded examples from %s (%d total)", target, c.Len())
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("Examples watcher error: %v", err)
			}
		}
	}()

	return nil
}

func reloadable(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create)
}
