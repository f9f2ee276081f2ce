package config

import (
	"context"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the configuration whenever the file is written, until ctx
// is cancelled. The directory is watched rather than the file so editors
// that replace the file by rename are picked up. Reload errors are logged
// and the previous configuration is kept.
func (m *Manager) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir, name := filepath.Split(m.configPath)
	if dir == "" {
		dir = "."
	}
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Printf("Config: Watching %s", m.configPath)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if err := m.Load(); err != nil {
				log.Printf("Config: Reload failed: %v", err)
				continue
			}
			log.Printf("Config: Reloaded %s", m.configPath)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("Config: Watcher error: %v", err)
		}
	}
}
