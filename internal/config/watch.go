package config

import (
	"github.com/fsnotify/fsnotify"

	"github.com/lumenlabs/lumen/internal/logging"
)

// Watch re-reads the config file whenever it changes on disk and calls fn
// with the fresh Config. Returns a stop function. Parse errors keep the
// previous config and are logged, never fatal.
func Watch(path string, fn func(*Config)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					logging.Warnf("[config] reload failed: %v", err)
					continue
				}
				logging.Infof("[config] reloaded %s", path)
				fn(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warnf("[config] watch error: %v", err)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
