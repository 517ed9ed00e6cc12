package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file on change and hands the parsed Config to
// onReload. It never reloads rule sources (those are out of scope, per
// spec.md's Non-goals) — only the ambient config file itself.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	done    chan struct{}
}

// WatchFile starts watching path for changes, calling onReload with each
// successfully parsed Config. Parse failures are logged and skipped,
// leaving the previously loaded Config as the caller's last known good
// value (§7: degrade and warn rather than crash the watcher).
func WatchFile(path string, onReload func(Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{watcher: fw, path: filepath.Clean(path), done: make(chan struct{})}
	go w.loop(onReload)
	return w, nil
}

func (w *Watcher) loop(onReload func(Config)) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := LoadConfigFile(w.path)
			if err != nil {
				slog.Warn("flowguard: config reload failed, keeping previous configuration", "path", w.path, "err", err)
				continue
			}
			onReload(cfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("flowguard: config watcher error", "err", err)
		case <-w.done:
			return
		}
	}
}

// Close stops watching and releases the underlying inotify/kqueue handle.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
