package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"neurodeck/internal/logging"
)

// reloadDebounce coalesces the editor write-then-rename event bursts.
const reloadDebounce = 200 * time.Millisecond

// Watcher reloads the config file on change and hands the result to a
// callback. Invalid intermediate states are logged and skipped; the last
// good config stays in force.
type Watcher struct {
	path     string
	onReload func(*Config)

	fsw  *fsnotify.Watcher
	done chan struct{}
	once sync.Once
}

// NewWatcher watches path and calls onReload with each successfully loaded
// and validated config. Watching the parent directory survives the
// remove-and-recreate save pattern most editors use.
func NewWatcher(path string, onReload func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &Watcher{
		path:     filepath.Clean(path),
		onReload: onReload,
		fsw:      fsw,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	var pending <-chan time.Time
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.ConfigInfo("config watcher error: %v", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		logging.ConfigInfo("config reload skipped, load failed: %v", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		logging.ConfigInfo("config reload skipped, invalid: %v", err)
		return
	}

	logging.ConfigInfo("config reloaded from %s", w.path)
	w.onReload(cfg)
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}
