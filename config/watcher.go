package config

import (
	"context"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const reloadDebounce = 250 * time.Millisecond

// EngineWatcher reloads the engine file when it changes on disk and hands
// every valid, changed config to the subscribers. Invalid files are logged
// and ignored; the last good config stays active.
type EngineWatcher struct {
	path string
	log  *logrus.Entry

	mu      sync.Mutex
	current EngineConfig
	subs    []func(EngineConfig)
}

func NewEngineWatcher(path string, initial EngineConfig, logger *logrus.Logger) *EngineWatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &EngineWatcher{
		path:    path,
		current: initial,
		log:     logger.WithFields(logrus.Fields{"component": "config", "path": path}),
	}
}

// OnChange registers fn; it runs on the watcher goroutine.
func (w *EngineWatcher) OnChange(fn func(EngineConfig)) {
	w.mu.Lock()
	w.subs = append(w.subs, fn)
	w.mu.Unlock()
}

func (w *EngineWatcher) Current() EngineConfig {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Reload parses the file and notifies subscribers if the content changed.
// It reports whether a new config was applied.
func (w *EngineWatcher) Reload() bool {
	cfg, err := LoadEngine(w.path)
	if err != nil {
		w.log.WithError(err).Warn("engine config rejected")
		return false
	}

	w.mu.Lock()
	if reflect.DeepEqual(cfg, w.current) {
		w.mu.Unlock()
		w.log.Debug("engine config unchanged")
		return false
	}
	w.current = cfg
	subs := slices.Clone(w.subs)
	w.mu.Unlock()

	for _, fn := range subs {
		fn(cfg)
	}
	w.log.Info("engine config reloaded")
	return true
}

// Watch blocks until ctx is done. The directory is watched rather than the
// file so editors that replace the file on save are handled.
func (w *EngineWatcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	file := filepath.Base(w.path)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDebounce, func() { w.Reload() })
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	w.log.Debug("engine config watcher started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("engine config watcher error")
		}
	}
}
