// Package watcher reports edits made to the settings files outside the
// running process.
package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/telnet2/quickcmd/internal/config"
	"github.com/telnet2/quickcmd/internal/logging"
	"github.com/telnet2/quickcmd/pkg/types"
)

// DefaultDebounce coalesces the burst of events a single save produces
// (temp file create, rename, chmod).
const DefaultDebounce = 150 * time.Millisecond

// Callback is called once per settled change of a scope's file.
type Callback func(scope types.Scope, path string)

// Watcher watches the directories that hold the settings files.
type Watcher struct {
	watcher  *fsnotify.Watcher
	paths    config.SettingsPaths
	onChange Callback
	debounce time.Duration

	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool

	mu     sync.Mutex
	timers map[types.Scope]*time.Timer
}

// New creates a watcher. Directories that do not exist yet are skipped;
// it returns nil when none of the settings directories exist.
func New(paths config.SettingsPaths, onChange Callback) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	watched := 0
	seen := make(map[string]bool)
	for _, s := range types.Scopes {
		p := paths.For(s)
		if p == "" {
			continue
		}
		dir := filepath.Dir(p)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			logging.Debug().Str("dir", dir).Str("scope", string(s)).Msg("settings dir missing, not watched")
			continue
		}
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, err
		}
		watched++
	}
	if watched == 0 {
		fw.Close()
		return nil, nil
	}

	return &Watcher{
		watcher:  fw,
		paths:    paths,
		onChange: onChange,
		debounce: DefaultDebounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		timers:   make(map[types.Scope]*time.Timer),
	}, nil
}

// SetDebounce changes the quiet period. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start begins watching.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.run()
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if scope, ok := w.paths.ScopeOf(ev.Name); ok {
				w.schedule(scope)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error().Err(err).Msg("settings watcher error")
		}
	}
}

func (w *Watcher) schedule(scope types.Scope) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[scope]; ok {
		t.Stop()
	}
	w.timers[scope] = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.stopCh:
			return
		default:
		}
		path := w.paths.For(scope)
		logging.Info().Str("scope", string(scope)).Str("path", path).Msg("settings changed on disk")
		w.onChange(scope, path)
	})
}

// Stop stops the watcher and pending callbacks.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	started := w.started
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()

	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
	if started {
		<-w.doneCh
	}
	return w.watcher.Close()
}
