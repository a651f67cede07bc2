package config

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teranos/bindgen/errors"
	"github.com/teranos/bindgen/logger"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 300 * time.Millisecond

// ReloadCallback is called with the freshly loaded config after a watched
// file changed.
type ReloadCallback func(*Config) error

// Watcher watches the project config and every header it names, and
// reloads the config when any of them changes. Directories are watched
// rather than files so editors that replace files on save are seen.
type Watcher struct {
	configPath string
	watcher    *fsnotify.Watcher
	reload     func() (*Config, error)
	log        *zap.SugaredLogger

	mu             sync.Mutex
	files          map[string]bool
	dirs           map[string]bool
	callbacks      []ReloadCallback
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
}

// NewWatcher creates a watcher for configPath and the headers of cfg.
func NewWatcher(configPath string, cfg *Config) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	w := &Watcher{
		configPath:     configPath,
		watcher:        fw,
		log:            logger.ComponentLogger("watch"),
		files:          make(map[string]bool),
		dirs:           make(map[string]bool),
		debouncePeriod: DefaultDebounce,
	}
	w.reload = func() (*Config, error) { return Load(w.configPath) }

	if err := w.track(append([]string{configPath}, WatchedHeaders(cfg)...)); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// SetDebounce changes the debounce period. Call before Run.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debouncePeriod = d
}

// OnReload registers a callback to be called when config is reloaded
func (w *Watcher) OnReload(cb ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Files returns the watched files, sorted.
func (w *Watcher) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (w *Watcher) track(paths []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		w.files[abs] = true
		dir := filepath.Dir(abs)
		if w.dirs[dir] {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			return errors.Wrapf(err, "failed to watch %s", dir)
		}
		w.dirs[dir] = true
	}
	return nil
}

func (w *Watcher) watched(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files[abs]
}

// Run blocks until ctx is done, reloading on changes.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.debounceTimer != nil {
				w.debounceTimer.Stop()
			}
			w.mu.Unlock()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if isBackupFile(event.Name) || !w.watched(event.Name) {
				continue
			}
			w.log.Infow("Change detected", logger.FieldFile, event.Name, "op", event.Op.String())
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warnw("Watcher error", logger.FieldError, err)
		}
	}
}

// scheduleReload debounces rapid file changes and triggers reload
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debouncePeriod, func() {
		if err := w.reloadNow(); err != nil {
			w.log.Errorw("Config reload failed", logger.FieldError, err)
		}
	})
}

func (w *Watcher) reloadNow() error {
	cfg, err := w.reload()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := w.track(WatchedHeaders(cfg)); err != nil {
		w.log.Warnw("Could not watch new headers", logger.FieldError, err)
	}

	w.mu.Lock()
	callbacks := append([]ReloadCallback(nil), w.callbacks...)
	w.mu.Unlock()

	for _, cb := range callbacks {
		if err := cb(cfg); err != nil {
			// keep calling the rest
			w.log.Warnw("Reload callback error", logger.FieldError, err)
		}
	}
	return nil
}

// WatchedHeaders returns the header files of every unit that can be found
// on disk, directly or through the unit's include dirs.
func WatchedHeaders(cfg *Config) []string {
	if cfg == nil {
		return nil
	}
	var out []string
	for _, u := range cfg.Units {
		opts := cfg.UnitOptions(u)
		for _, h := range opts.Headers {
			if exists(h) {
				out = append(out, h)
				continue
			}
			for _, dir := range opts.IncludeDirs {
				if p := filepath.Join(dir, h); exists(p) {
					out = append(out, p)
					break
				}
			}
		}
	}
	return out
}

// isBackupFile checks if the file is a backup file (.back1, .back2, .back3)
func isBackupFile(path string) bool {
	ext := filepath.Ext(path)
	return strings.HasPrefix(ext, ".back") && len(ext) == len(".back1")
}
