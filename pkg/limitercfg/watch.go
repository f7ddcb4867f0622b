package limitercfg

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadCallback is invoked after every debounced reload attempt,
// successful or not. On success set is the freshly loaded Set; on
// failure set is nil and err is non-nil.
type ReloadCallback func(set *Set, err error)

// Watcher reloads a Loader's backing file on change and notifies a
// callback, debouncing rapid successive writes (editors commonly emit
// several events per save).
type Watcher struct {
	loader   *Loader
	fsw      *fsnotify.Watcher
	callback ReloadCallback
	debounce time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	wg      sync.WaitGroup
}

// WatchOption configures Watch.
type WatchOption func(*watcherOptions)

type watcherOptions struct {
	debounce time.Duration
}

func defaultWatcherOptions() *watcherOptions {
	return &watcherOptions{debounce: 100 * time.Millisecond}
}

// WithDebounce overrides the default 100ms debounce window.
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watcherOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// Watch starts watching loader's backing file's directory (not the file
// itself, since atomic-write editors replace rather than modify it) and
// calls callback after every debounced reload. Call Stop to release the
// underlying inotify/kqueue watch.
func Watch(loader *Loader, callback ReloadCallback, opts ...WatchOption) (*Watcher, error) {
	if callback == nil {
		return nil, fmt.Errorf("limitercfg: callback must not be nil")
	}

	options := defaultWatcherOptions()
	for _, opt := range opts {
		opt(options)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("limitercfg: create watcher: %w", err)
	}

	dir := filepath.Dir(loader.path)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("limitercfg: watch dir %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		loader:   loader,
		fsw:      fsw,
		callback: callback,
		debounce: options.debounce,
		ctx:      ctx,
		cancel:   cancel,
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer w.wg.Done()
	filename := filepath.Base(w.loader.path)

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.scheduleReload()
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		err := w.loader.Reload()
		if err != nil {
			w.callback(nil, err)
			return
		}
		w.callback(w.loader.Current(), nil)
	})
}

// Stop cancels the watch loop and releases the underlying fsnotify
// watcher. Idempotent.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
	return w.fsw.Close()
}
