package settings

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 250 * time.Millisecond

// Watch calls fn with freshly loaded settings whenever the settings file is
// written, created, replaced or removed. It returns once the watch is set up;
// watching stops when ctx is done.
func (s *Store) Watch(ctx context.Context, fn func(Settings)) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return err
	}
	go s.watchLoop(ctx, w, fn)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, w *fsnotify.Watcher, fn func(Settings)) {
	defer w.Close()

	target := filepath.Clean(s.path)
	var timer *time.Timer
	var fire <-chan time.Time
	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(watchDebounce)
			fire = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(watchDebounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.log.Debug("settings watch error", "err", err)
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			resetTimer()
		case <-fire:
			s.Invalidate()
			fn(s.Load())
		}
	}
}
