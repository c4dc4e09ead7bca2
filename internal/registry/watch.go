package registry

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sprintforge/sprintforge/pkg/models"
)

// watchDebounce coalesces bursts of filesystem events into one reload.
const watchDebounce = 250 * time.Millisecond

// Watch reloads the registry whenever descriptor files change, until the
// context is cancelled. It blocks; run it in its own goroutine.
func (r *Registry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return models.WrapError(models.KindIO, err, "create agents watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return models.WrapError(models.KindIO, err, "watch agents directory")
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				fire = timer.C
			} else {
				timer.Reset(watchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.warn("agents watcher: %v", err)
		case <-fire:
			timer = nil
			fire = nil
			if err := r.reload(); err != nil {
				r.warn("reload agents: %v", err)
			}
		}
	}
}
