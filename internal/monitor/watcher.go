package monitor

import (
	"context"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watcher reports lease-file activity as it happens so a change can be
// picked up without waiting for the next poll. The interval poll keeps
// running as reconcile either way.
type Watcher interface {
	// Start begins watching the lease directories.
	// Calls callback with the path of each touched file.
	// Blocks until ctx is cancelled or an error occurs.
	Start(ctx context.Context, callback func(path string)) error
}

type fsnotifyWatcher struct {
	dirs []string
}

// NewWatcher creates an fsnotify-backed watcher for the given lease
// directories.
func NewWatcher(dirs ...string) Watcher {
	return &fsnotifyWatcher{dirs: dirs}
}

func (w *fsnotifyWatcher) Start(ctx context.Context, callback func(string)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	for _, dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			log.WithError(err).WithField("dir", dir).Warn("Cannot watch lease directory")
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			// Writes and renames-into-place are the ways dhcpleased
			// updates its state files.
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				callback(ev.Name)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("Lease directory watch error")
		}
	}
}
