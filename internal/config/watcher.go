package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"

	taxerrors "github.com/eliadvertman/segctl/internal/errors"
)

// Watcher watches one or more paths (the config file, the templates
// directory) and invokes onChange whenever fsnotify reports a write or
// create event. It never watches for removal of the thing it's told to
// reload from — a missing file is a caller concern, not a watcher concern.
type Watcher struct {
	fsw *fsnotify.Watcher
	log logr.Logger
}

// NewWatcher creates a Watcher over the given paths.
func NewWatcher(log logr.Logger, paths ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, taxerrors.Wrap(taxerrors.KindInternal, err, "creating fsnotify watcher")
	}
	for _, p := range paths {
		if err := fsw.Add(p); err != nil {
			_ = fsw.Close()
			return nil, taxerrors.Wrap(taxerrors.KindInternal, err, "watching path "+p)
		}
	}
	return &Watcher{fsw: fsw, log: log}, nil
}

// Run blocks, calling onChange(path) for every write/create event, until
// stop is closed.
func (w *Watcher) Run(stop <-chan struct{}, onChange func(path string)) {
	for {
		select {
		case <-stop:
			_ = w.fsw.Close()
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.log.V(1).Info("watched path changed", "path", ev.Name, "op", ev.Op.String())
				onChange(ev.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error(err, "fsnotify watcher error")
		}
	}
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
