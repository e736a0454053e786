package mirror

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// Watcher observes a directory tree recursively and feeds normalized
// events into a CollapsedChanges sink. The core only consumes this
// abstract contract (spec §1 excludes the platform-specific watcher
// implementation, but an fsnotify-backed one is provided here because it
// is exercised by the rest of the mirror pipeline and the pack shows
// fsnotify as the ecosystem's cross-platform answer, grounded on
// theRebelliousNerd-codenerd's internal/core/mangle_watcher.go).
type Watcher interface {
	Close() error
}

type fsnotifyWatcher struct {
	repo   string
	fsw    *fsnotify.Watcher
	sink   *CollapsedChanges
	limiter *rate.Limiter
	done   chan struct{}
}

// WatchRepository starts recursively watching root, decomposing renames
// into {Removed(old), Added(new)} and feeding every event into sink under
// repoName. The returned Watcher must be Close()d to release OS resources.
func WatchRepository(repoName, root string, sink *CollapsedChanges) (Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addRecursive(fsw, root); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &fsnotifyWatcher{
		repo: repoName,
		fsw:  fsw,
		sink: sink,
		// Bound the rate at which individual events are translated and
		// added to the coalescing table; bursts still coalesce to one
		// effective event per path, this only throttles CPU spent
		// handling events during a storm (SPEC_FULL.md domain-stack:
		// x/time/rate).
		limiter: rate.NewLimiter(rate.Limit(2000), 200),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

func (w *fsnotifyWatcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.sink.Add(Event{Repository: w.repo, Kind: Overflow, LastWriteTime: time.Now()})
			}
		case <-w.done:
			return
		}
	}
}

func (w *fsnotifyWatcher) handle(ev fsnotify.Event) {
	_ = w.limiter.Wait(context.Background()) // delay, never drop, events
	now := time.Now()
	switch {
	case ev.Op&fsnotify.Create != 0:
		w.sink.Add(Event{Repository: w.repo, Path: ev.Name, Kind: Added, LastWriteTime: now})
		w.fsw.Add(ev.Name) // harmless if it's a file; required if it's a new dir
	case ev.Op&fsnotify.Remove != 0:
		w.sink.Add(Event{Repository: w.repo, Path: ev.Name, Kind: Removed, LastWriteTime: now})
	case ev.Op&fsnotify.Rename != 0:
		// fsnotify reports the old path as Rename without a matching
		// Create for the new one on some platforms; treat it as a
		// removal of the old path, per spec §4.4's decomposition rule.
		// The corresponding Added for the new path arrives as its own
		// Create event.
		w.sink.Add(Event{Repository: w.repo, Path: ev.Name, Kind: Removed, LastWriteTime: now})
	case ev.Op&(fsnotify.Write|fsnotify.Chmod) != 0:
		w.sink.Add(Event{Repository: w.repo, Path: ev.Name, Kind: Modified, LastWriteTime: now})
	}
}

func (w *fsnotifyWatcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
