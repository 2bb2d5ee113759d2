package supervisor

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/tokenpulse/tokenpulse/internal/eventbus"
	"github.com/tokenpulse/tokenpulse/internal/model"
)

// PostReader is the narrow interface the watcher needs to read the
// ScrapeStore's current contents for the scrapeUpdate broadcast.
type PostReader interface {
	Read() ([]model.Post, error)
}

// Watcher observes the ScrapeStore file for changes and feeds them to a
// Supervisor's debounce logic. It deliberately watches only the
// ScrapeStore path — never the Sentiment/Coin stores the supervisor itself
// writes downstream — breaking the cyclic file-change/supervisor reference
// called out in spec.md §9.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	supervisor *Supervisor
	watchPath  string
	bus        *eventbus.Bus
	posts      PostReader
}

// NewWatcher opens an fsnotify watcher on the directory containing
// watchPath (fsnotify watches directories, not bare files, so renames and
// recreates of watchPath are still observed) and filters events down to
// that one file. Every matching change re-reads posts and broadcasts it on
// bus as a ScrapeUpdate, per spec.md §4.6/§6.
func NewWatcher(supervisor *Supervisor, watchPath string, bus *eventbus.Bus, posts PostReader) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(watchPath)
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, err
	}
	return &Watcher{
		fsWatcher:  fsWatcher,
		supervisor: supervisor,
		watchPath:  filepath.Clean(watchPath),
		bus:        bus,
		posts:      posts,
	}, nil
}

// Run blocks, dispatching matching fsnotify events to the supervisor until
// ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsWatcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.watchPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.supervisor.OnFileChange(ctx)
			w.publishScrapeUpdate()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("file watcher error", slog.Any("err", err))
		}
	}
}

func (w *Watcher) publishScrapeUpdate() {
	if w.bus == nil || w.posts == nil {
		return
	}
	posts, err := w.posts.Read()
	if err != nil {
		slog.Error("failed to read scrape store for scrapeUpdate broadcast", slog.Any("err", err))
		return
	}
	w.bus.Publish(eventbus.ScrapeUpdate{Posts: posts})
}
