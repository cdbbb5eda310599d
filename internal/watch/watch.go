// Package watch monitors collection directories for snippet file
// changes and coalesces them into reload batches.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vk/snipweave/internal/ctxlog"
)

// DefaultDebounce batches rapid-fire editor writes into one reload.
const DefaultDebounce = 250 * time.Millisecond

// Change is one debounced batch of collection file modifications.
type Change struct {
	Paths []string
}

// Watcher watches directory trees for changes to .hcl collection
// files and emits debounced Change batches.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	changes  chan Change
}

// New creates a watcher. A non-positive debounce falls back to
// DefaultDebounce.
func New(debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		fsw:      fsw,
		debounce: debounce,
		changes:  make(chan Change, 16),
	}, nil
}

// Add registers root and every directory below it.
func (w *Watcher) Add(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.fsw.Add(path)
	})
}

// Changes delivers debounced change batches. The channel closes when
// Run returns.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Run pumps file system events until ctx is cancelled or the
// underlying watcher closes. Directories created under a watched root
// join the watch set so files inside them are seen too.
func (w *Watcher) Run(ctx context.Context) error {
	log := ctxlog.FromContext(ctx)
	defer close(w.changes)

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.fsw.Add(ev.Name); err != nil {
						log.Debug("Cannot watch new directory", "path", ev.Name, "error", err)
					}
					continue
				}
			}
			if !isCollectionFile(ev.Name) {
				continue
			}
			if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) &&
				!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			log.Debug("Collection file changed", "path", ev.Name, "op", ev.Op.String())
			pending[ev.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-fire:
			paths := make([]string, 0, len(pending))
			for path := range pending {
				paths = append(paths, path)
			}
			slices.Sort(paths)
			clear(pending)
			select {
			case w.changes <- Change{Paths: paths}:
			case <-ctx.Done():
				return ctx.Err()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Debug("Watcher error", "error", err)
		}
	}
}

// Close shuts the underlying file system watcher down.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func isCollectionFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".hcl")
}
