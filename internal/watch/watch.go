// Package watch reports file changes in debounced batches.
//
// It drives watch mode: plugin scripts and build inputs are watched, and a
// burst of writes from an editor save becomes a single rebuild.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when no debounce is configured.
const DefaultDebounce = 100 * time.Millisecond

// Errors returned by the watcher.
var (
	ErrWatcherClosed = errors.New("watcher is closed")
	ErrPathNotExist  = errors.New("path does not exist")
)

// Op is a set of file operations.
type Op uint8

// Operations.
const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

// Has reports whether op contains other.
func (op Op) Has(other Op) bool {
	return op&other != 0
}

func (op Op) String() string {
	var parts []string
	for _, o := range []struct {
		op   Op
		name string
	}{
		{OpCreate, "create"},
		{OpWrite, "write"},
		{OpRemove, "remove"},
		{OpRename, "rename"},
		{OpChmod, "chmod"},
	} {
		if op.Has(o.op) {
			parts = append(parts, o.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Event is a coalesced change to one path.
type Event struct {
	Path string
	Op   Op
	Time time.Time
}

// Handler receives a batch of events sorted by path.
type Handler func(events []Event)

// Watcher watches files and directories with fsnotify.
type Watcher struct {
	mu     sync.Mutex
	fsw    *fsnotify.Watcher
	paths  map[string]bool
	closed bool

	debounce time.Duration
	filter   func(Event) bool
	logger   *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long the watcher waits for events to settle.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithFilter drops events for which keep returns false.
func WithFilter(keep func(Event) bool) Option {
	return func(w *Watcher) {
		w.filter = keep
	}
}

// WithLogger sets the logger for watch errors.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates a watcher. Close releases it.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:      fsw,
		paths:    make(map[string]bool),
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Add watches path. Directories are watched recursively, skipping hidden
// subdirectories.
func (w *Watcher) Add(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrPathNotExist
		}
		return err
	}
	if !info.IsDir() {
		return w.add(absPath)
	}

	return filepath.WalkDir(absPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if p != absPath && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.add(p)
	})
}

func (w *Watcher) add(absPath string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.paths[absPath] {
		return nil
	}
	if err := w.fsw.Add(absPath); err != nil {
		return err
	}
	w.paths[absPath] = true
	return nil
}

// Paths returns the watched paths, sorted.
func (w *Watcher) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.paths))
	for p := range w.paths {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Run delivers debounced batches to handler until ctx is done or the
// watcher is closed. handler runs on Run's goroutine; events arriving
// meanwhile are batched for the next call.
func (w *Watcher) Run(ctx context.Context, handler Handler) error {
	pending := make(map[string]Event)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case fsEvent, ok := <-w.fsw.Events:
			if !ok {
				return ErrWatcherClosed
			}
			if fsEvent.Has(fsnotify.Create) {
				if info, err := os.Stat(fsEvent.Name); err == nil && info.IsDir() {
					if err := w.Add(fsEvent.Name); err != nil {
						w.logger.Warn("watch new directory failed", "path", fsEvent.Name, "error", err)
					}
				}
			}

			event, keep := w.convert(fsEvent)
			if !keep {
				continue
			}
			if prev, exists := pending[event.Path]; exists {
				event.Op |= prev.Op
			}
			pending[event.Path] = event
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return ErrWatcherClosed
			}
			w.logger.Error("watch error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]Event, 0, len(pending))
			for _, e := range pending {
				batch = append(batch, e)
			}
			slices.SortFunc(batch, func(a, b Event) int {
				return strings.Compare(a.Path, b.Path)
			})
			clear(pending)
			handler(batch)
		}
	}
}

func (w *Watcher) convert(fsEvent fsnotify.Event) (Event, bool) {
	var op Op
	if fsEvent.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsEvent.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsEvent.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsEvent.Has(fsnotify.Rename) {
		op |= OpRename
	}
	if fsEvent.Has(fsnotify.Chmod) {
		op |= OpChmod
	}
	if op == 0 || op == OpChmod {
		return Event{}, false
	}

	event := Event{Path: fsEvent.Name, Op: op, Time: time.Now()}
	if w.filter != nil && !w.filter(event) {
		return Event{}, false
	}
	return event, true
}

// Close stops watching. A running Run returns ErrWatcherClosed.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.fsw.Close()
}

// HasExt returns a filter keeping events for files with one of exts.
func HasExt(exts ...string) func(Event) bool {
	return func(e Event) bool {
		return slices.Contains(exts, filepath.Ext(e.Path))
	}
}
