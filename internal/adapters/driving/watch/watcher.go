// Package watch keeps the index in step with a directory of papers.
//
// Created and modified files are ingested, deleted or renamed files are
// removed. Hidden files and anything under a hidden directory are ignored.
// Bursts of events on one path are coalesced until the path has been
// quiet for the settle interval.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driving"
	"github.com/custodia-labs/paperlens/internal/logger"
)

// DefaultSettle is how long a path must be quiet before it is processed.
const DefaultSettle = 500 * time.Millisecond

// ChangeType classifies a filesystem change.
type ChangeType string

// Change types.
const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// Change is a filesystem change to a paper.
type Change struct {
	Type ChangeType
	Path string
}

// Result reports the outcome of applying a Change.
type Result struct {
	Change Change
	Status *domain.IngestionStatus
	Err    error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithFilter restricts the watcher to paths the filter accepts,
// typically the extractor registry's Supports.
func WithFilter(supports func(path string) bool) Option {
	return func(w *Watcher) { w.supports = supports }
}

// WithSettle overrides DefaultSettle.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) { w.settle = d }
}

// WithResults receives the outcome of every applied change.
func WithResults(fn func(Result)) Option {
	return func(w *Watcher) { w.onResult = fn }
}

// Watcher ingests papers as they appear in a directory tree.
type Watcher struct {
	root     string
	ingest   driving.IngestService
	idFor    func(uri string) string
	supports func(path string) bool
	settle   time.Duration
	onResult func(Result)
}

type pendingChange struct {
	change Change
	at     time.Time
}

// New creates a watcher over root. idFor must derive document IDs from
// file paths exactly as the ingest path does, so deletions find the
// document.
func New(root string, ingest driving.IngestService, idFor func(string) string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s: %w: not a directory", abs, domain.ErrInvalidInput)
	}

	w := &Watcher{
		root:     abs,
		ingest:   ingest,
		idFor:    idFor,
		supports: func(string) bool { return true },
		settle:   DefaultSettle,
		onResult: func(Result) {},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Root returns the absolute watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Scan ingests every supported file already under root.
// Per-file failures are reported through the result callback and joined.
func (w *Watcher) Scan(ctx context.Context) error {
	var errs []error
	err := w.walkPapers(w.root, func(path string) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if res := w.apply(ctx, Change{Type: ChangeCreated, Path: path}); res.Err != nil {
			errs = append(errs, res.Err)
		}
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// walkPapers calls fn for every supported, non-hidden file under dir.
func (w *Watcher) walkPapers(dir string, fn func(path string) error) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != w.root && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !w.supports(path) {
			return nil
		}
		return fn(path)
	})
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}
	logger.Info("Watching %s", w.root)

	pending := map[string]pendingChange{}
	tick := time.NewTicker(w.settle / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) && !isHiddenPath(w.relative(ev.Name)) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(fw, ev.Name); err != nil {
						logger.Warn("watch %s: %v", ev.Name, err)
					}
					// Files moved or copied in with the directory produce no
					// events of their own.
					if err := w.queueTree(ev.Name, pending); err != nil {
						logger.Warn("scan %s: %v", ev.Name, err)
					}
					continue
				}
			}
			change := w.handleFsEvent(ev)
			if change == nil {
				continue
			}
			pending[change.Path] = pendingChange{change: mergeChange(pending[change.Path].change, *change), at: time.Now()}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)

		case now := <-tick.C:
			for path, p := range pending {
				if now.Sub(p.at) < w.settle {
					continue
				}
				delete(pending, path)
				w.apply(ctx, p.change)
			}
		}
	}
}

// queueTree marks every paper under dir as created.
func (w *Watcher) queueTree(dir string, pending map[string]pendingChange) error {
	at := time.Now()
	return w.walkPapers(dir, func(path string) error {
		change := Change{Type: ChangeCreated, Path: path}
		pending[path] = pendingChange{change: mergeChange(pending[path].change, change), at: at}
		return nil
	})
}

// handleFsEvent converts an fsnotify event into a Change, or nil when the
// event should be ignored.
func (w *Watcher) handleFsEvent(ev fsnotify.Event) *Change {
	if isHiddenPath(w.relative(ev.Name)) || !w.supports(ev.Name) {
		return nil
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return &Change{Type: ChangeDeleted, Path: ev.Name}
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil || info.IsDir() {
			return nil
		}
		t := ChangeUpdated
		if ev.Has(fsnotify.Create) {
			t = ChangeCreated
		}
		return &Change{Type: t, Path: ev.Name}
	default:
		return nil
	}
}

// mergeChange keeps "created" for a file written repeatedly after creation.
func mergeChange(prev, next Change) Change {
	if prev.Type == ChangeCreated && next.Type == ChangeUpdated {
		return prev
	}
	return next
}

func (w *Watcher) apply(ctx context.Context, change Change) Result {
	res := Result{Change: change}
	switch change.Type {
	case ChangeDeleted:
		err := w.ingest.Remove(ctx, w.idFor(change.Path))
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			res.Err = err
		}
	default:
		res.Status, res.Err = w.ingest.IngestFile(ctx, change.Path)
	}

	if res.Err != nil {
		logger.Warn("%s %s: %v", change.Type, change.Path, res.Err)
	} else {
		logger.Debug("%s %s", change.Type, change.Path)
	}
	w.onResult(res)
	return res
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) relative(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return rel
}

// isHiddenPath reports whether any element of path is hidden.
func isHiddenPath(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if isHidden(part) {
			return true
		}
	}
	return false
}

// isHidden reports whether a single path element is hidden.
// "." and ".." are not.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
