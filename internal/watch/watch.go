// Package watch reports changes to documentation files under a project
// root, batching bursts of filesystem events.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/valter-silva-au/lmay/pkg/models"
)

// DefaultDebounce is how long the watcher waits for more changes before
// reporting a batch.
const DefaultDebounce = 500 * time.Millisecond

// Op is the kind of change made to a document.
type Op string

const (
	OpCreate Op = "create"
	OpModify Op = "modify"
	OpDelete Op = "delete"
)

// Change is one changed document, relative to the project root.
type Change struct {
	Path string
	Op   Op
}

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	// Skip excludes entries by root-relative slash path; nil watches
	// everything.
	Skip func(rel string, isDir bool) bool
}

// Watcher watches a project tree for document changes.
type Watcher struct {
	root   string
	opts   Options
	fsw    *fsnotify.Watcher
	logger zerolog.Logger

	mu      sync.Mutex
	pending map[string]fsnotify.Op
}

// New creates a Watcher with watches on every directory under root.
func New(root string, opts Options, logger zerolog.Logger) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &Watcher{
		root:    abs,
		opts:    opts,
		fsw:     fsw,
		logger:  logger.With().Str("component", "watch").Logger(),
		pending: make(map[string]fsnotify.Op),
	}
	if err := w.addRecursive(abs); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) rel(p string) string {
	rel, err := filepath.Rel(w.root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) skipped(p string, isDir bool) bool {
	return w.opts.Skip != nil && w.opts.Skip(w.rel(p), isDir)
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && w.skipped(p, true) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			w.logger.Warn().Err(err).Str("path", p).Msg("failed to watch directory")
			return nil
		}
		w.logger.Debug().Str("path", w.rel(p)).Msg("watching directory")
		return nil
	})
}

// Run delivers batches of document changes to fn until ctx is done. fn runs
// on the watcher goroutine, so changes arriving meanwhile are batched for
// the next call.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context, []Change)) error {
	defer func() { _ = w.fsw.Close() }()

	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.handle(event) {
				timer.Reset(w.opts.Debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("watcher error")

		case <-timer.C:
			if batch := w.flush(); len(batch) > 0 {
				fn(ctx, batch)
			}
		}
	}
}

// handle records a relevant event and reports whether it was recorded.
func (w *Watcher) handle(event fsnotify.Event) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.skipped(event.Name, true) {
				if err := w.addRecursive(event.Name); err != nil {
					w.logger.Warn().Err(err).Str("path", event.Name).Msg("failed to watch new directory")
				}
			}
			return false
		}
	}
	if !strings.EqualFold(filepath.Ext(event.Name), models.DocumentExtension) {
		return false
	}
	if w.skipped(event.Name, false) {
		return false
	}

	w.mu.Lock()
	w.pending[event.Name] |= event.Op
	w.mu.Unlock()

	w.logger.Debug().Str("path", w.rel(event.Name)).Str("op", event.Op.String()).Msg("document change detected")
	return true
}

// flush returns the pending changes sorted by path and clears them.
func (w *Watcher) flush() []Change {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.mu.Unlock()

	batch := make([]Change, 0, len(pending))
	for p, op := range pending {
		c := Change{Path: w.rel(p)}
		_, statErr := os.Stat(p)
		switch {
		case statErr != nil:
			c.Op = OpDelete
		case op.Has(fsnotify.Create):
			c.Op = OpCreate
		default:
			c.Op = OpModify
		}
		batch = append(batch, c)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	return batch
}
