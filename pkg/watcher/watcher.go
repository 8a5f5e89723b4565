// Package watcher keeps a directory of translated SQL in step with a
// directory of legacy SQL files.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ha1tch/jetlite/pkg/annotations"
	"github.com/ha1tch/jetlite/pkg/command"
	"github.com/ha1tch/jetlite/pkg/errors"
	"github.com/ha1tch/jetlite/pkg/interceptor"
	"github.com/ha1tch/jetlite/pkg/log"
)

// Event names passed to the OnTranslate callback.
const (
	EventCreated  = "created"
	EventModified = "modified"
	EventRemoved  = "removed"
)

// Watcher monitors a source directory for *.sql changes and writes each
// file's translation to the same relative path under the output directory.
type Watcher struct {
	mu sync.RWMutex

	// Configuration
	root        string
	outDir      string
	interceptor *interceptor.Interceptor
	db          command.Database
	logger      *log.Logger

	fsWatcher *fsnotify.Watcher

	// State
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// source hash per file, to skip rewrites when nothing changed
	hashes map[string]string

	// Debouncing: collect events and process in batches
	debounceDelay time.Duration
	pendingEvents map[string]fsnotify.Op
	eventTimer    *time.Timer

	// Callbacks
	onTranslate func(src, dst, event string)
	onError     func(err error)
}

// Option configures the watcher.
type Option func(*Watcher)

// WithDebounceDelay sets the debounce delay for batching file events.
// Default is 100ms.
func WithDebounceDelay(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounceDelay = d
	}
}

// WithDatabase sets the database used for DROP COLUMN schema lookups.
// Without one, those statements translate to a no-op.
func WithDatabase(db command.Database) Option {
	return func(w *Watcher) {
		w.db = db
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// WithOnTranslate sets a callback run after a file is translated or its
// output removed.
func WithOnTranslate(fn func(src, dst, event string)) Option {
	return func(w *Watcher) {
		w.onTranslate = fn
	}
}

// WithOnError sets a callback for error events.
func WithOnError(fn func(err error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// New creates a watcher translating files under root into outDir.
func New(root, outDir string, i *interceptor.Interceptor, opts ...Option) (*Watcher, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeWatchSetup, "invalid watch directory").Err()
	}
	outDir, err = filepath.Abs(outDir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeWatchSetup, "invalid output directory").Err()
	}
	if root == outDir {
		return nil, errors.New(errors.ErrCodeWatchSetup, "output directory must differ from watch directory").
			WithField("dir", root).Err()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeWatchSetup, "failed to create file watcher").Err()
	}

	w := &Watcher{
		root:          root,
		outDir:        outDir,
		interceptor:   i,
		fsWatcher:     fsw,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
		hashes:        make(map[string]string),
		debounceDelay: 100 * time.Millisecond,
		pendingEvents: make(map[string]fsnotify.Op),
	}

	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = log.Discard()
	}
	if w.interceptor == nil {
		w.interceptor = interceptor.New(interceptor.WithLogger(w.logger))
	}

	return w, nil
}

// Start translates every existing file, then begins watching for changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addWatchesRecursive(w.root); err != nil {
		return errors.Wrap(err, errors.ErrCodeWatchSetup, "failed to watch directory").
			WithField("dir", w.root).Err()
	}

	if err := w.TranslateAll(context.Background()); err != nil {
		w.logger.Watch().Warn("initial translation incomplete", "error", err.Error())
	}

	w.logger.Watch().Info("watcher started",
		"dir", w.root,
		"out_dir", w.outDir,
	)

	go w.processEvents()

	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.logger.Watch().Info("watcher stopped")

	return w.fsWatcher.Close()
}

// IsRunning returns whether the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// TranslateAll translates every *.sql file under the watch directory and
// returns the first error met. Remaining files are still processed.
func (w *Watcher) TranslateAll(ctx context.Context) error {
	var first error
	err := filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if w.skipDir(path, info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isSQL(path) {
			return nil
		}
		if _, err := w.TranslateFile(ctx, path); err != nil && first == nil {
			first = err
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeWatchRead, "failed to walk directory").
			WithField("dir", w.root).Err()
	}
	return first
}

// TranslateFile translates one source file and writes the result, returning
// the output path.
func (w *Watcher) TranslateFile(ctx context.Context, path string) (string, error) {
	dst, err := w.outputPath(path)
	if err != nil {
		return "", err
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeWatchRead, "failed to read source").
			WithField("path", path).Err()
	}

	set, text := annotations.Parse(string(src))
	if unknown := set.Unknown(); len(unknown) > 0 {
		w.logger.Watch().Warn("unknown directives ignored", "path", path, "keys", strings.Join(unknown, ","))
	}
	text = strings.TrimSpace(text)

	if !set.GetBool(annotations.KeySkip) {
		params, err := set.Params()
		if err != nil {
			return "", err
		}
		cmd, err := w.interceptor.Translate(ctx, w.db, text, params...)
		if err != nil {
			return "", err
		}
		text = cmd.Text
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeWatchWrite, "failed to create output directory").
			WithField("path", dst).Err()
	}
	if err := os.WriteFile(dst, []byte(text+"\n"), 0644); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeWatchWrite, "failed to write translation").
			WithField("path", dst).Err()
	}

	w.mu.Lock()
	w.hashes[path] = hash(src)
	w.mu.Unlock()

	return dst, nil
}

// addWatchesRecursive adds watches for a directory and all subdirectories.
func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() {
			return nil
		}

		if w.skipDir(path, info.Name()) {
			return filepath.SkipDir
		}

		if err := w.fsWatcher.Add(path); err != nil {
			w.logger.Watch().Warn("failed to watch directory",
				"path", path,
				"error", err.Error(),
			)
			// Continue watching other directories
			return nil
		}

		w.logger.Watch().Debug("watching directory", "path", path)

		return nil
	})
}

// skipDir reports whether a directory is hidden or is the output tree.
func (w *Watcher) skipDir(path, name string) bool {
	if path == w.root {
		return false
	}
	return strings.HasPrefix(name, ".") || path == w.outDir
}

// processEvents handles fsnotify events.
func (w *Watcher) processEvents() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			w.mu.Lock()
			if w.eventTimer != nil {
				w.eventTimer.Stop()
			}
			w.mu.Unlock()
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.fail(errors.Wrap(err, errors.ErrCodeWatchSetup, "watcher error").Err())
		}
	}
}

// handleEvent processes a single fsnotify event with debouncing.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.inOutput(event.Name) {
		return
	}

	if !isSQL(event.Name) {
		// New directories need their own watch
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := w.addWatchesRecursive(event.Name); err == nil {
					w.logger.Watch().Debug("added watch for new directory", "path", event.Name)
				}
			}
		}
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// Last operation wins for the same file
	w.pendingEvents[event.Name] = event.Op

	if w.eventTimer != nil {
		w.eventTimer.Stop()
	}
	w.eventTimer = time.AfterFunc(w.debounceDelay, w.processPendingEvents)
}

// processPendingEvents processes all accumulated events.
func (w *Watcher) processPendingEvents() {
	w.mu.Lock()
	events := w.pendingEvents
	w.pendingEvents = make(map[string]fsnotify.Op)
	w.mu.Unlock()

	for path, op := range events {
		w.processFileEvent(path, op)
	}
}

func (w *Watcher) processFileEvent(path string, op fsnotify.Op) {
	// An editor may replace a file by rename; trust the disk over the op.
	if _, err := os.Stat(path); err != nil {
		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
			w.handleFileRemoved(path)
		}
		return
	}

	if op.Has(fsnotify.Create) || op.Has(fsnotify.Write) || op.Has(fsnotify.Rename) {
		w.handleFileChanged(path)
	}
}

func (w *Watcher) handleFileChanged(path string) {
	src, err := os.ReadFile(path)
	if err != nil {
		w.fail(errors.Wrap(err, errors.ErrCodeWatchRead, "failed to read source").
			WithField("path", path).Err())
		return
	}

	w.mu.RLock()
	previous, known := w.hashes[path]
	w.mu.RUnlock()

	if known && previous == hash(src) {
		w.logger.Watch().Debug("source unchanged, skipping", "path", path)
		return
	}

	dst, err := w.TranslateFile(context.Background(), path)
	if err != nil {
		w.fail(err)
		return
	}

	event := EventCreated
	if known {
		event = EventModified
	}

	w.logger.Watch().Info("file translated",
		"path", path,
		"output", dst,
		"event", event,
	)

	if w.onTranslate != nil {
		w.onTranslate(path, dst, event)
	}
}

func (w *Watcher) handleFileRemoved(path string) {
	w.mu.Lock()
	delete(w.hashes, path)
	w.mu.Unlock()

	dst, err := w.outputPath(path)
	if err != nil {
		w.fail(err)
		return
	}

	if err := os.Remove(dst); err != nil {
		if os.IsNotExist(err) {
			return
		}
		w.fail(errors.Wrap(err, errors.ErrCodeWatchWrite, "failed to remove translation").
			WithField("path", dst).Err())
		return
	}

	w.logger.Watch().Info("translation removed", "path", path, "output", dst)

	if w.onTranslate != nil {
		w.onTranslate(path, dst, EventRemoved)
	}
}

func (w *Watcher) fail(err error) {
	w.logger.Watch().Error("watch failed", err)
	if w.onError != nil {
		w.onError(err)
	}
}

func (w *Watcher) outputPath(path string) (string, error) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", errors.New(errors.ErrCodeWatchRead, "file is outside the watch directory").
			WithField("path", path).Err()
	}
	return filepath.Join(w.outDir, rel), nil
}

func (w *Watcher) inOutput(path string) bool {
	rel, err := filepath.Rel(w.outDir, path)
	return err == nil && !strings.HasPrefix(rel, "..")
}

func isSQL(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".sql")
}

func hash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
