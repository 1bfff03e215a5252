package assetindex

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/jingkaihe/unityscope/pkg/logger"
)

const defaultDebounce = 300 * time.Millisecond

// Watcher keeps an Index current while files under root change. Every
// rebuild produces a new immutable Index; readers holding an older one are
// unaffected.
type Watcher struct {
	root      string
	cfg       ScanConfig
	debounce  time.Duration
	onRebuild func(*Index, error)

	current atomic.Pointer[Index]
	fsw     *fsnotify.Watcher
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the watcher waits for changes to settle before rebuilding.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithRebuildHook registers fn to be called after every rebuild attempt.
// On failure idx is the index still being served.
func WithRebuildHook(fn func(idx *Index, err error)) WatcherOption {
	return func(w *Watcher) {
		w.onRebuild = fn
	}
}

// NewWatcher builds the initial index and subscribes to every directory under root.
func NewWatcher(ctx context.Context, root string, cfg ScanConfig, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		root:     root,
		cfg:      cfg,
		debounce: defaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}

	idx, err := Build(ctx, root, cfg)
	if idx == nil {
		return nil, err
	}
	if err != nil {
		logger.G(ctx).WithError(err).Warn("initial scan skipped sidecars")
	}
	w.current.Store(idx)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}
	w.fsw = fsw

	if err := w.addTree(ctx, root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Current returns the most recently built index.
func (w *Watcher) Current() *Index {
	return w.current.Load()
}

// Run processes filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ctx = logger.WithComponent(ctx, "watcher")
	log := logger.G(ctx).WithField("root", w.root)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(ctx, event.Name); err != nil {
						log.WithError(err).Warn("failed to watch new directory")
					}
				}
			}
			log.WithField("file", event.Name).WithField("operation", event.Op.String()).Debug("change detected")

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			w.rebuild(ctx)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Error("error watching files")
		case <-ctx.Done():
			return nil
		}
	}
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) rebuild(ctx context.Context) {
	idx, err := Build(ctx, w.root, w.cfg)
	switch {
	case idx == nil:
		logger.G(ctx).WithError(err).Warn("rebuild failed, keeping previous index")
	case err != nil:
		w.current.Store(idx)
		logger.G(ctx).WithError(err).Warn("rebuilt index with skipped sidecars")
	default:
		w.current.Store(idx)
	}
	if w.onRebuild != nil {
		w.onRebuild(w.Current(), err)
	}
}

func (w *Watcher) addTree(ctx context.Context, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		logger.G(ctx).WithField("directory", path).Debug("adding directory to watcher")
		return errors.Wrapf(w.fsw.Add(path), "failed to watch %s", path)
	})
}
