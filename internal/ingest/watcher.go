package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots       []string // directories to watch (recursive)
	AllowedExts map[string]struct{}
	InitialScan bool          // if true, walk roots and emit existing files
	Debounce    time.Duration // coalesce rapid update/rename bursts
	Logger      *slog.Logger
}

// StartWatcher emits paths of created or modified files under cfg.Roots.
// Both channels close when ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("watcher start failed: no roots provided")
		return nil, nil, errors.New("no roots provided")
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = DefaultExts()
	}
	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	var initial []string
	addDir := func(root string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if path != root && IsHidden(path) {
					return filepath.SkipDir
				}
				return w.Add(path)
			}
			if cfg.InitialScan && !IsHidden(path) && allowed(path, cfg.AllowedExts) {
				initial = append(initial, path)
			}
			return nil
		})
	}
	for _, r := range cfg.Roots {
		if err := addDir(r); err != nil {
			logger.Error("failed to add root directory", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("failed to close watcher", "error", err)
			}
		}()

		emit := func(p string) bool {
			select {
			case evCh <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range initial {
			if !emit(p) {
				return
			}
		}

		pending := map[string]struct{}{}
		var fire <-chan time.Time
		var timer *time.Timer
		flush := func() bool {
			for p := range pending {
				delete(pending, p)
				if !emit(p) {
					return false
				}
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-fire:
				fire = nil
				if !flush() {
					return
				}
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Create) {
					tryAddDir(w, e.Name, logger)
				}
				if IsHidden(e.Name) || !allowed(e.Name, cfg.AllowedExts) {
					continue
				}
				if !e.Has(fsnotify.Create) && !e.Has(fsnotify.Write) && !e.Has(fsnotify.Rename) {
					continue
				}
				pending[e.Name] = struct{}{}
				if cfg.Debounce <= 0 {
					if !flush() {
						return
					}
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(cfg.Debounce)
				fire = timer.C
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// tryAddDir watches newly created directories; files are ignored.
func tryAddDir(w *fsnotify.Watcher, path string, logger *slog.Logger) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || IsHidden(path) {
		return
	}
	if err := w.Add(path); err != nil {
		logger.Warn("failed to add new directory to watcher", "path", path, "error", err)
	}
}

// Watch feeds watcher events into the ingestor until ctx is done. A file
// renamed away before it is read is logged and skipped.
func (i *FSIngestor) Watch(ctx context.Context, cfg WatchConfig) error {
	if cfg.Logger == nil {
		cfg.Logger = i.logger
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = i.allowedExts
	}
	events, errs, err := StartWatcher(ctx, cfg)
	if err != nil {
		return err
	}
	i.logger.Info("ingest.watch.started", "roots", cfg.Roots, "initial_scan", cfg.InitialScan)
	for {
		select {
		case p, ok := <-events:
			if !ok {
				return ctx.Err()
			}
			if _, err := i.IngestPath(ctx, p); err != nil {
				i.logger.Warn("ingest.file.failed", "path", p, "error", err)
			}
		case err, ok := <-errs:
			if ok {
				i.logger.Warn("ingest.watch.error", "error", err)
			} else {
				errs = nil
			}
		}
	}
}
