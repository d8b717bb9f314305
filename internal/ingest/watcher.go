package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Root        string
	InitialScan bool          // if true, emit case directories already present
	Debounce    time.Duration // coalesce bursts while a case directory is being written
}

// StartWatcher emits case directories under cfg.Root once their form file appears.
// Both channels close when ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if cfg.Root == "" {
		return nil, nil, errors.New("no root provided")
	}
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	if err := w.Add(cfg.Root); err != nil {
		_ = w.Close()
		return nil, nil, err
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	entries, err := os.ReadDir(cfg.Root)
	if err != nil {
		_ = w.Close()
		return nil, nil, err
	}
	var initial []string
	for _, e := range entries {
		if !e.IsDir() || IsHidden(e.Name()) {
			continue
		}
		dir := filepath.Join(cfg.Root, e.Name())
		if err := w.Add(dir); err != nil {
			logger.Warn("ingest.watch.add_failed", "path", dir, "error", err)
		}
		if cfg.InitialScan && hasForm(dir) {
			initial = append(initial, dir)
		}
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() { _ = w.Close() }()

		var timer *time.Timer
		pending := map[string]struct{}{}
		for _, d := range initial {
			pending[d] = struct{}{}
		}
		fire := make(chan struct{}, 1)

		flush := func() {
			for p := range pending {
				select {
				case evCh <- p:
				case <-ctx.Done():
					return
				}
				delete(pending, p)
			}
		}

		flush()
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case <-fire:
				flush()
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op&fsnotify.Create != 0 && filepath.Dir(e.Name) == filepath.Clean(cfg.Root) {
					if info, err := os.Stat(e.Name); err == nil && info.IsDir() && !IsHidden(e.Name) {
						if err := w.Add(e.Name); err != nil {
							logger.Warn("ingest.watch.add_failed", "path", e.Name, "error", err)
						}
					}
				}
				dir := filepath.Dir(e.Name)
				if filepath.Clean(dir) == filepath.Clean(cfg.Root) || !hasForm(dir) {
					continue
				}
				if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				pending[dir] = struct{}{}
				if cfg.Debounce <= 0 {
					flush()
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(cfg.Debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("ingest.watch.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

func hasForm(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, FormFile))
	return err == nil
}
