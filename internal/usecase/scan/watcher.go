package scan

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"veriscan/internal/bootstrap/logging"
	"veriscan/internal/errs"
)

// Image extensions accepted by the directory watcher (lowercase, no dot).
var defaultImageExts = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

type WatchConfig struct {
	Root        string
	AllowedExts map[string]struct{}
	InitialScan bool          // walk the root and emit existing files first
	Debounce    time.Duration // coalesce rapid create/write bursts, default 500ms
}

// StartWatcher emits paths of image files appearing under the root,
// recursively. Newly created directories are picked up; events for one path
// are debounced so half-written files settle before they are emitted.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, nil, errors.New("watch root is required")
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = defaultImageExts
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}

	pathCh := make(chan string, 256)
	errCh := make(chan error, 1)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, errs.Wrap(err, "create fsnotify watcher")
	}

	walkErr := filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		if cfg.InitialScan && extAllowed(path, cfg.AllowedExts) {
			select {
			case pathCh <- path:
			default:
			}
		}
		return nil
	})
	if walkErr != nil {
		_ = watcher.Close()
		return nil, nil, errs.Wrapf(walkErr, "walk watch root %q", cfg.Root)
	}

	go func() {
		defer close(pathCh)
		defer close(errCh)
		defer func() { _ = watcher.Close() }()

		var timer *time.Timer
		var timerCh <-chan time.Time
		pending := map[string]struct{}{}

		flush := func() {
			for path := range pending {
				select {
				case pathCh <- path:
				default:
				}
				delete(pending, path)
			}
			timerCh = nil
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op.Has(fsnotify.Create) {
					// A created directory starts being watched too.
					if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
						if err := watcher.Add(event.Name); err == nil {
							logging.Debug(ctx, "watching new directory", slog.String("path", event.Name))
						}
						continue
					}
				}
				if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
					continue
				}
				if !extAllowed(event.Name, cfg.AllowedExts) {
					continue
				}

				pending[event.Name] = struct{}{}
				if timer == nil {
					timer = time.NewTimer(cfg.Debounce)
				} else {
					timer.Reset(cfg.Debounce)
				}
				timerCh = timer.C
			case <-timerCh:
				flush()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return pathCh, errCh, nil
}

func extAllowed(path string, allowed map[string]struct{}) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	_, ok := allowed[ext]
	return ok
}
