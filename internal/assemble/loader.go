package assemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
)

var ErrTemplateNotFound = errors.New("template not found")

// TemplateLoader returns the DOCX template for a document kind, preferring an
// action-specific variant when one exists.
type TemplateLoader interface {
	Load(ctx context.Context, kind constants.DocumentKind, action constants.ActionType) ([]byte, error)
}

// templateNames lists lookup candidates in priority order.
func templateNames(kind constants.DocumentKind, action constants.ActionType) []string {
	names := make([]string, 0, 2)
	if action != "" {
		names = append(names, fmt.Sprintf("%s_%s.docx", kind, action))
	}
	return append(names, string(kind)+".docx")
}

// FSLoader reads templates from a directory and caches them until the file changes.
type FSLoader struct {
	dir     string
	logger  *slog.Logger
	mu      sync.RWMutex
	cache   map[string][]byte
	watcher *fsnotify.Watcher
}

// NewFSLoader watches dir for changes when watch is true; call Close to stop.
func NewFSLoader(dir string, watch bool, logger *slog.Logger) (*FSLoader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("templates dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("templates dir %s is not a directory", dir)
	}

	l := &FSLoader{dir: dir, logger: logger, cache: make(map[string][]byte)}
	if !watch {
		return l, nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create template watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	l.watcher = w
	go l.watch()
	return l, nil
}

func (l *FSLoader) watch() {
	for {
		select {
		case e, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(e.Name)
			l.mu.Lock()
			_, cached := l.cache[name]
			delete(l.cache, name)
			l.mu.Unlock()
			if cached {
				l.logger.Info("templates.evicted", "name", name, "op", e.Op.String())
			}
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Warn("templates.watch.error", "error", err)
		}
	}
}

func (l *FSLoader) Load(ctx context.Context, kind constants.DocumentKind, action constants.ActionType) ([]byte, error) {
	for _, name := range templateNames(kind, action) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		l.mu.RLock()
		b, ok := l.cache[name]
		l.mu.RUnlock()
		if ok {
			return b, nil
		}

		b, err := os.ReadFile(filepath.Join(l.dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", name, err)
		}
		l.mu.Lock()
		l.cache[name] = b
		l.mu.Unlock()
		l.logger.Debug("templates.loaded", "name", name, "bytes", len(b))
		return b, nil
	}
	return nil, common.NewAppError("TEMPLATE_NOT_FOUND", string(kind), ErrTemplateNotFound)
}

func (l *FSLoader) Close() error {
	if l.watcher == nil {
		return nil
	}
	return l.watcher.Close()
}

// Downloader is the slice of the blob store BlobLoader needs.
type Downloader interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// BlobLoader reads templates from object storage under a key prefix. It does not cache.
type BlobLoader struct {
	store  Downloader
	prefix string
}

func NewBlobLoader(store Downloader, prefix string) *BlobLoader {
	return &BlobLoader{store: store, prefix: prefix}
}

func (l *BlobLoader) Load(ctx context.Context, kind constants.DocumentKind, action constants.ActionType) ([]byte, error) {
	for _, name := range templateNames(kind, action) {
		key := path.Join(l.prefix, name)
		b, err := l.store.Download(ctx, key)
		if errors.Is(err, common.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("download template %s: %w", key, err)
		}
		return b, nil
	}
	return nil, common.NewAppError("TEMPLATE_NOT_FOUND", string(kind), ErrTemplateNotFound)
}

// BuiltinLoader serves the templates compiled into the binary.
type BuiltinLoader struct{}

func (BuiltinLoader) Load(_ context.Context, kind constants.DocumentKind, _ constants.ActionType) ([]byte, error) {
	return DefaultTemplate(kind)
}

// Chain tries each loader in order, moving on only when a template is missing.
type Chain []TemplateLoader

func (c Chain) Load(ctx context.Context, kind constants.DocumentKind, action constants.ActionType) ([]byte, error) {
	err := error(common.NewAppError("TEMPLATE_NOT_FOUND", string(kind), ErrTemplateNotFound))
	for _, l := range c {
		var b []byte
		b, err = l.Load(ctx, kind, action)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, ErrTemplateNotFound) {
			return nil, err
		}
	}
	return nil, err
}
