package kv

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aretw0/lifecycle"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

const fileExt = ".json"

// deletedMark records a delete issued by this process.
var deletedMark [32]byte

// FileStore persists each key as its own file under a directory. Writes
// are atomic (temp file + rename).
type FileStore struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	written map[string][32]byte // last content this process wrote, per key
}

// NewFileStore opens (and creates) a FileStore rooted at dir.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("kv directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create kv directory: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FileStore{
		dir:     dir,
		logger:  logger,
		written: make(map[string][32]byte),
	}, nil
}

// Dir returns the directory backing the store.
func (f *FileStore) Dir() string {
	return f.dir
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, key+fileExt)
}

func (f *FileStore) Get(key string) (string, bool, error) {
	if !ValidKey(key) {
		return "", false, ErrInvalidKey
	}
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return string(data), true, nil
}

func (f *FileStore) Set(key, value string) error {
	if !ValidKey(key) {
		return ErrInvalidKey
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := WriteFile(f.path(key), []byte(value), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	f.written[key] = sha256.Sum256([]byte(value))
	return nil
}

func (f *FileStore) Delete(key string) error {
	if !ValidKey(key) {
		return ErrInvalidKey
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written[key] = deletedMark
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Watch reports changes to keys matching pattern (doublestar syntax, e.g.
// "notes" or "*") made by other processes. Writes made through this
// FileStore are not reported. The channel closes when ctx is done.
func (f *FileStore) Watch(ctx context.Context, pattern string) (<-chan Change, error) {
	if pattern == "" {
		pattern = "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid watch pattern %q", pattern)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(f.dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", f.dir, err)
	}

	out := make(chan Change, 16)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(out)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				change, ok := f.classify(event, pattern)
				if !ok {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return nil
				}
			case wErr, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				f.logger.Error("kv watcher error", "dir", f.dir, "error", wErr)
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		f.logger.Error("kv watcher stopped", "dir", f.dir, "error", err)
	}))
	return out, nil
}

// classify maps a filesystem event onto a key change, dropping temp files,
// foreign files and echoes of our own writes.
func (f *FileStore) classify(event fsnotify.Event, pattern string) (Change, bool) {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, TempFilePrefix) || !strings.HasSuffix(base, fileExt) {
		return Change{}, false
	}
	key := strings.TrimSuffix(base, fileExt)
	if !ValidKey(key) {
		return Change{}, false
	}
	if ok, _ := doublestar.Match(pattern, key); !ok {
		return Change{}, false
	}

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		if _, err := os.Stat(event.Name); err == nil {
			return Change{}, false
		}
		f.mu.Lock()
		last, seen := f.written[key]
		if seen && last == deletedMark {
			delete(f.written, key)
		}
		f.mu.Unlock()
		if seen && last == deletedMark {
			return Change{}, false
		}
		return Change{Key: key, Op: OpDelete}, true
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		data, err := os.ReadFile(event.Name)
		if err != nil {
			return Change{}, false
		}
		sum := sha256.Sum256(data)
		f.mu.Lock()
		last, seen := f.written[key]
		f.mu.Unlock()
		if seen && last == sum {
			return Change{}, false
		}
		return Change{Key: key, Op: OpSet}, true
	}
	return Change{}, false
}
