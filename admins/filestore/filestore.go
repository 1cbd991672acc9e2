package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ggoodman/webadmin-go/identity"
)

// DefaultFileName is the conventional name of the admin list file.
const DefaultFileName = "serverAdmins.json"

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to discard.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithDebounce sets how long Watch waits for a burst of file events to
// settle before reloading. Defaults to 100ms.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) { s.debounce = d }
}

// Store is an admins.Backend persisting the set as a JSON array of
// identity strings in a single file.
type Store struct {
	path     string
	log      *slog.Logger
	debounce time.Duration
}

// New returns a Store persisting to path.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:     filepath.Clean(path),
		log:      slog.New(slog.DiscardHandler),
		debounce: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the file the store reads and writes.
func (s *Store) Path() string { return s.path }

// ReadAll decodes the admin list. A missing or malformed file is an error.
func (s *Store) ReadAll(ctx context.Context) ([]identity.Identity, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read admin list: %w", err)
	}
	var ids []identity.Identity
	if err := json.Unmarshal(b, &ids); err != nil {
		return nil, fmt.Errorf("decode admin list %s: %w", s.path, err)
	}
	return ids, nil
}

// WriteAll atomically replaces the file: the list is written to a
// temporary file in the same directory which is then renamed over the
// target, so readers never observe a partial list.
func (s *Store) WriteAll(ctx context.Context, ids []identity.Identity) error {
	sorted := slices.Clone(ids)
	if sorted == nil {
		sorted = []identity.Identity{}
	}
	slices.Sort(sorted)
	b, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return fmt.Errorf("encode admin list: %w", err)
	}
	b = append(b, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create admin list dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp admin list: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp admin list: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp admin list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp admin list: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp admin list: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace admin list: %w", err)
	}
	return nil
}

// Watch observes the admin list file and calls reload after it is
// created, written, replaced or removed by anyone, this process included.
// It blocks until ctx is done or the watcher fails.
func (s *Store) Watch(ctx context.Context, reload func(ctx context.Context)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() {
		_ = w.Close()
	}()

	// Watch the directory: atomic replacement swaps the inode, which would
	// orphan a watch on the file itself.
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("fsnotify add %s: %w", dir, err)
	}
	s.log.InfoContext(ctx, "admins.watch.start", slog.String("path", s.path))

	timer := time.NewTimer(s.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			timer.Reset(s.debounce)
		case <-timer.C:
			s.log.InfoContext(ctx, "admins.watch.reload", slog.String("path", s.path))
			reload(ctx)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.WarnContext(ctx, "admins.watch.err", slog.String("err", err.Error()))
		}
	}
}
