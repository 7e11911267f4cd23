package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"hera-erp/configrules/pkg/config"
	"hera-erp/configrules/pkg/rules"
)

// StoreNameFile labels the file store in logs and metrics.
const StoreNameFile = "file"

// FileStore serves rules read from YAML or JSON files. The path may name a
// single file or a directory; directories are read recursively.
//
// Reload builds a new index and swaps it in atomically. When a reload fails
// the previous rules stay in place.
type FileStore struct {
	config   config.FileStoreConfig
	logger   *slog.Logger
	recorder Recorder

	current  atomic.Pointer[snapshot]
	reloadMu sync.Mutex
	loadedAt atomic.Pointer[time.Time]
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithFileRecorder sets the sink for reload measurements.
func WithFileRecorder(r Recorder) FileOption {
	return func(s *FileStore) {
		s.recorder = orNop(r)
	}
}

// NewFileStore creates a file store and performs the initial load.
func NewFileStore(cfg *config.FileStoreConfig, logger *slog.Logger, opts ...FileOption) (*FileStore, error) {
	if cfg == nil || strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("file store path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &FileStore{
		config:   *cfg,
		logger:   logger.With("component", "store.file"),
		recorder: nopRecorder{},
	}
	if s.config.Debounce <= 0 {
		s.config.Debounce = config.DefaultFileDebounce
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the rule files. Unreadable files and invalid documents
// inside a directory are skipped with a warning; a single rule file that
// cannot be read fails the reload.
func (s *FileStore) Reload() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	docs, fileErrs, err := ReadRulePath(s.config.Path)
	if err != nil {
		s.recorder.RecordReload(StoreNameFile, err)
		return err
	}
	for _, fileErr := range fileErrs {
		s.logger.Warn("skipping rule file", "error", fileErr)
	}

	list := make([]rules.ConfigurationRule, 0, len(docs))
	malformed := 0
	for _, sd := range docs {
		if problems := rules.ValidateDocument(sd.Document); len(problems) > 0 {
			s.logger.Warn("skipping invalid rule",
				"error", &RuleError{Source: sd.Source, RuleID: sd.Document.ID, Problems: problems},
			)
			continue
		}
		rule := rules.FromDocument(sd.Document)
		if rule.Malformed() {
			malformed++
			s.logger.Debug("rule has malformed conditions",
				"rule_id", rule.ID,
				"source", sd.Source,
				"error", rule.ConditionErr,
			)
		}
		list = append(list, rule)
	}

	snap := newSnapshot(list)
	s.current.Store(snap)
	now := time.Now()
	s.loadedAt.Store(&now)

	s.recorder.RecordReload(StoreNameFile, nil)
	s.recorder.UpdateRulesLoaded(StoreNameFile, snap.total)
	s.logger.Info("rules loaded",
		"path", s.config.Path,
		"rule_count", len(list),
		"active_count", snap.total,
		"malformed_count", malformed,
		"skipped_files", len(fileErrs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// FetchActiveRules returns the active rules for one tenant and key.
func (s *FileStore) FetchActiveRules(ctx context.Context, tenantID, configKey string) ([]rules.ConfigurationRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.current.Load().fetch(tenantID, configKey), nil
}

// ListActiveRules returns every active rule of a tenant.
func (s *FileStore) ListActiveRules(ctx context.Context, tenantID string) ([]rules.ConfigurationRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.current.Load().list(tenantID), nil
}

// Tenants returns the tenants that have at least one active rule.
func (s *FileStore) Tenants() []string {
	return s.current.Load().tenants()
}

// LoadedAt returns when the current rules were loaded.
func (s *FileStore) LoadedAt() time.Time {
	if t := s.loadedAt.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// Ping reports whether the rule path is still readable.
func (s *FileStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(s.config.Path); err != nil {
		return fmt.Errorf("rule path unavailable: %w", err)
	}
	return nil
}

// Watch reloads the store whenever rule files change, until ctx is done.
// Bursts of events are coalesced by the configured debounce interval. Watch
// blocks; run it in its own goroutine.
func (s *FileStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := s.addWatches(watcher); err != nil {
		return fmt.Errorf("failed to watch path: %w", err)
	}

	debounce := newDebouncer(s.config.Debounce)
	defer debounce.Stop()

	s.logger.Info("file watcher started",
		"path", s.config.Path,
		"debounce_ms", s.config.Debounce.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("file watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if event.Op&fsnotify.Create != 0 {
				// New subdirectories need their own watch.
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			if !s.relevant(event) {
				continue
			}
			s.logger.Debug("rule file event", "path", event.Name, "op", event.Op.String())
			debounce.Trigger(func() {
				if err := s.Reload(); err != nil {
					s.logger.Error("rule reload failed", "error", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			s.logger.Error("file watcher error", "error", err)
		}
	}
}

// addWatches registers the watched directories. A single file is watched
// through its parent directory so editors that replace the file on save
// keep triggering events.
func (s *FileStore) addWatches(w *fsnotify.Watcher) error {
	info, err := os.Stat(s.config.Path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.Add(filepath.Dir(s.config.Path))
	}
	return filepath.WalkDir(s.config.Path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != s.config.Path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

func (s *FileStore) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}

	info, err := os.Stat(s.config.Path)
	if err == nil && !info.IsDir() {
		return filepath.Clean(event.Name) == filepath.Clean(s.config.Path)
	}
	return hasRuleExtension(event.Name)
}

// debouncer runs the latest callback once events stop arriving for the
// interval.
type debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	wg      sync.WaitGroup
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

// Trigger schedules fn, replacing any callback still waiting.
func (d *debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil && d.timer.Stop() {
		d.wg.Done()
	}
	d.wg.Add(1)
	d.timer = time.AfterFunc(d.interval, func() {
		defer d.wg.Done()
		fn()
	})
}

// Stop cancels a pending callback and waits for a running one to finish.
func (d *debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil && d.timer.Stop() {
		d.wg.Done()
	}
	d.mu.Unlock()
	d.wg.Wait()
}
