package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"hera-erp/configrules/pkg/config"
	"hera-erp/configrules/pkg/engine"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Stack is a configured rule store: a backend plus the cache decorators
// enabled in configuration, and the background maintenance that goes with
// them.
type Stack struct {
	// Store is the outermost store, to be handed to the engine.
	Store engine.RuleStore

	// Backend is the undecorated store.
	Backend engine.RuleStore

	cfg     config.StoreConfig
	logger  *slog.Logger
	file    *FileStore
	purgers []namedPurger
	closers []func() error

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

type namedPurger struct {
	name string
	p    Purger
}

// Open builds the store described by cfg. The in-process cache, when
// enabled, sits above the Redis cache so hot keys never leave the process.
func Open(ctx context.Context, cfg *config.StoreConfig, logger *slog.Logger, recorder Recorder) (*Stack, error) {
	if cfg == nil {
		return nil, errors.New("store config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	recorder = orNop(recorder)

	s := &Stack{cfg: *cfg, logger: logger}

	switch cfg.Backend {
	case BackendMemory:
		s.Backend = NewMemoryStore()
	case BackendFile, "":
		fs, err := NewFileStore(&cfg.File, logger, WithFileRecorder(recorder))
		if err != nil {
			return nil, err
		}
		s.file = fs
		s.Backend = fs
	case BackendSQLite:
		db, err := NewSQLiteStore(&cfg.SQLite, logger)
		if err != nil {
			return nil, err
		}
		s.Backend = db
		s.closers = append(s.closers, db.Close)
	case BackendPostgres:
		pg, err := NewPostgresStore(ctx, &cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		s.Backend = pg
		s.closers = append(s.closers, func() error { pg.Close(); return nil })
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	s.Store = s.Backend

	if cfg.Redis.Enabled {
		client := NewRedisClient(&cfg.Redis)
		rc := NewRedisCache(s.Store, client, &cfg.Redis, logger, recorder)
		s.Store = rc
		s.purgers = append(s.purgers, namedPurger{name: CacheNameRedis, p: rc})
		s.closers = append(s.closers, client.Close)
	}
	if cfg.Cache.Enabled {
		cs := NewCachingStore(s.Store, &cfg.Cache, logger, WithCacheRecorder(recorder))
		s.Store = cs
		s.purgers = append(s.purgers, namedPurger{name: CacheNameMemory, p: cs})
	}

	logger.Info("rule store opened",
		"backend", cfg.Backend,
		"cache", cfg.Cache.Enabled,
		"redis", cfg.Redis.Enabled,
	)
	return s, nil
}

// File returns the file store, or nil for other backends.
func (s *Stack) File() *FileStore {
	return s.file
}

// Start launches the file watcher and the refresh schedule when configured.
// Both stop on Close or when ctx is cancelled.
func (s *Stack) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	if s.file != nil && s.cfg.File.Watch {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.file.Watch(ctx); err != nil {
				s.logger.Error("rule file watcher exited", "error", err)
			}
		}()
	}

	if s.cfg.Refresh.Schedule == "" {
		return nil
	}
	refresher, err := NewRefresher(s.cfg.Refresh.Schedule, s.logger)
	if err != nil {
		s.cancel()
		s.wg.Wait()
		return err
	}
	if s.file != nil {
		refresher.AddReload(StoreNameFile, s.file)
	}
	// Purge the outermost cache last so it cannot refill from a stale inner one.
	for _, np := range s.purgers {
		refresher.AddPurge(np.name, np.p)
	}
	if err := refresher.Start(ctx); err != nil {
		s.cancel()
		s.wg.Wait()
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-ctx.Done()
		refresher.Stop()
	}()
	return nil
}

// InvalidateTenant drops cached entries of a tenant from every cache layer.
func (s *Stack) InvalidateTenant(ctx context.Context, tenantID string) error {
	var errs []error
	for _, np := range s.purgers {
		if inv, ok := np.p.(interface {
			InvalidateTenant(context.Context, string) error
		}); ok {
			if err := inv.InvalidateTenant(ctx, tenantID); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", np.name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Ping checks the outermost store.
func (s *Stack) Ping(ctx context.Context) error {
	if p, ok := s.Store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close stops background work and releases connections.
func (s *Stack) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
