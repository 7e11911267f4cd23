// Package store provides engine.RuleStore implementations.
//
// # Backends
//
//   - MemoryStore: rules held in memory, for tests and one-shot CLI use
//   - FileStore: YAML or JSON rule files with optional hot reload
//   - SQLiteStore: embedded database with write operations for imports
//   - PostgresStore: rules kept as core_entities rows in the HERA schema
//
// # Decorators
//
//   - CachingStore: in-process TTL cache with per-key request coalescing
//   - RedisCache: shared cache-aside layer that falls through on Redis faults
//
// Every store decodes condition trees once, when rules enter the store, and
// returns only active rules of the requested tenant. Stores are safe for
// concurrent use.
//
// # Usage
//
//	fs, err := store.NewFileStore(&cfg.Store.File, logger)
//	if err != nil {
//	    return err
//	}
//	cached := store.NewCachingStore(fs, &cfg.Store.Cache, logger)
//	eng, err := engine.NewEngine(engineCfg, cached, logger)
package store
