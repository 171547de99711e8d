// Package cache is an optional compiled-artifact store keyed by
// (function, level, type-profile). The orchestrator (internal/orchestrator)
// does not consult it; an embedder that emits byte-serializable code
// wires it in explicitly to skip re-running the optimizer and emitter
// when it already holds an artifact for the same key. It is a local
// cache, never a wire format: artifacts never leave the process that
// produced them.
package cache

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"sentrajit/internal/types"
)

// Key identifies one compiled artifact.
type Key struct {
	FunctionID      uint32
	Level           int
	TypeProfileHash uint64
}

// Entry is a cached compiled artifact plus the bookkeeping the
// orchestrator reports alongside it.
type Entry struct {
	Key
	Code     []byte
	CodeSize int
	StoredAt time.Time
	HitCount int64
}

// Cache wraps a modernc.org/sqlite-backed database/sql handle. It is
// safe for concurrent use: database/sql serializes access to the
// underlying connection and an in-memory mutex protects the hit-count
// bump, which is not itself transactional.
type Cache struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates (or reopens) a cache database at path. Passing ":memory:"
// gives a process-local cache that never touches disk, useful for tests
// and for a profiler-disabled run that still wants in-process reuse.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite does not support concurrent writers

	c := &Cache{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) migrate() error {
	_, err := c.db.Exec(`
CREATE TABLE IF NOT EXISTS compiled_artifacts (
	function_id       INTEGER NOT NULL,
	level             INTEGER NOT NULL,
	type_profile_hash INTEGER NOT NULL,
	code              BLOB NOT NULL,
	code_size         INTEGER NOT NULL,
	stored_at         INTEGER NOT NULL,
	hit_count         INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (function_id, level, type_profile_hash)
)`)
	return err
}

// Put stores (or replaces) the artifact for key.
func (c *Cache) Put(key Key, code []byte) error {
	_, err := c.db.Exec(`
INSERT INTO compiled_artifacts (function_id, level, type_profile_hash, code, code_size, stored_at, hit_count)
VALUES (?, ?, ?, ?, ?, ?, 0)
ON CONFLICT (function_id, level, type_profile_hash) DO UPDATE SET
	code = excluded.code, code_size = excluded.code_size, stored_at = excluded.stored_at, hit_count = 0
`, key.FunctionID, key.Level, int64(key.TypeProfileHash), code, len(code), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("cache: put %+v: %w", key, err)
	}
	return nil
}

// Get looks up the artifact for key and bumps its hit counter on a
// successful lookup. The bool result is false on a cache miss; both
// results are zero-valued in that case, never an error (a miss is
// expected steady-state behavior, not a failure).
func (c *Cache) Get(key Key) (Entry, bool, error) {
	row := c.db.QueryRow(`
SELECT code, code_size, stored_at, hit_count FROM compiled_artifacts
WHERE function_id = ? AND level = ? AND type_profile_hash = ?
`, key.FunctionID, key.Level, int64(key.TypeProfileHash))

	var (
		code     []byte
		codeSize int
		storedAt int64
		hitCount int64
	)
	if err := row.Scan(&code, &codeSize, &storedAt, &hitCount); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("cache: get %+v: %w", key, err)
	}

	c.mu.Lock()
	_, err := c.db.Exec(`UPDATE compiled_artifacts SET hit_count = hit_count + 1
WHERE function_id = ? AND level = ? AND type_profile_hash = ?`,
		key.FunctionID, key.Level, int64(key.TypeProfileHash))
	c.mu.Unlock()
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache: bump hit count %+v: %w", key, err)
	}

	return Entry{
		Key:      key,
		Code:     code,
		CodeSize: codeSize,
		StoredAt: time.Unix(0, storedAt),
		HitCount: hitCount + 1,
	}, true, nil
}

// Invalidate drops every cached artifact for functionID, across all
// levels and profile hashes. The caller that owns the cache invokes it
// when a function's compiled record is invalidated; the orchestrator
// does not call it.
func (c *Cache) Invalidate(functionID uint32) error {
	_, err := c.db.Exec(`DELETE FROM compiled_artifacts WHERE function_id = ?`, functionID)
	if err != nil {
		return fmt.Errorf("cache: invalidate function %d: %w", functionID, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// HashTypeProfile folds a set of observed value types into the u64 cache
// key component, giving a cheap proxy for "the profile that produced
// this artifact has not changed shape" without needing a full profile
// byte-compare.
func HashTypeProfile(observed []types.ValueType) uint64 {
	var h uint64 = 14695981039346656037 // FNV-1a offset basis
	for _, t := range observed {
		h ^= uint64(t)
		h *= 1099511628211 // FNV-1a prime
	}
	return h
}
