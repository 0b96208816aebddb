package runtime

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"

	"github.com/funvibe/rigz/internal/vm"
)

// ProgramCache stores compiled programs keyed by a hash of their source,
// so repeated runs of the same script skip the parser. An LRU holds hot
// entries in memory; an optional SQLite file persists them across
// processes. Safe for concurrent use by multiple runtime instances.
type ProgramCache struct {
	mem *lru.Cache[string, *vm.Program]
	db  *sql.DB
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS programs (
	key        TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	created_at INTEGER NOT NULL
)`

// NewProgramCache builds a cache with the given in-memory capacity. An
// empty path skips the persistent layer.
func NewProgramCache(size int, path string) (*ProgramCache, error) {
	mem, err := lru.New[string, *vm.Program](size)
	if err != nil {
		return nil, fmt.Errorf("program cache: %w", err)
	}
	c := &ProgramCache{mem: mem}
	if path != "" {
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, fmt.Errorf("program cache at %s: %w", path, err)
		}
		if _, err := db.Exec(cacheSchema); err != nil {
			db.Close()
			return nil, fmt.Errorf("program cache at %s: %w", path, err)
		}
		c.db = db
	}
	return c, nil
}

// Get returns the cached program for a source text, checking memory first
// and falling back to the persistent store.
func (c *ProgramCache) Get(source string) (*vm.Program, bool) {
	key := sourceKey(source)
	if p, ok := c.mem.Get(key); ok {
		return p, true
	}
	if c.db == nil {
		return nil, false
	}
	var data []byte
	err := c.db.QueryRow(`SELECT data FROM programs WHERE key = ?`, key).Scan(&data)
	if err != nil {
		return nil, false
	}
	p, err := vm.DecodeProgram(data)
	if err != nil {
		// A stale or corrupt row; drop it rather than fail the run.
		c.db.Exec(`DELETE FROM programs WHERE key = ?`, key)
		return nil, false
	}
	c.mem.Add(key, p)
	return p, true
}

// Put stores a compiled program in both layers. Persistence failures are
// swallowed: the cache is an accelerator, never a correctness dependency.
func (c *ProgramCache) Put(source string, p *vm.Program, createdAt int64) {
	key := sourceKey(source)
	c.mem.Add(key, p)
	if c.db == nil {
		return
	}
	data, err := p.Encode()
	if err != nil {
		return
	}
	c.db.Exec(`INSERT OR REPLACE INTO programs (key, data, created_at) VALUES (?, ?, ?)`,
		key, data, createdAt)
}

// Len reports the in-memory entry count.
func (c *ProgramCache) Len() int {
	return c.mem.Len()
}

func (c *ProgramCache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func sourceKey(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}
