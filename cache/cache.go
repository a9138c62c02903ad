// Package cache implements the persistent caches shared by every mount and
// the in-memory directory-listing LRU.
//
// Archive objects are content addressed and immutable, so cached rows stay
// valid forever: there is no invalidation, only user-initiated eviction
// (unlinks under the cache/ directory and the `swhfs clean` subcommand).
// The backing store is sqlite; metadata, visits and the history graph share
// one database file so that by-date history shards can be answered with a
// single join, blobs live in a second file. Multiple mount processes share
// the same files, relying on WAL mode and short transactions.
package cache

import (
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Options selects where each cache lives. A zero Path with InMemory set
// opens an anonymous shared-cache database, used by tests and by the
// `in-memory` cache configuration keys.
type Options struct {
	MetadataPath     string
	MetadataInMemory bool

	BlobPath     string
	BlobInMemory bool
	// BlobBypass disables blob caching entirely: gets always miss and
	// sets are dropped, so every read reaches the content backend.
	BlobBypass bool

	// DirEntryMaxBytes bounds the in-memory directory-listing cache.
	DirEntryMaxBytes int64
}

// Cache aggregates the five caches behind one Open/Close pair.
type Cache struct {
	Metadata *MetadataCache
	Visits   *VisitsCache
	Blob     *BlobCache
	History  *HistoryCache
	DirEntry *DirEntryCache

	metaDB *sql.DB
	blobDB *sql.DB
}

// memSeq distinguishes anonymous in-memory databases from one another
// while keeping each one shared across its own connection pool.
var memSeq int64

func open(path string, inMemory bool, kind string) (*sql.DB, error) {
	var dsn string
	if inMemory {
		dsn = fmt.Sprintf("file:swhfs-%s-%d?mode=memory&cache=shared",
			kind, atomic.AddInt64(&memSeq, 1))
	} else {
		dsn = "file:" + path +
			"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s cache", kind)
	}
	if inMemory {
		// A shared-cache memory database disappears with its last
		// connection; a single pooled connection keeps it alive and
		// serialises access the way the on-disk WAL file would.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// Open opens (creating if needed) the cache databases.
func Open(opt Options) (*Cache, error) {
	metaDB, err := open(opt.MetadataPath, opt.MetadataInMemory, "metadata")
	if err != nil {
		return nil, err
	}
	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS metadata_cache (
			swhid TEXT PRIMARY KEY,
			metadata TEXT,
			date TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS visits_cache (
			url TEXT PRIMARY KEY,
			metadata TEXT,
			insertion_time INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS history_graph (
			src TEXT,
			dst TEXT,
			UNIQUE (src, dst)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_graph_src ON history_graph (src)`,
	} {
		if _, err := metaDB.Exec(ddl); err != nil {
			_ = metaDB.Close()
			return nil, errors.Wrap(err, "init metadata cache")
		}
	}

	blobDB, err := open(opt.BlobPath, opt.BlobInMemory, "blob")
	if err != nil {
		_ = metaDB.Close()
		return nil, err
	}
	if _, err := blobDB.Exec(
		`CREATE TABLE IF NOT EXISTS blob_cache (swhid TEXT PRIMARY KEY, blob BLOB)`,
	); err != nil {
		_ = metaDB.Close()
		_ = blobDB.Close()
		return nil, errors.Wrap(err, "init blob cache")
	}

	return &Cache{
		Metadata: &MetadataCache{db: metaDB},
		Visits:   &VisitsCache{db: metaDB},
		Blob:     &BlobCache{db: blobDB, bypass: opt.BlobBypass},
		History:  &HistoryCache{db: metaDB},
		DirEntry: NewDirEntryCache(opt.DirEntryMaxBytes),
		metaDB:   metaDB,
		blobDB:   blobDB,
	}, nil
}

// Close closes the underlying databases.
func (c *Cache) Close() error {
	err := c.metaDB.Close()
	if err2 := c.blobDB.Close(); err == nil {
		err = err2
	}
	return err
}
