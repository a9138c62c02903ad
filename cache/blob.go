package cache

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/softwareheritage/swhfs/swhid"
)

// BlobCache persists content bytes keyed by cnt SWHID. In bypass mode the
// cache is inert: every Get misses and Set/Remove do nothing, so reads
// always reach the content backend. That mode is meant for deployments
// where the object storage is local and faster than a detour through
// sqlite.
type BlobCache struct {
	db     *sql.DB
	bypass bool
}

// Get returns the cached bytes for id, or nil on a miss.
func (c *BlobCache) Get(ctx context.Context, id swhid.SWHID) ([]byte, error) {
	if c.bypass {
		return nil, nil
	}
	var blob []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT blob FROM blob_cache WHERE swhid = ?`, id.String(),
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "blob get %s", id)
	}
	if blob == nil {
		blob = []byte{}
	}
	return blob, nil
}

// Set stores the bytes for id, idempotently.
func (c *BlobCache) Set(ctx context.Context, id swhid.SWHID, blob []byte) error {
	if c.bypass {
		return nil
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO blob_cache (swhid, blob) VALUES (?, ?)`,
		id.String(), blob)
	return errors.Wrapf(err, "blob set %s", id)
}

// Remove deletes the cached bytes for id.
func (c *BlobCache) Remove(ctx context.Context, id swhid.SWHID) error {
	if c.bypass {
		return nil
	}
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM blob_cache WHERE swhid = ?`, id.String())
	return errors.Wrapf(err, "blob remove %s", id)
}
