package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/softwareheritage/swhfs/backend"
	"github.com/softwareheritage/swhfs/swhid"
)

// MetadataCache persists artifact metadata keyed by SWHID. Alongside the
// raw JSON it stores the "YYYY/MM/DD/" prefix of a revision's author date,
// which lets by-date history shards be computed with a join instead of
// deserialising every ancestor.
type MetadataCache struct {
	db *sql.DB
}

// Get returns the cached raw JSON for id, or nil on a miss.
func (c *MetadataCache) Get(ctx context.Context, id swhid.SWHID) (json.RawMessage, error) {
	var raw []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT metadata FROM metadata_cache WHERE swhid = ?`, id.String(),
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "metadata get %s", id)
	}
	return raw, nil
}

// Set inserts the metadata row for id. Concurrent fetchers may race to
// insert the same row; INSERT OR IGNORE keeps the write idempotent.
func (c *MetadataCache) Set(ctx context.Context, id swhid.SWHID, raw json.RawMessage) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO metadata_cache (swhid, metadata, date) VALUES (?, ?, ?)`,
		id.String(), []byte(raw), datePrefix(id, raw))
	return errors.Wrapf(err, "metadata set %s", id)
}

// Remove deletes the metadata row for id.
func (c *MetadataCache) Remove(ctx context.Context, id swhid.SWHID) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM metadata_cache WHERE swhid = ?`, id.String())
	return errors.Wrapf(err, "metadata remove %s", id)
}

// CachedSWHIDs returns every SWHID with a materialised metadata row,
// in textual order.
func (c *MetadataCache) CachedSWHIDs(ctx context.Context) ([]swhid.SWHID, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT swhid FROM metadata_cache ORDER BY swhid`)
	if err != nil {
		return nil, errors.Wrap(err, "metadata list")
	}
	defer func() { _ = rows.Close() }()

	var ids []swhid.SWHID
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, errors.Wrap(err, "metadata list")
		}
		id, err := swhid.Parse(s)
		if err != nil {
			// A corrupt row must not take the whole listing down.
			continue
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// datePrefix formats the by-date shard prefix of a revision, empty for
// everything else or when the author date is null or unparseable.
func datePrefix(id swhid.SWHID, raw json.RawMessage) string {
	if id.Kind() != swhid.KindRevision {
		return ""
	}
	meta, err := backend.ParseRevMeta(raw)
	if err != nil || meta.Date == nil {
		return ""
	}
	t, err := time.Parse(time.RFC3339, *meta.Date)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%04d/%02d/%02d/", t.Year(), t.Month(), t.Day())
}
