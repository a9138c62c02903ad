package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// visitsTTL is the only implicit invalidation in the system: origins keep
// being visited, so listings older than this are re-fetched.
const visitsTTL = 24 * time.Hour

// VisitsCache persists origin visit listings keyed by percent-encoded URL.
type VisitsCache struct {
	db *sql.DB

	// now is replaceable in tests.
	now func() time.Time
}

func (c *VisitsCache) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// Get returns the cached visit list for url, or nil when absent or older
// than 24 hours (forcing the caller to refresh).
func (c *VisitsCache) Get(ctx context.Context, url string) (json.RawMessage, error) {
	var (
		raw      []byte
		inserted int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT metadata, insertion_time FROM visits_cache WHERE url = ?`, url,
	).Scan(&raw, &inserted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "visits get %q", url)
	}
	if c.clock().Sub(time.Unix(inserted, 0)) > visitsTTL {
		return nil, nil
	}
	return raw, nil
}

// Set stores the visit list for url, replacing any stale row.
func (c *VisitsCache) Set(ctx context.Context, url string, raw json.RawMessage) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO visits_cache (url, metadata, insertion_time) VALUES (?, ?, ?)`,
		url, []byte(raw), c.clock().Unix())
	return errors.Wrapf(err, "visits set %q", url)
}

// CachedURLs returns every origin URL with a cached visit list, in order.
func (c *VisitsCache) CachedURLs(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT url FROM visits_cache ORDER BY url`)
	if err != nil {
		return nil, errors.Wrap(err, "visits list")
	}
	defer func() { _ = rows.Close() }()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, errors.Wrap(err, "visits list")
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}
