package cache

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/softwareheritage/swhfs/backend"
	"github.com/softwareheritage/swhfs/swhid"
)

// HistoryCache persists the rev:rev ancestry graph as individual edges.
// The UNIQUE(src, dst) constraint makes concurrent loads of the same
// history idempotent.
//
// A fetched history with zero ancestors (a root commit) still has to be
// distinguishable from one that was never fetched, and an edge list
// cannot record that by itself. Set therefore always stores a root→root
// self-edge alongside the real edges; the recursive closure never
// surfaces it (the query node is skipped) and Loaded keys off it.
type HistoryCache struct {
	db *sql.DB
}

// closureQuery walks the src→dst relation from one node. The OFFSET drops
// the query node itself; rows come back in the breadth-first order the
// recursive evaluation enqueues them, which preserves the backends'
// reverse-topological edge emission order.
const closureQuery = `
WITH RECURSIVE dfs (node) AS (
	VALUES (?)
	UNION
	SELECT history_graph.dst
	FROM history_graph
	JOIN dfs ON history_graph.src = dfs.node
)
SELECT node FROM dfs LIMIT -1 OFFSET 1`

// Set stores the ancestry edges fetched for root. Duplicate edges are
// ignored; the fetch itself is recorded through the root self-edge, so
// an empty history is cached like any other.
func (c *HistoryCache) Set(ctx context.Context, root swhid.SWHID, edges []backend.Edge) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "history set")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO history_graph (src, dst) VALUES (?, ?)`)
	if err != nil {
		return errors.Wrap(err, "history set")
	}
	defer func() { _ = stmt.Close() }()

	if _, err := stmt.ExecContext(ctx, root.String(), root.String()); err != nil {
		return errors.Wrapf(err, "history sentinel %s", root)
	}
	for _, e := range edges {
		if _, err := stmt.ExecContext(ctx, e.Src, e.Dst); err != nil {
			return errors.Wrapf(err, "history edge %s -> %s", e.Src, e.Dst)
		}
	}
	return errors.Wrap(tx.Commit(), "history set")
}

// Loaded reports whether the history of root was ever fetched: any
// outgoing edge (at least the self-edge Set records) marks it.
func (c *HistoryCache) Loaded(ctx context.Context, root swhid.SWHID) (bool, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM history_graph WHERE src = ?)`, root.String(),
	).Scan(&n)
	if err != nil {
		return false, errors.Wrapf(err, "history loaded %s", root)
	}
	return n != 0, nil
}

// Ancestors returns every revision reachable from root over stored
// edges, excluding root itself. An empty result alone does not imply a
// cache miss — a root commit has none — check Loaded for that.
func (c *HistoryCache) Ancestors(ctx context.Context, root swhid.SWHID) ([]swhid.SWHID, error) {
	rows, err := c.db.QueryContext(ctx, closureQuery, root.String())
	if err != nil {
		return nil, errors.Wrapf(err, "history ancestors %s", root)
	}
	defer func() { _ = rows.Close() }()

	var ids []swhid.SWHID
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, errors.Wrap(err, "history ancestors")
		}
		id, err := swhid.Parse(s)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DatedAncestor is an ancestor whose metadata is cached with a date,
// carrying the "YYYY/MM/DD/<SWHID>" name it shards under.
type DatedAncestor struct {
	ID          swhid.SWHID
	ShardedName string
}

// AncestorsWithDatePrefix joins the ancestry closure of root against the
// metadata cache, returning the ancestors already materialised with an
// author date matching prefix ("" for all). This answers by-date listings
// without fetching each ancestor individually.
func (c *HistoryCache) AncestorsWithDatePrefix(ctx context.Context, root swhid.SWHID, prefix string) ([]DatedAncestor, error) {
	rows, err := c.db.QueryContext(ctx, `
WITH RECURSIVE dfs (node) AS (
	VALUES (?)
	UNION
	SELECT history_graph.dst
	FROM history_graph
	JOIN dfs ON history_graph.src = dfs.node
)
SELECT metadata_cache.swhid, metadata_cache.date || metadata_cache.swhid
FROM dfs
JOIN metadata_cache ON metadata_cache.swhid = dfs.node
WHERE dfs.node != ? AND metadata_cache.date != '' AND metadata_cache.date LIKE ? || '%'`,
		root.String(), root.String(), prefix)
	if err != nil {
		return nil, errors.Wrapf(err, "history by-date %s", root)
	}
	defer func() { _ = rows.Close() }()

	var out []DatedAncestor
	for rows.Next() {
		var s, sharded string
		if err := rows.Scan(&s, &sharded); err != nil {
			return nil, errors.Wrap(err, "history by-date")
		}
		id, err := swhid.Parse(s)
		if err != nil {
			continue
		}
		out = append(out, DatedAncestor{ID: id, ShardedName: sharded})
	}
	return out, rows.Err()
}

// CachedAncestorCount counts the ancestors of root whose metadata is
// already cached, dated or not. The by-date status file reports it.
func (c *HistoryCache) CachedAncestorCount(ctx context.Context, root swhid.SWHID) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `
WITH RECURSIVE dfs (node) AS (
	VALUES (?)
	UNION
	SELECT history_graph.dst
	FROM history_graph
	JOIN dfs ON history_graph.src = dfs.node
)
SELECT count(*)
FROM dfs
JOIN metadata_cache ON metadata_cache.swhid = dfs.node
WHERE dfs.node != ?`,
		root.String(), root.String()).Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(err, "history cached count %s", root)
	}
	return n, nil
}
