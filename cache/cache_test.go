package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softwareheritage/swhfs/backend"
	"github.com/softwareheritage/swhfs/swhid"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(Options{
		MetadataInMemory: true,
		BlobInMemory:     true,
		DirEntryMaxBytes: 1 << 20,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

var (
	cntID = swhid.MustParse("swh:1:cnt:669ac7c32292798644b21dbb5a0dc657125f444d")
	revID = swhid.MustParse("swh:1:rev:d012a7190fc1fd72ed48911e77ca97ba4521bccd")
)

func TestMetadataRoundTrip(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	got, err := c.Metadata.Get(ctx, cntID)
	require.NoError(t, err)
	assert.Nil(t, got)

	raw := json.RawMessage(`{"length":727,"status":"visible"}`)
	require.NoError(t, c.Metadata.Set(ctx, cntID, raw))
	// A second writer racing on the same row must be a no-op.
	require.NoError(t, c.Metadata.Set(ctx, cntID, json.RawMessage(`{"length":0}`)))

	got, err = c.Metadata.Get(ctx, cntID)
	require.NoError(t, err)
	meta, err := backend.ParseContentMeta(got)
	require.NoError(t, err)
	assert.Equal(t, int64(727), meta.Length)

	ids, err := c.Metadata.CachedSWHIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []swhid.SWHID{cntID}, ids)

	require.NoError(t, c.Metadata.Remove(ctx, cntID))
	got, err = c.Metadata.Get(ctx, cntID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMetadataDatePrefix(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	date := "2017-02-19T14:34:00+02:00"
	raw, err := json.Marshal(backend.RevMeta{
		ID:        revID.HexHash(),
		Directory: "9eb62ef7dd283f7385e7d31af6344d9feedd25de",
		Date:      &date,
	})
	require.NoError(t, err)
	require.NoError(t, c.Metadata.Set(ctx, revID, raw))

	var prefix string
	err = c.metaDB.QueryRow(
		`SELECT date FROM metadata_cache WHERE swhid = ?`, revID.String(),
	).Scan(&prefix)
	require.NoError(t, err)
	assert.Equal(t, "2017/02/19/", prefix)
}

func TestBlobCache(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	blob, err := c.Blob.Get(ctx, cntID)
	require.NoError(t, err)
	assert.Nil(t, blob)

	require.NoError(t, c.Blob.Set(ctx, cntID, []byte("Linux kernel\n")))
	blob, err = c.Blob.Get(ctx, cntID)
	require.NoError(t, err)
	assert.Equal(t, []byte("Linux kernel\n"), blob)

	require.NoError(t, c.Blob.Remove(ctx, cntID))
	blob, err = c.Blob.Get(ctx, cntID)
	require.NoError(t, err)
	assert.Nil(t, blob)
}

func TestBlobCacheBypass(t *testing.T) {
	c, err := Open(Options{MetadataInMemory: true, BlobInMemory: true, BlobBypass: true})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	ctx := context.Background()

	require.NoError(t, c.Blob.Set(ctx, cntID, []byte("data")))
	blob, err := c.Blob.Get(ctx, cntID)
	require.NoError(t, err)
	assert.Nil(t, blob)
}

func TestVisitsFreshness(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	now := time.Now()
	c.Visits.now = func() time.Time { return now }

	url := "https%3A%2F%2Fgithub.com%2Ftorvalds%2Flinux"
	raw := json.RawMessage(`[{"date":"2021-02-01","origin":"https://github.com/torvalds/linux","snapshot":"02db117fef22434f1658b833a756775ca6effed0"}]`)
	require.NoError(t, c.Visits.Set(ctx, url, raw))

	got, err := c.Visits.Get(ctx, url)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(got))

	urls, err := c.Visits.CachedURLs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{url}, urls)

	// Rows older than 24h behave like misses.
	c.Visits.now = func() time.Time { return now.Add(25 * time.Hour) }
	got, err = c.Visits.Get(ctx, url)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func historyEdges(root string, ancestors ...string) []backend.Edge {
	edges := make([]backend.Edge, 0, len(ancestors))
	src := root
	for _, dst := range ancestors {
		edges = append(edges, backend.Edge{Src: src, Dst: dst})
		src = dst
	}
	return edges
}

func TestHistoryClosure(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	r0 := revID.String()
	r1 := "swh:1:rev:0000000000000000000000000000000000000001"
	r2 := "swh:1:rev:0000000000000000000000000000000000000002"
	edges := historyEdges(r0, r1, r2)
	// A diamond: r0 also reaches r2 directly.
	edges = append(edges, backend.Edge{Src: r0, Dst: r2})

	require.NoError(t, c.History.Set(ctx, revID, edges))
	// Idempotent reload.
	require.NoError(t, c.History.Set(ctx, revID, edges))

	ancestors, err := c.History.Ancestors(ctx, revID)
	require.NoError(t, err)
	require.Len(t, ancestors, 2)
	got := map[string]bool{}
	for _, id := range ancestors {
		got[id.String()] = true
	}
	assert.True(t, got[r1])
	assert.True(t, got[r2])
}

func TestHistoryEmptyIsLoaded(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	loaded, err := c.History.Loaded(ctx, revID)
	require.NoError(t, err)
	assert.False(t, loaded)

	// A root commit: fetched, zero ancestors. The fetch itself must be
	// recorded so it is not repeated.
	require.NoError(t, c.History.Set(ctx, revID, nil))

	loaded, err = c.History.Loaded(ctx, revID)
	require.NoError(t, err)
	assert.True(t, loaded)

	ancestors, err := c.History.Ancestors(ctx, revID)
	require.NoError(t, err)
	assert.Empty(t, ancestors)

	n, err := c.History.CachedAncestorCount(ctx, revID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHistoryDatePrefixJoin(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	r1 := swhid.MustParse("swh:1:rev:0000000000000000000000000000000000000001")
	r2 := swhid.MustParse("swh:1:rev:0000000000000000000000000000000000000002")
	require.NoError(t, c.History.Set(ctx, revID, historyEdges(revID.String(), r1.String(), r2.String())))

	// Only r1 has cached, dated metadata.
	date := "2021-03-04T08:00:00Z"
	raw, err := json.Marshal(backend.RevMeta{ID: r1.HexHash(), Date: &date})
	require.NoError(t, err)
	require.NoError(t, c.Metadata.Set(ctx, r1, raw))

	dated, err := c.History.AncestorsWithDatePrefix(ctx, revID, "")
	require.NoError(t, err)
	require.Len(t, dated, 1)
	assert.Equal(t, r1, dated[0].ID)
	assert.Equal(t, "2021/03/04/"+r1.String(), dated[0].ShardedName)

	dated, err = c.History.AncestorsWithDatePrefix(ctx, revID, "2021/03/")
	require.NoError(t, err)
	assert.Len(t, dated, 1)

	dated, err = c.History.AncestorsWithDatePrefix(ctx, revID, "1999/")
	require.NoError(t, err)
	assert.Empty(t, dated)

	n, err := c.History.CachedAncestorCount(ctx, revID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDirEntryCacheBudget(t *testing.T) {
	budget := int64(10 * listingPerChildCost)
	c := NewDirEntryCache(budget)

	for i := uint64(1); i <= 20; i++ {
		c.Set(i, []string{"child"}, 1)
		assert.LessOrEqual(t, c.UsedBytes(), budget, "after insert %d", i)
	}

	// The most recent entries survive, the oldest were evicted.
	_, ok := c.Get(20)
	assert.True(t, ok)
	_, ok = c.Get(1)
	assert.False(t, ok)

	c.Invalidate(20)
	_, ok = c.Get(20)
	assert.False(t, ok)
}

func TestDirEntryCacheOversizedListing(t *testing.T) {
	c := NewDirEntryCache(int64(listingPerChildCost))
	c.Set(1, make([]string, 100), 100)
	assert.LessOrEqual(t, c.UsedBytes(), int64(listingPerChildCost))
}
