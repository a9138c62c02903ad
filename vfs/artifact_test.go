package vfs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softwareheritage/swhfs/backend"
	"github.com/softwareheritage/swhfs/swhid"
)

const (
	ancestorA = "swh:1:rev:aa00000000000000000000000000000000000001"
	ancestorB = "swh:1:rev:bb00000000000000000000000000000000000002"
)

// seedHistory wires linuxRev to two dated ancestors.
func seedHistory(t *testing.T, graph *fakeGraph) {
	t.Helper()
	graph.history[linuxRev] = []backend.Edge{
		{Src: linuxRev, Dst: ancestorA},
		{Src: ancestorA, Dst: ancestorB},
	}
	for id, date := range map[string]string{
		ancestorA: "2020-03-04T10:00:00Z",
		ancestorB: "2019-12-31T23:59:59Z",
	} {
		d := date
		raw, err := json.Marshal(backend.RevMeta{
			ID:        swhid.MustParse(id).HexHash(),
			Directory: swhid.MustParse(linuxDir).HexHash(),
			Date:      &d,
		})
		require.NoError(t, err)
		graph.meta[id] = raw
	}
}

func TestHistoryByPage(t *testing.T) {
	fs, graph, content := newTestFS(t)
	seedLinux(t, graph, content)
	seedHistory(t, graph)
	ctx := context.Background()

	byPage := lookupPath(t, fs, "archive/"+linuxRev+"/history/by-page").(DirEntry)
	pages, err := fs.entries(ctx, byPage)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "000", pages[0].Name())

	leaves, err := fs.entries(ctx, pages[0].(DirEntry))
	require.NoError(t, err)
	// Reverse-topological order is preserved.
	require.Equal(t, []string{ancestorA, ancestorB}, entryNames(leaves))

	link := leaves[0].(SymlinkEntry)
	assert.Equal(t, "../../../../../archive/"+ancestorA, link.Target())
}

func TestHistoryByHash(t *testing.T) {
	fs, graph, content := newTestFS(t)
	seedLinux(t, graph, content)
	seedHistory(t, graph)
	ctx := context.Background()

	byHash := lookupPath(t, fs, "archive/"+linuxRev+"/history/by-hash").(DirEntry)
	shards, err := fs.entries(ctx, byHash)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"aa", "bb"}, entryNames(shards))

	leaf := lookupPath(t, fs, "archive/"+linuxRev+"/history/by-hash/aa/"+ancestorA)
	link, ok := leaf.(SymlinkEntry)
	require.True(t, ok)
	assert.Equal(t, "../../../../../archive/"+ancestorA, link.Target())

	// The shard regexp bounds lookup work for impossible names.
	shard := lookupPath(t, fs, "archive/"+linuxRev+"/history/by-hash/aa").(DirEntry)
	e, err := fs.lookup(ctx, shard, "nonsense")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestHistoryByDatePartial(t *testing.T) {
	fs, graph, content := newTestFS(t)
	seedLinux(t, graph, content)
	seedHistory(t, graph)
	ctx := context.Background()

	// Only ancestorA is fetchable: drop B so the background prefetch
	// cannot complete the view.
	graph.mu.Lock()
	rawA := graph.meta[ancestorA]
	delete(graph.meta, ancestorB)
	graph.mu.Unlock()
	require.NoError(t, fs.cache.Metadata.Set(ctx, swhid.MustParse(ancestorA), rawA))

	byDate := lookupPath(t, fs, "archive/"+linuxRev+"/history/by-date").(*RevisionHistoryShardByDate)
	ents, err := byDate.ComputeEntries(ctx)
	require.NoError(t, err)
	names := entryNames(ents)
	assert.Contains(t, names, "2020")
	assert.Contains(t, names, ".status")
	assert.NotContains(t, names, "2019")

	var status *StatusFile
	for _, e := range ents {
		if s, ok := e.(*StatusFile); ok {
			status = s
		}
	}
	require.NotNil(t, status)
	assert.True(t, status.DirectIO())
	assert.False(t, status.KeepPageCache())
	data, err := status.Content(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Done: 1/2\n", string(data))

	// Descend 2020/03/04 to the ancestor symlink.
	leaf := lookupPath(t, fs,
		"archive/"+linuxRev+"/history/by-date/2020/03/04/"+ancestorA)
	link, ok := leaf.(SymlinkEntry)
	require.True(t, ok)
	assert.Equal(t, "../../../../../../../archive/"+ancestorA, link.Target())
}

func TestHistoryByDateComplete(t *testing.T) {
	fs, graph, content := newTestFS(t)
	seedLinux(t, graph, content)
	seedHistory(t, graph)
	ctx := context.Background()

	// Pre-cache every ancestor: the status file must go away.
	for _, id := range []string{ancestorA, ancestorB} {
		graph.mu.Lock()
		raw := graph.meta[id]
		graph.mu.Unlock()
		require.NoError(t, fs.cache.Metadata.Set(ctx, swhid.MustParse(id), raw))
	}

	byDate := lookupPath(t, fs, "archive/"+linuxRev+"/history/by-date").(*RevisionHistoryShardByDate)
	ents, err := byDate.ComputeEntries(ctx)
	require.NoError(t, err)
	names := entryNames(ents)
	assert.ElementsMatch(t, []string{"2020", "2019"}, names)

	// The status inode is gone for good.
	_, err = fs.entryByInode(byDate.status.Inode())
	assert.Error(t, err)
}

func TestDirectorySymlinksAndSubmodules(t *testing.T) {
	fs, graph, content := newTestFS(t)
	seedLinux(t, graph, content)
	ctx := context.Background()

	const (
		dirWithLinks = "swh:1:dir:1111111111111111111111111111111111111111"
		linkBlob     = "swh:1:cnt:2222222222222222222222222222222222222222"
		brokenBlob   = "swh:1:cnt:3333333333333333333333333333333333333333"
	)
	graph.meta[dirWithLinks] = json.RawMessage(`[
		{"name":"COPYING.link","type":"file","target":"2222222222222222222222222222222222222222","perms":40960},
		{"name":"broken.link","type":"file","target":"3333333333333333333333333333333333333333","perms":40960},
		{"name":"vendored","type":"rev","target":"d012a7190fc1fd72ed48911e77ca97ba4521bccd","perms":57344}
	]`)
	content.blobs[linkBlob] = []byte("COPYING")

	dir := lookupPath(t, fs, "archive/"+dirWithLinks).(DirEntry)
	ents, err := fs.entries(ctx, dir)
	require.NoError(t, err)
	require.Len(t, ents, 3)

	// Archived symlinks resolve to their blob content.
	link := ents[0].(SymlinkEntry)
	assert.Equal(t, "COPYING", link.Target())

	// An unfetchable target still yields a (broken) symlink.
	broken := ents[1].(SymlinkEntry)
	assert.Equal(t, "", broken.Target())

	// Submodules surface as symlinks into archive/ after a best-effort
	// metadata prefetch.
	sub := ents[2].(SymlinkEntry)
	assert.Equal(t, "../../archive/"+linuxRev, sub.Target())
	cached, err := fs.cache.Metadata.Get(ctx, swhid.MustParse(linuxRev))
	require.NoError(t, err)
	assert.NotNil(t, cached)
}

func TestRelease(t *testing.T) {
	fs, graph, content := newTestFS(t)
	seedLinux(t, graph, content)
	date := "2021-01-10T14:34:50-08:00"
	raw, err := json.Marshal(backend.RelMeta{
		ID:         swhid.MustParse(linuxRel).HexHash(),
		Target:     swhid.MustParse(linuxRev).HexHash(),
		TargetType: "revision",
		Name:       "v5.11-rc3",
		Message:    "Linux 5.11-rc3",
		Date:       &date,
	})
	require.NoError(t, err)
	graph.meta[linuxRel] = raw
	ctx := context.Background()

	target := lookupPath(t, fs, "archive/"+linuxRel+"/target").(SymlinkEntry)
	assert.Equal(t, "../../archive/"+linuxRev, target.Target())

	targetType := lookupPath(t, fs, "archive/"+linuxRel+"/target_type").(FileEntry)
	data, err := targetType.Content(ctx)
	require.NoError(t, err)
	assert.Equal(t, "revision\n", string(data))

	// root resolves through the revision to its directory.
	root := lookupPath(t, fs, "archive/"+linuxRel+"/root").(SymlinkEntry)
	assert.Equal(t, "../../archive/"+linuxDir, root.Target())
}

func TestReleaseOfContentHasNoRoot(t *testing.T) {
	fs, graph, content := newTestFS(t)
	seedLinux(t, graph, content)
	raw, err := json.Marshal(backend.RelMeta{
		ID:         swhid.MustParse(linuxRel).HexHash(),
		Target:     swhid.MustParse(linuxReadme).HexHash(),
		TargetType: "content",
	})
	require.NoError(t, err)
	graph.meta[linuxRel] = raw
	ctx := context.Background()

	rel := lookupPath(t, fs, "archive/"+linuxRel).(DirEntry)
	ents, err := fs.entries(ctx, rel)
	require.NoError(t, err)
	assert.NotContains(t, entryNames(ents), "root")
	assert.Contains(t, entryNames(ents), "target")
}

func seedSnapshot(t *testing.T, graph *fakeGraph) {
	t.Helper()
	raw, err := json.Marshal(backend.SnpBranches{
		"refs/heads/master": {
			Target:     swhid.MustParse(linuxRev).HexHash(),
			TargetType: "revision",
		},
		"refs/tags/v5.11-rc3": {
			Target:     swhid.MustParse(linuxRel).HexHash(),
			TargetType: "release",
		},
		"refs/tags/alias-different-subdir": {
			Target:     "refs/heads/master",
			TargetType: "alias",
		},
	})
	require.NoError(t, err)
	graph.meta[linuxSnp] = raw
}

func TestSnapshotSharding(t *testing.T) {
	fs, graph, content := newTestFS(t)
	seedLinux(t, graph, content)
	seedSnapshot(t, graph)
	ctx := context.Background()

	snp := lookupPath(t, fs, "archive/"+linuxSnp).(DirEntry)
	top, err := fs.entries(ctx, snp)
	require.NoError(t, err)
	assert.Equal(t, []string{"refs"}, entryNames(top))

	refs, err := fs.entries(ctx, top[0].(DirEntry))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"heads", "tags"}, entryNames(refs))

	master := lookupPath(t, fs, "archive/"+linuxSnp+"/refs/heads/master").(SymlinkEntry)
	assert.Equal(t, "../../../../archive/"+linuxRev, master.Target())
}

func TestSnapshotAlias(t *testing.T) {
	fs, graph, content := newTestFS(t)
	seedLinux(t, graph, content)
	seedSnapshot(t, graph)

	alias := lookupPath(t, fs,
		"archive/"+linuxSnp+"/refs/tags/alias-different-subdir").(SymlinkEntry)
	assert.Equal(t, "../heads/master", alias.Target())

	tag := lookupPath(t, fs, "archive/"+linuxSnp+"/refs/tags/v5.11-rc3").(SymlinkEntry)
	assert.Equal(t, "../../../../archive/"+linuxRel, tag.Target())
}

func seedVisits(t *testing.T, graph *fakeGraph) {
	t.Helper()
	snpHash := swhid.MustParse(linuxSnp).HexHash()
	graph.visits[originEncodedURL] = []backend.Visit{
		{Date: "2021-02-01", Origin: originURL, Snapshot: snpHash},
		{Date: "2021-02-01", Origin: originURL, Snapshot: snpHash}, // same-day duplicate
		{Date: "2021-03-05", Origin: originURL},
	}
}

func TestOriginVisits(t *testing.T) {
	fs, graph, content := newTestFS(t)
	seedLinux(t, graph, content)
	seedVisits(t, graph)
	ctx := context.Background()

	origin := lookupPath(t, fs, "origin/"+originEncodedURL).(DirEntry)
	visits, err := fs.entries(ctx, origin)
	require.NoError(t, err)
	// Same-day visits deduplicate to the first one.
	assert.Equal(t, []string{"2021-02-01", "2021-03-05"}, entryNames(visits))

	snap := lookupPath(t, fs, "origin/"+originEncodedURL+"/2021-02-01/snapshot").(SymlinkEntry)
	assert.Equal(t, "../../../archive/"+linuxSnp, snap.Target())

	meta := lookupPath(t, fs, "origin/"+originEncodedURL+"/2021-02-01/meta.json").(FileEntry)
	data, err := meta.Content(ctx)
	require.NoError(t, err)
	var visit backend.Visit
	require.NoError(t, json.Unmarshal(data, &visit))
	assert.Equal(t, originURL, visit.Origin)

	// The visit without snapshot only exposes meta.json.
	later := lookupPath(t, fs, "origin/"+originEncodedURL+"/2021-03-05").(DirEntry)
	ents, err := fs.entries(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, []string{"meta.json"}, entryNames(ents))
}

func TestOriginDirListsCachedOrigins(t *testing.T) {
	fs, graph, content := newTestFS(t)
	seedLinux(t, graph, content)
	seedVisits(t, graph)
	ctx := context.Background()

	originDir := lookupPath(t, fs, "origin").(DirEntry)
	ents, err := fs.entries(ctx, originDir)
	require.NoError(t, err)
	assert.Empty(t, ents)

	// Names without the encoded ':' are rejected before any backend call.
	e, err := fs.lookup(ctx, originDir, "no-colon-here")
	require.NoError(t, err)
	assert.Nil(t, e)

	// Mounting an origin populates the visits cache, after which the
	// directory lists it.
	lookupPath(t, fs, "origin/"+originEncodedURL)
	ents, err = fs.entries(ctx, originDir)
	require.NoError(t, err)
	assert.Equal(t, []string{originEncodedURL}, entryNames(ents))
}

func TestUnknownOriginIsNotFound(t *testing.T) {
	fs, graph, content := newTestFS(t)
	seedLinux(t, graph, content)
	ctx := context.Background()

	originDir := lookupPath(t, fs, "origin").(DirEntry)
	e, err := fs.lookup(ctx, originDir, "https%3A%2F%2Fexample.com%2Fnope")
	require.NoError(t, err)
	assert.Nil(t, e)
}
