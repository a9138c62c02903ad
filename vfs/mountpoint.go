package vfs

import (
	"context"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/softwareheritage/swhfs/backend"
	"github.com/softwareheritage/swhfs/swhid"
)

const jsonSuffix = ".json"

// swhidPattern matches the artifact kinds that can be mounted under
// archive/; origins are reached through origin/ instead.
const swhidPattern = `swh:1:(cnt|dir|rel|rev|snp):[0-9a-f]{40}`

var (
	archiveNameRx    = regexp.MustCompile(`^(` + swhidPattern + `)(\.json)?$`)
	originNameRx     = regexp.MustCompile(`^.*%3A.*$`) // %3A is the encoded ':'
	cacheNameRx      = regexp.MustCompile(`^([a-f0-9]{2}|origin)$`)
	cacheShardNameRx = regexp.MustCompile(`^(` + swhidPattern + `)(\.json)?$`)
)

// Root is the mountpoint: archive/, origin/, cache/ and a README.
type Root struct {
	dirEntry
}

func newRoot(fs *FS) *Root {
	r := &Root{dirEntry{entry: fs.newEntry("", modeDir, 1)}}
	fs.register(r)
	return r
}

func (r *Root) ComputeEntries(ctx context.Context) ([]Entry, error) {
	return []Entry{
		newArchiveDir(&r.entry),
		newOriginDir(&r.entry),
		newCacheDir(&r.entry),
		newReadme(&r.entry),
	}, nil
}

// ArchiveDir mounts any artifact on the fly using its SWHID as name, plus
// the artifact's metadata through a <SWHID>.json file. The directory
// cannot be listed (the archive is too large to enumerate) but entries in
// it can be accessed.
type ArchiveDir struct {
	dirEntry
}

func newArchiveDir(parent *entry) *ArchiveDir {
	return &ArchiveDir{dirEntry{
		entry:  parent.child("archive", modeDir),
		nameRx: archiveNameRx,
	}}
}

func (d *ArchiveDir) uncachedListing() {}

func (d *ArchiveDir) ComputeEntries(ctx context.Context) ([]Entry, error) {
	return nil, nil
}

func (d *ArchiveDir) Lookup(ctx context.Context, name string) (Entry, error) {
	if strings.HasSuffix(name, jsonSuffix) {
		id, err := swhid.Parse(strings.TrimSuffix(name, jsonSuffix))
		if err != nil {
			return nil, nil
		}
		return newMetaEntry(&d.entry, id), nil
	}

	id, err := swhid.Parse(name)
	if err != nil {
		return nil, nil
	}
	// Force a metadata fetch: it validates that the artifact exists
	// before an entry for it is materialised.
	if _, err := d.fs.GetMetadata(ctx, id); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	mode := modeDir
	if id.Kind() == swhid.KindContent {
		mode = modeFile
	}
	return newArtifact(&d.entry, name, id, mode)
}

// MetaEntry is an archive/<SWHID>.json file carrying the artifact's
// metadata as stored in the cache, pretty-printed per configuration.
type MetaEntry struct {
	fileEntry
	swhid swhid.SWHID
}

func newMetaEntry(parent *entry, id swhid.SWHID) *MetaEntry {
	return &MetaEntry{
		fileEntry: fileEntry{entry: parent.child(id.String()+jsonSuffix, modeFile)},
		swhid:     id,
	}
}

func (m *MetaEntry) swhidValue() string { return m.swhid.String() }

func (m *MetaEntry) Content(ctx context.Context) ([]byte, error) {
	raw, err := m.fs.GetMetadata(ctx, m.swhid)
	if err != nil {
		return nil, err
	}
	return m.fs.renderJSON(raw)
}

func (m *MetaEntry) Size(ctx context.Context) (uint64, error) {
	data, err := m.Content(ctx)
	if err != nil {
		return 0, err
	}
	return uint64(len(data)), nil
}

// OriginDir lists the origins already visited through this cache and
// mounts new ones on the fly by their percent-encoded URL.
type OriginDir struct {
	dirEntry
}

func newOriginDir(parent *entry) *OriginDir {
	return &OriginDir{dirEntry{
		entry:  parent.child("origin", modeDir),
		nameRx: originNameRx,
	}}
}

func (d *OriginDir) uncachedListing() {}

func (d *OriginDir) ComputeEntries(ctx context.Context) ([]Entry, error) {
	urls, err := d.fs.cache.Visits.CachedURLs(ctx)
	if err != nil {
		return nil, err
	}
	ents := make([]Entry, 0, len(urls))
	for _, u := range urls {
		ents = append(ents, newOrigin(&d.entry, u))
	}
	return ents, nil
}

func (d *OriginDir) Lookup(ctx context.Context, name string) (Entry, error) {
	ents, err := d.fs.entries(ctx, d)
	if err != nil {
		return nil, err
	}
	for _, e := range ents {
		if e.Name() == name {
			return e, nil
		}
	}

	// On-the-fly mounting of a new origin URL: fetching the visits both
	// validates the origin and populates the cache.
	if _, err := d.fs.GetVisits(ctx, name); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return newOrigin(&d.entry, name), nil
}

// CacheDir mirrors the on-disk metadata cache: one writable shard per
// 2-hex prefix of the cached SWHIDs, plus a symlink to origin/. Removing
// a file in a shard evicts the artifact from the cache.
type CacheDir struct {
	dirEntry
}

func newCacheDir(parent *entry) *CacheDir {
	return &CacheDir{dirEntry{
		entry:  parent.child("cache", modeDir),
		nameRx: cacheNameRx,
	}}
}

func (d *CacheDir) uncachedListing() {}

func (d *CacheDir) ComputeEntries(ctx context.Context) ([]Entry, error) {
	ids, err := d.fs.cache.Metadata.CachedSWHIDs(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var ents []Entry
	for _, id := range ids {
		prefix := id.HexHash()[:2]
		if seen[prefix] {
			continue
		}
		seen[prefix] = true
		ents = append(ents, newCacheShard(&d.entry, prefix))
	}
	ents = append(ents, newSymlink(&d.entry, "origin", d.relativeRootPath()+"origin"))
	return ents, nil
}

// CacheShard is one cache/<2-hex>/ directory, listing the cached
// artifacts under that hash prefix as symlinks into archive/.
type CacheShard struct {
	dirEntry
	prefix string
}

func newCacheShard(parent *entry, prefix string) *CacheShard {
	return &CacheShard{
		dirEntry: dirEntry{
			entry:  parent.child(prefix, modeDirRW),
			nameRx: cacheShardNameRx,
		},
		prefix: prefix,
	}
}

func (d *CacheShard) uncachedListing() {}

func (d *CacheShard) ComputeEntries(ctx context.Context) ([]Entry, error) {
	ids, err := d.fs.cache.Metadata.CachedSWHIDs(ctx)
	if err != nil {
		return nil, err
	}
	rootPath := d.relativeRootPath()
	var ents []Entry
	for _, id := range ids {
		if !strings.HasPrefix(id.HexHash(), d.prefix) {
			continue
		}
		ents = append(ents,
			newSymlink(&d.entry, id.String(), rootPath+"archive/"+id.String()),
			newSymlink(&d.entry, id.String()+jsonSuffix, rootPath+"archive/"+id.String()+jsonSuffix),
		)
	}
	return ents, nil
}

// Unlink evicts the named artifact from the metadata and blob caches.
func (d *CacheShard) Unlink(ctx context.Context, name string) error {
	id, err := swhid.Parse(strings.TrimSuffix(name, jsonSuffix))
	if err != nil {
		return err
	}
	log.Debugf("evicting %s from cache", id)
	if err := d.fs.cache.Metadata.Remove(ctx, id); err != nil {
		return err
	}
	return d.fs.cache.Blob.Remove(ctx, id)
}

// Readme is the static banner at the mountpoint root.
type Readme struct {
	fileEntry
}

const readmeContent = `Welcome to the Software Heritage Filesystem (SwhFS)!

This is a user-space POSIX filesystem to browse the Software Heritage
archive, as if it were locally available. The mount point contains 3
directories, all initially empty and lazily populated:

- "archive": virtual directory to mount any Software Heritage artifact on
  the fly using its SWHID as name. Note: this directory cannot be listed
  with ls, but entries in it can be accessed (e.g., using cat or cd).
- "origin": virtual directory to mount any origin using its encoded URL as
  name.
- "cache": on-disk representation of locally cached objects and metadata.

Try it yourself:

    $ cat archive/swh:1:cnt:c839dea9e8e6f0528b468214348fee8669b305b2
    #include <stdio.h>

    int main(void) {
        printf("Hello, World!\n");
    }

You can find more details and examples in the SwhFS online documentation:
https://docs.softwareheritage.org/devel/swh-fuse/
`

func newReadme(parent *entry) *Readme {
	return &Readme{fileEntry{entry: parent.child("README", modeFile)}}
}

func (r *Readme) Content(ctx context.Context) ([]byte, error) {
	return []byte(readmeContent), nil
}

func (r *Readme) Size(ctx context.Context) (uint64, error) {
	return uint64(len(readmeContent)), nil
}

// Check the interfaces are satisfied
var (
	_ DirEntry  = &Root{}
	_ DirEntry  = &ArchiveDir{}
	_ lookuper  = &ArchiveDir{}
	_ DirEntry  = &OriginDir{}
	_ lookuper  = &OriginDir{}
	_ DirEntry  = &CacheDir{}
	_ DirEntry  = &CacheShard{}
	_ unlinker  = &CacheShard{}
	_ FileEntry = &MetaEntry{}
	_ FileEntry = &Readme{}
)
