// Package vfs implements the virtual filesystem: the typed entry tree
// mirroring archive semantics, the inode table, the kernel callback
// dispatch and the mount driver.
package vfs

import (
	"context"
	"os"
	"regexp"
	"strings"

	"github.com/jacobsa/fuse/fuseops"
)

// Permission modes of the virtual tree. The mount is read-only; only the
// cache shards are writable directories so `rm` can evict entries.
const (
	modeFile  = os.FileMode(0444)
	modeDir   = os.ModeDir | 0555
	modeLink  = os.ModeSymlink | 0444
	modeDirRW = os.ModeDir | 0755
)

// Entry is a node of the virtual tree. Entries are created lazily, get a
// unique inode on creation and live until unmount (with the single
// exception of the by-date status file).
type Entry interface {
	Name() string
	Mode() os.FileMode
	Depth() int
	Inode() fuseops.InodeID
	Size(ctx context.Context) (uint64, error)
}

// FileEntry is an entry with readable content.
type FileEntry interface {
	Entry

	// Content returns the whole file; blobs are bounded and cached, so
	// reads slice an in-memory buffer.
	Content(ctx context.Context) ([]byte, error)

	// KeepPageCache reports whether the kernel may keep pages across
	// opens; the by-date status file disables it and uses direct IO so
	// every read recomputes the counters.
	KeepPageCache() bool
	DirectIO() bool
}

// DirEntry is an entry with children.
type DirEntry interface {
	Entry

	// ComputeEntries materialises the (possibly empty) child list. It may
	// call into the backends and is bypassed when the listing is present
	// in the direntry cache.
	ComputeEntries(ctx context.Context) ([]Entry, error)

	// ValidName bounds the work done for names that cannot possibly
	// exist: lookups are rejected before ComputeEntries runs.
	ValidName(name string) bool
}

// SymlinkEntry is an entry resolving to a target path.
type SymlinkEntry interface {
	Entry
	Target() string
}

// lookuper is implemented by directories that resolve names without
// enumerating their children (the on-the-fly mounting directories; the
// archive cannot be listed). A nil Entry with nil error means "no such
// name".
type lookuper interface {
	Lookup(ctx context.Context, name string) (Entry, error)
}

// unlinker is implemented by the cache shards, the only writable spot of
// the tree.
type unlinker interface {
	Unlink(ctx context.Context, name string) error
}

// swhidCarrier exposes the identifier behind the "user.swhid" xattr.
type swhidCarrier interface {
	swhidValue() string
}

// uncachedDir marks directories whose listing tracks evolving cache state
// and must never enter the direntry cache.
type uncachedDir interface {
	uncachedListing()
}

// entry is the common part of every node.
type entry struct {
	name  string
	mode  os.FileMode
	depth int
	inode fuseops.InodeID
	fs    *FS
}

func (e *entry) Name() string           { return e.name }
func (e *entry) Mode() os.FileMode      { return e.mode }
func (e *entry) Depth() int             { return e.depth }
func (e *entry) Inode() fuseops.InodeID { return e.inode }

// relativeRootPath renders the "../../…" prefix that reaches the mount
// root from inside this directory entry, used for the in-mount symlinks
// it lists.
func (e *entry) relativeRootPath() string {
	return strings.Repeat("../", e.depth-1)
}

// child allocates the common part of a child entry one level deeper.
func (e *entry) child(name string, mode os.FileMode) entry {
	return e.fs.newEntry(name, mode, e.depth+1)
}

// dirEntry is the common part of directory nodes.
type dirEntry struct {
	entry
	nameRx *regexp.Regexp
}

func (d *dirEntry) Size(ctx context.Context) (uint64, error) { return 0, nil }

func (d *dirEntry) ValidName(name string) bool {
	if d.nameRx == nil {
		return true
	}
	return d.nameRx.MatchString(name)
}

// fileEntry is the common part of regular-file nodes.
type fileEntry struct {
	entry
	direct bool
}

func (f *fileEntry) KeepPageCache() bool { return !f.direct }
func (f *fileEntry) DirectIO() bool      { return f.direct }

// Symlink is a virtual symlink; cross references inside the tree are all
// expressed this way. The target may be arbitrary bytes (archived
// symlinks point wherever the original code did).
type Symlink struct {
	entry
	target string
}

func newSymlink(parent *entry, name, target string) *Symlink {
	return &Symlink{entry: parent.child(name, modeLink), target: target}
}

// Size is the length of the target, as readlink reports it.
func (s *Symlink) Size(ctx context.Context) (uint64, error) {
	return uint64(len(s.target)), nil
}

// Target returns the link destination.
func (s *Symlink) Target() string { return s.target }
