package vfs

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/softwareheritage/swhfs/backend"
	"github.com/softwareheritage/swhfs/cache"
	"github.com/softwareheritage/swhfs/swhid"
)

// errWrongKind marks operations invoked on the wrong SWHID kind; it
// surfaces to the kernel as EINVAL.
var errWrongKind = errors.New("wrong object kind")

// Options tunes the filesystem behaviour.
type Options struct {
	// JSONIndent is the pretty-printing indent of the <SWHID>.json and
	// meta.json files.
	JSONIndent int
}

// FS ties the entry tree, the caches and the backends together and
// implements the kernel callbacks.
type FS struct {
	fuseutil.NotImplementedFileSystem

	cache   *cache.Cache
	graph   backend.GraphBackend
	content backend.ContentBackend
	opt     Options

	uid, gid  uint32
	startTime time.Time

	mu        sync.Mutex
	nextInode fuseops.InodeID
	inodes    map[fuseops.InodeID]Entry

	root *Root
}

// New builds the filesystem over the given caches and backends.
func New(c *cache.Cache, graph backend.GraphBackend, content backend.ContentBackend, opt Options) *FS {
	fs := &FS{
		cache:     c,
		graph:     graph,
		content:   content,
		opt:       opt,
		uid:       uint32(os.Getuid()),
		gid:       uint32(os.Getgid()),
		startTime: time.Now(),
		nextInode: fuseops.RootInodeID,
		inodes:    make(map[fuseops.InodeID]Entry),
	}
	fs.root = newRoot(fs)
	return fs
}

// Root returns the mountpoint entry.
func (fs *FS) Root() *Root { return fs.root }

// Shutdown stops the backends.
func (fs *FS) Shutdown() {
	fs.graph.Shutdown()
	fs.content.Shutdown()
}

// newEntry allocates the next inode for an entry under construction.
// Inodes are monotonic and never reused within a mount session.
func (fs *FS) newEntry(name string, mode os.FileMode, depth int) entry {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	ino := fs.nextInode
	fs.nextInode++
	e := entry{name: name, mode: mode, depth: depth, inode: ino, fs: fs}
	return e
}

// register binds an inode to its finished entry. Separate from newEntry
// because the concrete struct embedding the entry is built afterwards.
func (fs *FS) register(e Entry) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.inodes[e.Inode()] = e
}

// removeInode unmaps an inode so later kernel requests see ENOENT.
func (fs *FS) removeInode(ino fuseops.InodeID) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.inodes, ino)
}

func (fs *FS) entryByInode(ino fuseops.InodeID) (Entry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	e, ok := fs.inodes[ino]
	if !ok {
		return nil, syscall.ENOENT
	}
	return e, nil
}

// indent renders the configured JSON indentation string.
func (fs *FS) indent() string {
	if fs.opt.JSONIndent <= 0 {
		return ""
	}
	return strings.Repeat(" ", fs.opt.JSONIndent)
}

// renderJSON pretty-prints a raw JSON document per configuration,
// newline-terminated.
func (fs *FS) renderJSON(raw json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	if ind := fs.indent(); ind != "" {
		if err := json.Indent(&buf, raw, "", ind); err != nil {
			return nil, errors.Wrap(err, "render metadata")
		}
	} else {
		if err := json.Compact(&buf, raw); err != nil {
			return nil, errors.Wrap(err, "render metadata")
		}
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// GetMetadata returns the metadata of any artifact, fetching and caching
// it on a miss. The store is idempotent, so concurrent misses for the
// same SWHID are safe; the row is re-read so every caller sees the same
// canonical bytes.
func (fs *FS) GetMetadata(ctx context.Context, id swhid.SWHID) (json.RawMessage, error) {
	cached, err := fs.cache.Metadata.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	raw, err := fs.graph.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fs.cache.Metadata.Set(ctx, id, raw); err != nil {
		return nil, err
	}
	return fs.cache.Metadata.Get(ctx, id)
}

// GetBlob returns the bytes of a content object, fetching and caching
// them on a miss.
func (fs *FS) GetBlob(ctx context.Context, id swhid.SWHID) ([]byte, error) {
	if id.Kind() != swhid.KindContent {
		return nil, errors.Wrapf(errWrongKind, "get blob %s", id)
	}

	cached, err := fs.cache.Blob.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		log.Debugf("found blob %s in cache", id)
		return cached, nil
	}

	blob, err := fs.content.GetBlob(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fs.cache.Blob.Set(ctx, id, blob); err != nil {
		return nil, err
	}
	return blob, nil
}

// GetHistory returns the ancestors of a revision in reverse topological
// order, loading the edge list into the history graph on a miss.
func (fs *FS) GetHistory(ctx context.Context, id swhid.SWHID) ([]swhid.SWHID, error) {
	if id.Kind() != swhid.KindRevision {
		return nil, errors.Wrapf(errWrongKind, "get history %s", id)
	}

	cached, err := fs.cache.History.Ancestors(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		log.Debugf("found history of %s in cache (%d ancestors)", id, len(cached))
		return cached, nil
	}
	// No ancestors is what a root commit legitimately looks like; only
	// refetch when the history was never loaded at all.
	loaded, err := fs.cache.History.Loaded(ctx, id)
	if err != nil {
		return nil, err
	}
	if loaded {
		return cached, nil
	}

	edges, err := fs.graph.GetHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fs.cache.History.Set(ctx, id, edges); err != nil {
		return nil, err
	}
	return fs.cache.History.Ancestors(ctx, id)
}

// GetVisits returns the visits of a percent-encoded origin URL, fetching
// and caching them on a miss or when the cached row went stale.
func (fs *FS) GetVisits(ctx context.Context, urlEncoded string) ([]backend.Visit, error) {
	cached, err := fs.cache.Visits.Get(ctx, urlEncoded)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return backend.ParseVisits(cached)
	}

	visits, err := fs.graph.GetVisits(ctx, urlEncoded)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(visits)
	if err != nil {
		return nil, errors.Wrap(err, "encode visits")
	}
	if err := fs.cache.Visits.Set(ctx, urlEncoded, raw); err != nil {
		return nil, err
	}
	return visits, nil
}

// Typed metadata accessors used by the entry tree.

func (fs *FS) contentMeta(ctx context.Context, id swhid.SWHID) (backend.ContentMeta, error) {
	raw, err := fs.GetMetadata(ctx, id)
	if err != nil {
		return backend.ContentMeta{}, err
	}
	return backend.ParseContentMeta(raw)
}

func (fs *FS) dirListing(ctx context.Context, id swhid.SWHID) ([]backend.DirEntry, error) {
	raw, err := fs.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	return backend.ParseDirListing(raw)
}

func (fs *FS) revMeta(ctx context.Context, id swhid.SWHID) (backend.RevMeta, error) {
	raw, err := fs.GetMetadata(ctx, id)
	if err != nil {
		return backend.RevMeta{}, err
	}
	return backend.ParseRevMeta(raw)
}

func (fs *FS) relMeta(ctx context.Context, id swhid.SWHID) (backend.RelMeta, error) {
	raw, err := fs.GetMetadata(ctx, id)
	if err != nil {
		return backend.RelMeta{}, err
	}
	return backend.ParseRelMeta(raw)
}

func (fs *FS) snpBranches(ctx context.Context, id swhid.SWHID) (backend.SnpBranches, error) {
	raw, err := fs.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	return backend.ParseSnpBranches(raw)
}

// entries returns the children of a directory, going through the direntry
// cache unless the directory is exempt. The returned slice is the stable
// snapshot readdir iterates by offset.
func (fs *FS) entries(ctx context.Context, d DirEntry) ([]Entry, error) {
	_, exempt := d.(uncachedDir)
	if !exempt {
		if v, ok := fs.cache.DirEntry.Get(uint64(d.Inode())); ok {
			return v.([]Entry), nil
		}
	}

	ents, err := d.ComputeEntries(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range ents {
		fs.register(e)
	}
	if !exempt {
		fs.cache.DirEntry.Set(uint64(d.Inode()), ents, len(ents))
	}
	return ents, nil
}

// lookup resolves one name inside a directory: the name regexp first,
// then the directory's own resolution, falling back to a scan of the
// computed children.
func (fs *FS) lookup(ctx context.Context, d DirEntry, name string) (Entry, error) {
	if !d.ValidName(name) {
		return nil, nil
	}
	if l, ok := d.(lookuper); ok {
		return l.Lookup(ctx, name)
	}
	ents, err := fs.entries(ctx, d)
	if err != nil {
		return nil, err
	}
	for _, e := range ents {
		if e.Name() == name {
			return e, nil
		}
	}
	return nil, nil
}

// attrs renders the stat attributes of an entry: constant timestamps
// (the process start), the mounting user's uid/gid, size from the entry.
func (fs *FS) attrs(ctx context.Context, e Entry) (fuseops.InodeAttributes, error) {
	size, err := e.Size(ctx)
	if err != nil {
		return fuseops.InodeAttributes{}, err
	}
	return fuseops.InodeAttributes{
		Size:  size,
		Nlink: 1,
		Mode:  e.Mode(),
		Atime: fs.startTime,
		Mtime: fs.startTime,
		Ctime: fs.startTime,
		Uid:   fs.uid,
		Gid:   fs.gid,
	}, nil
}

// errno maps internal errors onto the POSIX surface: wrong kinds are
// EINVAL, everything else that went wrong resolving an entry is ENOENT.
// Errno values pass through untouched.
func errno(err error) error {
	if err == nil {
		return nil
	}
	var e syscall.Errno
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, errWrongKind) {
		return syscall.EINVAL
	}
	return syscall.ENOENT
}

// direntType classifies an entry for readdir.
func direntType(e Entry) fuseutil.DirentType {
	switch {
	case e.Mode().IsDir():
		return fuseutil.DT_Directory
	case e.Mode()&os.ModeSymlink != 0:
		return fuseutil.DT_Link
	default:
		return fuseutil.DT_File
	}
}

// Kernel callbacks. Unsupported operations inherit ENOSYS from the
// embedded NotImplementedFileSystem; the filesystem is read-mostly so
// that is the bulk of the write path.

// StatFS answers statfs(2) with an empty (but successful) response.
func (fs *FS) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	return nil
}

// LookUpInode resolves a name within a parent directory.
func (fs *FS) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	parent, err := fs.entryByInode(op.Parent)
	if err != nil {
		return errno(err)
	}
	dir, ok := parent.(DirEntry)
	if !ok {
		return syscall.ENOENT
	}
	log.Debugf("lookup(parent=%q, inode=%d, name=%q)", parent.Name(), op.Parent, op.Name)

	child, err := fs.lookup(ctx, dir, op.Name)
	if err != nil {
		log.Errorf("cannot lookup %q in %q: %v", op.Name, parent.Name(), err)
		return errno(err)
	}
	if child == nil {
		return syscall.ENOENT
	}
	fs.register(child)

	attrs, err := fs.attrs(ctx, child)
	if err != nil {
		return errno(err)
	}
	op.Entry = fuseops.ChildInodeEntry{
		Child:      child.Inode(),
		Attributes: attrs,
	}
	return nil
}

// GetInodeAttributes answers stat(2).
func (fs *FS) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	e, err := fs.entryByInode(op.Inode)
	if err != nil {
		return errno(err)
	}
	attrs, err := fs.attrs(ctx, e)
	if err != nil {
		return errno(err)
	}
	op.Attributes = attrs
	return nil
}

// ForgetInode is a no-op: entries live for the whole session and the
// inode table is the source of truth, not the kernel's lookup counts.
func (fs *FS) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	return nil
}

// BatchForget is the batched variant of ForgetInode.
func (fs *FS) BatchForget(ctx context.Context, op *fuseops.BatchForgetOp) error {
	return nil
}

// OpenDir reuses the inode as directory handle.
func (fs *FS) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	log.Debugf("opendir(inode=%d)", op.Inode)
	if _, err := fs.entryByInode(op.Inode); err != nil {
		return errno(err)
	}
	op.Handle = fuseops.HandleID(op.Inode)
	return nil
}

// ReadDir emits children from the listing snapshot, one dirent per
// offset, until the kernel buffer is full.
func (fs *FS) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	e, err := fs.entryByInode(fuseops.InodeID(op.Handle))
	if err != nil {
		return errno(err)
	}
	dir, ok := e.(DirEntry)
	if !ok {
		return syscall.ENOTDIR
	}
	log.Debugf("readdir(dirname=%q, handle=%d, offset=%d)", e.Name(), op.Handle, op.Offset)

	ents, err := fs.entries(ctx, dir)
	if err != nil {
		log.Errorf("cannot readdir %q: %v", e.Name(), err)
		return errno(err)
	}
	if op.Offset > fuseops.DirOffset(len(ents)) {
		return nil
	}
	for i := int(op.Offset); i < len(ents); i++ {
		child := ents[i]
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], fuseutil.Dirent{
			Offset: fuseops.DirOffset(i + 1),
			Inode:  child.Inode(),
			Name:   child.Name(),
			Type:   direntType(child),
		})
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}

// ReleaseDirHandle is a no-op; handles alias inodes.
func (fs *FS) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	return nil
}

// OpenFile reuses the inode as file handle and forwards the per-entry
// caching flags.
func (fs *FS) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	e, err := fs.entryByInode(op.Inode)
	if err != nil {
		return errno(err)
	}
	f, ok := e.(FileEntry)
	if !ok {
		return syscall.ENOENT
	}
	log.Debugf("open(name=%q, inode=%d)", e.Name(), op.Inode)
	op.Handle = fuseops.HandleID(op.Inode)
	op.KeepPageCache = f.KeepPageCache()
	op.UseDirectIO = f.DirectIO()
	return nil
}

// ReadFile serves a slice of the entry's content.
func (fs *FS) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	e, err := fs.entryByInode(fuseops.InodeID(op.Handle))
	if err != nil {
		return errno(err)
	}
	f, ok := e.(FileEntry)
	if !ok {
		return syscall.ENOENT
	}
	log.Debugf("read(name=%q, handle=%d, offset=%d, size=%d)",
		e.Name(), op.Handle, op.Offset, op.Size)

	data, err := f.Content(ctx)
	if err != nil {
		log.Errorf("cannot read %q: %v", e.Name(), err)
		return errno(err)
	}
	if op.Offset >= int64(len(data)) {
		return nil
	}
	op.BytesRead = copy(op.Dst, data[op.Offset:])
	return nil
}

// ReleaseFileHandle is a no-op; handles alias inodes.
func (fs *FS) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	return nil
}

// FlushFile is a no-op on a read-only file.
func (fs *FS) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error {
	return nil
}

// ReadSymlink returns the link target bytes.
func (fs *FS) ReadSymlink(ctx context.Context, op *fuseops.ReadSymlinkOp) error {
	e, err := fs.entryByInode(op.Inode)
	if err != nil {
		return errno(err)
	}
	s, ok := e.(SymlinkEntry)
	if !ok {
		return syscall.ENOENT
	}
	log.Debugf("readlink(name=%q, inode=%d)", e.Name(), op.Inode)
	op.Target = s.Target()
	return nil
}

// Unlink evicts a cached artifact; only the cache shards support it.
func (fs *FS) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	parent, err := fs.entryByInode(op.Parent)
	if err != nil {
		return errno(err)
	}
	u, ok := parent.(unlinker)
	if !ok {
		return syscall.ENOENT
	}
	log.Debugf("unlink(parent=%q, name=%q)", parent.Name(), op.Name)
	if err := u.Unlink(ctx, op.Name); err != nil {
		log.Errorf("cannot unlink %q: %v", op.Name, err)
		return errno(err)
	}
	return nil
}

// xattrSWHID is the only extended attribute the filesystem serves.
const xattrSWHID = "user.swhid"

// GetXattr serves "user.swhid" on entries that carry an identifier; it is
// mostly useful when traversing source trees.
func (fs *FS) GetXattr(ctx context.Context, op *fuseops.GetXattrOp) error {
	e, err := fs.entryByInode(op.Inode)
	if err != nil {
		return errno(err)
	}
	carrier, ok := e.(swhidCarrier)
	if !ok || op.Name != xattrSWHID {
		return syscall.ENOSYS
	}
	value := []byte(carrier.swhidValue())
	op.BytesRead = len(value)
	if len(op.Dst) == 0 {
		return nil
	}
	if len(op.Dst) < len(value) {
		return syscall.ERANGE
	}
	copy(op.Dst, value)
	return nil
}

// ListXattr advertises "user.swhid" where available.
func (fs *FS) ListXattr(ctx context.Context, op *fuseops.ListXattrOp) error {
	e, err := fs.entryByInode(op.Inode)
	if err != nil {
		return errno(err)
	}
	if _, ok := e.(swhidCarrier); !ok {
		return nil
	}
	value := append([]byte(xattrSWHID), 0)
	op.BytesRead = len(value)
	if len(op.Dst) == 0 {
		return nil
	}
	if len(op.Dst) < len(value) {
		return syscall.ERANGE
	}
	copy(op.Dst, value)
	return nil
}
