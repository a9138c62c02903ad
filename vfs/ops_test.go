package vfs

import (
	"context"
	"syscall"
	"testing"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The callback layer is exercised directly through fuseops structs, the
// way the kernel dispatcher drives it.

func TestOpsLookupAndGetattr(t *testing.T) {
	fs, graph, content := newTestFS(t)
	seedLinux(t, graph, content)
	ctx := context.Background()

	lookup := &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "archive"}
	require.NoError(t, fs.LookUpInode(ctx, lookup))
	assert.True(t, lookup.Entry.Attributes.Mode.IsDir())

	inner := &fuseops.LookUpInodeOp{Parent: lookup.Entry.Child, Name: linuxReadme}
	require.NoError(t, fs.LookUpInode(ctx, inner))
	assert.Equal(t, uint64(727), inner.Entry.Attributes.Size)

	getattr := &fuseops.GetInodeAttributesOp{Inode: inner.Entry.Child}
	require.NoError(t, fs.GetInodeAttributes(ctx, getattr))
	assert.Equal(t, uint64(727), getattr.Attributes.Size)
	assert.Equal(t, fs.startTime, getattr.Attributes.Mtime)

	missing := &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "nonsense"}
	assert.Equal(t, syscall.ENOENT, fs.LookUpInode(ctx, missing))
}

func TestOpsReadDir(t *testing.T) {
	fs, graph, content := newTestFS(t)
	seedLinux(t, graph, content)
	ctx := context.Background()

	open := &fuseops.OpenDirOp{Inode: fuseops.RootInodeID}
	require.NoError(t, fs.OpenDir(ctx, open))
	assert.Equal(t, fuseops.HandleID(fuseops.RootInodeID), open.Handle)

	read := &fuseops.ReadDirOp{
		Inode:  fuseops.RootInodeID,
		Handle: open.Handle,
		Dst:    make([]byte, 4096),
	}
	require.NoError(t, fs.ReadDir(ctx, read))
	assert.Greater(t, read.BytesRead, 0)

	// Reading from past the end yields nothing.
	past := &fuseops.ReadDirOp{
		Inode:  fuseops.RootInodeID,
		Handle: open.Handle,
		Offset: 100,
		Dst:    make([]byte, 4096),
	}
	require.NoError(t, fs.ReadDir(ctx, past))
	assert.Zero(t, past.BytesRead)
}

func TestOpsOpenAndReadFile(t *testing.T) {
	fs, graph, content := newTestFS(t)
	seedLinux(t, graph, content)
	ctx := context.Background()

	file := lookupPath(t, fs, "archive/"+linuxReadme)

	open := &fuseops.OpenFileOp{Inode: file.Inode()}
	require.NoError(t, fs.OpenFile(ctx, open))
	assert.True(t, open.KeepPageCache)
	assert.False(t, open.UseDirectIO)

	read := &fuseops.ReadFileOp{
		Inode:  file.Inode(),
		Handle: open.Handle,
		Offset: 0,
		Size:   64,
		Dst:    make([]byte, 64),
	}
	require.NoError(t, fs.ReadFile(ctx, read))
	assert.Equal(t, 64, read.BytesRead)
	assert.Equal(t, "Linux kernel", string(read.Dst[:12]))

	// Offsets past EOF read zero bytes.
	past := &fuseops.ReadFileOp{
		Inode:  file.Inode(),
		Handle: open.Handle,
		Offset: 100000,
		Size:   64,
		Dst:    make([]byte, 64),
	}
	require.NoError(t, fs.ReadFile(ctx, past))
	assert.Zero(t, past.BytesRead)
}

func TestOpsReadSymlink(t *testing.T) {
	fs, graph, content := newTestFS(t)
	seedLinux(t, graph, content)
	ctx := context.Background()

	link := lookupPath(t, fs, "archive/"+linuxRev+"/root")
	op := &fuseops.ReadSymlinkOp{Inode: link.Inode()}
	require.NoError(t, fs.ReadSymlink(ctx, op))
	assert.Equal(t, "../../archive/"+linuxDir, op.Target)

	// readlink of a regular file is ENOENT.
	file := lookupPath(t, fs, "archive/"+linuxReadme)
	bad := &fuseops.ReadSymlinkOp{Inode: file.Inode()}
	assert.Equal(t, syscall.ENOENT, fs.ReadSymlink(ctx, bad))
}

func TestOpsXattr(t *testing.T) {
	fs, graph, content := newTestFS(t)
	seedLinux(t, graph, content)
	ctx := context.Background()

	file := lookupPath(t, fs, "archive/"+linuxReadme)

	// Size probe first, then the actual read.
	probe := &fuseops.GetXattrOp{Inode: file.Inode(), Name: "user.swhid"}
	require.NoError(t, fs.GetXattr(ctx, probe))
	assert.Equal(t, len(linuxReadme), probe.BytesRead)

	get := &fuseops.GetXattrOp{
		Inode: file.Inode(),
		Name:  "user.swhid",
		Dst:   make([]byte, probe.BytesRead),
	}
	require.NoError(t, fs.GetXattr(ctx, get))
	assert.Equal(t, linuxReadme, string(get.Dst[:get.BytesRead]))

	short := &fuseops.GetXattrOp{
		Inode: file.Inode(),
		Name:  "user.swhid",
		Dst:   make([]byte, 4),
	}
	assert.Equal(t, syscall.ERANGE, fs.GetXattr(ctx, short))

	other := &fuseops.GetXattrOp{Inode: file.Inode(), Name: "user.other"}
	assert.Equal(t, syscall.ENOSYS, fs.GetXattr(ctx, other))

	// Entries without an identifier have no xattrs at all.
	readme := lookupPath(t, fs, "README")
	none := &fuseops.GetXattrOp{Inode: readme.Inode(), Name: "user.swhid"}
	assert.Equal(t, syscall.ENOSYS, fs.GetXattr(ctx, none))

	list := &fuseops.ListXattrOp{Inode: file.Inode(), Dst: make([]byte, 64)}
	require.NoError(t, fs.ListXattr(ctx, list))
	assert.Equal(t, "user.swhid\x00", string(list.Dst[:list.BytesRead]))
}

func TestOpsUnlinkOutsideCacheShards(t *testing.T) {
	fs, graph, content := newTestFS(t)
	seedLinux(t, graph, content)
	ctx := context.Background()

	dir := lookupPath(t, fs, "archive/"+linuxDir)
	op := &fuseops.UnlinkOp{Parent: dir.Inode(), Name: "README"}
	assert.Equal(t, syscall.ENOENT, fs.Unlink(ctx, op))
}
