package vfs

import (
	"context"
	stdlog "log"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/softwareheritage/swhfs/metrics"
	"github.com/softwareheritage/swhfs/swhid"
)

// fsName is how the mount shows up in /proc/mounts.
const fsName = "swhfs"

// Prefetch warms the metadata cache for the SWHIDs given on the command
// line, concurrently. Failures are logged and tolerated: a bad SWHID must
// not prevent the mount.
func (fs *FS) Prefetch(ctx context.Context, ids []swhid.SWHID) {
	g, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if _, err := fs.GetMetadata(ctx, id); err != nil {
				log.Errorf("cannot prefetch object %s: %v", id, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Serve mounts the filesystem at path, prefetches the given SWHIDs and
// blocks until the kernel connection goes away (unmount or ctx
// cancellation). Backends are shut down and wait-time counters reported
// on the way out.
func Serve(ctx context.Context, fs *FS, path string, prefetch []swhid.SWHID) error {
	cfg := &fuse.MountConfig{
		FSName:      fsName,
		Subtype:     fsName,
		ErrorLogger: stdlog.New(log.StandardLogger().WriterLevel(log.ErrorLevel), "", 0),
	}
	if log.IsLevelEnabled(log.TraceLevel) {
		cfg.DebugLogger = stdlog.New(log.StandardLogger().WriterLevel(log.TraceLevel), "", 0)
	}

	// Warm the cache before the mount is announced.
	fs.Prefetch(ctx, prefetch)

	mfs, err := fuse.Mount(path, fuseutil.NewFileSystemServer(fs), cfg)
	if err != nil {
		return err
	}
	log.Infof("mounted %s at %s", fsName, path)

	go func() {
		<-ctx.Done()
		// Triggers Join below; a busy mountpoint keeps the filesystem up
		// and the user has to retry.
		if err := fuse.Unmount(path); err != nil {
			log.Errorf("cannot unmount %s: %v", path, err)
		}
	}()

	err = mfs.Join(context.Background())
	fs.Shutdown()
	metrics.Report()
	log.Infof("unmounted %s", path)
	return err
}
