// Package mount implements `swhfs mount`.
package mount

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	daemon "github.com/sevlyar/go-daemon"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/softwareheritage/swhfs/backend"
	"github.com/softwareheritage/swhfs/backend/compressed"
	"github.com/softwareheritage/swhfs/backend/objstorage"
	"github.com/softwareheritage/swhfs/backend/webapi"
	"github.com/softwareheritage/swhfs/cache"
	"github.com/softwareheritage/swhfs/cmd"
	"github.com/softwareheritage/swhfs/config"
	"github.com/softwareheritage/swhfs/swhid"
	"github.com/softwareheritage/swhfs/vfs"
)

var foreground bool

func init() {
	flags := commandDefinition.Flags()
	flags.BoolVarP(&foreground, "foreground", "f", false,
		"run in the foreground instead of daemonizing")
	cmd.Root.AddCommand(commandDefinition)
}

var commandDefinition = &cobra.Command{
	Use:   "mount PATH [SWHID]...",
	Short: "Mount the Software Heritage archive at the given mountpoint",
	Long: `Mount the Software Heritage archive at PATH. Any SWHIDs given as extra
arguments are prefetched into the metadata cache before the mount is
announced. Without --foreground the process daemonizes before mounting
and the parent exits as soon as the child is started; unmount with
"swhfs umount PATH" or fusermount -u.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(command *cobra.Command, args []string) error {
		path := args[0]
		ids := make([]swhid.SWHID, 0, len(args)-1)
		for _, arg := range args[1:] {
			id, err := swhid.Parse(arg)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}

		cfg, err := cmd.LoadConfig()
		if err != nil {
			return err
		}

		if !foreground {
			dctx := &daemon.Context{
				LogFileName: cmd.LogFile(),
				Umask:       0o22,
			}
			child, err := dctx.Reborn()
			if err != nil {
				return err
			}
			if child != nil {
				// Parent: the mount is the child's business now.
				return nil
			}
			defer func() { _ = dctx.Release() }()
		}

		return run(cfg, path, ids)
	},
}

// run opens the caches, builds the backends per configuration and serves
// the filesystem until unmount.
func run(cfg *config.Config, path string, ids []swhid.SWHID) error {
	budget, err := cfg.DirEntryBudget()
	if err != nil {
		return err
	}
	for _, p := range []string{cfg.Cache.Metadata.Path, cfg.Cache.Blob.Path} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
	}

	c, err := cache.Open(cache.Options{
		MetadataPath:     cfg.Cache.Metadata.Path,
		MetadataInMemory: cfg.Cache.Metadata.InMemory,
		BlobPath:         cfg.Cache.Blob.Path,
		BlobInMemory:     cfg.Cache.Blob.InMemory,
		BlobBypass:       cfg.Cache.Blob.Bypass,
		DirEntryMaxBytes: budget,
	})
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	graph, content, err := buildBackends(ctx, cfg)
	if err != nil {
		return err
	}

	fs := vfs.New(c, graph, content, vfs.Options{JSONIndent: cfg.Indent()})
	return vfs.Serve(ctx, fs, path, ids)
}

// buildBackends selects the backends: a compressed graph when one is
// configured (with its pre-mount health check), the Web API otherwise;
// the storage services for content when configured, the Web API
// otherwise. The Web API client is shared when it serves both roles.
func buildBackends(ctx context.Context, cfg *config.Config) (backend.GraphBackend, backend.ContentBackend, error) {
	web := webapi.New(cfg.WebAPI.URL, cfg.WebAPI.AuthToken)

	var graph backend.GraphBackend = web
	if cfg.Graph != nil && cfg.Graph.GRPCURL != "" {
		g, err := compressed.New(ctx, cfg.Graph.GRPCURL)
		if err != nil {
			return nil, nil, err
		}
		graph = g
		log.Infof("using compressed graph at %s", cfg.Graph.GRPCURL)
	}

	var content backend.ContentBackend = web
	if cfg.Content != nil && cfg.Content.Storage != nil {
		objURL := ""
		if cfg.Content.ObjStorage != nil {
			objURL = cfg.Content.ObjStorage.URL
		}
		content = objstorage.New(cfg.Content.Storage.URL, objURL)
		log.Infof("using storage at %s for contents", cfg.Content.Storage.URL)
	}
	return graph, content, nil
}
