// Package clean implements `swhfs clean`.
package clean

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/softwareheritage/swhfs/cmd"
)

func init() {
	cmd.Root.AddCommand(commandDefinition)
}

var commandDefinition = &cobra.Command{
	Use:   "clean",
	Short: "Delete the on-disk caches",
	Long: `Delete the metadata and blob databases under the cache directory,
freeing all disk space used by cached archive data. Selective eviction
is available through the cache/ directory of a live mount instead.`,
	Args: cobra.NoArgs,
	RunE: func(command *cobra.Command, args []string) error {
		cfg, err := cmd.LoadConfig()
		if err != nil {
			return err
		}
		for _, path := range []string{cfg.Cache.Metadata.Path, cfg.Cache.Blob.Path} {
			if path == "" {
				continue
			}
			// WAL mode leaves sidecar files next to the database.
			for _, p := range []string{path, path + "-wal", path + "-shm"} {
				if err := os.Remove(p); err != nil {
					if os.IsNotExist(err) {
						continue
					}
					return err
				}
				log.Infof("removed %s", p)
			}
		}
		return nil
	},
}
