// Package umount implements `swhfs umount`.
package umount

import (
	"os/exec"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/softwareheritage/swhfs/cmd"
)

func init() {
	cmd.Root.AddCommand(commandDefinition)
}

var commandDefinition = &cobra.Command{
	Use:   "umount PATH",
	Short: "Unmount a mounted Software Heritage archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(command *cobra.Command, args []string) error {
		return unmount(args[0])
	},
}

// unmount delegates to the host's fusermount utility, preferring the
// FUSE 3 binary.
func unmount(path string) error {
	var tool string
	for _, candidate := range []string{"fusermount3", "fusermount"} {
		if found, err := exec.LookPath(candidate); err == nil {
			tool = found
			break
		}
	}
	if tool == "" {
		return errors.New("cannot find fusermount in PATH")
	}
	out, err := exec.Command(tool, "-u", path).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "%s -u %s: %s", tool, path, out)
	}
	return nil
}
