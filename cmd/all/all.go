// Package all imports every subcommand so the root binary registers
// them.
package all

import (
	// Subcommand registration happens in each package's init.
	_ "github.com/softwareheritage/swhfs/cmd/clean"
	_ "github.com/softwareheritage/swhfs/cmd/mount"
	_ "github.com/softwareheritage/swhfs/cmd/umount"
	_ "github.com/softwareheritage/swhfs/cmd/version"
)
