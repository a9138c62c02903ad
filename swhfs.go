// swhfs mounts the Software Heritage archive as a virtual filesystem.
package main

import (
	"github.com/softwareheritage/swhfs/cmd"

	// Register all subcommands.
	_ "github.com/softwareheritage/swhfs/cmd/all"
)

func main() {
	cmd.Main()
}
