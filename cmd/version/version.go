// Package version implements `swhfs version`.
package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/softwareheritage/swhfs/cmd"
)

func init() {
	cmd.Root.AddCommand(commandDefinition)
}

var commandDefinition = &cobra.Command{
	Use:   "version",
	Short: "Show the version number",
	Args:  cobra.NoArgs,
	Run: func(command *cobra.Command, args []string) {
		fmt.Printf("swhfs %s\n", cmd.Version)
	},
}
