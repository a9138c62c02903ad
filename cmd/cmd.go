// Package cmd implements the swhfs command line: one package per
// subcommand, registered onto the root command from their init
// functions.
package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/softwareheritage/swhfs/config"
)

// Version of the program, overridable at link time.
var Version = "0.2.0-dev"

var (
	configPath string
	verbose    int
	logFile    string
)

// Root is the swhfs command; subcommands hang off it.
var Root = &cobra.Command{
	Use:   "swhfs",
	Short: "Software Heritage virtual filesystem",
	Long: `swhfs exposes the Software Heritage archive as a POSIX filesystem.

Mount an empty directory and browse any archived source tree, commit
graph or origin history through its Software Heritage identifier, as if
the whole archive were checked out locally. Data is fetched lazily from
the configured backends and cached on disk.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

func init() {
	flags := Root.PersistentFlags()
	flags.StringVarP(&configPath, "config", "C", "",
		"YAML configuration file (default $SWH_CONFIG_FILE)")
	flags.CountVarP(&verbose, "verbose", "v",
		"print debug information (repeat for kernel-level traces)")
	flags.StringVar(&logFile, "log-file", "",
		"append logs to this file instead of stderr")
}

func setupLogging() {
	switch {
	case verbose >= 2:
		log.SetLevel(log.TraceLevel)
	case verbose == 1:
		log.SetLevel(log.DebugLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("cannot open log file: %v", err)
		}
		log.SetOutput(f)
	}
}

// LoadConfig reads the configuration honoring the --config flag.
func LoadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// LogFile returns the --log-file flag, for the daemonised child to keep
// logging to the same place.
func LogFile() string { return logFile }

// Main runs the root command; it is the program entry point.
func Main() {
	if err := Root.Execute(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
