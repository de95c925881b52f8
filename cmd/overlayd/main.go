package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version is the version of this command.
const Version = "v0.0.1"

var (
	rootCmd = &cobra.Command{
		Use: "overlayd",
	}

	logLevel  = pflag.String("log", "", "set log level")
	dumpState = pflag.String("dump-state", "", "write a YAML debug-state snapshot to this path on exit")
)

func main() {
	pflag.Parse()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
