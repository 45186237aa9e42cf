// Package cmd wires the pack/unpack/list subcommands into a cobra root
// command: each subcommand file registers itself on Root from an init()
// function.
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Root is the top-level command every subcommand attaches itself to.
var Root = &cobra.Command{
	Use:   "rstf",
	Short: "Pack, unpack, and inspect single-file encrypted archive containers",
	Long: `rstf turns a file or directory tree into a single container that is
simultaneously compressed and authenticated-encrypted with a password,
and reverses the process.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Log is the package-wide logger, configured once in Execute.
var Log = logrus.New()

// Execute runs the root command and maps any returned error onto process
// exit code 1, printing its one-line context chain to standard error
// first. It returns only when the command succeeds.
func Execute() {
	Log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if err := Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rstf:", err)
		os.Exit(1)
	}
}

// run wraps a subcommand body, printing any returned error through Log and
// exiting non-zero.
func run(f func() error) {
	if err := f(); err != nil {
		Log.Error(err)
		os.Exit(1)
	}
}
