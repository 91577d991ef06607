package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "cvsimport",
	Short: "Import a CVS repository's history into Git",
	Long: `cvsimport reconstructs a Git repository from a CVS module's RCS ",v"
files: it parses each file's revision tree, groups the per-file commits CVS
never grouped for you into atomic changesets using a quiet-period
heuristic, and replays them onto a Git repository in commit order.

Only the main line (HEAD/trunk) is imported; branches and tags are not
reconstructed.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
}

// handleError reports a non-nil err to stderr and exits 1; serve's init
// uses it when marking its --target flag as required fails.
func handleError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
