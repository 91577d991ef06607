package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cloneCmd = &cobra.Command{
	Use:   "clone",
	Short: "Import a CVS module into a fresh Git repository",
	Long: `Clone performs a full import: it scans every ",v" file under
source.path, reconstructs the complete changeset history, and replays it
onto a newly created bare Git repository at target.path.

If the import fails partway through, target.path is removed so a retry
starts clean, unless --incremental is given (for a target the caller wants
kept, e.g. one seeded from a previous partial run).`,
	RunE: runClone,
}

var (
	cloneConfigFile  string
	cloneIncremental bool
)

func init() {
	rootCmd.AddCommand(cloneCmd)

	cloneCmd.Flags().StringVarP(&cloneConfigFile, "config", "c", "", "Path to configuration file (required)")
	cloneCmd.Flags().BoolVar(&cloneIncremental, "incremental", false, "Do not remove target.path on failure")
	if err := cloneCmd.MarkFlagRequired("config"); err != nil {
		fmt.Fprintf(os.Stderr, "Error marking flag as required: %v\n", err)
		os.Exit(1)
	}
}

func runClone(cmd *cobra.Command, args []string) error {
	config, err := loadConfigFile(cloneConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if _, err := os.Stat(config.Target.Path); err == nil {
		return fmt.Errorf("target already exists: %s (use pull to import further changes)", config.Target.Path)
	}

	fmt.Printf("Cloning %s into %s\n", config.Source.Path, config.Target.Path)

	runID := newRunID()
	if err := runPipeline(config, runID, nil); err != nil {
		if !cloneIncremental {
			if rmErr := os.RemoveAll(config.Target.Path); rmErr != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to remove %s after failed clone: %v\n", config.Target.Path, rmErr)
			}
		}
		return fmt.Errorf("clone failed: %w", err)
	}

	fmt.Println("Clone completed successfully.")
	return nil
}
