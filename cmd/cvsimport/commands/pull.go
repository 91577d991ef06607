package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Import changes made to a CVS module since the last clone or pull",
	Long: `Pull re-scans source.path for ",v" files changed since the last run
(tracked by the target's statcache), reconstructs any new changesets, and
replays them onto the existing target.path repository.

--resume re-enters an interrupted run at the same target without
re-exporting changesets that already have a mark.`,
	RunE: runPull,
}

var (
	pullConfigFile string
	pullResume     bool
)

func init() {
	rootCmd.AddCommand(pullCmd)

	pullCmd.Flags().StringVarP(&pullConfigFile, "config", "c", "", "Path to configuration file (required)")
	pullCmd.Flags().BoolVarP(&pullResume, "resume", "r", false, "Resume an interrupted pull")
	if err := pullCmd.MarkFlagRequired("config"); err != nil {
		fmt.Fprintf(os.Stderr, "Error marking flag as required: %v\n", err)
		os.Exit(1)
	}
}

func runPull(cmd *cobra.Command, args []string) error {
	config, err := loadConfigFile(pullConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if _, err := os.Stat(config.Target.Path); err != nil {
		return fmt.Errorf("target does not exist: %s (use clone for the first import)", config.Target.Path)
	}

	fmt.Printf("Pulling changes from %s into %s\n", config.Source.Path, config.Target.Path)

	runID := newRunID()
	if err := runPipeline(config, runID, nil); err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}

	fmt.Println("Pull completed successfully.")
	return nil
}
