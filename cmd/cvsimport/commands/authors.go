package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opencvs/cvsimport/internal/cvsimport/ingest"
	"github.com/opencvs/cvsimport/internal/cvsimport/scanner"
	"github.com/opencvs/cvsimport/internal/cvsimport/store"
	"github.com/opencvs/cvsimport/internal/mapping"
)

var authorsCmd = &cobra.Command{
	Use:   "authors",
	Short: "Manage author mappings",
	Long: `Commands for extracting CVS author usernames so they can be mapped to
Git "Name <email>" identities before an import.`,
}

var authorsExtractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract unique CVS authors from a module",
	Long: `Extract every unique CVS commit author from source, in either plain
text (one per line) or YAML ready to paste under a config file's
mapping.authors key.`,
	RunE: runAuthorsExtract,
}

var (
	authorsSource string
	authorsFormat string
)

func init() {
	rootCmd.AddCommand(authorsCmd)
	authorsCmd.AddCommand(authorsExtractCmd)

	authorsExtractCmd.Flags().StringVarP(&authorsSource, "source", "s", "", "Path to source CVS module")
	authorsExtractCmd.Flags().StringVarP(&authorsFormat, "format", "f", "text", "Output format (text or yaml)")
	if err := authorsExtractCmd.MarkFlagRequired("source"); err != nil {
		fmt.Fprintf(os.Stderr, "Error marking flag as required: %v\n", err)
		os.Exit(1)
	}
}

func runAuthorsExtract(cmd *cobra.Command, args []string) error {
	if authorsFormat != "text" && authorsFormat != "yaml" {
		return fmt.Errorf("unsupported format: %s (supported: text, yaml)", authorsFormat)
	}

	result := scanner.NewValidator().Validate(authorsSource)
	if !result.Valid {
		if len(result.Errors) > 0 {
			return fmt.Errorf("repository validation failed: %s", result.Errors[0].Message)
		}
		return fmt.Errorf("repository validation failed")
	}

	dbPath, err := os.MkdirTemp("", "cvsimport-authors-*")
	if err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(dbPath)

	st, err := store.Open(dbPath + "/meta.db")
	if err != nil {
		return fmt.Errorf("open scratch metadata store: %w", err)
	}
	defer st.Close()

	if _, err := ingest.Scan(authorsSource, st); err != nil {
		return fmt.Errorf("scan source: %w", err)
	}
	if _, err := ingest.Group(st, 0); err != nil {
		return fmt.Errorf("group changes: %w", err)
	}

	changesets, err := st.ChangesetsByStartTime()
	if err != nil {
		return fmt.Errorf("load changesets: %w", err)
	}

	extractor := mapping.NewAuthorExtractor()
	for _, cs := range changesets {
		extractor.Add(cs.Author)
	}

	switch authorsFormat {
	case "text":
		for _, author := range extractor.List() {
			fmt.Println(author)
		}
	case "yaml":
		output, err := yaml.Marshal(extractor.GenerateTemplate())
		if err != nil {
			return fmt.Errorf("failed to generate YAML: %w", err)
		}
		fmt.Print(string(output))
	}

	return nil
}
