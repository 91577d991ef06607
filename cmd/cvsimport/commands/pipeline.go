package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/opencvs/cvsimport/internal/cvsimport/export"
	"github.com/opencvs/cvsimport/internal/cvsimport/ingest"
	"github.com/opencvs/cvsimport/internal/cvsimport/store"
	"github.com/opencvs/cvsimport/internal/mapping"
	"github.com/opencvs/cvsimport/internal/progress"
	"github.com/opencvs/cvsimport/internal/web"
)

// metaDBPath is where a target repository's metadata database lives,
// inside the importer's own private directory alongside the bare
// repository fast-import writes into.
func metaDBPath(targetPath string) string {
	return filepath.Join(targetPath, ".cvsimport", "meta.db")
}

// runPipeline scans config.Source.Path for changed RCS files, groups the
// resulting changes into changesets, and exports every changeset not yet
// marked onto config.Target.Path. It is shared by clone (fresh target) and
// pull (existing target); the caller is responsible for target directory
// lifecycle (clone's remove-on-failure rule in particular).
func runPipeline(config *ConfigFile, runID string, reporters *web.ReporterRegistry) error {
	st, err := store.Open(metaDBPath(config.Target.Path))
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}
	defer st.Close()

	run := &store.Run{
		RunID:      runID,
		SourcePath: config.Source.Path,
		TargetPath: config.Target.Path,
		Status:     "scanning",
	}
	if err := st.SaveRun(run); err != nil {
		return fmt.Errorf("save run record: %w", err)
	}

	scanStats, err := ingest.Scan(config.Source.Path, st)
	if err != nil {
		run.Status = "failed"
		_ = st.SaveRun(run)
		return fmt.Errorf("scan source: %w", err)
	}
	if config.Options.Verbose {
		fmt.Printf("Scanned %d file(s), parsed %d, recorded %d change(s)\n",
			scanStats.FilesScanned, scanStats.FilesParsed, scanStats.ChangesAdded)
	}

	run.Status = "grouping"
	if err := st.SaveRun(run); err != nil {
		return fmt.Errorf("save run record: %w", err)
	}

	groupStats, err := ingest.Group(st, config.QuietPeriodDuration())
	if err != nil {
		run.Status = "failed"
		_ = st.SaveRun(run)
		return fmt.Errorf("group changes into changesets: %w", err)
	}
	if config.Options.Verbose {
		fmt.Printf("Grouped into %d changeset(s)\n", groupStats.ChangesetsAdded)
	}

	run.Status = "exporting"
	if err := st.SaveRun(run); err != nil {
		return fmt.Errorf("save run record: %w", err)
	}

	pending, err := st.UnmarkedChangesets()
	if err != nil {
		return fmt.Errorf("load pending changesets: %w", err)
	}

	reporter := progress.NewReporter(len(pending))
	if reporters != nil {
		reporters.Register(runID, reporter)
		defer reporters.Unregister(runID)
	}
	reporter.Start()
	reporter.SetOperation("exporting")

	sink := export.NewExecSink(config.Target.Path, "")
	blob := ingest.NewCheckout(config.Source.Path)

	var authors *mapping.AuthorMap
	if config.Options.StopOnUnknownAuthor {
		authors = mapping.NewAuthorMapWithDefault(config.Mapping.Authors, "")
	} else {
		authors = mapping.NewAuthorMap(config.Mapping.Authors)
	}

	chunkSize := config.Options.ChunkSize
	committed := 0
	exporter := export.New(st, sink, blob, export.Options{
		Authors:             authors,
		StopOnUnknownAuthor: config.Options.StopOnUnknownAuthor,
		Progress: progressFunc(func(id int64, mark string) {
			committed++
			run.LastChangesetID = id
			if chunkSize > 0 && committed%chunkSize == 0 {
				_ = st.SaveRun(run)
			}
			reporter.Increment()
		}),
	})

	runErr := exporter.Run(context.Background())
	if runErr != nil {
		run.Status = "failed"
		_ = st.SaveRun(run)
		return runErr
	}

	run.Status = "completed"
	if err := st.SaveRun(run); err != nil {
		return fmt.Errorf("save run record: %w", err)
	}

	return nil
}

// progressFunc adapts a plain function to export.Progress.
type progressFunc func(id int64, mark string)

func (f progressFunc) ChangesetCommitted(id int64, mark string) { f(id, mark) }

// newRunID returns a fresh run identifier for a clone/pull invocation.
func newRunID() string {
	return uuid.NewString()
}
