// Package ingest bridges the scanner, RCS parser, changeset generator and
// metadata store into the two operations the clone/pull commands need:
// parsing newly-changed ",v" files into Change rows, and grouping the
// resulting free changes into Changesets ready for export.
package ingest

import (
	"fmt"
	"os"
	"time"

	"github.com/opencvs/cvsimport/internal/cvsimport/changeset"
	"github.com/opencvs/cvsimport/internal/cvsimport/cvserr"
	"github.com/opencvs/cvsimport/internal/cvsimport/model"
	"github.com/opencvs/cvsimport/internal/cvsimport/rcs"
	"github.com/opencvs/cvsimport/internal/cvsimport/scanner"
)

// Store is the subset of store.Store the ingest pipeline needs.
type Store interface {
	scanner.StatProvider
	UpdateStatcache(entries []model.StatcacheEntry) error
	AddChange(c *model.Change) error
	ChangesByTimestamp() ([]*model.Change, error)
	AddChangeset(cs *model.Changeset) (int64, error)
}

// Stats summarizes one Scan or Group call, for the analyze and clone/pull
// commands' verbose output.
type Stats struct {
	FilesScanned    int
	FilesParsed     int
	ChangesAdded    int
	ChangesetsAdded int
}

// Scan walks root, re-parses every ",v" file the statcache flags as
// changed, and records the resulting Changes and an updated statcache.
// It does not group Changes into Changesets; call Group for that.
func Scan(root string, st Store) (Stats, error) {
	var stats Stats

	candidates, err := scanner.New(root).Scan(st)
	if err != nil {
		return stats, fmt.Errorf("ingest: scanning %s: %w", root, err)
	}
	stats.FilesScanned = len(candidates)

	var fresh []model.StatcacheEntry
	for _, cand := range candidates {
		if !cand.NeedsParse {
			continue
		}

		info, err := os.Stat(cand.Path)
		if err != nil {
			return stats, fmt.Errorf("ingest: stat %s: %w", cand.Path, err)
		}

		rf, err := parseRCSFile(cand.Path)
		if err != nil {
			return stats, &cvserr.RcsParseError{Path: cand.Path, Reason: err.Error()}
		}

		changes, err := rf.MainLineChanges()
		if err != nil {
			return stats, &cvserr.RcsParseError{Path: cand.Path, Reason: err.Error()}
		}

		for _, c := range changes {
			change := &model.Change{
				Filename:   cand.Filename,
				Revision:   c.Revision,
				Timestamp:  c.Timestamp,
				Author:     c.Author,
				Log:        c.Log,
				Filestatus: model.Filestatus(c.Filestatus),
				State:      c.State,
				Mode:       rf.Expand,
			}
			if err := st.AddChange(change); err != nil {
				return stats, fmt.Errorf("ingest: recording %s %s: %w", cand.Filename, c.Revision, err)
			}
			stats.ChangesAdded++
		}
		stats.FilesParsed++

		fresh = append(fresh, model.StatcacheEntry{
			Path:  cand.Path,
			Mtime: info.ModTime(),
			Size:  info.Size(),
		})
	}

	if len(fresh) > 0 {
		if err := st.UpdateStatcache(fresh); err != nil {
			return stats, fmt.Errorf("ingest: updating statcache: %w", err)
		}
	}

	return stats, nil
}

// Group feeds every change not yet attached to a changeset through a
// quiet-period Generator and persists the resulting Changesets. It flushes
// any changeset still open at the end of the run, since a batch run has no
// later Feed call that would otherwise close it.
func Group(st Store, quietPeriod time.Duration) (Stats, error) {
	var stats Stats

	changes, err := st.ChangesByTimestamp()
	if err != nil {
		return stats, fmt.Errorf("ingest: loading pending changes: %w", err)
	}

	gen := changeset.New(quietPeriod)
	var ready []*model.Changeset
	for _, c := range changes {
		ready = append(ready, gen.Feed(c)...)
	}
	ready = append(ready, gen.Flush(0)...)

	for _, cs := range ready {
		if _, err := st.AddChangeset(cs); err != nil {
			return stats, fmt.Errorf("ingest: recording changeset: %w", err)
		}
		stats.ChangesetsAdded++
	}

	return stats, nil
}

func parseRCSFile(path string) (*rcs.RCSFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return rcs.NewRCSParser(f).Parse()
}
