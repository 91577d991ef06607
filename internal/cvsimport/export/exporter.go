package export

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync/atomic"
	"syscall"

	"github.com/opencvs/cvsimport/internal/cvsimport/cvserr"
	"github.com/opencvs/cvsimport/internal/cvsimport/keyword"
	"github.com/opencvs/cvsimport/internal/cvsimport/model"
	"github.com/opencvs/cvsimport/internal/mapping"
)

// Store is the subset of store.Store the exporter needs, kept narrow so
// tests can supply a fake.
type Store interface {
	UnmarkedChangesets() ([]*model.Changeset, error)
	MarkChangeset(id int64, mark string) error
}

// Blob resolves the post-expansion content and the execute bit for one
// member change of a changeset, the bridge to the RCS checkout side of
// the pipeline.
type Blob interface {
	Checkout(c *model.Change) (content []byte, exec bool, err error)
}

// Progress receives one notification per committed changeset, wired to
// internal/progress.Reporter by callers.
type Progress interface {
	ChangesetCommitted(id int64, mark string)
}

type noopProgress struct{}

func (noopProgress) ChangesetCommitted(int64, string) {}

// Options configures one export run.
type Options struct {
	Ref                 string
	Authors             *mapping.AuthorMap
	StopOnUnknownAuthor bool
	LocalID             string
	Progress            Progress
}

// Exporter drives pending changesets from a Store through a Sink, in
// (start_time, id) order, handling author-mapping checks, keyword
// expansion, and cooperative signal-driven shutdown.
type Exporter struct {
	store Store
	sink  Sink
	blob  Blob
	opts  Options
}

// New returns an Exporter wired to store, sink and blob.
func New(store Store, sink Sink, blob Blob, opts Options) *Exporter {
	if opts.Progress == nil {
		opts.Progress = noopProgress{}
	}
	return &Exporter{store: store, sink: sink, blob: blob, opts: opts}
}

// Run exports every unmarked changeset. It installs handlers for
// SIGHUP/SIGINT/SIGTERM: SIGINT requests a cooperative stop at the next
// changeset boundary (returning a *cvserr.Interrupted, not an error that
// discards already-recorded marks), SIGHUP/SIGTERM break cleanly with no
// error of their own. ctx cancellation is honored the same way.
func (e *Exporter) Run(ctx context.Context) error {
	pending, err := e.store.UnmarkedChangesets()
	if err != nil {
		return &cvserr.StoreFailure{Op: "list unmarked changesets", Err: err}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].StartTime.Equal(pending[j].StartTime) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].StartTime.Before(pending[j].StartTime)
	})
	if len(pending) == 0 {
		return nil
	}

	if e.opts.StopOnUnknownAuthor {
		if err := e.checkAuthors(pending); err != nil {
			return err
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var stop atomic.Bool
	var sigintSeen atomic.Bool
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case s := <-sigCh:
			if s == syscall.SIGINT {
				sigintSeen.Store(true)
			}
			stop.Store(true)
		case <-ctx.Done():
			stop.Store(true)
		case <-done:
		}
	}()

	if ctx.Err() != nil {
		stop.Store(true)
	}

	if err := e.sink.Open(e.opts.Ref); err != nil {
		return err
	}

	var lastCommitted int64
	var runErr error
	committedMarks := make(map[int64]string)

	for _, cs := range pending {
		if stop.Load() {
			break
		}

		spec, err := e.buildCommitSpec(cs)
		if err != nil {
			runErr = err
			break
		}

		mark, err := e.sink.CommitChangeset(spec)
		if err != nil {
			runErr = err
			break
		}
		lastCommitted = cs.ID
		committedMarks[cs.ID] = mark
		e.opts.Progress.ChangesetCommitted(cs.ID, mark)
	}

	closeErr := e.sink.Close()
	if closeErr != nil && runErr == nil {
		runErr = closeErr
	}

	if marksPath := e.sink.MarksPath(); marksPath != "" && runErr == nil {
		marks, err := ParseMarks(marksPath)
		if err != nil {
			return err
		}
		for _, cs := range pending {
			if sha, ok := marks[cs.ID]; ok {
				if err := e.store.MarkChangeset(cs.ID, sha); err != nil {
					return &cvserr.StoreFailure{Op: "mark changeset", Err: err}
				}
			}
		}
	} else if marksPath == "" {
		// A sink without a marks file hands back each commit's id from
		// CommitChangeset, and those commits have already landed.
		for _, cs := range pending {
			if mark, ok := committedMarks[cs.ID]; ok && mark != "" {
				if err := e.store.MarkChangeset(cs.ID, mark); err != nil {
					return &cvserr.StoreFailure{Op: "mark changeset", Err: err}
				}
			}
		}
	}

	if runErr != nil {
		return runErr
	}

	if sigintSeen.Load() {
		return &cvserr.Interrupted{AtChangeset: lastCommitted}
	}

	return nil
}

// checkAuthors fails before any commit is emitted if any member author of
// the pending set has no explicit mapping and no default domain is
// configured to synthesize one.
func (e *Exporter) checkAuthors(pending []*model.Changeset) error {
	if e.opts.Authors == nil {
		return nil
	}
	if e.opts.Authors.HasDefaultDomain() {
		return nil
	}
	seen := make(map[string]bool)
	for _, cs := range pending {
		if seen[cs.Author] {
			continue
		}
		seen[cs.Author] = true
		if _, _, ok := e.opts.Authors.Lookup(cs.Author); !ok {
			return &cvserr.UnknownAuthor{Author: cs.Author}
		}
	}
	return nil
}

func (e *Exporter) buildCommitSpec(cs *model.Changeset) (CommitSpec, error) {
	name, email := cs.Author, cs.Author
	if e.opts.Authors != nil {
		name, email = e.opts.Authors.Get(cs.Author)
	}

	members := make([]*model.Change, len(cs.Members))
	copy(members, cs.Members)
	sort.Slice(members, func(i, j int) bool { return members[i].Filename < members[j].Filename })

	files := make([]FileRecord, 0, len(members))
	for _, c := range members {
		if c.Filestatus == model.Deleted {
			files = append(files, FileRecord{Path: c.Filename, Deleted: true})
			continue
		}

		content, exec, err := e.blob.Checkout(c)
		if err != nil {
			return CommitSpec{}, &cvserr.RcsCheckoutError{Path: c.Filename, Revision: c.Revision, Reason: err.Error()}
		}

		content = keyword.Expand(content, c.Mode, keyword.Context{
			Filename:   c.Filename,
			Revision:   c.Revision,
			Author:     c.Author,
			State:      c.State,
			Date:       c.Timestamp,
			Log:        c.Log,
			ExpandMode: c.Mode,
			LocalID:    e.opts.LocalID,
		})

		files = append(files, FileRecord{Path: c.Filename, Exec: exec, Content: content})
	}

	return CommitSpec{
		Mark:        cs.ID,
		AuthorName:  name,
		AuthorEmail: email,
		Timestamp:   cs.EffectiveTimestamp(),
		Log:         cs.Log,
		Files:       files,
	}, nil
}
