package requirements

import (
	"context"
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/opencvs/cvsimport/internal/cvsimport/cvserr"
	"github.com/opencvs/cvsimport/internal/cvsimport/export"
	"github.com/opencvs/cvsimport/internal/cvsimport/model"
)

type fakeStore struct {
	pending []*model.Changeset
	mu      sync.Mutex
	marked  map[int64]string
}

func (s *fakeStore) UnmarkedChangesets() ([]*model.Changeset, error) {
	return s.pending, nil
}

func (s *fakeStore) MarkChangeset(id int64, mark string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.marked == nil {
		s.marked = make(map[int64]string)
	}
	s.marked[id] = mark
	return nil
}

type fakeBlob struct{}

func (fakeBlob) Checkout(c *model.Change) ([]byte, bool, error) {
	return []byte("content"), false, nil
}

// fakeSink raises SIGINT against the running process after committing the
// changeset identified by raiseAfter, simulating a Ctrl-C landing mid-run.
type fakeSink struct {
	raiseAfter int64
	mu         sync.Mutex
	committed  []int64
}

func (s *fakeSink) Open(ref string) error { return nil }

func (s *fakeSink) CommitChangeset(spec export.CommitSpec) (string, error) {
	s.mu.Lock()
	s.committed = append(s.committed, spec.Mark)
	s.mu.Unlock()

	if spec.Mark == s.raiseAfter {
		_ = syscall.Kill(os.Getpid(), syscall.SIGINT)
		// Give the exporter's signal goroutine time to observe the
		// delivery and flip its stop flag before the run loop checks it
		// on the next iteration.
		time.Sleep(100 * time.Millisecond)
	}
	return "mark-" + spec.Log, nil
}

func (s *fakeSink) Close() error      { return nil }
func (s *fakeSink) MarksPath() string { return "" }

func changesetAt(id int64, t time.Time) *model.Changeset {
	return &model.Changeset{
		ID:        id,
		StartTime: t,
		EndTime:   t,
		Author:    "alice",
		Log:       "work",
		Members: []*model.Change{
			{Filename: "f", Revision: "1.1", Timestamp: t, Author: "alice", Filestatus: model.Added},
		},
	}
}

// TestSigintDuringExportStopsAtBoundaryAndReportsInterrupted covers
// scenario 6: a SIGINT delivered mid-export must not abort mid-changeset;
// the exporter finishes committing whatever is in flight, stops before
// starting the next one, and returns a *cvserr.Interrupted naming the last
// changeset it actually committed rather than a bare error.
func TestSigintDuringExportStopsAtBoundaryAndReportsInterrupted(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pending := []*model.Changeset{
		changesetAt(1, base),
		changesetAt(2, base.Add(time.Minute)),
		changesetAt(3, base.Add(2 * time.Minute)),
	}

	store := &fakeStore{pending: pending}
	sink := &fakeSink{raiseAfter: 1}
	exp := export.New(store, sink, fakeBlob{}, export.Options{})

	err := exp.Run(context.Background())
	if err == nil {
		t.Fatal("expected an error after SIGINT, got nil")
	}

	var interrupted *cvserr.Interrupted
	if !errors.As(err, &interrupted) {
		t.Fatalf("expected *cvserr.Interrupted, got %T: %v", err, err)
	}
	if interrupted.AtChangeset != 1 {
		t.Errorf("AtChangeset = %d, want 1", interrupted.AtChangeset)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.committed) != 1 {
		t.Errorf("sink committed %d changesets, want exactly 1 (the one in flight when SIGINT landed)", len(sink.committed))
	}
}
