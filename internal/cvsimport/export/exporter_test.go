package export

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/opencvs/cvsimport/internal/cvsimport/cvserr"
	"github.com/opencvs/cvsimport/internal/cvsimport/model"
	"github.com/opencvs/cvsimport/internal/mapping"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	changesets []*model.Changeset
	marks      map[int64]string
}

func (f *fakeStore) ChangesetsByStartTime() ([]*model.Changeset, error) {
	return f.changesets, nil
}

func (f *fakeStore) UnmarkedChangesets() ([]*model.Changeset, error) {
	var out []*model.Changeset
	for _, cs := range f.changesets {
		if cs.Mark == "" {
			out = append(out, cs)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkChangeset(id int64, mark string) error {
	if f.marks == nil {
		f.marks = make(map[int64]string)
	}
	f.marks[id] = mark
	for _, cs := range f.changesets {
		if cs.ID == id {
			cs.Mark = mark
		}
	}
	return nil
}

type fakeSink struct {
	opened   bool
	ref      string
	commits  []CommitSpec
	closeErr error
}

func (f *fakeSink) Open(ref string) error {
	f.opened = true
	f.ref = ref
	return nil
}

func (f *fakeSink) CommitChangeset(spec CommitSpec) (string, error) {
	f.commits = append(f.commits, spec)
	return "sha-for-" + spec.AuthorName, nil
}

func (f *fakeSink) Close() error { return f.closeErr }

func (f *fakeSink) MarksPath() string { return "" }

type fakeBlob struct{}

func (fakeBlob) Checkout(c *model.Change) ([]byte, bool, error) {
	return []byte("content of " + c.Filename), false, nil
}

func changeset(id int64, author string, start time.Time, filenames ...string) *model.Changeset {
	cs := &model.Changeset{ID: id, Author: author, Log: "msg", StartTime: start, EndTime: start}
	for _, f := range filenames {
		cs.Members = append(cs.Members, &model.Change{
			Filename: f, Revision: "1.1", Author: author, Log: "msg",
			Timestamp: start, Filestatus: model.Added,
		})
	}
	return cs
}

func TestExporterCommitsInStartTimeOrder(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{changesets: []*model.Changeset{
		changeset(2, "joe", base.Add(time.Hour), "b.txt"),
		changeset(1, "joe", base, "a.txt"),
	}}
	sink := &fakeSink{}

	exp := New(store, sink, fakeBlob{}, Options{})
	require.NoError(t, exp.Run(context.Background()))

	require.True(t, sink.opened)
	require.Len(t, sink.commits, 2)
	require.Equal(t, int64(1), sink.commits[0].Mark)
	require.Equal(t, int64(2), sink.commits[1].Mark)
}

func TestExporterDeletedMemberEmitsNoBlob(t *testing.T) {
	base := time.Now()
	cs := &model.Changeset{ID: 1, Author: "joe", Log: "rm", StartTime: base, EndTime: base}
	cs.Members = append(cs.Members, &model.Change{Filename: "a.txt", Revision: "1.2", Filestatus: model.Deleted})
	store := &fakeStore{changesets: []*model.Changeset{cs}}
	sink := &fakeSink{}

	exp := New(store, sink, fakeBlob{}, Options{})
	require.NoError(t, exp.Run(context.Background()))

	require.Len(t, sink.commits, 1)
	require.Len(t, sink.commits[0].Files, 1)
	require.True(t, sink.commits[0].Files[0].Deleted)
	require.Nil(t, sink.commits[0].Files[0].Content)
}

func TestExporterFilesSortedByPath(t *testing.T) {
	cs := changeset(1, "joe", time.Now(), "z.txt", "a.txt")
	store := &fakeStore{changesets: []*model.Changeset{cs}}
	sink := &fakeSink{}

	exp := New(store, sink, fakeBlob{}, Options{})
	require.NoError(t, exp.Run(context.Background()))

	files := sink.commits[0].Files
	require.True(t, sort.SliceIsSorted(files, func(i, j int) bool { return files[i].Path < files[j].Path }))
}

func TestExporterNoPendingChangesetsIsNoop(t *testing.T) {
	store := &fakeStore{}
	sink := &fakeSink{}

	exp := New(store, sink, fakeBlob{}, Options{})
	require.NoError(t, exp.Run(context.Background()))
	require.False(t, sink.opened)
}

func TestExporterSkipsAlreadyMarkedChangesets(t *testing.T) {
	cs1 := changeset(1, "joe", time.Now(), "a.txt")
	cs1.Mark = "already-done"
	cs2 := changeset(2, "joe", time.Now().Add(time.Second), "b.txt")
	store := &fakeStore{changesets: []*model.Changeset{cs1, cs2}}
	sink := &fakeSink{}

	exp := New(store, sink, fakeBlob{}, Options{})
	require.NoError(t, exp.Run(context.Background()))

	require.Len(t, sink.commits, 1)
	require.Equal(t, int64(2), sink.commits[0].Mark)
}

func TestExporterStopOnUnknownAuthorWithMapping(t *testing.T) {
	cs := changeset(1, "mystery", time.Now(), "a.txt")
	store := &fakeStore{changesets: []*model.Changeset{cs}}
	sink := &fakeSink{}

	authors := mapping.NewAuthorMap(map[string]string{
		"mystery": "Mystery Author <mystery@example.com>",
	})

	exp := New(store, sink, fakeBlob{}, Options{StopOnUnknownAuthor: true, Authors: authors})
	require.NoError(t, exp.Run(context.Background()))
	require.Len(t, sink.commits, 1)
}

func TestExporterStopOnUnknownAuthorFailsBeforeAnyCommit(t *testing.T) {
	cs := changeset(1, "mystery", time.Now(), "a.txt")
	store := &fakeStore{changesets: []*model.Changeset{cs}}
	sink := &fakeSink{}

	authors := mapping.NewAuthorMapWithDefault(map[string]string{
		"someone-else": "Someone Else <someone@example.com>",
	}, "")

	exp := New(store, sink, fakeBlob{}, Options{StopOnUnknownAuthor: true, Authors: authors})
	err := exp.Run(context.Background())
	require.Error(t, err)
	require.IsType(t, &cvserr.UnknownAuthor{}, err)
	require.Empty(t, sink.commits)
}

func TestExporterContextCancellationStopsBeforeNextChangeset(t *testing.T) {
	base := time.Now()
	store := &fakeStore{changesets: []*model.Changeset{
		changeset(1, "joe", base, "a.txt"),
		changeset(2, "joe", base.Add(time.Second), "b.txt"),
	}}
	sink := &fakeSink{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exp := New(store, sink, fakeBlob{}, Options{})
	err := exp.Run(ctx)
	require.NoError(t, err)
	require.Empty(t, sink.commits)
}
