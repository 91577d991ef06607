package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/opencvs/cvsimport/internal/cvsimport/model"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStatcacheRoundTrip(t *testing.T) {
	s := openTestStore(t)

	_, ok := s.Lookup("foo.txt,v")
	require.False(t, ok)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.UpdateStatcache([]model.StatcacheEntry{
		{Path: "foo.txt,v", Mtime: now, Size: 42},
	}))

	entry, ok := s.Lookup("foo.txt,v")
	require.True(t, ok)
	require.Equal(t, int64(42), entry.Size)
	require.True(t, entry.Mtime.Equal(now))
}

func TestAddChangeIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	c := &model.Change{Filename: "a.txt", Revision: "1.1", Timestamp: time.Now(), Author: "joe", Log: "x", Filestatus: model.Added}
	require.NoError(t, s.AddChange(c))
	require.NoError(t, s.AddChange(c))

	changes, err := s.ChangesByTimestamp()
	require.NoError(t, err)
	require.Len(t, changes, 1)
}

func TestAddChangesetAttachesMembersAtomically(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().UTC().Truncate(time.Second)
	a := &model.Change{Filename: "a.txt", Revision: "1.1", Timestamp: base, Author: "joe", Log: "msg", Filestatus: model.Added}
	b := &model.Change{Filename: "b.txt", Revision: "1.1", Timestamp: base.Add(time.Second), Author: "joe", Log: "msg", Filestatus: model.Added}
	require.NoError(t, s.AddChange(a))
	require.NoError(t, s.AddChange(b))

	cs := model.NewChangeset(a)
	cs.Integrate(b)

	id, err := s.AddChangeset(cs)
	require.NoError(t, err)
	require.NotZero(t, id)

	free, err := s.ChangesByTimestamp()
	require.NoError(t, err)
	require.Empty(t, free)

	all, err := s.ChangesetsByStartTime()
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Len(t, all[0].Members, 2)
	require.Equal(t, "joe", all[0].Author)
}

func TestMarkChangesetAndUnmarked(t *testing.T) {
	s := openTestStore(t)

	c := &model.Change{Filename: "a.txt", Revision: "1.1", Timestamp: time.Now(), Author: "joe", Log: "msg", Filestatus: model.Added}
	require.NoError(t, s.AddChange(c))
	cs := model.NewChangeset(c)
	id, err := s.AddChangeset(cs)
	require.NoError(t, err)

	pending, err := s.UnmarkedChangesets()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.MarkChangeset(id, "deadbeef"))

	pending, err = s.UnmarkedChangesets()
	require.NoError(t, err)
	require.Empty(t, pending)

	all, err := s.ChangesetsByStartTime()
	require.NoError(t, err)
	require.Equal(t, "deadbeef", all[0].Mark)
}

func TestChangesByTimestampOrdering(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().UTC().Truncate(time.Second)
	late := &model.Change{Filename: "b.txt", Revision: "1.1", Timestamp: base.Add(time.Hour), Author: "x", Log: "l", Filestatus: model.Added}
	early := &model.Change{Filename: "a.txt", Revision: "1.1", Timestamp: base, Author: "x", Log: "l", Filestatus: model.Added}
	require.NoError(t, s.AddChange(late))
	require.NoError(t, s.AddChange(early))

	changes, err := s.ChangesByTimestamp()
	require.NoError(t, err)
	require.Len(t, changes, 2)
	require.Equal(t, "a.txt", changes[0].Filename)
	require.Equal(t, "b.txt", changes[1].Filename)
}

func TestRunRoundTrip(t *testing.T) {
	s := openTestStore(t)

	run := &Run{RunID: "r1", SourcePath: "/cvs/mod", TargetPath: "/out/repo", Status: "running"}
	require.NoError(t, s.SaveRun(run))

	loaded, err := s.LoadRun("r1")
	require.NoError(t, err)
	require.Equal(t, "running", loaded.Status)

	run.Status = "completed"
	run.LastChangesetID = 7
	require.NoError(t, s.SaveRun(run))

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "completed", runs[0].Status)
	require.Equal(t, int64(7), runs[0].LastChangesetID)
}
