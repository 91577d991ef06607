package commands

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opencvs/cvsimport/internal/cvsimport/store"
)

func TestServeCommandFlagDefault(t *testing.T) {
	require.Equal(t, 8080, servePort)

	old := servePort
	servePort = 9090
	defer func() { servePort = old }()
	require.Equal(t, 9090, servePort)
}

func TestToWebRun(t *testing.T) {
	r := &store.Run{
		RunID:           "run-1",
		SourcePath:      "/src",
		TargetPath:      "/tgt",
		Status:          "exporting",
		LastChangesetID: 42,
	}

	web := toWebRun(r)
	require.Equal(t, "run-1", web.ID)
	require.Equal(t, "/src", web.SourcePath)
	require.Equal(t, "/tgt", web.TargetPath)
	require.Equal(t, "exporting", web.Status)
	require.Equal(t, int64(42), web.LastChangesetID)
}

func TestStoreAdapter_RunsAndLoadRun(t *testing.T) {
	dbPath := t.TempDir() + "/meta.db"
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.SaveRun(&store.Run{RunID: "run-a", SourcePath: "/s", TargetPath: "/t", Status: "completed"}))

	adapter := storeAdapter{st: st}

	runs, err := adapter.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "run-a", runs[0].ID)

	loaded, err := adapter.LoadRun("run-a")
	require.NoError(t, err)
	require.Equal(t, "completed", loaded.Status)
}
