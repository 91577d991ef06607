package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opencvs/cvsimport/internal/cvsimport/store"
	"github.com/opencvs/cvsimport/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only import monitor",
	Long: `Serve starts a local HTTP server exposing run history and live
progress for imports against a target repository: REST endpoints under
/api and a WebSocket feed at /ws/progress/{id}.

It has no way to start or reconfigure an import; runs are only ever
started from the clone/pull commands.`,
	RunE: runServe,
}

var (
	servePort   int
	serveTarget string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to run the monitor on")
	serveCmd.Flags().StringVarP(&serveTarget, "target", "t", "", "Path to the target repository whose metadata store to monitor (required)")
	if err := serveCmd.MarkFlagRequired("target"); err != nil {
		handleError(err)
	}
}

// storeAdapter narrows store.Store to web.RunStore, translating store.Run
// (RunID-keyed, the SQL-shaped type) into web.Run (ID-keyed, the monitor's
// own narrow contract) so the web package never needs to import store.
type storeAdapter struct {
	st *store.Store
}

func (a storeAdapter) Runs() ([]web.Run, error) {
	runs, err := a.st.Runs()
	if err != nil {
		return nil, err
	}
	out := make([]web.Run, 0, len(runs))
	for _, r := range runs {
		out = append(out, toWebRun(r))
	}
	return out, nil
}

func (a storeAdapter) LoadRun(id string) (web.Run, error) {
	r, err := a.st.LoadRun(id)
	if err != nil {
		return web.Run{}, err
	}
	return toWebRun(r), nil
}

func toWebRun(r *store.Run) web.Run {
	return web.Run{
		ID:              r.RunID,
		SourcePath:      r.SourcePath,
		TargetPath:      r.TargetPath,
		Status:          r.Status,
		LastChangesetID: r.LastChangesetID,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	st, err := store.Open(metaDBPath(serveTarget))
	if err != nil {
		return fmt.Errorf("open metadata store for %s: %w", serveTarget, err)
	}
	defer st.Close()

	reporters := web.NewReporterRegistry()
	server := web.NewServer(web.ServerConfig{Port: servePort}, storeAdapter{st: st}, reporters)

	fmt.Printf("cvsimport monitor listening on http://localhost:%d\n", servePort)
	if err := server.Start(); err != nil {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}
