// Command cvsimport is a one-way CVS-to-Git importer: it walks a CVS
// module's RCS ",v" files, reconstructs atomic changesets from CVS's
// per-file commit history, and replays them onto a Git repository.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/opencvs/cvsimport/cmd/cvsimport/commands"
	"github.com/opencvs/cvsimport/internal/cvsimport/cvserr"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		var interrupted *cvserr.Interrupted
		if errors.As(err, &interrupted) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
