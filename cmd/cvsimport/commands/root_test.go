package commands

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionVariables(t *testing.T) {
	require.NotEmpty(t, Version)
	require.NotEmpty(t, GitCommit)
	require.NotEmpty(t, BuildDate)
}

func TestHandleError_NoPanic(t *testing.T) {
	handleError(nil)
}

func TestExecute_Help(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	os.Args = []string{"cvsimport", "--help"}
	err := Execute()
	_ = err
}
