package requirements

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencvs/cvsimport/internal/cvsimport/cvserr"
	"github.com/opencvs/cvsimport/internal/cvsimport/scanner"
)

func writeSized(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
}

// TestZombieKeepsLargerAtticCopy covers scenario 3: when both foo/bar,v and
// foo/Attic/bar,v exist, the scanner keeps whichever is larger (taken as a
// proxy for "has more revisions") and drops the other.
func TestZombieKeepsLargerAtticCopy(t *testing.T) {
	dir := t.TempDir()
	writeSized(t, filepath.Join(dir, "foo", "bar,v"), 800)
	writeSized(t, filepath.Join(dir, "foo", "Attic", "bar,v"), 1200)

	candidates, err := scanner.New(dir).Scan(nil)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 surviving candidate, got %d", len(candidates))
	}
	if candidates[0].Path != filepath.Join(dir, "foo", "Attic", "bar,v") {
		t.Errorf("kept %q, want the Attic copy", candidates[0].Path)
	}
}

// TestZombieEqualSizesIsAmbiguous covers the same scenario's tie-break
// case: when the two copies are byte-identical in size, the scanner can't
// decide and surfaces a ZombieAmbiguous error rather than guessing.
func TestZombieEqualSizesIsAmbiguous(t *testing.T) {
	dir := t.TempDir()
	writeSized(t, filepath.Join(dir, "foo", "bar,v"), 1000)
	writeSized(t, filepath.Join(dir, "foo", "Attic", "bar,v"), 1000)

	_, err := scanner.New(dir).Scan(nil)
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	var zombie *cvserr.ZombieAmbiguous
	if !errors.As(err, &zombie) {
		t.Fatalf("expected *cvserr.ZombieAmbiguous, got %T: %v", err, err)
	}
}
