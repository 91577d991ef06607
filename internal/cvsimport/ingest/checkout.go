package ingest

import (
	"fmt"
	"os"
	"sync"

	"github.com/opencvs/cvsimport/internal/cvsimport/model"
	"github.com/opencvs/cvsimport/internal/cvsimport/rcs"
	"github.com/opencvs/cvsimport/internal/cvsimport/scanner"
)

// Checkout satisfies export.Blob by reconstructing a Change's full text
// from its ",v" file's delta chain. Parsed RCS files are cached per
// filename, since a changeset's members are checked out one revision at a
// time but the same file is frequently revisited across changesets.
type Checkout struct {
	root string

	mu     sync.Mutex
	paths  map[string]string // Filename -> ",v" path
	parsed map[string]*rcs.RCSFile
}

// NewCheckout returns a Checkout rooted at the same module directory the
// scanner walked to produce the Changes it will be asked about.
func NewCheckout(root string) *Checkout {
	return &Checkout{root: root}
}

// Checkout reconstructs c's full text and reports whether the underlying
// ",v" file carries any execute bit, per the exec-bit derivation rule: the
// blob's permission follows the RCS file's own permission, not the working
// file CVS would have checked out.
func (c *Checkout) Checkout(ch *model.Change) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paths == nil {
		if err := c.buildPaths(); err != nil {
			return nil, false, err
		}
	}

	path, ok := c.paths[ch.Filename]
	if !ok {
		return nil, false, fmt.Errorf("ingest: no rcs file found for %s", ch.Filename)
	}

	rf, ok := c.parsed[ch.Filename]
	if !ok {
		var err error
		rf, err = parseRCSFile(path)
		if err != nil {
			return nil, false, err
		}
		c.parsed[ch.Filename] = rf
	}

	text, err := rf.Fulltext(ch.Revision)
	if err != nil {
		return nil, false, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, false, err
	}

	return []byte(text), info.Mode()&0111 != 0, nil
}

func (c *Checkout) buildPaths() error {
	candidates, err := scanner.New(c.root).Scan(nil)
	if err != nil {
		return fmt.Errorf("ingest: scanning %s: %w", c.root, err)
	}

	c.paths = make(map[string]string, len(candidates))
	c.parsed = make(map[string]*rcs.RCSFile, len(candidates))
	for _, cand := range candidates {
		c.paths[cand.Filename] = cand.Path
	}
	return nil
}
