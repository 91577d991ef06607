package rcs

import (
	"fmt"
	"strings"
	"time"
)

// Delta is one node of an RCS file's revision tree: the per-revision header
// fields plus the raw delta text (full text at head, an ed script
// everywhere else) and log message.
type Delta struct {
	Revision string
	Date     time.Time
	Author   string
	State    string
	Branches []string
	Next     string
	Log      string
	Text     string
}

// RCSFile is the parsed form of one ",v" file.
type RCSFile struct {
	Head        string
	Branch      string
	Access      []string
	Symbols     map[string]string
	Locks       map[string]string
	StrictLocks bool
	Comment     string
	Expand      string
	Description string
	Deltas      map[string]*Delta
	DeltaOrder  []string
}

// Filestatus mirrors the derived (not RCS-stored) Added/Modified/Deleted
// classification from the data model.
type Filestatus string

const (
	Added    Filestatus = "Added"
	Modified Filestatus = "Modified"
	Deleted  Filestatus = "Deleted"
)

// Change is one main-line revision record, ready to hand to the scanner.
type Change struct {
	Timestamp  time.Time
	Author     string
	Log        string
	Filestatus Filestatus
	Revision   string
	State      string
}

// isBranchPrefix reports whether rev lies on the branch identified by
// branchNum, i.e. branchNum is a dotted prefix of rev.
func isBranchPrefix(branchNum, rev string) bool {
	if branchNum == "" {
		return true
	}
	return strings.HasPrefix(rev, branchNum+".")
}

// MainLineChanges walks the main-line revision path starting at Head and
// returns one Change per revision, applying the vendor-branch quirk and the
// filestatus derivation rules: when the file's header names a non-empty
// branch field of the form X.Y.Z, the main-line path runs through the first
// branch child whose name starts with "X.Y.Z."; thereafter it follows each
// revision's Next link until that is exhausted.
func (r *RCSFile) MainLineChanges() ([]*Change, error) {
	if r.Head == "" {
		return nil, nil
	}

	var changes []*Change
	seen := make(map[string]bool)
	rev := r.Head
	first := true

	for rev != "" && !seen[rev] {
		seen[rev] = true
		d, ok := r.Deltas[rev]
		if !ok {
			return nil, fmt.Errorf("rcs: revision %s referenced but not defined", rev)
		}

		if first && r.Branch != "" {
			if child := firstBranchChild(d, r.Branch); child != "" {
				rev = child
				first = false
				continue
			}
		}
		first = false

		if d.State == "dead" && d.Revision == "1.1" {
			// Initially added on a branch; not a real trunk change.
			rev = d.Next
			continue
		}

		status := Modified
		switch {
		case d.State == "dead":
			status = Deleted
		case d.Next == "":
			status = Added
		}

		logText := d.Log
		if d.Revision == "1.1" {
			if vendor, ok := r.Deltas["1.1.1.1"]; ok {
				logText = vendor.Log
			}
		}

		changes = append(changes, &Change{
			Timestamp:  d.Date,
			Author:     d.Author,
			Log:        logText,
			Filestatus: status,
			Revision:   d.Revision,
			State:      d.State,
		})

		rev = d.Next
	}

	return changes, nil
}

// firstBranchChild returns the first of delta's branch children whose
// revision number begins with the given branch prefix, or "" if none do.
func firstBranchChild(d *Delta, branchPrefix string) string {
	for _, b := range d.Branches {
		if isBranchPrefix(branchPrefix, b) {
			return b
		}
	}
	return ""
}

// Fulltext reconstructs the full content of revision rev by starting at the
// head delta's stored fulltext and applying each intervening delta's ed
// script in turn, per RCS's reverse-delta storage convention: the head
// carries fulltext, every other node stores a forward-applicable ed script
// relative to its position in the chain from head.
func (r *RCSFile) Fulltext(rev string) (string, error) {
	if r.Head == "" {
		return "", fmt.Errorf("rcs: no head revision")
	}

	head, ok := r.Deltas[r.Head]
	if !ok {
		return "", fmt.Errorf("rcs: head revision %s not defined", r.Head)
	}

	chain, err := r.chainTo(rev)
	if err != nil {
		return "", err
	}

	text := head.Text
	var err2 error
	for _, d := range chain {
		text, err2 = applyEdScript(text, d.Text)
		if err2 != nil {
			return "", fmt.Errorf("rcs: applying delta for %s: %w", d.Revision, err2)
		}
	}
	return text, nil
}

// chainTo returns the deltas between (exclusive) Head and (inclusive) rev,
// in application order, following Next links on the trunk and the first
// matching Branches entry when rev lies off the trunk.
func (r *RCSFile) chainTo(rev string) ([]*Delta, error) {
	if rev == r.Head {
		return nil, nil
	}

	cur := r.Head
	var chain []*Delta
	seen := make(map[string]bool)

	for {
		if seen[cur] {
			return nil, fmt.Errorf("rcs: cycle detected walking delta chain at %s", cur)
		}
		seen[cur] = true

		d, ok := r.Deltas[cur]
		if !ok {
			return nil, fmt.Errorf("rcs: revision %s referenced but not defined", cur)
		}

		next := ""
		for _, b := range d.Branches {
			branchNum := b
			if k := strings.LastIndex(b, "."); k >= 0 {
				branchNum = b[:k]
			}
			if isBranchPrefix(branchNum, rev) {
				next = b
				break
			}
		}
		if next == "" {
			next = d.Next
		}
		if next == "" {
			return nil, fmt.Errorf("rcs: revision %s not reachable from head %s", rev, r.Head)
		}

		nd, ok := r.Deltas[next]
		if !ok {
			return nil, fmt.Errorf("rcs: revision %s referenced but not defined", next)
		}
		chain = append(chain, nd)
		cur = next
		if cur == rev {
			return chain, nil
		}
	}
}
